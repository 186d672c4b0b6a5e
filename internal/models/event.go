package models

import (
	"time"

	"github.com/noah-isme/office-scheduler/internal/calendar"
)

// EventCategory is the fixed set of event kinds.
type EventCategory string

const (
	CategoryMeeting       EventCategory = "meeting"
	CategoryRemoteSession EventCategory = "remote-session"
	CategoryGeneral       EventCategory = "general"
)

// Valid reports whether the category is known.
func (c EventCategory) Valid() bool {
	switch c {
	case CategoryMeeting, CategoryRemoteSession, CategoryGeneral:
		return true
	}
	return false
}

// EventStatus is the lifecycle status of an event.
type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
)

// Event is a scheduled occurrence spanning one or more calendar days.
type Event struct {
	ID                     int64          `db:"id" json:"id"`
	Title                  string         `db:"title" json:"title"`
	Category               EventCategory  `db:"category" json:"category"`
	Date                   calendar.Date  `db:"event_date" json:"date"`
	EndDate                *calendar.Date `db:"end_date" json:"end_date,omitempty"`
	StartTime              calendar.Clock `db:"start_time" json:"start_time"`
	EndTime                calendar.Clock `db:"end_time" json:"end_time"`
	Location               *string        `db:"location" json:"location,omitempty"`
	Description            *string        `db:"description" json:"description,omitempty"`
	Color                  *string        `db:"color" json:"color,omitempty"`
	Status                 EventStatus    `db:"status" json:"status"`
	CancelReason           *string        `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CanceledAt             *time.Time     `db:"canceled_at" json:"canceled_at,omitempty"`
	CanceledBy             *int64         `db:"canceled_by" json:"canceled_by,omitempty"`
	RescheduledFromEventID *int64         `db:"rescheduled_from_event_id" json:"rescheduled_from_event_id,omitempty"`
	RescheduledToEventID   *int64         `db:"rescheduled_to_event_id" json:"rescheduled_to_event_id,omitempty"`
	CreatedBy              int64          `db:"created_by" json:"created_by"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`
}

// EffectiveEndDate is the last day of the event.
func (e *Event) EffectiveEndDate() calendar.Date {
	return calendar.EffectiveEnd(e.Date, e.EndDate)
}

// StartsAt is the instant the event begins in loc.
func (e *Event) StartsAt(loc *time.Location) time.Time {
	return calendar.Combine(e.Date, e.StartTime, loc)
}

// EndsAt is the instant the event finishes on its last day in loc.
func (e *Event) EndsAt(loc *time.Location) time.Time {
	return calendar.Combine(e.EffectiveEndDate(), e.EndTime, loc)
}

// IsDone reports whether the event has finished and is view-only.
func (e *Event) IsDone(now time.Time, loc *time.Location) bool {
	return !now.Before(e.EndsAt(loc))
}

// HasStarted reports whether responses are locked.
func (e *Event) HasStarted(now time.Time, loc *time.Location) bool {
	return !now.Before(e.StartsAt(loc))
}

// IsCancelled reports whether the event was cancelled.
func (e *Event) IsCancelled() bool {
	return e.Status == EventStatusCancelled
}

// Days expands the stored range.
func (e *Event) Days() ([]calendar.Date, error) {
	return calendar.Expand(e.Date, e.EffectiveEndDate())
}

// Participants returns the creator followed by attendees, deduplicated.
func (e *Event) Participants(attendeeIDs []int64) []int64 {
	return UniqueIDs(append([]int64{e.CreatedBy}, attendeeIDs...))
}

// UniqueIDs removes duplicates and non-positive ids while keeping first-seen order.
func UniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// Attendee is a participant invited to an event.
type Attendee struct {
	EventID  int64  `db:"event_id" json:"event_id"`
	UserID   int64  `db:"user_id" json:"user_id"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// Attachment is file metadata linked to an event. The file itself lives elsewhere.
type Attachment struct {
	ID           int64     `db:"id" json:"id"`
	EventID      int64     `db:"event_id" json:"event_id"`
	FileName     string    `db:"file_name" json:"file_name"`
	OriginalName string    `db:"original_name" json:"original_name"`
	MimeType     *string   `db:"mime_type" json:"mime_type,omitempty"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// EventSummary is a list row with display helpers.
type EventSummary struct {
	Event
	CreatorName   string `db:"creator_name" json:"creator_name"`
	ConflictCount int    `db:"conflict_count" json:"conflict_count"`
	AttendeeNames string `db:"attendee_names" json:"attendee_names"`
}

// EventFilter narrows event listings.
type EventFilter struct {
	From     *calendar.Date
	To       *calendar.Date
	On       *calendar.Date
	Search   string
	Category EventCategory
	Status   EventStatus
	Page     int
	PageSize int
}

// EventDetail is an event with its related rows.
type EventDetail struct {
	Event
	CreatorName string           `json:"creator_name"`
	Attendees   []Attendee       `json:"attendees"`
	Rsvps       []Rsvp           `json:"rsvps"`
	Attachments []Attachment     `json:"attachments"`
	Conflicts   []ConflictRecord `json:"conflicts"`
	Done        bool             `json:"done"`
}
