package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/office-scheduler/internal/calendar"
)

// ConflictingEvent is an existing event that shares a participant and overlaps in time.
type ConflictingEvent struct {
	ID                        int64          `db:"id" json:"id"`
	Title                     string         `db:"title" json:"title"`
	Date                      calendar.Date  `db:"event_date" json:"date"`
	EndDate                   *calendar.Date `db:"end_date" json:"end_date,omitempty"`
	StartTime                 calendar.Clock `db:"start_time" json:"start_time"`
	EndTime                   calendar.Clock `db:"end_time" json:"end_time"`
	CreatedBy                 int64          `db:"created_by" json:"created_by"`
	AttendeeIDs               pq.Int64Array  `db:"attendee_ids" json:"-"`
	ConflictDate              calendar.Date  `db:"-" json:"conflict_date"`
	OverlappingParticipantIDs []int64        `db:"-" json:"overlapping_participant_ids"`
	OverlappingParticipants   []string       `db:"-" json:"overlapping_participants"`
}

// Participants returns the creator and attendees of the conflicting event.
func (c ConflictingEvent) Participants() []int64 {
	return UniqueIDs(append([]int64{c.CreatedBy}, c.AttendeeIDs...))
}

// EventConflictError is returned when a schedule collides with existing events.
type EventConflictError struct {
	Message   string             `json:"message"`
	Conflicts []ConflictingEvent `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *EventConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%d conflicting events", len(e.Conflicts))
}

// ConflictRecord is a ledger row for a detected conflicting pair.
type ConflictRecord struct {
	ID                 int64     `db:"id" json:"id"`
	EventID            int64     `db:"event_id" json:"event_id"`
	ConflictingEventID int64     `db:"conflicting_event_id" json:"conflicting_event_id"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// ConflictReportRow is a ledger row joined with both events for reporting.
type ConflictReportRow struct {
	ID                   int64          `db:"id" json:"id"`
	EventID              int64          `db:"event_id" json:"event_id"`
	EventTitle           string         `db:"event_title" json:"event_title"`
	EventDate            calendar.Date  `db:"event_date" json:"event_date"`
	EventEndDate         *calendar.Date `db:"event_end_date" json:"event_end_date,omitempty"`
	EventStartTime       calendar.Clock `db:"event_start_time" json:"event_start_time"`
	EventEndTime         calendar.Clock `db:"event_end_time" json:"event_end_time"`
	ConflictingEventID   int64          `db:"conflicting_event_id" json:"conflicting_event_id"`
	ConflictingTitle     string         `db:"conflicting_title" json:"conflicting_title"`
	ConflictingDate      calendar.Date  `db:"conflicting_date" json:"conflicting_date"`
	ConflictingEndDate   *calendar.Date `db:"conflicting_end_date" json:"conflicting_end_date,omitempty"`
	ConflictingStartTime calendar.Clock `db:"conflicting_start_time" json:"conflicting_start_time"`
	ConflictingEndTime   calendar.Clock `db:"conflicting_end_time" json:"conflicting_end_time"`
	TimeConflict         bool           `db:"time_conflict" json:"time_conflict"`
	ParticipantConflict  bool           `db:"participant_conflict" json:"participant_conflict"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
}
