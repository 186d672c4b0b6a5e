package models

import (
	"time"

	"github.com/noah-isme/office-scheduler/internal/calendar"
)

// RsvpStatus is the response state of an invitee.
type RsvpStatus string

const (
	RsvpPending  RsvpStatus = "pending"
	RsvpAccepted RsvpStatus = "accepted"
	RsvpDeclined RsvpStatus = "declined"
)

// Rsvp is one invitee's response to an event.
type Rsvp struct {
	ID                 int64      `db:"id" json:"id"`
	EventID            int64      `db:"event_id" json:"event_id"`
	OfficeUserID       int64      `db:"office_user_id" json:"office_user_id"`
	OfficeName         string     `db:"office_name" json:"office_name,omitempty"`
	Status             RsvpStatus `db:"status" json:"status"`
	RepresentativeName *string    `db:"representative_name" json:"representative_name,omitempty"`
	DeclineReason      *string    `db:"decline_reason" json:"decline_reason,omitempty"`
	RespondedAt        *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Invitation is a pending RSVP joined with its event.
type Invitation struct {
	RsvpID      int64          `db:"rsvp_id" json:"rsvp_id"`
	EventID     int64          `db:"event_id" json:"event_id"`
	Title       string         `db:"title" json:"title"`
	Category    EventCategory  `db:"category" json:"category"`
	Date        calendar.Date  `db:"event_date" json:"date"`
	EndDate     *calendar.Date `db:"end_date" json:"end_date,omitempty"`
	StartTime   calendar.Clock `db:"start_time" json:"start_time"`
	EndTime     calendar.Clock `db:"end_time" json:"end_time"`
	Location    *string        `db:"location" json:"location,omitempty"`
	CreatorName string         `db:"creator_name" json:"creator_name"`
	Status      RsvpStatus     `db:"status" json:"status"`
}
