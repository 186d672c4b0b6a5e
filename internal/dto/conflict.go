package dto

import "github.com/noah-isme/office-scheduler/internal/models"

// ConflictCheckRequest asks whether a slot would collide without persisting anything.
type ConflictCheckRequest struct {
	Date           string  `json:"date" validate:"required"`
	EndDate        string  `json:"end_date"`
	StartTime      string  `json:"start_time" validate:"required"`
	EndTime        string  `json:"end_time" validate:"required"`
	AttendeeIDs    []int64 `json:"attendee_ids" validate:"omitempty,dive,gt=0"`
	ExcludeEventID *int64  `json:"exclude_event_id" validate:"omitempty,gt=0"`
}

// ConflictCheckResponse lists the colliding events, if any.
type ConflictCheckResponse struct {
	HasConflict bool                      `json:"has_conflict"`
	Conflicts   []models.ConflictingEvent `json:"conflicts"`
}

// ConflictExportQuery selects the export encoding.
type ConflictExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf CSV PDF"`
}

// ConflictCount is the ledger size.
type ConflictCount struct {
	Count int `json:"count"`
}
