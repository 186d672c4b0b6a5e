package dto

import "github.com/noah-isme/office-scheduler/internal/models"

// AttachmentInput is metadata for a file already stored by the upload collaborator.
type AttachmentInput struct {
	FileName     string  `json:"file_name" validate:"required,max=255"`
	OriginalName string  `json:"original_name" validate:"required,max=255"`
	MimeType     *string `json:"mime_type" validate:"omitempty,max=120"`
	SizeBytes    int64   `json:"size_bytes" validate:"gte=0"`
}

// CreateEventRequest is the payload for scheduling a new event.
type CreateEventRequest struct {
	Title       string            `json:"title" validate:"required,max=255"`
	Category    string            `json:"category" validate:"omitempty,oneof=meeting remote-session general"`
	Date        string            `json:"date" validate:"required"`
	EndDate     string            `json:"end_date"`
	StartTime   string            `json:"start_time" validate:"required"`
	EndTime     string            `json:"end_time" validate:"required"`
	Location    *string           `json:"location" validate:"omitempty,max=500"`
	Description *string           `json:"description"`
	Color       *string           `json:"color" validate:"omitempty,max=50"`
	AttendeeIDs []int64           `json:"attendee_ids" validate:"omitempty,dive,gt=0"`
	Attachments []AttachmentInput `json:"attachments" validate:"omitempty,dive"`
}

// UpdateEventRequest carries a partial update. Nil fields are left untouched; an empty
// end_date clears the end date; a non-nil attendee list replaces the current attendees.
type UpdateEventRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Category    *string  `json:"category" validate:"omitempty,oneof=meeting remote-session general"`
	Date        *string  `json:"date"`
	EndDate     *string  `json:"end_date"`
	StartTime   *string  `json:"start_time"`
	EndTime     *string  `json:"end_time"`
	Location    *string  `json:"location" validate:"omitempty,max=500"`
	Description *string  `json:"description"`
	Color       *string  `json:"color" validate:"omitempty,max=50"`
	AttendeeIDs *[]int64 `json:"attendee_ids" validate:"omitempty,dive,gt=0"`
}

// CancelEventRequest cancels an active event.
type CancelEventRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// RescheduleEventRequest moves an event to a new slot by creating a successor.
type RescheduleEventRequest struct {
	Date      string  `json:"date" validate:"required"`
	EndDate   string  `json:"end_date"`
	StartTime string  `json:"start_time" validate:"required"`
	EndTime   string  `json:"end_time" validate:"required"`
	Reason    *string `json:"reason" validate:"omitempty,max=1000"`
}

// EventListQuery holds listing filters from the query string.
type EventListQuery struct {
	From     string `form:"start"`
	To       string `form:"end"`
	On       string `form:"date"`
	Search   string `form:"q"`
	Category string `form:"category" validate:"omitempty,oneof=meeting remote-session general"`
	Status   string `form:"status" validate:"omitempty,oneof=active cancelled"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=500"`
}

// RescheduleResult links the cancelled original and its successor.
type RescheduleResult struct {
	Original  *models.Event `json:"original"`
	Successor *models.Event `json:"successor"`
}
