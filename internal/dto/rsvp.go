package dto

// RsvpRequest is an invitee response. OfficeUserID is honoured only for admins.
type RsvpRequest struct {
	Status             string  `json:"status" validate:"required,oneof=accepted declined"`
	RepresentativeName *string `json:"representative_name" validate:"omitempty,max=255"`
	DeclineReason      *string `json:"decline_reason" validate:"omitempty,max=1000"`
	OfficeUserID       *int64  `json:"office_user_id" validate:"omitempty,gt=0"`
}
