package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/office-scheduler/internal/dto"
	"github.com/noah-isme/office-scheduler/internal/middleware"
	"github.com/noah-isme/office-scheduler/internal/models"
	"github.com/noah-isme/office-scheduler/internal/service"
	"github.com/noah-isme/office-scheduler/pkg/response"
)

type rsvpService interface {
	Submit(ctx context.Context, actor models.Identity, eventID int64, req dto.RsvpRequest) (*service.RsvpSubmission, error)
	ListForEvent(ctx context.Context, eventID int64) ([]models.Rsvp, error)
	PendingInvitations(ctx context.Context, actor models.Identity) ([]models.Invitation, error)
}

// RsvpHandler handles invitee responses.
type RsvpHandler struct {
	service rsvpService
}

// NewRsvpHandler constructs handler.
func NewRsvpHandler(svc rsvpService) *RsvpHandler {
	return &RsvpHandler{service: svc}
}

// Submit godoc
// @Summary Respond to an invitation
// @Description accepted requires representative_name, declined requires decline_reason. Admins may pass office_user_id.
// @Tags RSVP
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param payload body dto.RsvpRequest true "Response"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /events/{id}/rsvp [post]
func (h *RsvpHandler) Submit(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.RsvpRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.Submit(c.Request.Context(), identity, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditDetails(c, map[string]interface{}{
		"status":          result.Rsvp.Status,
		"office_user_id":  result.Rsvp.OfficeUserID,
		"acting_as_admin": result.ActingAsAdmin,
	})
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List responses for an event
// @Tags RSVP
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/rsvps [get]
func (h *RsvpHandler) List(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	items, err := h.service.ListForEvent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Invitations godoc
// @Summary Pending invitations for the caller
// @Description Events the caller has not answered and that have not ended yet.
// @Tags RSVP
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /invitations [get]
func (h *RsvpHandler) Invitations(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	items, err := h.service.PendingInvitations(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
