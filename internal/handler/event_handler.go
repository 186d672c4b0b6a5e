package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/office-scheduler/internal/dto"
	"github.com/noah-isme/office-scheduler/internal/middleware"
	"github.com/noah-isme/office-scheduler/internal/models"
	appErrors "github.com/noah-isme/office-scheduler/pkg/errors"
	"github.com/noah-isme/office-scheduler/pkg/response"
)

type eventService interface {
	List(ctx context.Context, query dto.EventListQuery) ([]models.EventSummary, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.EventDetail, error)
	Create(ctx context.Context, actor models.Identity, req dto.CreateEventRequest) (*models.EventDetail, error)
	Update(ctx context.Context, actor models.Identity, id int64, req dto.UpdateEventRequest) (*models.EventDetail, error)
	Delete(ctx context.Context, actor models.Identity, id int64) error
	Cancel(ctx context.Context, actor models.Identity, id int64, req dto.CancelEventRequest) (*models.Event, error)
	Reschedule(ctx context.Context, actor models.Identity, id int64, req dto.RescheduleEventRequest) (*dto.RescheduleResult, error)
	CheckConflict(ctx context.Context, actor models.Identity, req dto.ConflictCheckRequest) ([]models.ConflictingEvent, error)
}

// EventHandler exposes the event lifecycle.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs handler.
func NewEventHandler(svc eventService) *EventHandler {
	return &EventHandler{service: svc}
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param start query string false "Range start (YYYY-MM-DD)"
// @Param end query string false "Range end (YYYY-MM-DD)"
// @Param date query string false "Single day (YYYY-MM-DD)"
// @Param q query string false "Search title, location and description"
// @Param category query string false "meeting, remote-session or general"
// @Param status query string false "active or cancelled"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	var query dto.EventListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get event detail
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create event
// @Description Rejects the whole event with 409 and the colliding events when any participant is busy on any spanned day.
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	var req dto.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.service.Create(c.Request.Context(), identity, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResourceID(c, strconv.FormatInt(detail.ID, 10))
	response.Created(c, detail)
}

// Update godoc
// @Summary Update event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param payload body dto.UpdateEventRequest true "Partial update"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.UpdateEventRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.service.Update(c.Request.Context(), identity, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete event
// @Tags Events
// @Param id path int true "Event ID"
// @Success 204
// @Failure 423 {object} response.Envelope
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), identity, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Cancel godoc
// @Summary Cancel event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param payload body dto.CancelEventRequest true "Cancel reason"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/cancel [post]
func (h *EventHandler) Cancel(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.CancelEventRequest
	if !bindJSON(c, &req) {
		return
	}
	event, err := h.service.Cancel(c.Request.Context(), identity, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Reschedule godoc
// @Summary Reschedule event
// @Description Creates a successor in the new slot and cancels the original.
// @Tags Events
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param payload body dto.RescheduleEventRequest true "New slot"
// @Success 201 {object} response.Envelope
// @Router /events/{id}/reschedule [post]
func (h *EventHandler) Reschedule(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.RescheduleEventRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.Reschedule(c.Request.Context(), identity, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditDetails(c, map[string]interface{}{"successor_id": result.Successor.ID})
	response.Created(c, result)
}

// CheckConflict godoc
// @Summary Check a slot for participant conflicts
// @Description Nothing is stored. The caller is the base participant unless exclude_event_id names an event, in which case its creator is.
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body dto.ConflictCheckRequest true "Candidate slot"
// @Success 200 {object} response.Envelope
// @Router /conflicts/check [post]
func (h *EventHandler) CheckConflict(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	var req dto.ConflictCheckRequest
	if !bindJSON(c, &req) {
		return
	}
	conflicts, err := h.service.CheckConflict(c.Request.Context(), identity, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ConflictCheckResponse{HasConflict: len(conflicts) > 0, Conflicts: conflicts}, nil)
}
