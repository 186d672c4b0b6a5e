package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/office-scheduler/pkg/response"
)

type feedService interface {
	Render(ctx context.Context, start, end string) ([]byte, error)
}

// FeedHandler publishes the iCalendar feed.
type FeedHandler struct {
	service feedService
}

// NewFeedHandler constructs handler.
func NewFeedHandler(svc feedService) *FeedHandler {
	return &FeedHandler{service: svc}
}

// Feed godoc
// @Summary iCalendar feed of active events
// @Tags Calendar
// @Produce text/calendar
// @Param start query string false "Window start (YYYY-MM-DD)"
// @Param end query string false "Window end (YYYY-MM-DD)"
// @Success 200 {string} string
// @Router /calendar/feed.ics [get]
func (h *FeedHandler) Feed(c *gin.Context) {
	body, err := h.service.Render(c.Request.Context(), c.Query("start"), c.Query("end"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}
