package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/office-scheduler/internal/dto"
	"github.com/noah-isme/office-scheduler/internal/middleware"
	"github.com/noah-isme/office-scheduler/internal/models"
	"github.com/noah-isme/office-scheduler/internal/service"
	appErrors "github.com/noah-isme/office-scheduler/pkg/errors"
)

type rsvpServiceMock struct {
	submission  *service.RsvpSubmission
	rsvps       []models.Rsvp
	invitations []models.Invitation
	err         error
	lastActor   models.Identity
	lastEvent   int64
	lastReq     dto.RsvpRequest
}

func (m *rsvpServiceMock) Submit(ctx context.Context, actor models.Identity, eventID int64, req dto.RsvpRequest) (*service.RsvpSubmission, error) {
	m.lastActor = actor
	m.lastEvent = eventID
	m.lastReq = req
	return m.submission, m.err
}

func (m *rsvpServiceMock) ListForEvent(ctx context.Context, eventID int64) ([]models.Rsvp, error) {
	m.lastEvent = eventID
	return m.rsvps, m.err
}

func (m *rsvpServiceMock) PendingInvitations(ctx context.Context, actor models.Identity) ([]models.Invitation, error) {
	m.lastActor = actor
	return m.invitations, m.err
}

func TestRsvpHandlerSubmitAsAdmin(t *testing.T) {
	svc := &rsvpServiceMock{submission: &service.RsvpSubmission{
		Rsvp:          &models.Rsvp{ID: 3, EventID: 8, OfficeUserID: 2, Status: models.RsvpAccepted},
		ActingAsAdmin: true,
	}}
	handler := NewRsvpHandler(svc)

	c, w := newTestContext(http.MethodPost, "/events/8/rsvp", map[string]interface{}{
		"status":              "accepted",
		"representative_name": "Deputy",
		"office_user_id":      2,
	}, &models.JWTClaims{UserID: 9, Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "8"}}
	handler.Submit(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(8), svc.lastEvent)
	assert.True(t, svc.lastActor.IsAdmin())
	require.NotNil(t, svc.lastReq.OfficeUserID)
	assert.Equal(t, int64(2), *svc.lastReq.OfficeUserID)

	details, ok := c.Get(middleware.ContextAuditDetailsKey)
	require.True(t, ok)
	payload := details.(map[string]interface{})
	assert.Equal(t, true, payload["acting_as_admin"])
	assert.Equal(t, int64(2), payload["office_user_id"])
	assert.Equal(t, models.RsvpAccepted, payload["status"])
}

func TestRsvpHandlerSubmitErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not invited", err: appErrors.Clone(appErrors.ErrNotInvited, "you are not invited to this event"), status: http.StatusForbidden},
		{name: "started", err: appErrors.Clone(appErrors.ErrLocked, "event has already started"), status: http.StatusLocked},
		{name: "missing reason", err: appErrors.Clone(appErrors.ErrValidation, "decline_reason is required"), status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRsvpHandler(&rsvpServiceMock{err: tc.err})
			c, w := newTestContext(http.MethodPost, "/events/8/rsvp", map[string]string{"status": "declined"}, financeClaims())
			c.Params = gin.Params{{Key: "id", Value: "8"}}
			handler.Submit(c)

			assert.Equal(t, tc.status, w.Code)
			_, audited := c.Get(middleware.ContextAuditDetailsKey)
			assert.False(t, audited)
		})
	}
}

func TestRsvpHandlerInvitations(t *testing.T) {
	svc := &rsvpServiceMock{invitations: []models.Invitation{{RsvpID: 1, EventID: 8, Title: "Budget review", Status: models.RsvpPending}}}
	handler := NewRsvpHandler(svc)

	c, w := newTestContext(http.MethodGet, "/invitations", nil, &models.JWTClaims{UserID: 2, Role: models.RoleUser})
	handler.Invitations(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), svc.lastActor.ID)
	assert.Contains(t, w.Body.String(), "Budget review")
}

func TestRsvpHandlerList(t *testing.T) {
	svc := &rsvpServiceMock{rsvps: []models.Rsvp{{ID: 1, EventID: 8, OfficeUserID: 2, Status: models.RsvpPending}}}
	handler := NewRsvpHandler(svc)

	c, w := newTestContext(http.MethodGet, "/events/8/rsvp", nil, financeClaims())
	c.Params = gin.Params{{Key: "id", Value: "8"}}
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(8), svc.lastEvent)
}
