package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/dto"
	"github.com/noah-isme/office-scheduler/internal/middleware"
	"github.com/noah-isme/office-scheduler/internal/models"
	appErrors "github.com/noah-isme/office-scheduler/pkg/errors"
)

type eventServiceMock struct {
	detail      *models.EventDetail
	event       *models.Event
	reschedule  *dto.RescheduleResult
	conflicts   []models.ConflictingEvent
	summaries   []models.EventSummary
	err         error
	lastActor   models.Identity
	lastID      int64
	lastCreate  dto.CreateEventRequest
	lastUpdate  dto.UpdateEventRequest
	lastQuery   dto.EventListQuery
	lastCheck   dto.ConflictCheckRequest
	deleteCalls int
}

func (m *eventServiceMock) List(ctx context.Context, query dto.EventListQuery) ([]models.EventSummary, *models.Pagination, error) {
	m.lastQuery = query
	return m.summaries, &models.Pagination{Page: 1, PageSize: 100, TotalCount: len(m.summaries)}, m.err
}

func (m *eventServiceMock) Get(ctx context.Context, id int64) (*models.EventDetail, error) {
	m.lastID = id
	return m.detail, m.err
}

func (m *eventServiceMock) Create(ctx context.Context, actor models.Identity, req dto.CreateEventRequest) (*models.EventDetail, error) {
	m.lastActor = actor
	m.lastCreate = req
	return m.detail, m.err
}

func (m *eventServiceMock) Update(ctx context.Context, actor models.Identity, id int64, req dto.UpdateEventRequest) (*models.EventDetail, error) {
	m.lastActor = actor
	m.lastID = id
	m.lastUpdate = req
	return m.detail, m.err
}

func (m *eventServiceMock) Delete(ctx context.Context, actor models.Identity, id int64) error {
	m.deleteCalls++
	m.lastID = id
	return m.err
}

func (m *eventServiceMock) Cancel(ctx context.Context, actor models.Identity, id int64, req dto.CancelEventRequest) (*models.Event, error) {
	m.lastID = id
	return m.event, m.err
}

func (m *eventServiceMock) Reschedule(ctx context.Context, actor models.Identity, id int64, req dto.RescheduleEventRequest) (*dto.RescheduleResult, error) {
	m.lastID = id
	return m.reschedule, m.err
}

func (m *eventServiceMock) CheckConflict(ctx context.Context, actor models.Identity, req dto.ConflictCheckRequest) ([]models.ConflictingEvent, error) {
	m.lastActor = actor
	m.lastCheck = req
	return m.conflicts, m.err
}

func newTestContext(method, target string, body interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func financeClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: 1, Role: models.RoleUser, CanModifyEvents: true}
}

type envelopeBody struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelopeBody {
	t.Helper()
	var body envelopeBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestEventHandlerCreate(t *testing.T) {
	svc := &eventServiceMock{detail: &models.EventDetail{Event: models.Event{ID: 42, Title: "Budget review"}}}
	handler := NewEventHandler(svc)

	c, w := newTestContext(http.MethodPost, "/events", map[string]interface{}{
		"title":        "Budget review",
		"date":         "2024-06-03",
		"start_time":   "10:00",
		"end_time":     "11:00",
		"attendee_ids": []int64{2},
	}, financeClaims())

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(1), svc.lastActor.ID)
	assert.True(t, svc.lastActor.CanModifyEvents)
	assert.Equal(t, []int64{2}, svc.lastCreate.AttendeeIDs)
	assert.Equal(t, "42", c.GetString(middleware.ContextAuditResourceKey))
}

func TestEventHandlerCreateRequiresIdentity(t *testing.T) {
	svc := &eventServiceMock{}
	handler := NewEventHandler(svc)

	c, w := newTestContext(http.MethodPost, "/events", map[string]string{"title": "x"}, nil)
	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.lastCreate.Title)
}

func TestEventHandlerCreateInvalidPayload(t *testing.T) {
	handler := NewEventHandler(&eventServiceMock{})

	c, w := newTestContext(http.MethodPost, "/events", nil, financeClaims())
	c.Request.Body = http.NoBody
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeEnvelope(t, w)
	require.NotNil(t, body.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, body.Error.Code)
}

func TestEventHandlerCreateConflictCarriesEvents(t *testing.T) {
	date, _ := calendar.ParseDate("2024-06-03")
	conflicts := []models.ConflictingEvent{{ID: 7, Title: "Audit", Date: date, ConflictDate: date, OverlappingParticipants: []string{"Finance"}}}
	svc := &eventServiceMock{err: appErrors.WithDetails(appErrors.ErrConflict, "schedule conflicts with an existing event", conflicts)}
	handler := NewEventHandler(svc)

	c, w := newTestContext(http.MethodPost, "/events", map[string]string{"title": "x"}, financeClaims())
	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	var body struct {
		Error struct {
			Code    string                    `json:"code"`
			Details []models.ConflictingEvent `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, appErrors.ErrConflict.Code, body.Error.Code)
	require.Len(t, body.Error.Details, 1)
	assert.Equal(t, int64(7), body.Error.Details[0].ID)
	assert.Equal(t, []string{"Finance"}, body.Error.Details[0].OverlappingParticipants)
}

func TestEventHandlerGetInvalidID(t *testing.T) {
	svc := &eventServiceMock{}
	handler := NewEventHandler(svc)

	c, w := newTestContext(http.MethodGet, "/events/abc", nil, financeClaims())
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	handler.Get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.lastID)
}

func TestEventHandlerGetNotFound(t *testing.T) {
	handler := NewEventHandler(&eventServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "event not found")})

	c, w := newTestContext(http.MethodGet, "/events/9", nil, financeClaims())
	c.Params = gin.Params{{Key: "id", Value: "9"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventHandlerUpdateLocked(t *testing.T) {
	svc := &eventServiceMock{err: appErrors.Clone(appErrors.ErrLocked, "event is finished and view-only")}
	handler := NewEventHandler(svc)

	c, w := newTestContext(http.MethodPut, "/events/5", map[string]string{"title": "Renamed"}, financeClaims())
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	handler.Update(c)

	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, int64(5), svc.lastID)
	require.NotNil(t, svc.lastUpdate.Title)
	assert.Equal(t, "Renamed", *svc.lastUpdate.Title)
	assert.Nil(t, svc.lastUpdate.AttendeeIDs)
}

func TestEventHandlerDelete(t *testing.T) {
	svc := &eventServiceMock{}
	handler := NewEventHandler(svc)

	c, w := newTestContext(http.MethodDelete, "/events/5", nil, financeClaims())
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, svc.deleteCalls)
}

func TestEventHandlerReschedule(t *testing.T) {
	svc := &eventServiceMock{reschedule: &dto.RescheduleResult{
		Original:  &models.Event{ID: 5, Status: models.EventStatusCancelled},
		Successor: &models.Event{ID: 6, Status: models.EventStatusActive},
	}}
	handler := NewEventHandler(svc)

	c, w := newTestContext(http.MethodPost, "/events/5/reschedule", map[string]string{
		"date": "2024-06-04", "start_time": "10:00", "end_time": "11:00",
	}, financeClaims())
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	handler.Reschedule(c)

	require.Equal(t, http.StatusCreated, w.Code)
	details, ok := c.Get(middleware.ContextAuditDetailsKey)
	require.True(t, ok)
	assert.Equal(t, int64(6), details.(map[string]interface{})["successor_id"])
}

func TestEventHandlerCheckConflict(t *testing.T) {
	svc := &eventServiceMock{conflicts: []models.ConflictingEvent{}}
	handler := NewEventHandler(svc)

	c, w := newTestContext(http.MethodPost, "/conflicts/check", map[string]interface{}{
		"date": "2024-06-03", "start_time": "10:00", "end_time": "11:00", "exclude_event_id": 3,
	}, financeClaims())
	handler.CheckConflict(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastCheck.ExcludeEventID)
	assert.Equal(t, int64(3), *svc.lastCheck.ExcludeEventID)

	var body struct {
		Data dto.ConflictCheckResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Data.HasConflict)
	assert.NotNil(t, body.Data.Conflicts)
}

func TestEventHandlerList(t *testing.T) {
	svc := &eventServiceMock{summaries: []models.EventSummary{{Event: models.Event{ID: 1}}}}
	handler := NewEventHandler(svc)

	c, w := newTestContext(http.MethodGet, "/events?start=2024-06-01&end=2024-06-30&q=budget&page=2", nil, financeClaims())
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-06-01", svc.lastQuery.From)
	assert.Equal(t, "2024-06-30", svc.lastQuery.To)
	assert.Equal(t, "budget", svc.lastQuery.Search)
	assert.Equal(t, 2, svc.lastQuery.Page)
}
