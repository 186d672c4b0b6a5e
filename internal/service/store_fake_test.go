package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// memStore keeps scheduling rows in memory. Transactions are the sqlmock's concern; the
// store ignores exec.
type memStore struct {
	mu          sync.Mutex
	users       map[int64]*models.User
	events      map[int64]*models.Event
	attendees   map[int64][]int64
	rsvps       map[int64]map[int64]*models.Rsvp
	attachments map[int64][]models.Attachment
	ledger      []models.ConflictRecord
	locks       [][]int64
	nextID      int64
	fail        map[string]error
}

func newMemStore(users ...models.User) *memStore {
	s := &memStore{
		users:       map[int64]*models.User{},
		events:      map[int64]*models.Event{},
		attendees:   map[int64][]int64{},
		rsvps:       map[int64]map[int64]*models.Rsvp{},
		attachments: map[int64][]models.Attachment{},
		fail:        map[string]error{},
	}
	for i := range users {
		u := users[i]
		s.users[u.ID] = &u
	}
	return s
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) failure(op string) error {
	return s.fail[op]
}

func (s *memStore) event(id int64) (*models.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

type memEvents struct{ *memStore }

func (s memEvents) FindByID(_ context.Context, _ sqlx.ExtContext, id int64) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event(id)
}

func (s memEvents) LockByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Event, error) {
	return s.FindByID(ctx, exec, id)
}

func (s memEvents) ShareByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Event, error) {
	return s.FindByID(ctx, exec, id)
}

func (s memEvents) List(_ context.Context, filter models.EventFilter) ([]models.EventSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.EventSummary
	for _, e := range s.sortedEvents() {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.On != nil && !calendar.Contains(e.Date, e.EndDate, *filter.On) {
			continue
		}
		items = append(items, models.EventSummary{Event: *e})
	}
	return items, len(items), nil
}

func (s memEvents) ListActiveInRange(_ context.Context, from, to calendar.Date) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.Event
	for _, e := range s.sortedEvents() {
		if e.IsCancelled() || e.Date.After(to) || e.EffectiveEndDate().Before(from) {
			continue
		}
		items = append(items, *e)
	}
	return items, nil
}

func (s *memStore) sortedEvents() []*models.Event {
	items := make([]*models.Event, 0, len(s.events))
	for _, e := range s.events {
		items = append(items, e)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (s memEvents) Create(_ context.Context, _ sqlx.ExtContext, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("event.create"); err != nil {
		return err
	}
	event.ID = s.id()
	event.CreatedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	event.UpdatedAt = event.CreatedAt
	if event.Status == "" {
		event.Status = models.EventStatusActive
	}
	cp := *event
	s.events[event.ID] = &cp
	return nil
}

func (s memEvents) Update(_ context.Context, _ sqlx.ExtContext, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *event
	s.events[event.ID] = &cp
	return nil
}

func (s memEvents) Cancel(_ context.Context, _ sqlx.ExtContext, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.events[event.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Status = event.Status
	stored.CancelReason = event.CancelReason
	stored.CanceledAt = event.CanceledAt
	stored.CanceledBy = event.CanceledBy
	return nil
}

func (s memEvents) LinkSuccessor(_ context.Context, _ sqlx.ExtContext, originalID, successorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[originalID]
	if !ok || e.RescheduledToEventID != nil {
		return sql.ErrNoRows
	}
	e.RescheduledToEventID = &successorID
	return nil
}

func (s memEvents) Delete(_ context.Context, _ sqlx.ExtContext, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.events, id)
	delete(s.attendees, id)
	delete(s.rsvps, id)
	delete(s.attachments, id)
	kept := s.ledger[:0]
	for _, r := range s.ledger {
		if r.EventID != id && r.ConflictingEventID != id {
			kept = append(kept, r)
		}
	}
	s.ledger = kept
	return nil
}

func (s memEvents) LockParticipants(_ context.Context, _ sqlx.ExtContext, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := models.UniqueIDs(ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	s.locks = append(s.locks, sorted)
	return nil
}

func (s memEvents) FindParticipantConflicts(_ context.Context, _ sqlx.ExtContext, _ calendar.Date, _, _ calendar.Clock, _ []int64, _ int64) ([]models.ConflictingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Returns every active event so the detector's own filtering is exercised.
	var items []models.ConflictingEvent
	for _, e := range s.sortedEvents() {
		if e.IsCancelled() {
			continue
		}
		items = append(items, models.ConflictingEvent{
			ID:          e.ID,
			Title:       e.Title,
			Date:        e.Date,
			EndDate:     e.EndDate,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			CreatedBy:   e.CreatedBy,
			AttendeeIDs: append([]int64{}, s.attendees[e.ID]...),
		})
	}
	return items, nil
}

func (s memEvents) ListAttendees(_ context.Context, _ sqlx.ExtContext, eventID int64) ([]models.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.Attendee
	for _, id := range s.attendees[eventID] {
		a := models.Attendee{EventID: eventID, UserID: id}
		if u, ok := s.users[id]; ok {
			a.FullName, a.Email = u.FullName, u.Email
		}
		items = append(items, a)
	}
	return items, nil
}

func (s memEvents) AttendeeIDs(_ context.Context, _ sqlx.ExtContext, eventID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64{}, s.attendees[eventID]...), nil
}

func (s memEvents) AddAttendees(_ context.Context, _ sqlx.ExtContext, eventID int64, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendees[eventID] = models.UniqueIDs(append(s.attendees[eventID], ids...))
	return nil
}

func (s memEvents) RemoveAttendees(_ context.Context, _ sqlx.ExtContext, eventID int64, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := map[int64]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	var kept []int64
	for _, id := range s.attendees[eventID] {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.attendees[eventID] = kept
	return nil
}

type memRsvps struct{ *memStore }

func (s memRsvps) CreatePending(_ context.Context, _ sqlx.ExtContext, eventID int64, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("rsvp.create"); err != nil {
		return err
	}
	if s.rsvps[eventID] == nil {
		s.rsvps[eventID] = map[int64]*models.Rsvp{}
	}
	for _, id := range ids {
		if _, ok := s.rsvps[eventID][id]; ok {
			continue
		}
		s.rsvps[eventID][id] = &models.Rsvp{ID: s.id(), EventID: eventID, OfficeUserID: id, Status: models.RsvpPending}
	}
	return nil
}

func (s memRsvps) DeleteForUsers(_ context.Context, _ sqlx.ExtContext, eventID int64, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.rsvps[eventID], id)
	}
	return nil
}

func (s memRsvps) ListByEvent(_ context.Context, _ sqlx.ExtContext, eventID int64) ([]models.Rsvp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.Rsvp
	for _, r := range s.rsvps[eventID] {
		items = append(items, *r)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].OfficeUserID < items[j].OfficeUserID })
	return items, nil
}

func (s memRsvps) LockForResponse(_ context.Context, _ sqlx.ExtContext, eventID, userID int64) (*models.Rsvp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rsvps[eventID][userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (s memRsvps) Respond(_ context.Context, _ sqlx.ExtContext, rsvp *models.Rsvp, respondedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rsvps[rsvp.EventID][rsvp.OfficeUserID]; !ok {
		return sql.ErrNoRows
	}
	rsvp.RespondedAt = &respondedAt
	cp := *rsvp
	s.rsvps[rsvp.EventID][rsvp.OfficeUserID] = &cp
	return nil
}

func (s memRsvps) PendingForUser(_ context.Context, userID int64, today calendar.Date, now calendar.Clock) ([]models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.Invitation
	for _, e := range s.sortedEvents() {
		r, ok := s.rsvps[e.ID][userID]
		if !ok || r.Status != models.RsvpPending || e.IsCancelled() {
			continue
		}
		end := e.EffectiveEndDate()
		if end.Before(today) || (end.Equal(today) && e.EndTime.Before(now)) {
			continue
		}
		items = append(items, models.Invitation{RsvpID: r.ID, EventID: e.ID, Title: e.Title, Date: e.Date, EndDate: e.EndDate, StartTime: e.StartTime, EndTime: e.EndTime, Status: r.Status})
	}
	return items, nil
}

type memLedger struct{ *memStore }

func (s memLedger) ReplaceForEvent(_ context.Context, _ sqlx.ExtContext, eventID int64, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.ledger[:0]
	for _, r := range s.ledger {
		if r.EventID != eventID && r.ConflictingEventID != eventID {
			kept = append(kept, r)
		}
	}
	s.ledger = kept
	for _, id := range models.UniqueIDs(ids) {
		if id == eventID {
			continue
		}
		s.ledger = append(s.ledger, models.ConflictRecord{ID: s.id(), EventID: eventID, ConflictingEventID: id})
	}
	return nil
}

func (s memLedger) ListForEvent(_ context.Context, _ sqlx.ExtContext, eventID int64) ([]models.ConflictRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.ConflictRecord
	for _, r := range s.ledger {
		if r.EventID == eventID || r.ConflictingEventID == eventID {
			items = append(items, r)
		}
	}
	return items, nil
}

func (s memLedger) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger), nil
}

func (s memLedger) List(context.Context) ([]models.ConflictReportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.ConflictReportRow
	for _, r := range s.ledger {
		a, b := s.events[r.EventID], s.events[r.ConflictingEventID]
		if a == nil || b == nil {
			continue
		}
		rows = append(rows, models.ConflictReportRow{
			ID: r.ID, EventID: a.ID, EventTitle: a.Title, EventDate: a.Date, EventStartTime: a.StartTime, EventEndTime: a.EndTime,
			ConflictingEventID: b.ID, ConflictingTitle: b.Title, ConflictingDate: b.Date, ConflictingStartTime: b.StartTime, ConflictingEndTime: b.EndTime,
			TimeConflict: true, ParticipantConflict: true,
		})
	}
	return rows, nil
}

type memAttachments struct{ *memStore }

func (s memAttachments) CreateBatch(_ context.Context, _ sqlx.ExtContext, eventID int64, items []models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		item.ID = s.id()
		item.EventID = eventID
		s.attachments[eventID] = append(s.attachments[eventID], item)
	}
	return nil
}

func (s memAttachments) ListByEvent(_ context.Context, _ sqlx.ExtContext, eventID int64) ([]models.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Attachment{}, s.attachments[eventID]...), nil
}

type memUsers struct{ *memStore }

func (s memUsers) FindByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (s memUsers) ExistingIDs(_ context.Context, _ sqlx.ExtContext, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []int64
	for _, id := range ids {
		if _, ok := s.users[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (s memUsers) DisplayNames(_ context.Context, _ sqlx.ExtContext, ids []int64) (map[int64]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := map[int64]string{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			names[id] = u.FullName
		}
	}
	return names, nil
}

// scheduling bundles the services over one memStore with a movable clock.
type scheduling struct {
	store    *memStore
	events   *EventService
	rsvps    *RsvpService
	ledger   *LedgerService
	detector *ConflictDetector
	mock     sqlmock.Sqlmock
	now      time.Time
}

func officeUsers() []models.User {
	color := "#123456"
	return []models.User{
		{ID: 1, FullName: "Finance Office", Role: models.RoleUser, CanModifyEvents: true, OfficeColor: &color},
		{ID: 2, FullName: "Legal Office", Role: models.RoleUser},
		{ID: 3, FullName: "Records Office", Role: models.RoleUser, CanModifyEvents: true},
		{ID: 4, FullName: "Planning Office", Role: models.RoleUser},
		{ID: 9, FullName: "Administrator", Role: models.RoleAdmin},
	}
}

func newScheduling(t *testing.T) *scheduling {
	t.Helper()
	store := newMemStore(officeUsers()...)
	tx, mock := newTxProviderMock(t)
	h := &scheduling{store: store, mock: mock, now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }

	h.detector = NewConflictDetector(memEvents{store}, memUsers{store}, nil, nil)
	h.events = NewEventService(memEvents{store}, memRsvps{store}, memLedger{store}, memAttachments{store}, memUsers{store}, h.detector, tx, nil, nil, nil, nil, nil, EventServiceConfig{
		Location: time.UTC,
		Policy:   calendar.Policy{WeekendLock: true},
		Now:      clock,
	})
	h.rsvps = NewRsvpService(memEvents{store}, memRsvps{store}, tx, nil, nil, nil, nil, time.UTC, clock)
	h.ledger = NewLedgerService(memEvents{store}, memLedger{store}, h.detector, tx, nil, nil, nil, nil)
	h.ledger.now = clock
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })
	return h
}

func (h *scheduling) expectCommit() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

func (h *scheduling) expectRollback() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
}

func identity(id int64) models.Identity {
	switch id {
	case 9:
		return models.Identity{ID: id, Role: models.RoleAdmin}
	case 1, 3:
		return models.Identity{ID: id, Role: models.RoleUser, CanModifyEvents: true}
	}
	return models.Identity{ID: id, Role: models.RoleUser}
}
