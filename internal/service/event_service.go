package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/dto"
	"github.com/noah-isme/office-scheduler/internal/models"
	appErrors "github.com/noah-isme/office-scheduler/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type eventRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Event, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.EventSummary, int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error
	Update(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error
	Cancel(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error
	LinkSuccessor(ctx context.Context, exec sqlx.ExtContext, originalID, successorID int64) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error
	LockParticipants(ctx context.Context, exec sqlx.ExtContext, participantIDs []int64) error
	ListAttendees(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]models.Attendee, error)
	AttendeeIDs(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]int64, error)
	AddAttendees(ctx context.Context, exec sqlx.ExtContext, eventID int64, userIDs []int64) error
	RemoveAttendees(ctx context.Context, exec sqlx.ExtContext, eventID int64, userIDs []int64) error
}

type rsvpWriter interface {
	CreatePending(ctx context.Context, exec sqlx.ExtContext, eventID int64, userIDs []int64) error
	DeleteForUsers(ctx context.Context, exec sqlx.ExtContext, eventID int64, userIDs []int64) error
	ListByEvent(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]models.Rsvp, error)
}

type ledgerRepository interface {
	ReplaceForEvent(ctx context.Context, exec sqlx.ExtContext, eventID int64, conflictingIDs []int64) error
	ListForEvent(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]models.ConflictRecord, error)
}

type attachmentRepository interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, eventID int64, items []models.Attachment) error
	ListByEvent(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]models.Attachment, error)
}

type userDirectory interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	ExistingIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]int64, error)
	DisplayNames(ctx context.Context, exec sqlx.ExtContext, ids []int64) (map[int64]string, error)
}

type conflictScanner interface {
	Scan(ctx context.Context, exec sqlx.ExtContext, q ConflictQuery) ([]models.ConflictingEvent, error)
}

// eventPalette colours events whose creator has no office colour.
var eventPalette = []string{"#3b82f6", "#22c55e", "#f97316", "#a855f7", "#ef4444", "#14b8a6", "#eab308", "#ec4899"}

// ledgerCachePattern matches every cached ledger report.
const ledgerCachePattern = "conflicts:*"

// EventServiceConfig carries calendar settings and the clock.
type EventServiceConfig struct {
	Location *time.Location
	Policy   calendar.Policy
	Now      func() time.Time
}

// EventService manages the event lifecycle: validation, participant conflict checks and
// all-or-nothing persistence of an event with its attendees and RSVP rows.
type EventService struct {
	events      eventRepository
	rsvps       rsvpWriter
	ledger      ledgerRepository
	attachments attachmentRepository
	users       userDirectory
	detector    conflictScanner
	tx          txProvider
	cache       *CacheService
	notifier    *NotificationService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	loc         *time.Location
	policy      calendar.Policy
	now         func() time.Time
}

// NewEventService wires the event lifecycle dependencies.
func NewEventService(
	events eventRepository,
	rsvps rsvpWriter,
	ledger ledgerRepository,
	attachments attachmentRepository,
	users userDirectory,
	detector conflictScanner,
	tx txProvider,
	cache *CacheService,
	notifier *NotificationService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg EventServiceConfig,
) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &EventService{
		events:      events,
		rsvps:       rsvps,
		ledger:      ledger,
		attachments: attachments,
		users:       users,
		detector:    detector,
		tx:          tx,
		cache:       cache,
		notifier:    notifier,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		loc:         cfg.Location,
		policy:      cfg.Policy,
		now:         cfg.Now,
	}
}

// slot is a parsed date range with its wall-clock window.
type slot struct {
	Date      calendar.Date
	EndDate   *calendar.Date
	StartTime calendar.Clock
	EndTime   calendar.Clock
	Days      []calendar.Date
}

func parseSlot(date, endDate, startTime, endTime string) (*slot, error) {
	start, err := calendar.ParseDate(date)
	if err != nil {
		return nil, invalidWrap(err, "invalid date")
	}
	var end *calendar.Date
	if strings.TrimSpace(endDate) != "" {
		parsed, err := calendar.ParseDate(endDate)
		if err != nil {
			return nil, invalidWrap(err, "invalid end_date")
		}
		end = &parsed
	}
	return buildSlot(start, end, startTime, endTime)
}

func buildSlot(start calendar.Date, end *calendar.Date, startTime, endTime string) (*slot, error) {
	days, err := calendar.Expand(start, calendar.EffectiveEnd(start, end))
	if err != nil {
		return nil, invalidWrap(err, err.Error())
	}
	// A stored end date equal to the start date is the same as none.
	if end != nil && end.Equal(start) {
		end = nil
	}
	from, err := calendar.ParseClock(startTime)
	if err != nil {
		return nil, invalidWrap(err, "invalid start_time")
	}
	to, err := calendar.ParseClock(endTime)
	if err != nil {
		return nil, invalidWrap(err, "invalid end_time")
	}
	if !to.After(from) {
		return nil, invalid("end time must be after start time")
	}
	return &slot{Date: start, EndDate: end, StartTime: from, EndTime: to, Days: days}, nil
}

func (s *EventService) checkRestricted(days []calendar.Date) error {
	if day, found := s.policy.FirstRestricted(days); found {
		return invalid(fmt.Sprintf("events cannot be scheduled on weekends (%s)", day.String()))
	}
	return nil
}

// Create validates and persists a new event with its attendees, pending RSVPs and
// attachment metadata. Any participant conflict on any spanned day rejects the whole event.
func (s *EventService) Create(ctx context.Context, actor models.Identity, req dto.CreateEventRequest) (detail *models.EventDetail, err error) {
	defer func() { s.metrics.RecordEventOperation("create", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, invalidWrap(err, "invalid event payload")
	}
	sl, err := parseSlot(req.Date, req.EndDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if sl.Date.Before(calendar.Today(now, s.loc)) {
		return nil, invalid("cannot create events in the past")
	}
	if err := s.checkRestricted(sl.Days); err != nil {
		return nil, err
	}

	category := models.CategoryMeeting
	if req.Category != "" {
		category = models.EventCategory(req.Category)
	}
	attendees := models.UniqueIDs(req.AttendeeIDs)
	event := &models.Event{
		Title:       strings.TrimSpace(req.Title),
		Category:    category,
		Date:        sl.Date,
		EndDate:     sl.EndDate,
		StartTime:   sl.StartTime,
		EndTime:     sl.EndTime,
		Location:    trimmed(req.Location),
		Description: trimmed(req.Description),
		Color:       trimmed(req.Color),
		Status:      models.EventStatusActive,
		CreatedBy:   actor.ID,
	}
	if event.Title == "" {
		return nil, invalid("title is required")
	}
	if event.Color == nil {
		event.Color = s.defaultColor(ctx, actor.ID)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	participants := event.Participants(attendees)
	if err = s.events.LockParticipants(ctx, tx, participants); err != nil {
		return nil, internal(err, "failed to lock participants")
	}
	if err = s.ensureUsersExist(ctx, tx, attendees); err != nil {
		return nil, err
	}
	conflicts, err := s.detector.Scan(ctx, tx, ConflictQuery{
		Days:           sl.Days,
		StartTime:      sl.StartTime,
		EndTime:        sl.EndTime,
		ParticipantIDs: participants,
	})
	if err != nil {
		return nil, internal(err, "failed to check conflicts")
	}
	if len(conflicts) > 0 {
		s.logger.Info("event create rejected", zap.Int64("actor_id", actor.ID), zap.Int("conflict_count", len(conflicts)))
		err = conflictError(conflicts)
		return nil, err
	}

	if err = s.events.Create(ctx, tx, event); err != nil {
		return nil, internal(err, "failed to create event")
	}
	if err = s.events.AddAttendees(ctx, tx, event.ID, attendees); err != nil {
		return nil, internal(err, "failed to add attendees")
	}
	if err = s.rsvps.CreatePending(ctx, tx, event.ID, attendees); err != nil {
		return nil, internal(err, "failed to create rsvps")
	}
	if len(req.Attachments) > 0 {
		items := make([]models.Attachment, 0, len(req.Attachments))
		for _, a := range req.Attachments {
			items = append(items, models.Attachment{FileName: a.FileName, OriginalName: a.OriginalName, MimeType: a.MimeType, SizeBytes: a.SizeBytes})
		}
		if err = s.attachments.CreateBatch(ctx, tx, event.ID, items); err != nil {
			return nil, internal(err, "failed to store attachments")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit event")
	}

	s.logger.Info("event created", zap.Int64("event_id", event.ID), zap.Int64("actor_id", actor.ID), zap.Int("attendees", len(attendees)))
	s.notifier.EventInvited(event, attendees)
	return s.Get(ctx, event.ID)
}

// Update applies a partial change. Done or cancelled events are view-only. The weekend
// rule is only enforced when the date range moves.
func (s *EventService) Update(ctx context.Context, actor models.Identity, id int64, req dto.UpdateEventRequest) (detail *models.EventDetail, err error) {
	defer func() { s.metrics.RecordEventOperation("update", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, invalidWrap(err, "invalid event payload")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := s.lockModifiable(ctx, tx, actor, id)
	if err != nil {
		return nil, err
	}
	if current.IsCancelled() {
		err = locked("cancelled events cannot be edited")
		return nil, err
	}

	updated, err := applyUpdate(*current, req)
	if err != nil {
		return nil, err
	}
	sl, err := buildSlot(updated.Date, updated.EndDate, string(updated.StartTime), string(updated.EndTime))
	if err != nil {
		return nil, err
	}
	updated.EndDate = sl.EndDate
	updated.StartTime, updated.EndTime = sl.StartTime, sl.EndTime
	if calendar.RangeChanged(current.Date, current.EndDate, updated.Date, updated.EndDate) {
		if err = s.checkRestricted(sl.Days); err != nil {
			return nil, err
		}
	}

	existing, err := s.events.AttendeeIDs(ctx, tx, id)
	if err != nil {
		return nil, internal(err, "failed to load attendees")
	}
	attendees := existing
	if req.AttendeeIDs != nil {
		attendees = keepCreator(existing, models.UniqueIDs(*req.AttendeeIDs), current.CreatedBy)
	}
	added, removed := diffIDs(existing, attendees)

	participants := updated.Participants(attendees)
	lockSet := append(current.Participants(existing), participants...)
	if err = s.events.LockParticipants(ctx, tx, lockSet); err != nil {
		return nil, internal(err, "failed to lock participants")
	}
	if err = s.ensureUsersExist(ctx, tx, added); err != nil {
		return nil, err
	}

	conflicts, err := s.detector.Scan(ctx, tx, ConflictQuery{
		Days:           sl.Days,
		StartTime:      sl.StartTime,
		EndTime:        sl.EndTime,
		ParticipantIDs: participants,
		ExcludeEventID: id,
	})
	if err != nil {
		return nil, internal(err, "failed to check conflicts")
	}
	if len(conflicts) > 0 {
		s.logger.Info("event update rejected", zap.Int64("event_id", id), zap.Int64("actor_id", actor.ID), zap.Int("conflict_count", len(conflicts)))
		err = conflictError(conflicts)
		return nil, err
	}

	if err = s.events.Update(ctx, tx, &updated); err != nil {
		return nil, notFoundOr(err, "event", "failed to update event")
	}
	if err = s.events.RemoveAttendees(ctx, tx, id, removed); err != nil {
		return nil, internal(err, "failed to remove attendees")
	}
	if err = s.rsvps.DeleteForUsers(ctx, tx, id, removed); err != nil {
		return nil, internal(err, "failed to remove rsvps")
	}
	if err = s.events.AddAttendees(ctx, tx, id, added); err != nil {
		return nil, internal(err, "failed to add attendees")
	}
	if err = s.rsvps.CreatePending(ctx, tx, id, added); err != nil {
		return nil, internal(err, "failed to create rsvps")
	}
	if err = s.ledger.ReplaceForEvent(ctx, tx, id, conflictIDs(conflicts)); err != nil {
		return nil, internal(err, "failed to rebuild conflict ledger")
	}
	if err = tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit event")
	}

	s.invalidateLedger(ctx)
	s.logger.Info("event updated", zap.Int64("event_id", id), zap.Int64("actor_id", actor.ID), zap.Int("added", len(added)), zap.Int("removed", len(removed)))
	s.notifier.EventInvited(&updated, added)
	return s.Get(ctx, id)
}

// Delete removes an event; attendees, RSVPs, attachments and ledger rows go with it.
func (s *EventService) Delete(ctx context.Context, actor models.Identity, id int64) (err error) {
	defer func() { s.metrics.RecordEventOperation("delete", err) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.lockModifiable(ctx, tx, actor, id); err != nil {
		return err
	}
	if err = s.events.Delete(ctx, tx, id); err != nil {
		return notFoundOr(err, "event", "failed to delete event")
	}
	if err = tx.Commit(); err != nil {
		return internal(err, "failed to commit delete")
	}

	s.invalidateLedger(ctx)
	s.logger.Info("event deleted", zap.Int64("event_id", id), zap.Int64("actor_id", actor.ID))
	return nil
}

// Cancel keeps the event for the record but takes it out of conflict detection.
func (s *EventService) Cancel(ctx context.Context, actor models.Identity, id int64, req dto.CancelEventRequest) (event *models.Event, err error) {
	defer func() { s.metrics.RecordEventOperation("cancel", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, invalidWrap(err, "invalid cancel payload")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, invalid("cancel reason is required")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	event, err = s.lockModifiable(ctx, tx, actor, id)
	if err != nil {
		return nil, err
	}
	if event.IsCancelled() {
		err = invalid("event is already cancelled")
		return nil, err
	}
	if err = s.cancelLocked(ctx, tx, event, actor, reason); err != nil {
		return nil, err
	}
	attendees, err := s.events.AttendeeIDs(ctx, tx, id)
	if err != nil {
		return nil, internal(err, "failed to load attendees")
	}
	if err = tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit cancellation")
	}

	s.invalidateLedger(ctx)
	s.logger.Info("event cancelled", zap.Int64("event_id", id), zap.Int64("actor_id", actor.ID))
	s.notifier.EventCancelled(event, attendees)
	return event, nil
}

func (s *EventService) cancelLocked(ctx context.Context, tx sqlx.ExtContext, event *models.Event, actor models.Identity, reason string) error {
	at := s.now().UTC()
	actorID := actor.ID
	event.Status = models.EventStatusCancelled
	event.CancelReason = &reason
	event.CanceledAt = &at
	event.CanceledBy = &actorID
	if err := s.events.Cancel(ctx, tx, event); err != nil {
		return notFoundOr(err, "event", "failed to cancel event")
	}
	if err := s.ledger.ReplaceForEvent(ctx, tx, event.ID, nil); err != nil {
		return internal(err, "failed to clear conflict ledger")
	}
	return nil
}

// Reschedule moves an event by creating a successor in the new slot and cancelling the
// original. Attendees carry over with fresh pending RSVPs.
func (s *EventService) Reschedule(ctx context.Context, actor models.Identity, id int64, req dto.RescheduleEventRequest) (result *dto.RescheduleResult, err error) {
	defer func() { s.metrics.RecordEventOperation("reschedule", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, invalidWrap(err, "invalid reschedule payload")
	}
	sl, err := parseSlot(req.Date, req.EndDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if sl.Date.Before(calendar.Today(s.now(), s.loc)) {
		return nil, invalid("cannot reschedule into the past")
	}
	if err := s.checkRestricted(sl.Days); err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	original, err := s.lockModifiable(ctx, tx, actor, id)
	if err != nil {
		return nil, err
	}
	if original.IsCancelled() {
		err = locked("cancelled events cannot be rescheduled")
		return nil, err
	}
	if original.RescheduledToEventID != nil {
		err = invalid("event has already been rescheduled")
		return nil, err
	}

	attendees, err := s.events.AttendeeIDs(ctx, tx, id)
	if err != nil {
		return nil, internal(err, "failed to load attendees")
	}
	participants := original.Participants(attendees)
	if err = s.events.LockParticipants(ctx, tx, participants); err != nil {
		return nil, internal(err, "failed to lock participants")
	}
	conflicts, err := s.detector.Scan(ctx, tx, ConflictQuery{
		Days:           sl.Days,
		StartTime:      sl.StartTime,
		EndTime:        sl.EndTime,
		ParticipantIDs: participants,
		ExcludeEventID: id,
	})
	if err != nil {
		return nil, internal(err, "failed to check conflicts")
	}
	if len(conflicts) > 0 {
		err = conflictError(conflicts)
		return nil, err
	}

	originalID := original.ID
	successor := &models.Event{
		Title:                  original.Title,
		Category:               original.Category,
		Date:                   sl.Date,
		EndDate:                sl.EndDate,
		StartTime:              sl.StartTime,
		EndTime:                sl.EndTime,
		Location:               original.Location,
		Description:            original.Description,
		Color:                  original.Color,
		Status:                 models.EventStatusActive,
		RescheduledFromEventID: &originalID,
		CreatedBy:              original.CreatedBy,
	}
	if err = s.events.Create(ctx, tx, successor); err != nil {
		return nil, internal(err, "failed to create rescheduled event")
	}
	if err = s.events.AddAttendees(ctx, tx, successor.ID, attendees); err != nil {
		return nil, internal(err, "failed to add attendees")
	}
	if err = s.rsvps.CreatePending(ctx, tx, successor.ID, attendees); err != nil {
		return nil, internal(err, "failed to create rsvps")
	}
	if err = s.events.LinkSuccessor(ctx, tx, originalID, successor.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = invalid("event has already been rescheduled")
			return nil, err
		}
		return nil, internal(err, "failed to link rescheduled event")
	}
	reason := fmt.Sprintf("rescheduled to %s %s", successor.Date.String(), successor.StartTime.Short())
	if r := trimmed(req.Reason); r != nil {
		reason = *r
	}
	if err = s.cancelLocked(ctx, tx, original, actor, reason); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit reschedule")
	}
	successorID := successor.ID
	original.RescheduledToEventID = &successorID

	s.invalidateLedger(ctx)
	s.logger.Info("event rescheduled", zap.Int64("event_id", originalID), zap.Int64("successor_id", successor.ID), zap.Int64("actor_id", actor.ID))
	s.notifier.EventInvited(successor, attendees)
	return &dto.RescheduleResult{Original: original, Successor: successor}, nil
}

// CheckConflict runs the conflict scan without persisting anything. The base participant is
// the creator of the excluded event when one is given, otherwise the actor.
func (s *EventService) CheckConflict(ctx context.Context, actor models.Identity, req dto.ConflictCheckRequest) ([]models.ConflictingEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidWrap(err, "invalid conflict check payload")
	}
	sl, err := parseSlot(req.Date, req.EndDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if err := s.checkRestricted(sl.Days); err != nil {
		return nil, err
	}

	base := actor.ID
	var exclude int64
	if req.ExcludeEventID != nil {
		existing, err := s.events.FindByID(ctx, nil, *req.ExcludeEventID)
		if err != nil {
			return nil, notFoundOr(err, "event", "failed to load event")
		}
		base = existing.CreatedBy
		exclude = existing.ID
	}

	conflicts, err := s.detector.Scan(ctx, nil, ConflictQuery{
		Days:           sl.Days,
		StartTime:      sl.StartTime,
		EndTime:        sl.EndTime,
		ParticipantIDs: append([]int64{base}, req.AttendeeIDs...),
		ExcludeEventID: exclude,
	})
	if err != nil {
		return nil, internal(err, "failed to check conflicts")
	}
	if conflicts == nil {
		conflicts = []models.ConflictingEvent{}
	}
	return conflicts, nil
}

// Get returns the event with attendees, RSVPs, attachments and ledger rows.
func (s *EventService) Get(ctx context.Context, id int64) (*models.EventDetail, error) {
	event, err := s.events.FindByID(ctx, nil, id)
	if err != nil {
		return nil, notFoundOr(err, "event", "failed to load event")
	}
	detail := &models.EventDetail{Event: *event, Done: event.IsDone(s.now(), s.loc)}

	names, err := s.users.DisplayNames(ctx, nil, []int64{event.CreatedBy})
	if err != nil {
		return nil, internal(err, "failed to resolve creator")
	}
	detail.CreatorName = names[event.CreatedBy]
	if detail.Attendees, err = s.events.ListAttendees(ctx, nil, id); err != nil {
		return nil, internal(err, "failed to load attendees")
	}
	if detail.Rsvps, err = s.rsvps.ListByEvent(ctx, nil, id); err != nil {
		return nil, internal(err, "failed to load rsvps")
	}
	if detail.Attachments, err = s.attachments.ListByEvent(ctx, nil, id); err != nil {
		return nil, internal(err, "failed to load attachments")
	}
	if detail.Conflicts, err = s.ledger.ListForEvent(ctx, nil, id); err != nil {
		return nil, internal(err, "failed to load conflicts")
	}
	if detail.Attendees == nil {
		detail.Attendees = []models.Attendee{}
	}
	if detail.Rsvps == nil {
		detail.Rsvps = []models.Rsvp{}
	}
	if detail.Attachments == nil {
		detail.Attachments = []models.Attachment{}
	}
	if detail.Conflicts == nil {
		detail.Conflicts = []models.ConflictRecord{}
	}
	return detail, nil
}

// List returns events matching the query.
func (s *EventService) List(ctx context.Context, query dto.EventListQuery) ([]models.EventSummary, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, invalidWrap(err, "invalid event filter")
	}
	filter := models.EventFilter{
		Search:   query.Search,
		Category: models.EventCategory(query.Category),
		Status:   models.EventStatus(query.Status),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	for _, item := range []struct {
		raw  string
		dest **calendar.Date
		name string
	}{{query.From, &filter.From, "start"}, {query.To, &filter.To, "end"}, {query.On, &filter.On, "date"}} {
		if strings.TrimSpace(item.raw) == "" {
			continue
		}
		d, err := calendar.ParseDate(item.raw)
		if err != nil {
			return nil, nil, invalidWrap(err, "invalid "+item.name)
		}
		*item.dest = &d
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, nil, invalidWrap(calendar.ErrInvalidRange, calendar.ErrInvalidRange.Error())
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 100
	}

	items, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list events")
	}
	if items == nil {
		items = []models.EventSummary{}
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// lockModifiable loads the event under a row lock and enforces modify rights and the
// done lock, in that order.
func (s *EventService) lockModifiable(ctx context.Context, tx sqlx.ExtContext, actor models.Identity, id int64) (*models.Event, error) {
	event, err := s.events.LockByID(ctx, tx, id)
	if err != nil {
		return nil, notFoundOr(err, "event", "failed to load event")
	}
	if !actor.CanModify(event) {
		return nil, forbidden("you are not allowed to modify this event")
	}
	if event.IsDone(s.now(), s.loc) {
		return nil, locked("event has ended and is view-only")
	}
	return event, nil
}

func (s *EventService) ensureUsersExist(ctx context.Context, exec sqlx.ExtContext, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.users.ExistingIDs(ctx, exec, ids)
	if err != nil {
		return internal(err, "failed to verify attendees")
	}
	known := make(map[int64]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	var unknown []int64
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return appErrors.WithDetails(appErrors.ErrValidation, "unknown attendee ids", map[string]interface{}{"attendee_ids": unknown})
	}
	return nil
}

func (s *EventService) defaultColor(ctx context.Context, creatorID int64) *string {
	if s.users != nil {
		user, err := s.users.FindByID(ctx, creatorID)
		if err == nil && user != nil && user.OfficeColor != nil && strings.TrimSpace(*user.OfficeColor) != "" {
			color := strings.TrimSpace(*user.OfficeColor)
			return &color
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("office colour lookup failed", zap.Int64("user_id", creatorID), zap.Error(err))
		}
	}
	idx := creatorID % int64(len(eventPalette))
	if idx < 0 {
		idx = -idx
	}
	color := eventPalette[idx]
	return &color
}

func (s *EventService) invalidateLedger(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, ledgerCachePattern)
}

func applyUpdate(event models.Event, req dto.UpdateEventRequest) (models.Event, error) {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return event, invalid("title cannot be empty")
		}
		event.Title = title
	}
	if req.Category != nil {
		event.Category = models.EventCategory(*req.Category)
	}
	if req.Date != nil {
		d, err := calendar.ParseDate(*req.Date)
		if err != nil {
			return event, invalidWrap(err, "invalid date")
		}
		event.Date = d
	}
	if req.EndDate != nil {
		if strings.TrimSpace(*req.EndDate) == "" {
			event.EndDate = nil
		} else {
			d, err := calendar.ParseDate(*req.EndDate)
			if err != nil {
				return event, invalidWrap(err, "invalid end_date")
			}
			event.EndDate = &d
		}
	}
	if req.StartTime != nil {
		event.StartTime = calendar.Clock(*req.StartTime)
	}
	if req.EndTime != nil {
		event.EndTime = calendar.Clock(*req.EndTime)
	}
	if req.Location != nil {
		event.Location = trimmed(req.Location)
	}
	if req.Description != nil {
		event.Description = trimmed(req.Description)
	}
	if req.Color != nil {
		event.Color = trimmed(req.Color)
	}
	return event, nil
}

// diffIDs returns the ids present only in next (added) and only in prev (removed).
func diffIDs(prev, next []int64) (added, removed []int64) {
	before := make(map[int64]struct{}, len(prev))
	for _, id := range prev {
		before[id] = struct{}{}
	}
	after := make(map[int64]struct{}, len(next))
	for _, id := range next {
		after[id] = struct{}{}
		if _, ok := before[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if _, ok := after[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// keepCreator carries an existing creator attendee row over into next.
func keepCreator(prev, next []int64, creator int64) []int64 {
	if !containsID(prev, creator) || containsID(next, creator) {
		return next
	}
	return append(next, creator)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func conflictIDs(conflicts []models.ConflictingEvent) []int64 {
	ids := make([]int64, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.ID)
	}
	return ids
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
