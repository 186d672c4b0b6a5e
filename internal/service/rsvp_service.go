package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/dto"
	"github.com/noah-isme/office-scheduler/internal/models"
	appErrors "github.com/noah-isme/office-scheduler/pkg/errors"
)

type rsvpEventReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Event, error)
	ShareByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Event, error)
}

type rsvpRepository interface {
	ListByEvent(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]models.Rsvp, error)
	LockForResponse(ctx context.Context, exec sqlx.ExtContext, eventID, userID int64) (*models.Rsvp, error)
	Respond(ctx context.Context, exec sqlx.ExtContext, rsvp *models.Rsvp, respondedAt time.Time) error
	PendingForUser(ctx context.Context, userID int64, today calendar.Date, now calendar.Clock) ([]models.Invitation, error)
}

// RsvpSubmission is the outcome of a response, including who it was recorded for.
type RsvpSubmission struct {
	Rsvp          *models.Rsvp `json:"rsvp"`
	ActingAsAdmin bool         `json:"acting_as_admin"`
}

// RsvpService moves invitee responses through pending, accepted and declined.
type RsvpService struct {
	events    rsvpEventReader
	rsvps     rsvpRepository
	tx        txProvider
	notifier  *NotificationService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewRsvpService constructs the RSVP service.
func NewRsvpService(events rsvpEventReader, rsvps rsvpRepository, tx txProvider, notifier *NotificationService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, loc *time.Location, now func() time.Time) *RsvpService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &RsvpService{events: events, rsvps: rsvps, tx: tx, notifier: notifier, metrics: metrics, validator: validate, logger: logger, loc: loc, now: now}
}

// Submit records a response for the actor, or for req.OfficeUserID when the actor is an
// admin. Responses are refused once the event has started.
func (s *RsvpService) Submit(ctx context.Context, actor models.Identity, eventID int64, req dto.RsvpRequest) (result *RsvpSubmission, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidWrap(err, "invalid rsvp payload")
	}

	target := actor.ID
	if req.OfficeUserID != nil && *req.OfficeUserID != actor.ID {
		if !actor.IsAdmin() {
			return nil, forbidden("you can only respond for yourself")
		}
		target = *req.OfficeUserID
	}

	status := models.RsvpStatus(req.Status)
	var representative, reason *string
	switch status {
	case models.RsvpAccepted:
		if representative = trimmed(req.RepresentativeName); representative == nil {
			return nil, invalid("representative_name is required when accepting")
		}
	case models.RsvpDeclined:
		if reason = trimmed(req.DeclineReason); reason == nil {
			return nil, invalid("decline_reason is required when declining")
		}
	default:
		return nil, invalid("status must be accepted or declined")
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

	event, err := s.events.ShareByID(ctx, tx, eventID)
	if err != nil {
		return nil, notFoundOr(err, "event", "failed to load event")
	}
	if event.IsCancelled() {
		err = locked("event was cancelled")
		return nil, err
	}
	rsvp, err := s.rsvps.LockForResponse(ctx, tx, eventID, target)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotInvited, "user is not invited to this event")
			return nil, err
		}
		return nil, internal(err, "failed to load rsvp")
	}

	now := s.now()
	if event.HasStarted(now, s.loc) {
		err = locked("responses are locked once the event has started")
		return nil, err
	}

	rsvp.Status = status
	rsvp.RepresentativeName = representative
	rsvp.DeclineReason = reason
	if err = s.rsvps.Respond(ctx, tx, rsvp, now.UTC()); err != nil {
		return nil, notFoundOr(err, "rsvp", "failed to store rsvp")
	}
	if err = tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit rsvp")
	}

	acting := target != actor.ID
	s.metrics.RecordRsvpTransition(status)
	s.logger.Info("rsvp submitted",
		zap.Int64("event_id", eventID),
		zap.Int64("office_user_id", target),
		zap.Int64("actor_id", actor.ID),
		zap.String("status", string(status)),
		zap.Bool("acting_as_admin", acting),
	)
	s.notifier.RsvpSubmitted(event, rsvp)
	return &RsvpSubmission{Rsvp: rsvp, ActingAsAdmin: acting}, nil
}

// ListForEvent returns all responses of an event.
func (s *RsvpService) ListForEvent(ctx context.Context, eventID int64) ([]models.Rsvp, error) {
	if _, err := s.events.FindByID(ctx, nil, eventID); err != nil {
		return nil, notFoundOr(err, "event", "failed to load event")
	}
	items, err := s.rsvps.ListByEvent(ctx, nil, eventID)
	if err != nil {
		return nil, internal(err, "failed to list rsvps")
	}
	if items == nil {
		items = []models.Rsvp{}
	}
	return items, nil
}

// PendingInvitations lists invitations the user still has to answer for events that have
// not finished.
func (s *RsvpService) PendingInvitations(ctx context.Context, actor models.Identity) ([]models.Invitation, error) {
	now := s.now().In(s.loc)
	items, err := s.rsvps.PendingForUser(ctx, actor.ID, calendar.DateOf(now), calendar.ClockOf(now))
	if err != nil {
		return nil, internal(err, "failed to list invitations")
	}
	if items == nil {
		items = []models.Invitation{}
	}
	return items, nil
}
