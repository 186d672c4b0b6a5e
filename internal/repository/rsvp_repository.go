package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/models"
)

// RsvpRepository persists invitee responses. Rows mirror the attendee list of an event.
type RsvpRepository struct {
	db *sqlx.DB
}

// NewRsvpRepository constructs the repository.
func NewRsvpRepository(db *sqlx.DB) *RsvpRepository {
	return &RsvpRepository{db: db}
}

func (r *RsvpRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreatePending inserts a pending row per invitee. Existing rows keep their state.
func (r *RsvpRepository) CreatePending(ctx context.Context, exec sqlx.ExtContext, eventID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO event_rsvps (event_id, office_user_id, status)
SELECT $1, uid, 'pending' FROM UNNEST($2::bigint[]) AS uid
ON CONFLICT (event_id, office_user_id) DO NOTHING`
	if _, err := r.exec(exec).ExecContext(ctx, query, eventID, pq.Array(userIDs)); err != nil {
		return fmt.Errorf("insert pending rsvps: %w", err)
	}
	return nil
}

// DeleteForUsers removes the rows of uninvited users.
func (r *RsvpRepository) DeleteForUsers(ctx context.Context, exec sqlx.ExtContext, eventID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM event_rsvps WHERE event_id = $1 AND office_user_id = ANY($2)`, eventID, pq.Array(userIDs)); err != nil {
		return fmt.Errorf("delete rsvps: %w", err)
	}
	return nil
}

// ListByEvent returns responses ordered accepted, pending, declined, then by office name.
func (r *RsvpRepository) ListByEvent(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]models.Rsvp, error) {
	const query = `
SELECT r.id, r.event_id, r.office_user_id, COALESCE(u.full_name, '') AS office_name, r.status,
	r.representative_name, r.decline_reason, r.responded_at, r.created_at, r.updated_at
FROM event_rsvps r
LEFT JOIN users u ON u.id = r.office_user_id
WHERE r.event_id = $1
ORDER BY CASE r.status WHEN 'accepted' THEN 0 WHEN 'pending' THEN 1 ELSE 2 END, u.full_name ASC, r.id ASC`
	var items []models.Rsvp
	if err := sqlx.SelectContext(ctx, r.exec(exec), &items, query, eventID); err != nil {
		return nil, fmt.Errorf("list rsvps: %w", err)
	}
	return items, nil
}

// LockForResponse fetches the row of the invitee holding a row lock. It returns
// sql.ErrNoRows when the user is not invited.
func (r *RsvpRepository) LockForResponse(ctx context.Context, exec sqlx.ExtContext, eventID, userID int64) (*models.Rsvp, error) {
	const query = `
SELECT r.id, r.event_id, r.office_user_id, r.status, r.representative_name, r.decline_reason,
	r.responded_at, r.created_at, r.updated_at
FROM event_rsvps r
WHERE r.event_id = $1 AND r.office_user_id = $2
FOR UPDATE`
	var rsvp models.Rsvp
	if err := sqlx.GetContext(ctx, r.exec(exec), &rsvp, query, eventID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock rsvp: %w", err)
	}
	return &rsvp, nil
}

// Respond stores the transition. The supporting field of the other status is cleared.
func (r *RsvpRepository) Respond(ctx context.Context, exec sqlx.ExtContext, rsvp *models.Rsvp, respondedAt time.Time) error {
	const query = `UPDATE event_rsvps
SET status = $1, representative_name = $2, decline_reason = $3, responded_at = $4, updated_at = NOW()
WHERE id = $5`
	res, err := r.exec(exec).ExecContext(ctx, query, rsvp.Status, rsvp.RepresentativeName, rsvp.DeclineReason, respondedAt, rsvp.ID)
	if err != nil {
		return fmt.Errorf("update rsvp: %w", err)
	}
	if err := expectAffected(res, "update rsvp"); err != nil {
		return err
	}
	rsvp.RespondedAt = &respondedAt
	return nil
}

// PendingForUser lists pending invitations of the user for active events that have not
// finished as of (today, now).
func (r *RsvpRepository) PendingForUser(ctx context.Context, userID int64, today calendar.Date, now calendar.Clock) ([]models.Invitation, error) {
	const query = `
SELECT r.id AS rsvp_id, e.id AS event_id, e.title, e.category, e.event_date, e.end_date, e.start_time, e.end_time,
	e.location, COALESCE(u.full_name, '') AS creator_name, r.status
FROM event_rsvps r
JOIN events e ON e.id = r.event_id
LEFT JOIN users u ON u.id = e.created_by
WHERE r.office_user_id = $1
	AND r.status = 'pending'
	AND e.status = 'active'
	AND (
		COALESCE(e.end_date, e.event_date) > $2
		OR (COALESCE(e.end_date, e.event_date) = $2 AND e.end_time >= $3)
	)
ORDER BY e.event_date ASC, e.start_time ASC, e.id ASC`
	var items []models.Invitation
	if err := r.db.SelectContext(ctx, &items, query, userID, today, now); err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	return items, nil
}
