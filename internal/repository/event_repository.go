package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/models"
)

// participantLockNamespace keeps participant advisory locks apart from other lock users.
const participantLockNamespace int64 = 0x4556

const eventColumns = `e.id, e.title, e.category, e.event_date, e.end_date, e.start_time, e.end_time,
	e.location, e.description, e.color, e.status, e.cancel_reason, e.canceled_at, e.canceled_by,
	e.rescheduled_from_event_id, e.rescheduled_to_event_id, e.created_by, e.created_at, e.updated_at`

// EventRepository persists events and their attendee rows.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns the event or sql.ErrNoRows.
func (r *EventRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Event, error) {
	return r.find(ctx, exec, id, "")
}

// LockByID fetches the event holding a row lock for the rest of the transaction.
func (r *EventRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Event, error) {
	return r.find(ctx, exec, id, " FOR UPDATE")
}

// ShareByID fetches the event holding a shared row lock, blocking concurrent edits of it.
func (r *EventRepository) ShareByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Event, error) {
	return r.find(ctx, exec, id, " FOR SHARE")
}

func (r *EventRepository) find(ctx context.Context, exec sqlx.ExtContext, id int64, lock string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1` + lock
	var event models.Event
	if err := sqlx.GetContext(ctx, r.exec(exec), &event, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find event %d: %w", id, err)
	}
	return &event, nil
}

// List returns events matching the filter with creator names, ledger counts and attendee names.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.EventSummary, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.On != nil {
		args = append(args, *filter.On)
		where = append(where, fmt.Sprintf("e.event_date <= $%d AND COALESCE(e.end_date, e.event_date) >= $%d", len(args), len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("COALESCE(e.end_date, e.event_date) >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("e.event_date <= $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		idx := len(args)
		where = append(where, fmt.Sprintf("(LOWER(e.title) LIKE $%d OR LOWER(COALESCE(e.location, '')) LIKE $%d OR LOWER(COALESCE(e.description, '')) LIKE $%d)", idx, idx, idx))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("e.category = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("e.status = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	countQuery := `SELECT COUNT(*) FROM events e WHERE ` + whereClause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 100
	}
	listArgs := append(append([]interface{}{}, args...), size, (page-1)*size)

	query := fmt.Sprintf(`
SELECT %s,
	COALESCE(u.full_name, '') AS creator_name,
	(SELECT COUNT(*) FROM conflicts c WHERE c.event_id = e.id OR c.conflicting_event_id = e.id) AS conflict_count,
	COALESCE((
		SELECT STRING_AGG(au.full_name, ', ' ORDER BY au.full_name)
		FROM event_attendees ea
		JOIN users au ON au.id = ea.user_id
		WHERE ea.event_id = e.id
	), '') AS attendee_names
FROM events e
LEFT JOIN users u ON u.id = e.created_by
WHERE %s
ORDER BY e.event_date ASC, e.start_time ASC, e.id ASC
LIMIT $%d OFFSET $%d`, eventColumns, whereClause, len(args)+1, len(args)+2)

	var items []models.EventSummary
	if err := r.db.SelectContext(ctx, &items, query, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return items, total, nil
}

// ListActiveInRange returns active events overlapping [from, to].
func (r *EventRepository) ListActiveInRange(ctx context.Context, from, to calendar.Date) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e
WHERE e.status = 'active' AND e.event_date <= $2 AND COALESCE(e.end_date, e.event_date) >= $1
ORDER BY e.event_date ASC, e.start_time ASC, e.id ASC`
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, from, to); err != nil {
		return nil, fmt.Errorf("list events in range: %w", err)
	}
	return events, nil
}

// Create inserts the event and fills its id and timestamps.
func (r *EventRepository) Create(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	if event == nil {
		return fmt.Errorf("event payload is nil")
	}
	if event.Status == "" {
		event.Status = models.EventStatusActive
	}
	const query = `INSERT INTO events (title, category, event_date, end_date, start_time, end_time, location, description, color, status, rescheduled_from_event_id, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, created_at, updated_at`
	row := r.exec(exec).QueryRowxContext(ctx, query,
		event.Title, event.Category, event.Date, event.EndDate, event.StartTime, event.EndTime,
		event.Location, event.Description, event.Color, event.Status, event.RescheduledFromEventID, event.CreatedBy,
	)
	if err := row.Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Update writes the mutable fields of the event.
func (r *EventRepository) Update(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	if event == nil {
		return fmt.Errorf("event payload is nil")
	}
	const query = `UPDATE events SET title = $1, category = $2, event_date = $3, end_date = $4, start_time = $5, end_time = $6,
	location = $7, description = $8, color = $9, updated_at = NOW()
WHERE id = $10
RETURNING updated_at`
	row := r.exec(exec).QueryRowxContext(ctx, query,
		event.Title, event.Category, event.Date, event.EndDate, event.StartTime, event.EndTime,
		event.Location, event.Description, event.Color, event.ID,
	)
	if err := row.Scan(&event.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// Cancel marks the event cancelled.
func (r *EventRepository) Cancel(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	const query = `UPDATE events SET status = 'cancelled', cancel_reason = $1, canceled_at = $2, canceled_by = $3, updated_at = NOW() WHERE id = $4`
	res, err := r.exec(exec).ExecContext(ctx, query, event.CancelReason, event.CanceledAt, event.CanceledBy, event.ID)
	if err != nil {
		return fmt.Errorf("cancel event: %w", err)
	}
	return expectAffected(res, "cancel event")
}

// LinkSuccessor records that original was rescheduled into successor.
func (r *EventRepository) LinkSuccessor(ctx context.Context, exec sqlx.ExtContext, originalID, successorID int64) error {
	const query = `UPDATE events SET rescheduled_to_event_id = $1, updated_at = NOW() WHERE id = $2 AND rescheduled_to_event_id IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, successorID, originalID)
	if err != nil {
		return fmt.Errorf("link rescheduled event: %w", err)
	}
	return expectAffected(res, "link rescheduled event")
}

// Delete removes the event; attendees, RSVPs, attachments and ledger rows cascade.
func (r *EventRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return expectAffected(res, "delete event")
}

// LockParticipants takes a transaction scoped advisory lock per participant in ascending
// order. Operations touching a shared participant therefore run one after the other.
func (r *EventRepository) LockParticipants(ctx context.Context, exec sqlx.ExtContext, participantIDs []int64) error {
	ids := models.UniqueIDs(participantIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	target := r.exec(exec)
	for _, id := range ids {
		if _, err := target.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, participantLockKey(id)); err != nil {
			return fmt.Errorf("lock participant %d: %w", id, err)
		}
	}
	return nil
}

func participantLockKey(id int64) int64 {
	return participantLockNamespace<<32 | (id & 0xFFFFFFFF)
}

// FindParticipantConflicts returns active events on day that overlap [start, end) and share
// at least one of participantIDs as creator or attendee.
func (r *EventRepository) FindParticipantConflicts(ctx context.Context, exec sqlx.ExtContext, day calendar.Date, start, end calendar.Clock, participantIDs []int64, excludeEventID int64) ([]models.ConflictingEvent, error) {
	if len(participantIDs) == 0 {
		return nil, nil
	}
	const query = `
SELECT e.id, e.title, e.event_date, e.end_date, e.start_time, e.end_time, e.created_by,
	ARRAY(SELECT ea.user_id FROM event_attendees ea WHERE ea.event_id = e.id ORDER BY ea.user_id) AS attendee_ids
FROM events e
WHERE e.status = 'active'
	AND e.event_date <= $1
	AND COALESCE(e.end_date, e.event_date) >= $1
	AND e.start_time < $3
	AND e.end_time > $2
	AND e.id <> $5
	AND (
		e.created_by = ANY($4)
		OR EXISTS (SELECT 1 FROM event_attendees a WHERE a.event_id = e.id AND a.user_id = ANY($4))
	)
ORDER BY e.event_date ASC, e.start_time ASC, e.id ASC`

	var items []models.ConflictingEvent
	if err := sqlx.SelectContext(ctx, r.exec(exec), &items, query, day, start, end, pq.Array(participantIDs), excludeEventID); err != nil {
		return nil, fmt.Errorf("find participant conflicts: %w", err)
	}
	return items, nil
}

// ListAttendees returns attendees with their display names.
func (r *EventRepository) ListAttendees(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]models.Attendee, error) {
	const query = `
SELECT ea.event_id, ea.user_id, u.full_name, u.email
FROM event_attendees ea
JOIN users u ON u.id = ea.user_id
WHERE ea.event_id = $1
ORDER BY u.full_name ASC, ea.user_id ASC`
	var items []models.Attendee
	if err := sqlx.SelectContext(ctx, r.exec(exec), &items, query, eventID); err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return items, nil
}

// AttendeeIDs returns the attendee ids of the event in ascending order.
func (r *EventRepository) AttendeeIDs(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]int64, error) {
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, `SELECT user_id FROM event_attendees WHERE event_id = $1 ORDER BY user_id`, eventID); err != nil {
		return nil, fmt.Errorf("list attendee ids: %w", err)
	}
	return ids, nil
}

// AddAttendees inserts attendee rows, ignoring ones already present.
func (r *EventRepository) AddAttendees(ctx context.Context, exec sqlx.ExtContext, eventID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO event_attendees (event_id, user_id)
SELECT $1, uid FROM UNNEST($2::bigint[]) AS uid
ON CONFLICT (event_id, user_id) DO NOTHING`
	if _, err := r.exec(exec).ExecContext(ctx, query, eventID, pq.Array(userIDs)); err != nil {
		return fmt.Errorf("insert attendees: %w", err)
	}
	return nil
}

// RemoveAttendees deletes attendee rows for the given users.
func (r *EventRepository) RemoveAttendees(ctx context.Context, exec sqlx.ExtContext, eventID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM event_attendees WHERE event_id = $1 AND user_id = ANY($2)`, eventID, pq.Array(userIDs)); err != nil {
		return fmt.Errorf("delete attendees: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
