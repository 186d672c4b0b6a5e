package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/office-scheduler/internal/models"
)

// ConflictRepository stores the conflict ledger. Rows are derived data for reporting.
type ConflictRepository struct {
	db *sqlx.DB
}

// NewConflictRepository constructs the repository.
func NewConflictRepository(db *sqlx.DB) *ConflictRepository {
	return &ConflictRepository{db: db}
}

func (r *ConflictRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ReplaceForEvent drops every ledger row referencing the event on either side and records
// the given conflicting events.
func (r *ConflictRepository) ReplaceForEvent(ctx context.Context, exec sqlx.ExtContext, eventID int64, conflictingIDs []int64) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM conflicts WHERE event_id = $1 OR conflicting_event_id = $1`, eventID); err != nil {
		return fmt.Errorf("clear conflict ledger: %w", err)
	}
	ids := models.UniqueIDs(conflictingIDs)
	if len(ids) == 0 {
		return nil
	}
	const query = `INSERT INTO conflicts (event_id, conflicting_event_id)
SELECT $1, cid FROM UNNEST($2::bigint[]) AS cid WHERE cid <> $1
ON CONFLICT (event_id, conflicting_event_id) DO NOTHING`
	if _, err := target.ExecContext(ctx, query, eventID, pq.Array(ids)); err != nil {
		return fmt.Errorf("insert conflict ledger: %w", err)
	}
	return nil
}

// ListForEvent returns ledger rows where the event appears on either side.
func (r *ConflictRepository) ListForEvent(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]models.ConflictRecord, error) {
	const query = `SELECT id, event_id, conflicting_event_id, created_at FROM conflicts
WHERE event_id = $1 OR conflicting_event_id = $1
ORDER BY created_at DESC, id DESC`
	var items []models.ConflictRecord
	if err := sqlx.SelectContext(ctx, r.exec(exec), &items, query, eventID); err != nil {
		return nil, fmt.Errorf("list event conflicts: %w", err)
	}
	return items, nil
}

// Count returns the ledger size.
func (r *ConflictRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM conflicts`); err != nil {
		return 0, fmt.Errorf("count conflicts: %w", err)
	}
	return total, nil
}

// List returns ledger rows joined with both events. The overlap flags are evaluated
// against current event data.
func (r *ConflictRepository) List(ctx context.Context) ([]models.ConflictReportRow, error) {
	const query = `
SELECT c.id, c.event_id,
	e1.title AS event_title, e1.event_date, e1.end_date AS event_end_date,
	e1.start_time AS event_start_time, e1.end_time AS event_end_time,
	c.conflicting_event_id,
	e2.title AS conflicting_title, e2.event_date AS conflicting_date, e2.end_date AS conflicting_end_date,
	e2.start_time AS conflicting_start_time, e2.end_time AS conflicting_end_time,
	(
		e1.event_date <= COALESCE(e2.end_date, e2.event_date)
		AND e2.event_date <= COALESCE(e1.end_date, e1.event_date)
		AND e1.start_time < e2.end_time
		AND e1.end_time > e2.start_time
	) AS time_conflict,
	EXISTS (
		SELECT 1
		FROM (SELECT e1.created_by AS uid UNION SELECT a1.user_id FROM event_attendees a1 WHERE a1.event_id = e1.id) p1
		JOIN (SELECT e2.created_by AS uid UNION SELECT a2.user_id FROM event_attendees a2 WHERE a2.event_id = e2.id) p2
			ON p1.uid = p2.uid
	) AS participant_conflict,
	c.created_at
FROM conflicts c
JOIN events e1 ON e1.id = c.event_id
JOIN events e2 ON e2.id = c.conflicting_event_id
ORDER BY c.created_at DESC, c.id DESC`
	var items []models.ConflictReportRow
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return items, nil
}
