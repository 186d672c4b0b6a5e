package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/office-scheduler/internal/models"
)

// AttachmentRepository stores metadata of files attached to events.
type AttachmentRepository struct {
	db *sqlx.DB
}

// NewAttachmentRepository constructs the repository.
func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts attachment rows for the event.
func (r *AttachmentRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, eventID int64, items []models.Attachment) error {
	target := r.exec(exec)
	const query = `INSERT INTO event_attachments (event_id, file_name, original_name, mime_type, size_bytes)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`
	for i := range items {
		items[i].EventID = eventID
		row := target.QueryRowxContext(ctx, query, eventID, items[i].FileName, items[i].OriginalName, items[i].MimeType, items[i].SizeBytes)
		if err := row.Scan(&items[i].ID, &items[i].CreatedAt); err != nil {
			return fmt.Errorf("insert attachment %s: %w", items[i].OriginalName, err)
		}
	}
	return nil
}

// ListByEvent returns the attachments of an event, oldest first.
func (r *AttachmentRepository) ListByEvent(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]models.Attachment, error) {
	const query = `SELECT id, event_id, file_name, original_name, mime_type, size_bytes, created_at
FROM event_attachments WHERE event_id = $1 ORDER BY created_at ASC, id ASC`
	var items []models.Attachment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &items, query, eventID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return items, nil
}
