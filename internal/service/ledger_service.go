package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/models"
	"github.com/noah-isme/office-scheduler/pkg/export"
)

const (
	ledgerCountKey = "conflicts:count"
	ledgerListKey  = "conflicts:list"
)

type ledgerEventReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Event, error)
	AttendeeIDs(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]int64, error)
}

type ledgerStore interface {
	ReplaceForEvent(ctx context.Context, exec sqlx.ExtContext, eventID int64, conflictingIDs []int64) error
	ListForEvent(ctx context.Context, exec sqlx.ExtContext, eventID int64) ([]models.ConflictRecord, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]models.ConflictReportRow, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// LedgerExport is a rendered conflict report.
type LedgerExport struct {
	FileName    string
	ContentType string
	Data        []byte
}

// LedgerService serves the conflict ledger. Rows are derived data written by the event
// lifecycle; reads here never feed back into conflict detection.
type LedgerService struct {
	events   ledgerEventReader
	ledger   ledgerStore
	detector conflictScanner
	tx       txProvider
	cache    *CacheService
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(events ledgerEventReader, ledger ledgerStore, detector conflictScanner, tx txProvider, cache *CacheService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &LedgerService{events: events, ledger: ledger, detector: detector, tx: tx, cache: cache, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// ForEvent lists the ledger rows that reference the event.
func (s *LedgerService) ForEvent(ctx context.Context, eventID int64) ([]models.ConflictRecord, error) {
	if _, err := s.events.FindByID(ctx, nil, eventID); err != nil {
		return nil, notFoundOr(err, "event", "failed to load event")
	}
	items, err := s.ledger.ListForEvent(ctx, nil, eventID)
	if err != nil {
		return nil, internal(err, "failed to list conflicts")
	}
	if items == nil {
		items = []models.ConflictRecord{}
	}
	return items, nil
}

// Refresh recomputes live conflicts of a stored event across all of its days and rewrites
// its ledger rows.
func (s *LedgerService) Refresh(ctx context.Context, eventID int64) (records []models.ConflictRecord, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	event, err := s.events.FindByID(ctx, tx, eventID)
	if err != nil {
		return nil, notFoundOr(err, "event", "failed to load event")
	}
	var ids []int64
	if !event.IsCancelled() {
		days, derr := event.Days()
		if derr != nil {
			err = invalidWrap(derr, "stored event has an invalid range")
			return nil, err
		}
		attendees, aerr := s.events.AttendeeIDs(ctx, tx, eventID)
		if aerr != nil {
			err = internal(aerr, "failed to load attendees")
			return nil, err
		}
		conflicts, serr := s.detector.Scan(ctx, tx, ConflictQuery{
			Days:           days,
			StartTime:      event.StartTime,
			EndTime:        event.EndTime,
			ParticipantIDs: event.Participants(attendees),
			ExcludeEventID: eventID,
		})
		if serr != nil {
			err = internal(serr, "failed to check conflicts")
			return nil, err
		}
		ids = conflictIDs(conflicts)
	}
	if err = s.ledger.ReplaceForEvent(ctx, tx, eventID, ids); err != nil {
		return nil, internal(err, "failed to rebuild conflict ledger")
	}
	if records, err = s.ledger.ListForEvent(ctx, tx, eventID); err != nil {
		return nil, internal(err, "failed to list conflicts")
	}
	if err = tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit ledger refresh")
	}

	_ = s.cache.Invalidate(ctx, ledgerCachePattern)
	s.logger.Info("conflict ledger refreshed", zap.Int64("event_id", eventID), zap.Int("conflict_count", len(ids)))
	if records == nil {
		records = []models.ConflictRecord{}
	}
	return records, nil
}

// Count returns the number of ledger rows. The boolean reports a cache hit.
func (s *LedgerService) Count(ctx context.Context) (int, bool, error) {
	var cached int
	if hit, err := s.cache.Get(ctx, ledgerCountKey, &cached); err == nil && hit {
		return cached, true, nil
	}
	count, err := s.ledger.Count(ctx)
	if err != nil {
		return 0, false, internal(err, "failed to count conflicts")
	}
	_ = s.cache.Set(ctx, ledgerCountKey, count, 0)
	return count, false, nil
}

// List returns the joined ledger report. The boolean reports a cache hit.
func (s *LedgerService) List(ctx context.Context) ([]models.ConflictReportRow, bool, error) {
	var cached []models.ConflictReportRow
	if hit, err := s.cache.Get(ctx, ledgerListKey, &cached); err == nil && hit {
		return cached, true, nil
	}
	rows, err := s.ledger.List(ctx)
	if err != nil {
		return nil, false, internal(err, "failed to list conflicts")
	}
	if rows == nil {
		rows = []models.ConflictReportRow{}
	}
	_ = s.cache.Set(ctx, ledgerListKey, rows, 0)
	return rows, false, nil
}

// Export renders the ledger report as CSV or PDF.
func (s *LedgerService) Export(ctx context.Context, rawFormat string) (*LedgerExport, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, invalidWrap(err, "unsupported export format")
	}
	rows, _, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	dataset := ledgerDataset(rows)

	var data []byte
	switch format {
	case export.FormatPDF:
		subtitle := fmt.Sprintf("Generated %s, %d conflicts", s.now().UTC().Format(time.RFC3339), len(rows))
		data, err = s.pdf.Render(dataset, "Conflict Ledger", subtitle)
	default:
		data, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, internal(err, "failed to render conflict report")
	}
	name := fmt.Sprintf("conflicts-%s.%s", s.now().UTC().Format("20060102-150405"), format)
	s.logger.Info("conflict ledger exported", zap.String("format", string(format)), zap.Int("rows", len(rows)))
	return &LedgerExport{FileName: name, ContentType: format.ContentType(), Data: data}, nil
}

var ledgerHeaders = []string{
	"id", "event_id", "event_title", "event_date", "event_time",
	"conflicting_event_id", "conflicting_title", "conflicting_date", "conflicting_time",
	"time_conflict", "participant_conflict", "created_at",
}

func ledgerDataset(rows []models.ConflictReportRow) export.Dataset {
	data := export.Dataset{Headers: ledgerHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"id":                   strconv.FormatInt(row.ID, 10),
			"event_id":             strconv.FormatInt(row.EventID, 10),
			"event_title":          row.EventTitle,
			"event_date":           dateSpan(row.EventDate, row.EventEndDate),
			"event_time":           row.EventStartTime.Short() + "-" + row.EventEndTime.Short(),
			"conflicting_event_id": strconv.FormatInt(row.ConflictingEventID, 10),
			"conflicting_title":    row.ConflictingTitle,
			"conflicting_date":     dateSpan(row.ConflictingDate, row.ConflictingEndDate),
			"conflicting_time":     row.ConflictingStartTime.Short() + "-" + row.ConflictingEndTime.Short(),
			"time_conflict":        strconv.FormatBool(row.TimeConflict),
			"participant_conflict": strconv.FormatBool(row.ParticipantConflict),
			"created_at":           row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return data
}

func dateSpan(start calendar.Date, end *calendar.Date) string {
	if end == nil || end.Equal(start) {
		return start.String()
	}
	return start.String() + " to " + end.String()
}
