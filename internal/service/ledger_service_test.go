package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/dto"
	"github.com/noah-isme/office-scheduler/internal/models"
	appErrors "github.com/noah-isme/office-scheduler/pkg/errors"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.deleted = append(c.deleted, pattern)
	return nil
}

func seedOverlap(t *testing.T, h *scheduling) (*models.Event, *models.Event) {
	t.Helper()
	monday := calendar.NewDate(2024, 6, 3)
	a := seedEvent(t, h.store, "Budget review", monday, "09:00", "10:00", 1, 2)
	b := seedEvent(t, h.store, "Legal sync", monday, "09:30", "10:30", 3, 2)
	return a, b
}

func TestLedgerServiceRefresh(t *testing.T) {
	h := newScheduling(t)
	a, b := seedOverlap(t, h)
	ctx := context.Background()

	h.expectCommit()
	records, err := h.ledger.Refresh(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, a.ID, records[0].EventID)
	assert.Equal(t, b.ID, records[0].ConflictingEventID)

	forB, err := h.ledger.ForEvent(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, forB, 1)

	h.expectCommit()
	records, err = h.ledger.Refresh(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1, "refresh replaces rather than appends")

	h.expectRollback()
	_, err = h.ledger.Refresh(ctx, 404)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestLedgerServiceUpdateRebuildsRows(t *testing.T) {
	h := newScheduling(t)
	a, _ := seedOverlap(t, h)
	ctx := context.Background()

	h.expectCommit()
	_, err := h.ledger.Refresh(ctx, a.ID)
	require.NoError(t, err)
	count, _, err := h.ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Moving A away clears the stale pair.
	h.expectCommit()
	_, err = h.events.Update(ctx, identity(1), a.ID, dto.UpdateEventRequest{StartTime: strPtr("07:00"), EndTime: strPtr("08:00")})
	require.NoError(t, err)
	count, _, err = h.ledger.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLedgerServiceCachesReports(t *testing.T) {
	h := newScheduling(t)
	a, _ := seedOverlap(t, h)
	cache := newMemCache()
	h.ledger.cache = NewCacheService(cache, nil, time.Minute, nil, true)
	ctx := context.Background()

	h.expectCommit()
	_, err := h.ledger.Refresh(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ledgerCachePattern}, cache.deleted)

	count, hit, err := h.ledger.Count(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, count)

	count, hit, err = h.ledger.Count(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, count)

	rows, hit, err := h.ledger.List(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, rows, 1)
	rows, hit, err = h.ledger.List(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Budget review", rows[0].EventTitle)
}

func TestLedgerServiceExport(t *testing.T) {
	h := newScheduling(t)
	a, _ := seedOverlap(t, h)
	ctx := context.Background()

	h.expectCommit()
	_, err := h.ledger.Refresh(ctx, a.ID)
	require.NoError(t, err)

	csv, err := h.ledger.Export(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", csv.ContentType)
	assert.Equal(t, "conflicts-20240601-080000.csv", csv.FileName)
	body := string(csv.Data)
	assert.True(t, strings.HasPrefix(body, "id,event_id,event_title"))
	assert.Contains(t, body, "Budget review")
	assert.Contains(t, body, "Legal sync")
	assert.Contains(t, body, "09:00-10:00")

	pdf, err := h.ledger.Export(ctx, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, bytes.HasPrefix(pdf.Data, []byte("%PDF")))

	_, err = h.ledger.Export(ctx, "xlsx")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDateSpan(t *testing.T) {
	start := calendar.NewDate(2024, 6, 3)
	same := start
	end := calendar.NewDate(2024, 6, 5)
	assert.Equal(t, "2024-06-03", dateSpan(start, nil))
	assert.Equal(t, "2024-06-03", dateSpan(start, &same))
	assert.Equal(t, "2024-06-03 to 2024-06-05", dateSpan(start, &end))
}
