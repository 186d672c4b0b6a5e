package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/office-scheduler/internal/service"
	"github.com/noah-isme/office-scheduler/pkg/config"
)

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, "conflicts.csv", outputPath("", "conflicts.csv"))
	assert.Equal(t, filepath.Join(dir, "conflicts.csv"), outputPath(dir, "conflicts.csv"))
	assert.Equal(t, filepath.Join(dir, "report.pdf"), outputPath(filepath.Join(dir, "report.pdf"), "conflicts.pdf"))
}

func TestMigrateList(t *testing.T) {
	var out bytes.Buffer
	app := &cli.App{Name: "eventctl", Writer: &out, Commands: []*cli.Command{migrateCommand()}}

	require.NoError(t, app.Run([]string{"eventctl", "migrate", "--list"}))
	assert.Contains(t, out.String(), ".sql")
}

func TestConflictsRefreshRequiresEvent(t *testing.T) {
	app := &cli.App{Name: "eventctl", Writer: &bytes.Buffer{}, ErrWriter: &bytes.Buffer{}, Commands: []*cli.Command{conflictsCommand()}}
	err := app.Run([]string{"eventctl", "conflicts", "refresh"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event")
}

type recordingCache struct {
	patterns []string
}

func (c *recordingCache) Get(context.Context, string, interface{}) error { return nil }

func (c *recordingCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (c *recordingCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	return nil
}

func TestConflictCacheDisabledByConfig(t *testing.T) {
	cfg := &config.Config{ConflictCache: config.ConflictCacheConfig{Enabled: false, TTL: time.Minute}}

	cacheSvc, closeCache := conflictCache(context.Background(), cfg, zap.NewNop())
	defer closeCache()

	require.NotNil(t, cacheSvc)
	assert.False(t, cacheSvc.Enabled())
}

func TestConflictCacheFallsBackWhenRedisUnreachable(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := &config.Config{
		ConflictCache: config.ConflictCacheConfig{Enabled: true, TTL: time.Minute},
		Redis:         config.RedisConfig{Host: "127.0.0.1", Port: 1},
	}

	cacheSvc, closeCache := conflictCache(context.Background(), cfg, zap.New(core))
	defer closeCache()

	assert.False(t, cacheSvc.Enabled())
	assert.Equal(t, 1, logs.FilterMessageSnippet("redis unavailable").Len())
}

func TestSessionLedgerRefreshInvalidatesCachedReports(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "sqlmock")
	defer db.Close()

	rec := &recordingCache{}
	rt := &session{
		cfg:    &config.Config{},
		logger: zap.NewNop(),
		db:     db,
		cache:  service.NewCacheService(rec, nil, time.Minute, nil, true),
	}

	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM events e WHERE e\.id = \$1`).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "category", "event_date", "start_time", "end_time", "status", "created_by", "created_at", "updated_at"}).
			AddRow(int64(7), "Budget review", "meeting", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), "09:00:00", "10:00:00", "cancelled", int64(1), now, now))
	mock.ExpectExec("DELETE FROM conflicts").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("FROM conflicts").WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "conflicting_event_id", "created_at"}))
	mock.ExpectCommit()

	records, err := rt.ledger().Refresh(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, []string{"conflicts:*"}, rec.patterns)
	require.NoError(t, mock.ExpectationsWereMet())
}
