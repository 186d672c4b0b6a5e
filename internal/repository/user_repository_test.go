package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/office-scheduler/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestUserFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "role", "can_modify_events", "office_color", "created_at", "updated_at"}).
		AddRow(int64(7), "finance@example.com", "Finance Office", string(models.RoleUser), true, "#22c55e", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, full_name, role, can_modify_events, office_color, created_at, updated_at FROM users WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	user, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Finance Office", user.FullName)
	assert.True(t, user.CanModifyEvents)
	require.NotNil(t, user.OfficeColor)
	assert.Equal(t, "#22c55e", *user.OfficeColor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs(int64(99)).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisplayNames(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name FROM users WHERE id = ANY($1)")).
		WithArgs(pq.Array([]int64{1, 2})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name"}).AddRow(int64(1), "Records").AddRow(int64(2), "Legal"))

	names, err := repo.DisplayNames(context.Background(), nil, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "Records", 2: "Legal"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisplayNamesEmptyInputSkipsQuery(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	names, err := repo.DisplayNames(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	userID := int64(3)
	entry := &models.AuditLog{UserID: &userID, Action: models.AuditActionRsvpSubmit, Resource: models.AuditResourceRsvp, NewValues: []byte(`{}`)}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
