package source

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewPostgresStore(db, "email_list"), mock
}

func TestPostgresStoreFetch(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","email" FROM "email_list" WHERE is_sent = $1 AND id > $2 ORDER BY id ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow(11, "a@example.com").
			AddRow(12, "b@example.com"))

	rows, err := store.Fetch(context.Background(), "10", 2)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "11", rows[0].ID)
	assert.Equal(t, "b@example.com", rows[1].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreFetchInvalidCursor(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.Fetch(context.Background(), "abc", 2)
	assert.Error(t, err)
}

func TestPostgresStoreMarkSent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "email_list" SET "is_sent"=$1 WHERE id = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.MarkSent(context.Background(), "11"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreMarkSentMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "email_list" SET "is_sent"=$1 WHERE id = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Error(t, store.MarkSent(context.Background(), "99"))
	assert.Equal(t, "postgres:email_list", store.Name())
}
