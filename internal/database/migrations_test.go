package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationVersions(t *testing.T) {
	versions, err := migrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "0001_reservation_engine", versions[0])
	assert.IsIncreasing(t, versions)
}

func TestMigratorPending(t *testing.T) {
	db, mock := newMockDB(t)
	migrator := NewMigrator(db, quietLogger())

	t.Run("Fresh database", func(t *testing.T) {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT version FROM schema_migrations`).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))

		pending, err := migrator.Pending(context.Background())
		require.NoError(t, err)
		assert.Contains(t, pending, "0001_reservation_engine")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Up to date", func(t *testing.T) {
		versions, err := migrationVersions()
		require.NoError(t, err)
		rows := sqlmock.NewRows([]string{"version"})
		for _, v := range versions {
			rows.AddRow(v)
		}
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT version FROM schema_migrations`).WillReturnRows(rows)

		pending, err := migrator.Pending(context.Background())
		require.NoError(t, err)
		assert.Empty(t, pending)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMigratorUp(t *testing.T) {
	db, mock := newMockDB(t)
	migrator := NewMigrator(db, quietLogger())

	t.Run("Applies and records each migration", func(t *testing.T) {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT version FROM schema_migrations`).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectBegin()
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS properties`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO schema_migrations`).
			WithArgs("0001_reservation_engine").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		applied, err := migrator.Up(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"0001_reservation_engine"}, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rolls back a failing migration", func(t *testing.T) {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT version FROM schema_migrations`).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectBegin()
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS properties`).WillReturnError(errors.New("syntax error"))
		mock.ExpectRollback()

		_, err := migrator.Up(context.Background())
		assert.ErrorContains(t, err, "0001_reservation_engine")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
