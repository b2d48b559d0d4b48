package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-claims/pkg/database"
)

func openDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "tx.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = sqlDB.Exec(`CREATE TABLE marks (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	return NewDB(sqlDB, zap.NewNop())
}

func countMarks(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM marks`).Scan(&n))
	return n
}

func TestWithTransaction_NestedCallsJoin(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(outer context.Context) error {
		assert.True(t, InTransaction(outer))
		err := db.WithTransaction(outer, func(inner context.Context) error {
			_, err := db.Executor(inner).ExecContext(inner, `INSERT INTO marks (id) VALUES ('a')`)
			return err
		})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countMarks(t, db), "inner write rolls back with the outer transaction")
	assert.False(t, InTransaction(ctx))
}

func TestWithTransaction_RetriesBusy(t *testing.T) {
	db := openDB(t)

	calls := 0
	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("write claim: %w", sqlite3.Error{Code: sqlite3.ErrBusy})
		}
		_, err := db.Executor(ctx).ExecContext(ctx, `INSERT INTO marks (id) VALUES ('b')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, countMarks(t, db))
}

func TestWithTransaction_GivesUpAfterRetries(t *testing.T) {
	db := openDB(t)

	calls := 0
	err := db.WithTransaction(context.Background(), func(context.Context) error {
		calls++
		return sqlite3.Error{Code: sqlite3.ErrLocked}
	})
	assert.True(t, IsBusy(err))
	assert.Equal(t, defaultBusyRetries+1, calls)
}

func TestWithTransaction_OtherErrorsNotRetried(t *testing.T) {
	db := openDB(t)

	calls := 0
	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		calls++
		_, err := db.Executor(ctx).ExecContext(ctx, `INSERT INTO marks (id) VALUES ('c'), ('c')`)
		return err
	})
	assert.True(t, IsConstraint(err))
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsBusy(err))
	assert.Equal(t, 1, calls)
}
