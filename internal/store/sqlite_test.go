package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_ListRuns_Offset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, d := range []string{"2025-01-29", "2025-01-30", "2025-01-31"} {
		_, err := st.CreateRun(ctx, d)
		require.NoError(t, err)
	}

	page, err := st.ListRuns(ctx, RunFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSQLite_ListPhases_Order(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "2025-01-31")
	require.NoError(t, err)

	names := []string{"credentials", "input", "enrich"}
	for _, n := range names {
		_, err := st.CreatePhase(ctx, run.ID, n)
		require.NoError(t, err)
	}

	phases, err := st.ListPhases(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, phases, 3)
	for i, p := range phases {
		assert.Equal(t, names[i], p.Name)
		assert.Equal(t, model.PhaseStatusRunning, p.Status)
		assert.Nil(t, p.Result)
	}
}
