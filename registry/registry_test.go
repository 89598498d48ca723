package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinsight/takforge/db"
	"github.com/clinsight/takforge/errors"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.Migrate(conn, nil))
	return New(conn)
}

func TestGetNotFound(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Get(context.Background(), "HR_STATE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPutAndGet(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, reg.Put(ctx, Entry{
		ID:             "HR_STATE",
		Disposition:    DispositionValid,
		OutputPath:     "TAKs/states/STATE_HR_STATE.xml",
		AttemptsUsed:   2,
		TotalTokenCost: 700,
		RunID:          "run-1",
		LastRunAt:      now,
	}))

	got, err := reg.Get(ctx, "HR_STATE")
	require.NoError(t, err)
	assert.Equal(t, DispositionValid, got.Disposition)
	assert.Equal(t, 2, got.AttemptsUsed)
	assert.Equal(t, 700, got.TotalTokenCost)
	assert.Equal(t, "run-1", got.RunID)
	assert.True(t, got.LastRunAt.Equal(now))
}

func TestPutOverwritesPriorRun(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Put(ctx, Entry{
		ID: "HR_STATE", Disposition: DispositionInvalid,
		AttemptsUsed: 3, TotalTokenCost: 900, RunID: "run-1",
	}))
	require.NoError(t, reg.Put(ctx, Entry{
		ID: "HR_STATE", Disposition: DispositionValid,
		OutputPath: "TAKs/states/STATE_HR_STATE.xml",
		AttemptsUsed: 1, TotalTokenCost: 250, RunID: "run-2",
	}))

	got, err := reg.Get(ctx, "HR_STATE")
	require.NoError(t, err)
	assert.Equal(t, DispositionValid, got.Disposition)
	assert.Equal(t, 1, got.AttemptsUsed)
	assert.Equal(t, 250, got.TotalTokenCost)
	assert.Equal(t, "run-2", got.RunID)

	entries, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestListOrderedByID(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	for _, id := range []string{"ZED", "ALPHA", "MID"} {
		require.NoError(t, reg.Put(ctx, Entry{ID: id, Disposition: DispositionPending}))
	}

	entries, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "ALPHA", entries[0].ID)
	assert.Equal(t, "MID", entries[1].ID)
	assert.Equal(t, "ZED", entries[2].ID)
}

func TestCountByDisposition(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Put(ctx, Entry{ID: "A", Disposition: DispositionValid}))
	require.NoError(t, reg.Put(ctx, Entry{ID: "B", Disposition: DispositionValid}))
	require.NoError(t, reg.Put(ctx, Entry{ID: "C", Disposition: DispositionNeedsReview}))

	counts, err := reg.CountByDisposition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[DispositionValid])
	assert.Equal(t, 1, counts[DispositionNeedsReview])
	assert.Zero(t, counts[DispositionInvalid])
}

func TestRecordAndQueryUsage(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	for attempt := 1; attempt <= 3; attempt++ {
		require.NoError(t, reg.RecordUsage(ctx, Usage{
			DefinitionID: "HR_STATE",
			RunID:        "run-1",
			Attempt:      attempt,
			Model:        "openai/gpt-4o-mini",
			TotalTokens:  100 * attempt,
		}))
	}

	usages, err := reg.UsageForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, usages, 3)
	assert.Equal(t, 1, usages[0].Attempt)
	assert.Equal(t, 300, usages[2].TotalTokens)

	other, err := reg.UsageForRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
