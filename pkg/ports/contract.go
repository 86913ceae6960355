package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000000")

	record := func(id string, started time.Time) *domain.RunRecord {
		run := domain.NewRunRecord(id, "approve-order")
		run.StartedAt = started
		return run
	}

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Create a finished run
		run := record(prefix+"-load", time.Now().UTC().Truncate(time.Millisecond))
		run.Status = domain.RunStatusFailed
		run.FinishedAt = run.StartedAt.Add(15 * time.Millisecond)
		run.Error = "step execution error: boom"
		run.Context["total"] = 120
		run.Context["status"] = "review"
		run.Trace = []domain.TraceEntry{
			{Timestamp: run.StartedAt, Type: domain.EventStepBegin, StepID: "1", StepType: domain.StepTypeStart, Port: "default"},
			{Timestamp: run.FinishedAt, Type: domain.EventExecuteError, Error: "boom"},
		}

		// 2. Save
		require.NoError(t, store.Save(ctx, run), "Save should not return error")

		// 3. Load
		loaded, err := store.Load(ctx, run.ID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, run.ID, loaded.ID)
		assert.Equal(t, run.Rule, loaded.Rule)
		assert.Equal(t, domain.RunStatusFailed, loaded.Status)
		assert.Equal(t, run.Error, loaded.Error)
		assert.True(t, run.StartedAt.Equal(loaded.StartedAt), "StartedAt %v != %v", run.StartedAt, loaded.StartedAt)
		assert.Equal(t, run.Duration(), loaded.Duration())
		assert.Equal(t, "review", loaded.Context["status"])
		// JSON-backed stores turn numbers into float64; only presence is part of the contract.
		assert.NotNil(t, loaded.Context["total"])
		require.Len(t, loaded.Trace, 2)
		assert.Equal(t, domain.EventStepBegin, loaded.Trace[0].Type)
		assert.Equal(t, domain.StepID("1"), loaded.Trace[0].StepID)
	})

	t.Run("Save replaces", func(t *testing.T) {
		run := record(prefix+"-replace", time.Now())
		require.NoError(t, store.Save(ctx, run))

		run.Status = domain.RunStatusSucceeded
		require.NoError(t, store.Save(ctx, run))

		loaded, err := store.Load(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusSucceeded, loaded.Status)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+prefix)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		// Setup
		id := prefix + "-delete"
		require.NoError(t, store.Save(ctx, record(id, time.Now())))

		// Delete
		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		// Verify gone
		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
		assert.NoError(t, store.Delete(ctx, id), "Deleting twice should not return error")
	})

	t.Run("List", func(t *testing.T) {
		// Setup: three runs started one minute apart, saved out of order
		base := time.Now().Add(time.Hour)
		ids := make([]string, 3)
		for i := range ids {
			ids[i] = fmt.Sprintf("%s-list-%d", prefix, i)
		}
		for _, i := range []int{1, 0, 2} {
			require.NoError(t, store.Save(ctx, record(ids[i], base.Add(time.Duration(i)*time.Minute))))
		}

		// Ensure cleanup
		defer func() {
			for _, id := range ids {
				_ = store.Delete(ctx, id)
			}
		}()

		// List
		runs, err := store.List(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(runs), 3)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, runs[:3], "newest runs come first")
	})
}
