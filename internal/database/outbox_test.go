package database

import (
	"context"
	"testing"
	"time"

	"renthaus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.OutboxTask{
		TaskType:    models.TaskLedgerOrder,
		AggregateID: "O1",
		Payload:     `{"orderId":"O1"}`,
	}

	t.Run("CreateAndFetch", func(t *testing.T) {
		require.NoError(t, db.CreateOutboxTask(ctx, task))
		assert.NotEmpty(t, task.ID)
		assert.Equal(t, models.OutboxPending, task.Status)

		tasks, err := db.GetPendingOutboxTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, task.ID, tasks[0].ID)
	})

	t.Run("ClaimIsExclusive", func(t *testing.T) {
		ok, err := db.ClaimOutboxTask(ctx, task.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = db.ClaimOutboxTask(ctx, task.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		tasks, err := db.GetPendingOutboxTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("RetryInFutureIsNotPending", func(t *testing.T) {
		next := time.Now().Add(time.Hour)
		require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxRetry, "smtp down", &next))

		stored, err := db.GetOutboxTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.RetryCount)
		require.NotNil(t, stored.LastError)
		assert.Equal(t, "smtp down", *stored.LastError)
		assert.Nil(t, stored.LockedAt)

		tasks, err := db.GetPendingOutboxTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("FailedAndRequeue", func(t *testing.T) {
		require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxFailed, "gave up", nil))

		failed, err := db.GetFailedOutboxTasks(ctx)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.NotNil(t, failed[0].ProcessedAt)

		n, err := db.RequeueFailedOutboxTasks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		tasks, err := db.GetPendingOutboxTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, 0, tasks[0].RetryCount)
	})

	t.Run("ReleaseStale", func(t *testing.T) {
		ok, err := db.ClaimOutboxTask(ctx, task.ID)
		require.NoError(t, err)
		require.True(t, ok)

		n, err := db.ReleaseStaleOutboxTasks(ctx, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = db.ReleaseStaleOutboxTasks(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		stored, err := db.GetOutboxTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OutboxRetry, stored.Status)
	})

	t.Run("Completed", func(t *testing.T) {
		require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxCompleted, "", nil))
		stored, err := db.GetOutboxTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OutboxCompleted, stored.Status)
		assert.Nil(t, stored.LastError)
	})
}
