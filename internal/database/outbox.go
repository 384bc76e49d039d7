package database

import (
	"context"
	"fmt"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	"github.com/google/uuid"
)

const outboxColumns = `id, task_type, aggregate_id, payload, status, retry_count, last_error,
	created_at, locked_at, processed_at, next_retry_at`

func (db *DB) CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	return db.insertOutboxTasks(ctx, db.DB, []*models.OutboxTask{task}, time.Now().UTC())
}

func (db *DB) insertOutboxTasks(ctx context.Context, ex execer, tasks []*models.OutboxTask, now time.Time) error {
	query := db.q(`INSERT INTO outbox (` + outboxColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, task := range tasks {
		if task.ID == "" {
			task.ID = uuid.NewString()
		}
		if task.Status == "" {
			task.Status = models.OutboxPending
		}
		task.CreatedAt = now

		_, err := ex.ExecContext(ctx, query,
			task.ID, task.TaskType, task.AggregateID, task.Payload, task.Status, task.RetryCount,
			task.LastError, task.CreatedAt, task.LockedAt, task.ProcessedAt, task.NextRetryAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create outbox task: %w", err)
		}
	}
	return nil
}

func (db *DB) GetOutboxTask(ctx context.Context, id string) (*models.OutboxTask, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox WHERE id = ?`
	t, err := scanOutboxTask(db.QueryRowContext(ctx, db.q(query), id))
	if isNoRows(err) {
		return nil, domain.NotFound("outbox task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox task: %w", err)
	}
	return t, nil
}

func (db *DB) GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error) {
	query := `SELECT ` + outboxColumns + `
              FROM outbox
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	return db.queryOutbox(ctx, query, models.OutboxPending, models.OutboxRetry, time.Now().UTC(), limit)
}

// ClaimOutboxTask moves a deliverable task to processing. It returns false
// when another worker got there first.
func (db *DB) ClaimOutboxTask(ctx context.Context, id string) (bool, error) {
	query := `UPDATE outbox SET status = ?, locked_at = ? WHERE id = ? AND status IN (?, ?)`
	result, err := db.ExecContext(ctx, db.q(query),
		models.OutboxProcessing, time.Now().UTC(), id, models.OutboxPending, models.OutboxRetry,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim outbox task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

func (db *DB) UpdateOutboxTaskStatus(ctx context.Context, id, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []any
	now := time.Now().UTC()

	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	switch status {
	case models.OutboxRetry:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, locked_at = NULL, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, id}
	case models.OutboxCompleted, models.OutboxFailed:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, locked_at = NULL, processed_at = ? WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, now, id}
	default:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, db.q(query), args...); err != nil {
		return fmt.Errorf("failed to update outbox task status: %w", err)
	}
	return nil
}

func (db *DB) GetFailedOutboxTasks(ctx context.Context) ([]models.OutboxTask, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox WHERE status = ? ORDER BY created_at DESC`
	return db.queryOutbox(ctx, query, models.OutboxFailed)
}

func (db *DB) ReleaseStaleOutboxTasks(ctx context.Context, lockedBefore time.Time) (int, error) {
	query := `UPDATE outbox SET status = ?, locked_at = NULL, next_retry_at = NULL WHERE status = ? AND locked_at < ?`
	result, err := db.ExecContext(ctx, db.q(query), models.OutboxRetry, models.OutboxProcessing, lockedBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to release stale outbox tasks: %w", err)
	}
	rows, err := result.RowsAffected()
	return int(rows), err
}

func (db *DB) RequeueFailedOutboxTasks(ctx context.Context) (int, error) {
	query := `UPDATE outbox SET status = ?, retry_count = 0, last_error = NULL, next_retry_at = NULL, processed_at = NULL WHERE status = ?`
	result, err := db.ExecContext(ctx, db.q(query), models.OutboxPending, models.OutboxFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue outbox tasks: %w", err)
	}
	rows, err := result.RowsAffected()
	return int(rows), err
}

func (db *DB) queryOutbox(ctx context.Context, query string, args ...any) ([]models.OutboxTask, error) {
	rows, err := db.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.OutboxTask
	for rows.Next() {
		t, err := scanOutboxTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanOutboxTask(row rowScanner) (*models.OutboxTask, error) {
	var t models.OutboxTask
	err := row.Scan(
		&t.ID, &t.TaskType, &t.AggregateID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError,
		&t.CreatedAt, &t.LockedAt, &t.ProcessedAt, &t.NextRetryAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
