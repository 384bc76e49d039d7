package docstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	"cloud.google.com/go/firestore"
)

func (s *Store) outboxRef(id string) *firestore.DocumentRef {
	return s.client.Collection(outboxCollection).Doc(id)
}

func (s *Store) CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return s.createTasks(tx, []*models.OutboxTask{task}, time.Now().UTC())
	})
}

func (s *Store) GetOutboxTask(ctx context.Context, id string) (*models.OutboxTask, error) {
	snap, err := s.outboxRef(id).Get(ctx)
	if isNotFound(err) {
		return nil, domain.NotFound("outbox task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox task: %w", err)
	}
	var d outboxDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode outbox task: %w", err)
	}
	t := d.model()
	return &t, nil
}

func (s *Store) queryOutbox(ctx context.Context, q firestore.Query) ([]models.OutboxTask, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox tasks: %w", err)
	}
	tasks := make([]models.OutboxTask, 0, len(snaps))
	for _, snap := range snaps {
		var d outboxDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode outbox task %s: %w", snap.Ref.ID, err)
		}
		tasks = append(tasks, d.model())
	}
	return tasks, nil
}

func (s *Store) GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error) {
	q := s.client.Collection(outboxCollection).Where("status", "in", []string{models.OutboxPending, models.OutboxRetry})
	all, err := s.queryOutbox(ctx, q)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	due := all[:0]
	for _, t := range all {
		if t.NextRetryAt == nil || !t.NextRetryAt.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) ClaimOutboxTask(ctx context.Context, id string) (bool, error) {
	claimed := false
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimed = false
		snap, err := tx.Get(s.outboxRef(id))
		if err != nil {
			return err
		}
		st, err := snap.DataAt("status")
		if err != nil {
			return err
		}
		if st != models.OutboxPending && st != models.OutboxRetry {
			return nil
		}
		claimed = true
		return tx.Update(s.outboxRef(id), []firestore.Update{
			{Path: "status", Value: models.OutboxProcessing},
			{Path: "lockedAt", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		return false, fmt.Errorf("failed to claim outbox task: %w", err)
	}
	return claimed, nil
}

func (s *Store) UpdateOutboxTaskStatus(ctx context.Context, id, status, errMsg string, nextRetryAt *time.Time) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "lastError", Value: lastError},
		{Path: "nextRetryAt", Value: nextRetryAt},
	}
	switch status {
	case models.OutboxRetry:
		updates = append(updates,
			firestore.Update{Path: "lockedAt", Value: nil},
			firestore.Update{Path: "retryCount", Value: firestore.Increment(1)},
		)
	case models.OutboxCompleted, models.OutboxFailed:
		updates = append(updates,
			firestore.Update{Path: "lockedAt", Value: nil},
			firestore.Update{Path: "processedAt", Value: time.Now().UTC()},
		)
	}
	if _, err := s.outboxRef(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update outbox task status: %w", err)
	}
	return nil
}

func (s *Store) GetFailedOutboxTasks(ctx context.Context) ([]models.OutboxTask, error) {
	tasks, err := s.queryOutbox(ctx, s.client.Collection(outboxCollection).Where("status", "==", models.OutboxFailed))
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

func (s *Store) ReleaseStaleOutboxTasks(ctx context.Context, lockedBefore time.Time) (int, error) {
	tasks, err := s.queryOutbox(ctx, s.client.Collection(outboxCollection).Where("status", "==", models.OutboxProcessing))
	if err != nil {
		return 0, err
	}
	released := 0
	for _, t := range tasks {
		if t.LockedAt == nil || !t.LockedAt.Before(lockedBefore) {
			continue
		}
		ok, err := s.releaseIfStale(ctx, t.ID, lockedBefore)
		if err != nil {
			s.logger.Warn().Err(err).Str("task_id", t.ID).Msg("Failed to release stale outbox task")
			continue
		}
		if ok {
			released++
		}
	}
	return released, nil
}

func (s *Store) releaseIfStale(ctx context.Context, id string, lockedBefore time.Time) (bool, error) {
	released := false
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		released = false
		snap, err := tx.Get(s.outboxRef(id))
		if err != nil {
			return err
		}
		var d outboxDoc
		if err := snap.DataTo(&d); err != nil {
			return err
		}
		if d.Status != models.OutboxProcessing || d.LockedAt == nil || !d.LockedAt.Before(lockedBefore) {
			return nil
		}
		released = true
		return tx.Update(s.outboxRef(id), []firestore.Update{
			{Path: "status", Value: models.OutboxRetry},
			{Path: "lockedAt", Value: nil},
			{Path: "nextRetryAt", Value: nil},
		})
	})
	return released, err
}

func (s *Store) RequeueFailedOutboxTasks(ctx context.Context) (int, error) {
	tasks, err := s.GetFailedOutboxTasks(ctx)
	if err != nil {
		return 0, err
	}
	for i, t := range tasks {
		_, err := s.outboxRef(t.ID).Update(ctx, []firestore.Update{
			{Path: "status", Value: models.OutboxPending},
			{Path: "retryCount", Value: 0},
			{Path: "lastError", Value: nil},
			{Path: "nextRetryAt", Value: nil},
			{Path: "processedAt", Value: nil},
		})
		if err != nil {
			return i, fmt.Errorf("failed to requeue outbox task: %w", err)
		}
	}
	return len(tasks), nil
}
