package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"renthaus/internal/config"
	"renthaus/internal/domain"
	"renthaus/internal/metrics"
	"renthaus/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisQueueKey = "renthaus:outbox:queue"
	deadLetterKey = "renthaus:outbox:deadletter"
)

// ErrPermanent marks a task failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent task failure")

// Handler performs the side effect an outbox task describes.
type Handler interface {
	Handle(ctx context.Context, task *models.OutboxTask) error
}

// OutboxWorker delivers outbox tasks. New tasks are announced through redis
// or an in-memory queue; the store is polled for everything else, including
// retries that came due.
type OutboxWorker struct {
	store        domain.OutboxRepository
	handler      Handler
	redis        *redis.Client
	backoff      Backoff
	queue        chan string
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewOutboxWorker(store domain.OutboxRepository, handler Handler, redisClient *redis.Client, cfg config.OutboxConfig, logger *zerolog.Logger) *OutboxWorker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &OutboxWorker{
		store:        store,
		handler:      handler,
		redis:        redisClient,
		backoff:      newBackoff(cfg),
		queue:        make(chan string, models.OutboxQueueSize),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
		now:          time.Now,
	}
}

// Notify announces committed tasks so they are picked up without waiting for
// the next poll. Tasks that cannot be announced are still found by polling.
func (w *OutboxWorker) Notify(ctx context.Context, tasks []*models.OutboxTask) {
	for _, task := range tasks {
		if task == nil || task.ID == "" {
			continue
		}
		if w.redis != nil {
			if err := w.redis.LPush(ctx, redisQueueKey, task.ID).Err(); err != nil {
				w.logger.Warn().Err(err).Str("task_id", task.ID).Msg("redis push failed, falling back to memory queue")
			} else {
				continue
			}
		}
		select {
		case w.queue <- task.ID:
		default:
			w.logger.Debug().Str("task_id", task.ID).Msg("in-memory queue full, task left to polling")
		}
	}
}

// Start runs the delivery loop until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Outbox worker started")
	defer w.logger.Info().Msg("Outbox worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if id, ok := w.tryLocalQueue(); ok {
			w.processID(ctx, id)
			continue
		}
		if id, ok := w.tryRedis(ctx); ok {
			w.processID(ctx, id)
			continue
		}

		processed, err := w.ProcessPending(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to fetch pending outbox tasks")
		}
		if processed == 0 || err != nil {
			w.sleep(ctx)
		}
	}
}

func (w *OutboxWorker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ProcessPending delivers one batch of due tasks and returns how many were
// attempted.
func (w *OutboxWorker) ProcessPending(ctx context.Context) (int, error) {
	tasks, err := w.store.GetPendingOutboxTasks(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks), nil
}

func (w *OutboxWorker) tryLocalQueue() (string, bool) {
	select {
	case id := <-w.queue:
		return id, true
	default:
		return "", false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (string, bool) {
	if w.redis == nil {
		return "", false
	}
	res, err := w.redis.BRPop(ctx, time.Second, redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return "", false
		}
		w.logger.Warn().Err(err).Msg("redis BRPOP error")
		return "", false
	}
	if len(res) != 2 {
		return "", false
	}
	return res[1], true
}

func (w *OutboxWorker) processID(ctx context.Context, id string) {
	task, err := w.store.GetOutboxTask(ctx, id)
	if err != nil {
		w.logger.Warn().Err(err).Str("task_id", id).Msg("Announced outbox task could not be loaded")
		return
	}
	w.processTask(ctx, task)
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	if task.Status != models.OutboxPending && task.Status != models.OutboxRetry {
		return
	}
	if task.NextRetryAt != nil && task.NextRetryAt.After(w.now()) {
		return
	}

	claimed, err := w.store.ClaimOutboxTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to claim outbox task")
		return
	}
	if !claimed {
		return
	}

	logger := w.logger.With().Str("task_id", task.ID).Str("type", task.TaskType).Str("aggregate_id", task.AggregateID).Logger()

	if err := w.handler.Handle(ctx, task); err != nil {
		if errors.Is(err, ErrPermanent) {
			w.failTask(ctx, task, err)
			return
		}
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxCompleted, "", nil); err != nil {
		logger.Error().Err(err).Msg("Failed to mark outbox task completed")
		return
	}
	metrics.IncOutbox(task.TaskType, models.OutboxCompleted)
	logger.Debug().Msg("Outbox task delivered")
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	if w.backoff.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	nextTime := w.backoff.NextAttemptAt(w.now(), attempt)
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to schedule outbox retry")
		return
	}
	metrics.IncOutbox(task.TaskType, models.OutboxRetry)
	w.logger.Warn().Err(cause).
		Str("task_id", task.ID).
		Str("type", task.TaskType).
		Int("attempt", attempt).
		Time("next_retry_at", nextTime).
		Msg("Outbox task failed, will retry")
}

func (w *OutboxWorker) failTask(ctx context.Context, task *models.OutboxTask, cause error) {
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to mark outbox task failed")
	}
	metrics.IncOutbox(task.TaskType, models.OutboxFailed)
	w.logger.Error().Err(cause).Str("task_id", task.ID).Str("type", task.TaskType).Msg("Outbox task failed permanently")
	w.pushDeadLetter(ctx, task, cause)
}

type deadLetter struct {
	Task     *models.OutboxTask `json:"task"`
	Error    string             `json:"error"`
	FailedAt time.Time          `json:"failed_at"`
}

func (w *OutboxWorker) pushDeadLetter(ctx context.Context, task *models.OutboxTask, cause error) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(deadLetter{Task: task, Error: cause.Error(), FailedAt: w.now().UTC()})
	if err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("deadletter push failed")
	}
}

// Sweep returns tasks stuck in processing for longer than staleAfter to the
// retry state. It is run by the scheduler.
func (w *OutboxWorker) Sweep(ctx context.Context, staleAfter time.Duration) (int, error) {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	released, err := w.store.ReleaseStaleOutboxTasks(ctx, w.now().Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to release stale outbox tasks: %w", err)
	}
	if released > 0 {
		w.logger.Warn().Int("released", released).Msg("Released stale outbox tasks")
	}
	return released, nil
}
