package service

import (
	"context"
	"encoding/json"
	"fmt"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	"github.com/rs/zerolog"
)

// Notification types accepted on the public endpoint, mapped to outbox task
// types.
const (
	NotifyPaymentSuccess    = "payment_success"
	NotifyOrderStatusUpdate = "order_status_update"
	NotifyNewMessage        = "new_message"
)

var notificationTasks = map[string]string{
	NotifyPaymentSuccess:    models.TaskEmailPaymentSuccess,
	NotifyOrderStatusUpdate: models.TaskEmailStatusUpdate,
	NotifyNewMessage:        models.TaskEmailNewMessage,
}

func newTask(taskType, aggregateID string, payload models.NotificationPayload) (*models.OutboxTask, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task payload: %w", err)
	}
	return &models.OutboxTask{
		TaskType:    taskType,
		AggregateID: aggregateID,
		Payload:     string(raw),
		Status:      models.OutboxPending,
	}, nil
}

// paymentTasks are the side effects of a newly paid order.
func paymentTasks(order *models.Order) ([]*models.OutboxTask, error) {
	base := models.NotificationPayload{
		Type:          NotifyPaymentSuccess,
		OrderID:       order.ID,
		CustomerEmail: order.CustomerEmail,
		VendorID:      order.VendorID,
		Status:        models.StatusConfirmed,
	}
	var tasks []*models.OutboxTask
	for _, taskType := range []string{models.TaskEmailPaymentSuccess, models.TaskTelegramVendorOrder, models.TaskLedgerOrder} {
		t, err := newTask(taskType, order.ID, base)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func statusTasks(order *models.Order, status string) ([]*models.OutboxTask, error) {
	t, err := newTask(models.TaskEmailStatusUpdate, order.ID, models.NotificationPayload{
		Type:          NotifyOrderStatusUpdate,
		OrderID:       order.ID,
		CustomerEmail: order.CustomerEmail,
		VendorID:      order.VendorID,
		Status:        status,
	})
	if err != nil {
		return nil, err
	}
	return []*models.OutboxTask{t}, nil
}

type NotificationService struct {
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	notifier domain.OutboxNotifier
	logger   *zerolog.Logger
}

func NewNotificationService(orders domain.OrderRepository, outbox domain.OutboxRepository, notifier domain.OutboxNotifier, logger *zerolog.Logger) *NotificationService {
	return &NotificationService{orders: orders, outbox: outbox, notifier: notifier, logger: logger}
}

// Enqueue records a notification task. Order notifications may only be
// requested by a party to the order or an admin.
func (s *NotificationService) Enqueue(ctx context.Context, caller *models.Identity, payload models.NotificationPayload) (*models.OutboxTask, error) {
	if caller == nil {
		return nil, domain.ErrUnauthorized
	}
	taskType, ok := notificationTasks[payload.Type]
	if !ok {
		return nil, domain.Invalid("unknown notification type %q", payload.Type)
	}

	aggregateID := payload.OrderID
	switch payload.Type {
	case NotifyNewMessage:
		if payload.CustomerEmail == "" {
			return nil, domain.Invalid("customerEmail is required")
		}
		if aggregateID == "" {
			aggregateID = caller.UID
		}
	default:
		if payload.OrderID == "" {
			return nil, domain.Invalid("orderId is required")
		}
		order, err := s.orders.GetOrder(ctx, payload.OrderID)
		if err != nil {
			return nil, err
		}
		if !caller.IsAdmin() && !order.InvolvesUser(caller.UID) {
			return nil, domain.ErrForbidden
		}
		if payload.VendorID == "" {
			payload.VendorID = order.VendorID
		}
	}

	task, err := newTask(taskType, aggregateID, payload)
	if err != nil {
		return nil, err
	}
	if err := s.outbox.CreateOutboxTask(ctx, task); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, []*models.OutboxTask{task})
	}
	s.logger.Debug().Str("task_id", task.ID).Str("type", taskType).Msg("Notification queued")
	return task, nil
}
