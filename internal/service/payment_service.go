package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/events"
	"renthaus/internal/metrics"
	"renthaus/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type PaymentService struct {
	orders   domain.OrderRepository
	gateway  domain.PaymentGateway
	notifier domain.OutboxNotifier
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewPaymentService(
	orders domain.OrderRepository,
	gateway domain.PaymentGateway,
	notifier domain.OutboxNotifier,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		orders:   orders,
		gateway:  gateway,
		notifier: notifier,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// Initiate opens a hosted checkout for the order's stored total. The order id
// doubles as the gateway reference.
func (s *PaymentService) Initiate(ctx context.Context, req domain.InitiatePaymentRequest) (*domain.PaymentSession, error) {
	if req.OrderID == "" {
		return nil, domain.Invalid("orderId is required")
	}
	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentPaid {
		return nil, domain.ErrAlreadyPaid
	}
	if order.Status != models.StatusPending {
		return nil, domain.Invalid("order is %s and cannot be paid", order.Status)
	}

	if req.Amount != "" {
		if client, perr := decimal.NewFromString(req.Amount); perr != nil || !client.Equal(order.TotalAmount) {
			s.logger.Warn().
				Str("order_id", order.ID).
				Str("client_amount", req.Amount).
				Str("total", order.TotalAmount.String()).
				Msg("Client payment amount ignored")
		}
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = order.CustomerEmail
	}
	if email == "" {
		return nil, domain.Invalid("email is required")
	}

	session, err := s.gateway.InitializeTransaction(ctx, domain.PaymentInitRequest{
		Email:      email,
		AmountKobo: models.ToKobo(order.TotalAmount),
		Reference:  order.ID,
		Metadata:   map[string]string{"orderId": order.ID},
	})
	if err != nil {
		metrics.IncPayment("initialize", "error")
		s.logger.Error().Err(err).Str("order_id", order.ID).Msg("Payment initialization failed")
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to initialize payment: %w", err)
	}

	metrics.IncPayment("initialize", "success")
	s.logger.Info().Str("order_id", order.ID).Int64("amount_kobo", models.ToKobo(order.TotalAmount)).Msg("Payment initialized")
	return session, nil
}

// Verify confirms a payment with the gateway and marks the order paid. It is
// safe to call any number of times: only the first successful call changes
// the order and queues notifications.
func (s *PaymentService) Verify(ctx context.Context, reference string) (*domain.VerificationResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domain.Invalid("reference is required")
	}

	tx, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) {
			metrics.IncPayment("verify", "rejected")
			s.logger.Warn().Err(err).Str("reference", reference).Msg("Gateway rejected verification")
			return nil, fmt.Errorf("%w: %s", domain.ErrVerificationFailed, gwErr.Error())
		}
		// Transport and decode failures are retryable; the webhook relies on
		// them surfacing as internal errors so the gateway redelivers.
		metrics.IncPayment("verify", "gateway_error")
		s.logger.Error().Err(err).Str("reference", reference).Msg("Gateway verification unavailable")
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}
	if tx.Status != "success" {
		metrics.IncPayment("verify", "not_successful")
		return nil, fmt.Errorf("%w: transaction status is %q", domain.ErrVerificationFailed, tx.Status)
	}

	orderID := tx.OrderID()
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		metrics.IncPayment("verify", "order_missing")
		return nil, err
	}
	if tx.AmountKobo < models.ToKobo(order.TotalAmount) {
		metrics.IncPayment("verify", "amount_mismatch")
		s.logger.Error().
			Str("order_id", order.ID).
			Int64("paid_kobo", tx.AmountKobo).
			Int64("expected_kobo", models.ToKobo(order.TotalAmount)).
			Msg("Paid amount is below the order total")
		return nil, fmt.Errorf("%w: paid amount is below the order total", domain.ErrVerificationFailed)
	}

	paidAt := s.now().UTC()
	if tx.PaidAt != nil {
		paidAt = tx.PaidAt.UTC()
	}
	tasks, err := paymentTasks(order)
	if err != nil {
		return nil, err
	}

	applied, err := s.orders.MarkOrderPaid(ctx, order.ID, reference, paidAt, tasks)
	if err != nil {
		metrics.IncPayment("verify", "error")
		return nil, err
	}

	result := &domain.VerificationResult{OrderID: order.ID, Applied: applied, Transaction: tx}
	if !applied {
		metrics.IncPayment("verify", "duplicate")
		s.logger.Info().Str("order_id", order.ID).Msg("Payment already applied")
		result.Order = order
		return result, nil
	}

	metrics.IncPayment("verify", "success")
	if s.notifier != nil {
		s.notifier.Notify(ctx, tasks)
	}
	s.logger.Info().Str("order_id", order.ID).Str("reference", reference).Msg("Payment verified, order confirmed")

	updated, err := s.orders.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	result.Order = updated

	if s.eventBus != nil {
		payload := events.OrderEventPayload{
			OrderID:     updated.ID,
			ProductID:   updated.ProductID,
			CustomerID:  updated.CustomerID,
			VendorID:    updated.VendorID,
			Status:      updated.Status,
			FromStatus:  models.StatusPending,
			TotalAmount: updated.TotalAmount.String(),
			StartDate:   updated.StartDate,
			EndDate:     updated.EndDate,
		}
		if err := s.eventBus.PublishJSON(events.EventOrderPaid, payload); err != nil {
			s.logger.Error().Err(err).Str("order_id", updated.ID).Msg("publish event error")
		}
	}
	return result, nil
}
