package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/events"
	"renthaus/internal/metrics"
	"renthaus/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OrderStore is the persistence the order flow needs.
type OrderStore interface {
	domain.ProductRepository
	domain.InventoryRepository
	domain.OrderRepository
}

type OrderService struct {
	store        OrderStore
	availability *AvailabilityService
	guard        domain.GuardRepository
	notifier     domain.OutboxNotifier
	eventBus     domain.EventPublisher
	idemTTL      time.Duration
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewOrderService(
	store OrderStore,
	availability *AvailabilityService,
	guard domain.GuardRepository,
	notifier domain.OutboxNotifier,
	eventBus domain.EventPublisher,
	idemTTL time.Duration,
	logger *zerolog.Logger,
) *OrderService {
	if idemTTL <= 0 {
		idemTTL = models.DefaultIdempotencyTTL * time.Second
	}
	return &OrderService{
		store:        store,
		availability: availability,
		guard:        guard,
		notifier:     notifier,
		eventBus:     eventBus,
		idemTTL:      idemTTL,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateOrder prices and books a product for the caller. With an idempotency
// key, a replay returns the order created by the first request.
func (s *OrderService) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*models.Order, error) {
	if req.Customer == nil || req.Customer.UID == "" {
		return nil, domain.ErrUnauthorized
	}
	if req.ProductID == "" {
		return nil, domain.Invalid("productId is required")
	}

	guardKey := ""
	if req.IdempotencyKey != "" && s.guard != nil {
		guardKey = "order:" + req.Customer.UID + ":" + req.IdempotencyKey
		existing, claimed, err := s.guard.Claim(ctx, guardKey, s.idemTTL)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Msg("Idempotency guard unavailable, continuing without it")
			guardKey = ""
		case !claimed && existing == "":
			return nil, domain.ErrRequestInProgress
		case !claimed:
			s.logger.Info().Str("order_id", existing).Msg("Replaying idempotent order request")
			return s.store.GetOrder(ctx, existing)
		}
	}

	order, err := s.createOrder(ctx, req)

	if guardKey != "" {
		if err != nil {
			if rerr := s.guard.Release(ctx, guardKey); rerr != nil {
				s.logger.Warn().Err(rerr).Msg("Failed to release idempotency key")
			}
		} else if cerr := s.guard.Complete(ctx, guardKey, order.ID, s.idemTTL); cerr != nil {
			s.logger.Warn().Err(cerr).Str("order_id", order.ID).Msg("Failed to record idempotency key")
		}
	}
	return order, err
}

func (s *OrderService) createOrder(ctx context.Context, req domain.CreateOrderRequest) (*models.Order, error) {
	product, err := s.store.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Available {
		return nil, domain.Invalid("product %s is not listed for rent", product.ID)
	}

	rng, err := s.availability.ResolveRange(req.StartDate, req.EndDate, false)
	if err != nil {
		return nil, err
	}
	if err := s.availability.Check(ctx, product.ID, rng.Days); err != nil {
		if domain.IsDateError(err) {
			metrics.IncReservation("unavailable")
		}
		return nil, err
	}

	quote, err := PriceOrder(product, len(rng.Days), req.AddOnServiceIDs)
	if err != nil {
		return nil, err
	}
	if fields := quote.mismatches(req); len(fields) > 0 {
		s.logger.Warn().
			Str("product_id", product.ID).
			Str("customer_id", req.Customer.UID).
			Strs("fields", fields).
			Msg("Client pricing differs from server pricing; using server values")
	}

	order := &models.Order{
		ID:                   uuid.NewString(),
		CustomerID:           req.Customer.UID,
		CustomerEmail:        req.Customer.Email,
		VendorID:             product.VendorID,
		ProductID:            product.ID,
		ProductTitle:         product.Title,
		StartDate:            rng.StartDate(),
		EndDate:              rng.EndDate(),
		RentalDays:           quote.Days,
		DailyPrice:           quote.DailyPrice,
		RentalFee:            quote.RentalFee,
		SecurityDeposit:      quote.SecurityDeposit,
		AddOnServices:        quote.AddOns,
		TotalAmount:          quote.TotalAmount,
		Commission:           quote.Commission,
		Status:               models.StatusPending,
		PaymentStatus:        models.PaymentPending,
		DeliveryAddress:      strings.TrimSpace(req.DeliveryAddress),
		DeliveryInstructions: strings.TrimSpace(req.DeliveryInstructions),
	}

	if err := s.store.CreateOrderWithReservation(ctx, order, rng.Days); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			metrics.IncReservation("conflict")
			s.logger.Info().Str("product_id", product.ID).Str("date", conflict.Date).Msg("Reservation lost to a concurrent booking")
		} else {
			metrics.IncReservation("error")
		}
		return nil, err
	}
	metrics.IncReservation("success")

	s.logger.Info().
		Str("order_id", order.ID).
		Str("product_id", order.ProductID).
		Str("start", order.StartDate).
		Str("end", order.EndDate).
		Str("total", order.TotalAmount.String()).
		Msg("Order created")
	s.publishEvent(events.EventOrderCreated, order, "", req.Customer.UID)
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, caller *models.Identity, id string) (*models.Order, error) {
	if caller == nil {
		return nil, domain.ErrUnauthorized
	}
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !order.InvolvesUser(caller.UID) {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

// ListOrders returns every order for admins, and otherwise the orders the
// caller rented or, for vendors, also the orders on their products.
func (s *OrderService) ListOrders(ctx context.Context, caller *models.Identity) ([]*models.Order, error) {
	if caller == nil {
		return nil, domain.ErrUnauthorized
	}
	if caller.IsAdmin() {
		return s.store.ListOrders(ctx, models.OrderFilter{})
	}

	orders, err := s.store.ListOrders(ctx, models.OrderFilter{CustomerID: caller.UID})
	if err != nil {
		return nil, err
	}
	if !caller.IsVendor() {
		return orders, nil
	}

	vendorOrders, err := s.store.ListOrders(ctx, models.OrderFilter{VendorID: caller.UID})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(orders))
	for _, o := range orders {
		seen[o.ID] = true
	}
	for _, o := range vendorOrders {
		if !seen[o.ID] {
			orders = append(orders, o)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

// ChangeStatus moves an order one step along its lifecycle. Confirmation is
// reserved for payment verification; customers may only cancel.
func (s *OrderService) ChangeStatus(ctx context.Context, caller *models.Identity, orderID, status string) (*models.Order, error) {
	if caller == nil {
		return nil, domain.ErrUnauthorized
	}
	if !models.ValidStatus(status) {
		return nil, domain.Invalid("unknown order status %q", status)
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeStatusChange(caller, order, status); err != nil {
		return nil, err
	}
	if !models.CanTransition(order.Status, status) {
		return nil, fmt.Errorf("cannot move order from %s to %s: %w", order.Status, status, domain.ErrInvalidTransition)
	}

	tasks, err := statusTasks(order, status)
	if err != nil {
		return nil, err
	}
	change := models.StatusChange{
		OrderID:      order.ID,
		From:         order.Status,
		To:           status,
		ReleaseSlots: status == models.StatusCancelled,
	}
	if err := s.store.UpdateOrderStatus(ctx, change, tasks); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, tasks)
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("from", change.From).
		Str("to", change.To).
		Str("by", caller.UID).
		Msg("Order status changed")

	updated, err := s.store.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventOrderStatusChanged, updated, change.From, caller.UID)
	return updated, nil
}

func authorizeStatusChange(caller *models.Identity, order *models.Order, status string) error {
	if status == models.StatusConfirmed {
		return fmt.Errorf("%w: orders are confirmed by payment verification", domain.ErrForbidden)
	}
	switch {
	case caller.IsAdmin():
		return nil
	case caller.UID == order.VendorID:
		return nil
	case caller.UID == order.CustomerID && status == models.StatusCancelled:
		return nil
	}
	return domain.ErrForbidden
}

// FileDamageClaim lets the vendor claim against the security deposit of an
// order that is in progress or completed.
func (s *OrderService) FileDamageClaim(ctx context.Context, caller *models.Identity, orderID string, req domain.DamageClaimRequest) (*models.Order, error) {
	if caller == nil {
		return nil, domain.ErrUnauthorized
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if caller.UID != order.VendorID {
		return nil, domain.ErrForbidden
	}
	if order.DamageClaim != nil {
		return nil, fmt.Errorf("order already has a damage claim: %w", domain.ErrInvalidTransition)
	}
	if !models.ClaimableStatus(order.Status) {
		return nil, fmt.Errorf("damage claims require an in-progress or completed order, order is %s: %w", order.Status, domain.ErrInvalidTransition)
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, domain.Invalid("description is required")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, domain.Invalid("invalid claim amount %q", req.Amount)
	}
	if !amount.IsPositive() {
		return nil, domain.Invalid("claim amount must be greater than zero")
	}
	if amount.GreaterThan(order.SecurityDeposit) {
		return nil, domain.Invalid("claim amount %s exceeds the security deposit of %s", amount.String(), order.SecurityDeposit.String())
	}

	claim := &models.DamageClaim{
		Description: description,
		Amount:      amount.Round(2),
		Images:      req.Images,
		Status:      models.ClaimPending,
		FiledAt:     s.now().UTC(),
	}
	if err := s.store.FileDamageClaim(ctx, order.ID, claim); err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", order.ID).Str("amount", claim.Amount.String()).Msg("Damage claim filed")
	updated, err := s.store.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventClaimFiled, updated, "", caller.UID)
	return updated, nil
}

// ResolveDamageClaim approves or rejects a pending claim. The deposit refund
// is the deposit minus the claim when approved and the whole deposit when
// rejected; either way the order's payment becomes refunded.
func (s *OrderService) ResolveDamageClaim(ctx context.Context, caller *models.Identity, orderID string, approved bool) (*models.Order, error) {
	if caller == nil {
		return nil, domain.ErrUnauthorized
	}
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.DamageClaim == nil {
		return nil, domain.NotFound("damage claim", orderID)
	}
	if order.DamageClaim.Status != models.ClaimPending {
		return nil, fmt.Errorf("damage claim is already %s: %w", order.DamageClaim.Status, domain.ErrInvalidTransition)
	}

	resolved := *order.DamageClaim
	resolvedAt := s.now().UTC()
	resolved.Status = models.ClaimRejected
	if approved {
		resolved.Status = models.ClaimApproved
	}
	resolved.RefundAmount = models.RefundAmount(order.SecurityDeposit, resolved.Amount, approved)
	resolved.ResolvedAt = &resolvedAt
	resolved.ResolvedBy = caller.UID

	if err := s.store.ResolveDamageClaim(ctx, order.ID, &resolved); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("claim_status", resolved.Status).
		Str("refund", resolved.RefundAmount.String()).
		Msg("Damage claim resolved")

	updated, err := s.store.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventClaimResolved, updated, "", caller.UID)
	return updated, nil
}

func (s *OrderService) publishEvent(eventType string, order *models.Order, fromStatus, changedBy string) {
	if s.eventBus == nil {
		return
	}
	payload := events.OrderEventPayload{
		OrderID:     order.ID,
		ProductID:   order.ProductID,
		CustomerID:  order.CustomerID,
		VendorID:    order.VendorID,
		Status:      order.Status,
		FromStatus:  fromStatus,
		TotalAmount: order.TotalAmount.String(),
		ChangedBy:   changedBy,
		StartDate:   order.StartDate,
		EndDate:     order.EndDate,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("order_id", order.ID).Msg("publish event error")
	}
}
