package docstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

func (s *Store) orderRef(id string) *firestore.DocumentRef {
	return s.client.Collection(ordersCollection).Doc(id)
}

func (s *Store) CreateOrderWithReservation(ctx context.Context, order *models.Order, dates []string) error {
	now := time.Now().UTC()
	refs := make([]*firestore.DocumentRef, len(dates))
	for i, d := range dates {
		refs[i] = s.slotRef(order.ProductID, d)
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return fmt.Errorf("failed to read slots: %w", err)
		}
		for i, snap := range snaps {
			if !snap.Exists() {
				return &domain.ConflictError{ProductID: order.ProductID, Date: dates[i]}
			}
			var slot slotDoc
			if err := snap.DataTo(&slot); err != nil {
				return fmt.Errorf("failed to decode slot: %w", err)
			}
			if !slot.Available {
				return &domain.ConflictError{ProductID: order.ProductID, Date: dates[i]}
			}
		}

		for _, ref := range refs {
			err := tx.Update(ref, []firestore.Update{
				{Path: "available", Value: false},
				{Path: "orderId", Value: order.ID},
				{Path: "updatedAt", Value: now},
			})
			if err != nil {
				return err
			}
		}

		doc := toOrderDoc(order)
		doc.Version = 1
		doc.CreatedAt = now
		doc.UpdatedAt = now
		return tx.Create(s.orderRef(order.ID), doc)
	})
	if err != nil {
		return err
	}

	order.Version = 1
	order.CreatedAt = now
	order.UpdatedAt = now
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	snap, err := s.orderRef(id).Get(ctx)
	if isNotFound(err) {
		return nil, domain.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return decodeOrder(snap)
}

func decodeOrder(snap *firestore.DocumentSnapshot) (*models.Order, error) {
	var d orderDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", snap.Ref.ID, err)
	}
	return d.model()
}

// ListOrders pushes equality filters to Firestore and applies the date
// window and claim filter in memory, avoiding composite indexes.
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	q := s.client.Collection(ordersCollection).Query
	if filter.CustomerID != "" {
		q = q.Where("customerId", "==", filter.CustomerID)
	}
	if filter.VendorID != "" {
		q = q.Where("vendorId", "==", filter.VendorID)
	}
	if filter.Status != "" {
		q = q.Where("status", "==", filter.Status)
	}
	if filter.PaymentStatus != "" {
		q = q.Where("paymentStatus", "==", filter.PaymentStatus)
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	var orders []*models.Order
	for _, snap := range snaps {
		o, err := decodeOrder(snap)
		if err != nil {
			return nil, err
		}
		if !filter.From.IsZero() && o.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !o.CreatedAt.Before(filter.To) {
			continue
		}
		if filter.WithClaims && o.DamageClaim == nil {
			continue
		}
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (s *Store) readOrder(tx *firestore.Transaction, id string) (*models.Order, error) {
	snap, err := tx.Get(s.orderRef(id))
	if isNotFound(err) {
		return nil, domain.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %w", err)
	}
	return decodeOrder(snap)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, change models.StatusChange, tasks []*models.OutboxTask) error {
	now := time.Now().UTC()
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		order, err := s.readOrder(tx, change.OrderID)
		if err != nil {
			return err
		}
		if order.Status != change.From {
			return domain.ErrConcurrentModification
		}

		var held []*firestore.DocumentSnapshot
		if change.ReleaseSlots {
			held, err = tx.Documents(s.client.Collection(inventoryCollection).Where("orderId", "==", change.OrderID)).GetAll()
			if err != nil {
				return fmt.Errorf("failed to read reserved slots: %w", err)
			}
		}

		err = tx.Update(s.orderRef(change.OrderID), []firestore.Update{
			{Path: "status", Value: change.To},
			{Path: "version", Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: now},
		})
		if err != nil {
			return err
		}
		for _, snap := range held {
			err := tx.Update(snap.Ref, []firestore.Update{
				{Path: "available", Value: true},
				{Path: "orderId", Value: ""},
				{Path: "updatedAt", Value: now},
			})
			if err != nil {
				return err
			}
		}
		return s.createTasks(tx, tasks, now)
	})
}

func (s *Store) MarkOrderPaid(ctx context.Context, orderID, reference string, paidAt time.Time, tasks []*models.OutboxTask) (bool, error) {
	var applied bool
	now := time.Now().UTC()

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false
		order, err := s.readOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == models.PaymentPaid {
			return nil
		}
		if order.Status != models.StatusPending {
			return fmt.Errorf("order is %s: %w", order.Status, domain.ErrInvalidTransition)
		}

		paid := paidAt.UTC()
		err = tx.Update(s.orderRef(orderID), []firestore.Update{
			{Path: "paymentStatus", Value: models.PaymentPaid},
			{Path: "status", Value: models.StatusConfirmed},
			{Path: "paymentReference", Value: reference},
			{Path: "paidAt", Value: &paid},
			{Path: "version", Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: now},
		})
		if err != nil {
			return err
		}
		applied = true
		return s.createTasks(tx, tasks, now)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *Store) FileDamageClaim(ctx context.Context, orderID string, claim *models.DamageClaim) error {
	now := time.Now().UTC()
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		order, err := s.readOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.DamageClaim != nil || !models.ClaimableStatus(order.Status) {
			return domain.ErrConcurrentModification
		}
		return tx.Update(s.orderRef(orderID), []firestore.Update{
			{Path: "damageClaim", Value: toClaimDoc(claim)},
			{Path: "claimStatus", Value: claim.Status},
			{Path: "version", Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: now},
		})
	})
}

func (s *Store) ResolveDamageClaim(ctx context.Context, orderID string, claim *models.DamageClaim) error {
	now := time.Now().UTC()
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		order, err := s.readOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.DamageClaim == nil || order.DamageClaim.Status != models.ClaimPending {
			return domain.ErrConcurrentModification
		}
		return tx.Update(s.orderRef(orderID), []firestore.Update{
			{Path: "damageClaim", Value: toClaimDoc(claim)},
			{Path: "claimStatus", Value: claim.Status},
			{Path: "paymentStatus", Value: models.PaymentRefunded},
			{Path: "version", Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: now},
		})
	})
}

func (s *Store) createTasks(tx *firestore.Transaction, tasks []*models.OutboxTask, now time.Time) error {
	for _, task := range tasks {
		if task.ID == "" {
			task.ID = uuid.NewString()
		}
		if task.Status == "" {
			task.Status = models.OutboxPending
		}
		task.CreatedAt = now
		if err := tx.Create(s.client.Collection(outboxCollection).Doc(task.ID), toOutboxDoc(task)); err != nil {
			return fmt.Errorf("failed to create outbox task: %w", err)
		}
	}
	return nil
}
