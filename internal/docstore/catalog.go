package docstore

import (
	"context"
	"fmt"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	"cloud.google.com/go/firestore"
)

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	snap, err := s.client.Collection(productsCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, domain.NotFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	var d productDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	return d.model()
}

func (s *Store) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return s.listProducts(s.client.Collection(productsCollection).OrderBy("createdAt", firestore.Asc).Documents(ctx))
}

func (s *Store) ListProductsByVendor(ctx context.Context, vendorID string) ([]*models.Product, error) {
	return s.listProducts(s.client.Collection(productsCollection).Where("vendorId", "==", vendorID).Documents(ctx))
}

func (s *Store) listProducts(iter *firestore.DocumentIterator) ([]*models.Product, error) {
	snaps, err := iter.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	products := make([]*models.Product, 0, len(snaps))
	for _, snap := range snaps {
		var d productDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode product %s: %w", snap.Ref.ID, err)
		}
		p, err := d.model()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *Store) UpsertProduct(ctx context.Context, p *models.Product) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if _, err := s.client.Collection(productsCollection).Doc(p.ID).Set(ctx, toProductDoc(p)); err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (s *Store) slotRef(productID, date string) *firestore.DocumentRef {
	return s.client.Collection(inventoryCollection).Doc(models.SlotID(productID, date))
}

func (s *Store) GetSlots(ctx context.Context, productID string, dates []string) (map[string]*models.InventorySlot, error) {
	slots := make(map[string]*models.InventorySlot, len(dates))
	if len(dates) == 0 {
		return slots, nil
	}

	refs := make([]*firestore.DocumentRef, len(dates))
	for i, d := range dates {
		refs[i] = s.slotRef(productID, d)
	}
	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory slots: %w", err)
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var d slotDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode slot %s: %w", snap.Ref.ID, err)
		}
		slots[d.Date] = &models.InventorySlot{
			ProductID: d.ProductID, Date: d.Date, Available: d.Available, OrderID: d.OrderID, UpdatedAt: d.UpdatedAt,
		}
	}
	return slots, nil
}

func (s *Store) SetSlotAvailability(ctx context.Context, productID, date string, available bool) error {
	ref := s.slotRef(productID, date)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to read slot: %w", err)
		}
		if err == nil && snap.Exists() {
			var current slotDoc
			if err := snap.DataTo(&current); err != nil {
				return fmt.Errorf("failed to decode slot: %w", err)
			}
			if current.OrderID != "" {
				return &domain.ConflictError{ProductID: productID, Date: date}
			}
		}
		return tx.Set(ref, slotDoc{
			ProductID: productID, Date: date, Available: available, UpdatedAt: time.Now().UTC(),
		})
	})
}
