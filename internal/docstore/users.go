package docstore

import (
	"context"
	"fmt"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	"cloud.google.com/go/firestore"
)

func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	snap, err := s.client.Collection(usersCollection).Doc(uid).Get(ctx)
	if isNotFound(err) {
		return nil, domain.NotFound("user", uid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	var d userDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return d.model(), nil
}

func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	if _, err := s.client.Collection(usersCollection).Doc(user.UID).Set(ctx, toUserDoc(user)); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *Store) ListVendors(ctx context.Context, registrationStatus string) ([]*models.User, error) {
	q := s.client.Collection(usersCollection).Where("role", "==", models.RoleVendor)
	if registrationStatus != "" {
		q = q.Where("registrationStatus", "==", registrationStatus)
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	users := make([]*models.User, 0, len(snaps))
	for _, snap := range snaps {
		var d userDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode user %s: %w", snap.Ref.ID, err)
		}
		users = append(users, d.model())
	}
	return users, nil
}

func (s *Store) SetVendorApproval(ctx context.Context, uid, registrationStatus string, verified bool) error {
	ref := s.client.Collection(usersCollection).Doc(uid)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return domain.NotFound("vendor", uid)
		}
		if err != nil {
			return fmt.Errorf("failed to read user: %w", err)
		}
		var d userDoc
		if err := snap.DataTo(&d); err != nil {
			return fmt.Errorf("failed to decode user: %w", err)
		}
		if d.Role != models.RoleVendor {
			return domain.NotFound("vendor", uid)
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "registrationStatus", Value: registrationStatus},
			{Path: "verified", Value: verified},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
}
