// Package docstore implements the persistence surface on Cloud Firestore.
//
// Collections: products, inventory (document id "<productId>_<date>"),
// orders, users and outbox. Every multi-document change runs inside
// RunTransaction with all reads issued before the first write.
package docstore

import (
	"context"
	"fmt"

	"renthaus/internal/domain"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	productsCollection  = "products"
	inventoryCollection = "inventory"
	ordersCollection    = "orders"
	usersCollection     = "users"
	outboxCollection    = "outbox"
)

var _ domain.Store = (*Store)(nil)

type Store struct {
	client *firestore.Client
	logger *zerolog.Logger
}

// NewApp initialises the Firebase Admin SDK. An empty credentials file falls
// back to application default credentials.
func NewApp(ctx context.Context, projectID, credentialsFile string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}
	return app, nil
}

func New(ctx context.Context, app *firebase.App, logger *zerolog.Logger) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return NewWithClient(client, logger), nil
}

func NewWithClient(client *firestore.Client, logger *zerolog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(productsCollection).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("firestore ping failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
