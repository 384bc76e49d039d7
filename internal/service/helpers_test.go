package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"renthaus/internal/database"
	"renthaus/internal/domain"
	"renthaus/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testNow  = time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)
	junDates = []string{"2030-06-10", "2030-06-11", "2030-06-12"}

	customer = &models.Identity{UID: "C1", Email: "c1@example.com", Role: models.RoleCustomer}
	vendor   = &models.Identity{UID: "V1", Email: "v1@example.com", Role: models.RoleVendor}
	admin    = &models.Identity{UID: "A1", Email: "admin@example.com", Role: models.RoleAdmin}
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func setupStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.UpsertProduct(ctx, &models.Product{
		ID:              "P1",
		VendorID:        "V1",
		VendorName:      "Lagos Party Rentals",
		Title:           "Marquee tent",
		DailyPrice:      decimal.NewFromInt(1000),
		SecurityDeposit: decimal.NewFromInt(500),
		AddOnServices: []models.AddOnService{
			{ID: "setup", Name: "Setup crew", Price: decimal.NewFromInt(250)},
		},
		Available: true,
	}))
	require.NoError(t, db.UpsertUser(ctx, &models.User{
		UID:                "V1",
		Email:              "v1@example.com",
		Role:               models.RoleVendor,
		RegistrationStatus: models.RegistrationApproved,
		Verified:           true,
	}))
	for _, d := range append(junDates, "2030-06-13") {
		require.NoError(t, db.SetSlotAvailability(ctx, "P1", d, true))
	}
	return db
}

func newAvailability(db *database.DB) *AvailabilityService {
	a := NewAvailabilityService(db, time.UTC, 30)
	a.now = func() time.Time { return testNow }
	return a
}

func newOrderService(db *database.DB, guard domain.GuardRepository, notifier domain.OutboxNotifier) *OrderService {
	s := NewOrderService(db, newAvailability(db), guard, notifier, nil, time.Hour, testLogger())
	s.now = func() time.Time { return testNow }
	return s
}

func bookRequest(key string) domain.CreateOrderRequest {
	return domain.CreateOrderRequest{
		Customer:       customer,
		IdempotencyKey: key,
		ProductID:      "P1",
		StartDate:      "2030-06-10",
		EndDate:        "2030-06-12",
	}
}

// tasksOfType returns the pending outbox tasks of one type.
func tasksOfType(t *testing.T, db *database.DB, taskType string) []models.OutboxTask {
	t.Helper()
	tasks, err := db.GetPendingOutboxTasks(context.Background(), 100)
	require.NoError(t, err)
	var out []models.OutboxTask
	for _, task := range tasks {
		if task.TaskType == taskType {
			out = append(out, task)
		}
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	tasks []*models.OutboxTask
}

func (n *recordingNotifier) Notify(_ context.Context, tasks []*models.OutboxTask) {
	n.mu.Lock()
	n.tasks = append(n.tasks, tasks...)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.tasks)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) InitializeTransaction(ctx context.Context, req domain.PaymentInitRequest) (*domain.PaymentSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentSession), args.Error(1)
}

func (m *mockGateway) VerifyTransaction(ctx context.Context, reference string) (*domain.PaymentTransaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentTransaction), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}
