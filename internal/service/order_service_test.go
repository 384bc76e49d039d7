package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"renthaus/internal/database"
	"renthaus/internal/domain"
	"renthaus/internal/events"
	"renthaus/internal/models"
	"renthaus/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	db := setupStore(t)
	svc := newOrderService(db, nil, nil)
	ctx := context.Background()

	req := bookRequest("")
	req.ClientTotalAmount = "1"
	order, err := svc.CreateOrder(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, 3, order.RentalDays)
	assert.True(t, decimal.NewFromInt(3000).Equal(order.RentalFee))
	assert.True(t, decimal.NewFromInt(3500).Equal(order.TotalAmount))
	assert.True(t, decimal.NewFromInt(350).Equal(order.Commission))
	assert.Equal(t, "V1", order.VendorID)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)

	slots, err := db.GetSlots(ctx, "P1", append(junDates, "2030-06-13"))
	require.NoError(t, err)
	for _, d := range junDates {
		assert.Equal(t, order.ID, slots[d].OrderID, d)
		assert.False(t, slots[d].Available, d)
	}
	assert.True(t, slots["2030-06-13"].Available)
}

func TestCreateOrder_AddOns(t *testing.T) {
	db := setupStore(t)
	svc := newOrderService(db, nil, nil)

	req := bookRequest("")
	req.AddOnServiceIDs = []string{"setup"}
	order, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3750).Equal(order.TotalAmount))
	assert.True(t, decimal.NewFromInt(375).Equal(order.Commission))

	req.AddOnServiceIDs = []string{"fireworks"}
	_, err = svc.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateOrder_Unavailable(t *testing.T) {
	db := setupStore(t)
	svc := newOrderService(db, nil, nil)
	ctx := context.Background()

	req := bookRequest("")
	req.EndDate = "2030-06-15"
	_, err := svc.CreateOrder(ctx, req)

	var unavailable *domain.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "2030-06-14", unavailable.Date)

	orders, err := db.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	slots, err := db.GetSlots(ctx, "P1", junDates)
	require.NoError(t, err)
	for _, d := range junDates {
		assert.True(t, slots[d].Available, d)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	db := setupStore(t)
	svc := newOrderService(db, nil, nil)

	tests := []struct {
		name  string
		tweak func(r *domain.CreateOrderRequest)
		want  error
	}{
		{"no caller", func(r *domain.CreateOrderRequest) { r.Customer = nil }, domain.ErrUnauthorized},
		{"no product", func(r *domain.CreateOrderRequest) { r.ProductID = "" }, domain.ErrInvalidInput},
		{"unknown product", func(r *domain.CreateOrderRequest) { r.ProductID = "nope" }, domain.ErrNotFound},
		{"bad date", func(r *domain.CreateOrderRequest) { r.StartDate = "10/06/2030" }, domain.ErrInvalidInput},
		{"reversed", func(r *domain.CreateOrderRequest) { r.StartDate = "2030-06-12"; r.EndDate = "2030-06-10" }, domain.ErrInvalidInput},
		{"past", func(r *domain.CreateOrderRequest) { r.StartDate = "2030-05-30" }, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := bookRequest("")
			tt.tweak(&req)
			_, err := svc.CreateOrder(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateOrder_Idempotent(t *testing.T) {
	db := setupStore(t)
	svc := newOrderService(db, repository.NewMemoryGuardRepository(), nil)
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, bookRequest("key-1"))
	require.NoError(t, err)
	second, err := svc.CreateOrder(ctx, bookRequest("key-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	orders, err := db.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCreateOrder_IdempotencyReleasedOnFailure(t *testing.T) {
	db := setupStore(t)
	guard := repository.NewMemoryGuardRepository()
	svc := newOrderService(db, guard, nil)
	ctx := context.Background()

	bad := bookRequest("key-2")
	bad.EndDate = "2030-06-20"
	_, err := svc.CreateOrder(ctx, bad)
	require.Error(t, err)

	order, err := svc.CreateOrder(ctx, bookRequest("key-2"))
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
}

func TestCreateOrder_InProgress(t *testing.T) {
	db := setupStore(t)
	guard := repository.NewMemoryGuardRepository()
	_, claimed, err := guard.Claim(context.Background(), "order:C1:key-3", time.Hour)
	require.NoError(t, err)
	require.True(t, claimed)

	svc := newOrderService(db, guard, nil)
	_, err = svc.CreateOrder(context.Background(), bookRequest("key-3"))
	assert.ErrorIs(t, err, domain.ErrRequestInProgress)
}

func TestCreateOrder_ConcurrentSameDates(t *testing.T) {
	db := setupStore(t)
	svc := newOrderService(db, nil, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	var failures []error
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := bookRequest("")
			req.Customer = &models.Identity{UID: fmt.Sprintf("C%d", i), Role: models.RoleCustomer}
			req.StartDate = "2030-06-11"
			req.EndDate = "2030-06-11"
			_, err := svc.CreateOrder(context.Background(), req)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	require.Len(t, failures, 9)
	for _, err := range failures {
		assert.True(t, domain.IsDateError(err), err.Error())
	}
}

func TestGetOrder_Access(t *testing.T) {
	db := setupStore(t)
	svc := newOrderService(db, nil, nil)
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, bookRequest(""))
	require.NoError(t, err)

	for _, caller := range []*models.Identity{customer, vendor, admin} {
		got, err := svc.GetOrder(ctx, caller, order.ID)
		require.NoError(t, err, caller.UID)
		assert.Equal(t, order.ID, got.ID)
	}

	_, err = svc.GetOrder(ctx, &models.Identity{UID: "stranger", Role: models.RoleCustomer}, order.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.GetOrder(ctx, nil, order.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestListOrders_ByRole(t *testing.T) {
	db := setupStore(t)
	svc := newOrderService(db, nil, nil)
	ctx := context.Background()
	_, err := svc.CreateOrder(ctx, bookRequest(""))
	require.NoError(t, err)

	mine, err := svc.ListOrders(ctx, customer)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := svc.ListOrders(ctx, vendor)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	none, err := svc.ListOrders(ctx, &models.Identity{UID: "C9", Role: models.RoleCustomer})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChangeStatus(t *testing.T) {
	tests := []struct {
		name    string
		paid    bool
		caller  *models.Identity
		status  string
		wantErr error
	}{
		{"customer cancels pending", false, customer, models.StatusCancelled, nil},
		{"vendor cancels pending", false, vendor, models.StatusCancelled, nil},
		{"admin cancels pending", false, admin, models.StatusCancelled, nil},
		{"nobody confirms by hand", false, admin, models.StatusConfirmed, domain.ErrForbidden},
		{"customer cannot start", true, customer, models.StatusInProgress, domain.ErrForbidden},
		{"stranger cannot cancel", false, &models.Identity{UID: "X"}, models.StatusCancelled, domain.ErrForbidden},
		{"vendor starts confirmed", true, vendor, models.StatusInProgress, nil},
		{"no skipping", true, vendor, models.StatusCompleted, domain.ErrInvalidTransition},
		{"confirmed cannot cancel", true, vendor, models.StatusCancelled, domain.ErrInvalidTransition},
		{"unknown status", false, admin, "shipped", domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupStore(t)
			notifier := &recordingNotifier{}
			svc := newOrderService(db, nil, notifier)
			ctx := context.Background()

			order, err := svc.CreateOrder(ctx, bookRequest(""))
			require.NoError(t, err)
			if tt.paid {
				applied, err := db.MarkOrderPaid(ctx, order.ID, order.ID, testNow, nil)
				require.NoError(t, err)
				require.True(t, applied)
			}

			updated, err := svc.ChangeStatus(ctx, tt.caller, order.ID, tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, tasksOfType(t, db, models.TaskEmailStatusUpdate))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, updated.Status)
			assert.Equal(t, int64(order.Version)+1+boolInt(tt.paid), updated.Version)
			assert.Len(t, tasksOfType(t, db, models.TaskEmailStatusUpdate), 1)
			assert.Equal(t, 1, notifier.count())
		})
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func TestChangeStatus_CancelReleasesSlots(t *testing.T) {
	db := setupStore(t)
	svc := newOrderService(db, nil, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, bookRequest(""))
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, customer, order.ID, models.StatusCancelled)
	require.NoError(t, err)

	slots, err := db.GetSlots(ctx, "P1", junDates)
	require.NoError(t, err)
	for _, d := range junDates {
		assert.True(t, slots[d].Available, d)
		assert.Empty(t, slots[d].OrderID, d)
	}

	again, err := svc.CreateOrder(ctx, bookRequest(""))
	require.NoError(t, err)
	assert.NotEqual(t, order.ID, again.ID)
}

func TestChangeStatus_PublishesEvent(t *testing.T) {
	db := setupStore(t)
	bus := &mockEventBus{}
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
	svc := NewOrderService(db, newAvailability(db), nil, nil, bus, 0, testLogger())
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, bookRequest(""))
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, vendor, order.ID, models.StatusCancelled)
	require.NoError(t, err)

	bus.AssertCalled(t, "PublishJSON", events.EventOrderCreated, mock.Anything)
	bus.AssertCalled(t, "PublishJSON", events.EventOrderStatusChanged, mock.Anything)
}

func startedOrder(t *testing.T, db *database.DB, svc *OrderService, status string) *models.Order {
	t.Helper()
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, bookRequest(""))
	require.NoError(t, err)
	_, err = db.MarkOrderPaid(ctx, order.ID, order.ID, testNow, nil)
	require.NoError(t, err)
	order, err = svc.ChangeStatus(ctx, vendor, order.ID, models.StatusInProgress)
	require.NoError(t, err)
	if status == models.StatusCompleted {
		order, err = svc.ChangeStatus(ctx, vendor, order.ID, models.StatusCompleted)
		require.NoError(t, err)
	}
	return order
}

func TestDamageClaim(t *testing.T) {
	tests := []struct {
		name       string
		approved   bool
		wantRefund int64
		wantStatus string
	}{
		{"approved", true, 300, models.ClaimApproved},
		{"rejected", false, 500, models.ClaimRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupStore(t)
			svc := newOrderService(db, nil, nil)
			ctx := context.Background()
			order := startedOrder(t, db, svc, models.StatusCompleted)

			filed, err := svc.FileDamageClaim(ctx, vendor, order.ID, domain.DamageClaimRequest{
				Description: "Torn canvas",
				Amount:      "200",
				Images:      []string{"https://img.example.com/1.jpg"},
			})
			require.NoError(t, err)
			require.NotNil(t, filed.DamageClaim)
			assert.Equal(t, models.ClaimPending, filed.DamageClaim.Status)

			resolved, err := svc.ResolveDamageClaim(ctx, admin, order.ID, tt.approved)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resolved.DamageClaim.Status)
			assert.True(t, decimal.NewFromInt(tt.wantRefund).Equal(resolved.DamageClaim.RefundAmount), resolved.DamageClaim.RefundAmount.String())
			assert.Equal(t, models.PaymentRefunded, resolved.PaymentStatus)
			assert.Equal(t, "A1", resolved.DamageClaim.ResolvedBy)

			_, err = svc.ResolveDamageClaim(ctx, admin, order.ID, tt.approved)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		})
	}
}

func TestDamageClaim_Rules(t *testing.T) {
	db := setupStore(t)
	svc := newOrderService(db, nil, nil)
	ctx := context.Background()

	pending, err := svc.CreateOrder(ctx, bookRequest(""))
	require.NoError(t, err)
	_, err = svc.FileDamageClaim(ctx, vendor, pending.ID, domain.DamageClaimRequest{Description: "x", Amount: "10"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.ChangeStatus(ctx, customer, pending.ID, models.StatusCancelled)
	require.NoError(t, err)
	order := startedOrder(t, db, svc, models.StatusInProgress)

	tests := []struct {
		name   string
		caller *models.Identity
		req    domain.DamageClaimRequest
		want   error
	}{
		{"customer cannot file", customer, domain.DamageClaimRequest{Description: "x", Amount: "10"}, domain.ErrForbidden},
		{"zero amount", vendor, domain.DamageClaimRequest{Description: "x", Amount: "0"}, domain.ErrInvalidInput},
		{"above deposit", vendor, domain.DamageClaimRequest{Description: "x", Amount: "500.01"}, domain.ErrInvalidInput},
		{"not a number", vendor, domain.DamageClaimRequest{Description: "x", Amount: "lots"}, domain.ErrInvalidInput},
		{"no description", vendor, domain.DamageClaimRequest{Amount: "10"}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.FileDamageClaim(ctx, tt.caller, order.ID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = svc.FileDamageClaim(ctx, vendor, order.ID, domain.DamageClaimRequest{Description: "Full loss", Amount: "500"})
	require.NoError(t, err)
	_, err = svc.FileDamageClaim(ctx, vendor, order.ID, domain.DamageClaimRequest{Description: "Again", Amount: "5"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.ResolveDamageClaim(ctx, vendor, order.ID, true)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.ResolveDamageClaim(ctx, admin, pending.ID, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
