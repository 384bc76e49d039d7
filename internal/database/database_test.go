package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testProduct(id, vendorID string) *models.Product {
	return &models.Product{
		ID:              id,
		VendorID:        vendorID,
		VendorName:      "Lagos Party Rentals",
		Title:           "Marquee tent",
		DailyPrice:      decimal.NewFromInt(1000),
		WeeklyPrice:     decimal.NewFromInt(6000),
		SecurityDeposit: decimal.NewFromInt(500),
		AddOnServices: []models.AddOnService{
			{ID: "setup", Name: "Setup crew", Price: decimal.NewFromInt(250)},
		},
		Available: true,
	}
}

func openSlots(t *testing.T, db *DB, productID string, dates ...string) {
	t.Helper()
	for _, d := range dates {
		require.NoError(t, db.SetSlotAvailability(context.Background(), productID, d, true))
	}
}

func testOrder(id, productID string) *models.Order {
	return &models.Order{
		ID:              id,
		CustomerID:      "C1",
		CustomerEmail:   "c1@example.com",
		VendorID:        "V1",
		ProductID:       productID,
		ProductTitle:    "Marquee tent",
		StartDate:       "2024-03-01",
		EndDate:         "2024-03-03",
		RentalDays:      3,
		DailyPrice:      decimal.NewFromInt(1000),
		RentalFee:       decimal.NewFromInt(3000),
		SecurityDeposit: decimal.NewFromInt(500),
		TotalAmount:     decimal.NewFromInt(3500),
		Commission:      decimal.NewFromInt(350),
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentPending,
	}
}

func TestNewDB(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, DriverSQLite, db.Driver())
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	logger := zerolog.New(io.Discard)
	path := filepath.Join(t.TempDir(), "nested", "renthaus.db")
	db, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNewDB_Error(t *testing.T) {
	logger := zerolog.New(io.Discard)
	_, err := NewDB(t.TempDir(), &logger)
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	logger := zerolog.Nop()
	pg := wrap(nil, DriverPostgres, &logger)
	assert.Equal(t, "SELECT 1 FROM t WHERE a = $1 AND b IN ($2, $3)", pg.q("SELECT 1 FROM t WHERE a = ? AND b IN (?, ?)"))

	lite := wrap(nil, DriverSQLite, &logger)
	assert.Equal(t, "a = ?", lite.q("a = ?"))

	assert.Equal(t, "?, ?, ?", placeholders(3))
	assert.Equal(t, "", placeholders(0))
}

func TestProducts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := testProduct("P1", "V1")
	require.NoError(t, db.UpsertProduct(ctx, p))
	require.NoError(t, db.UpsertProduct(ctx, testProduct("P2", "V1")))
	require.NoError(t, db.UpsertProduct(ctx, testProduct("P3", "V2")))

	got, err := db.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(got.DailyPrice))
	require.Len(t, got.AddOnServices, 1)
	assert.Equal(t, "setup", got.AddOnServices[0].ID)

	assert.True(t, decimal.NewFromInt(500).Equal(got.SecurityDeposit))

	list, err := db.ListProductsByVendor(ctx, "V1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	all, err := db.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "V2", all[2].VendorID)

	_, err = db.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetProduct_SeesOtherWriters(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "shared.db")
	api, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer api.Close()
	seeder, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer seeder.Close()

	ctx := context.Background()
	require.NoError(t, api.UpsertProduct(ctx, testProduct("P1", "V1")))
	got, err := api.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(got.DailyPrice))

	relisted := testProduct("P1", "V1")
	relisted.DailyPrice = decimal.NewFromInt(5000)
	relisted.Available = false
	require.NoError(t, seeder.UpsertProduct(ctx, relisted))

	got, err = api.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5000).Equal(got.DailyPrice), got.DailyPrice.String())
	assert.False(t, got.Available)

	// Callers own what they get back.
	got.AddOnServices[0].Name = "mutated"
	again, err := api.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.AddOnServices[0].Name)
}
