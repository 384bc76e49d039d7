package database

import (
	"context"
	"errors"
	"testing"

	"renthaus/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSlotAvailability(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetSlotAvailability(ctx, "P1", "2024-03-01", true))
	require.NoError(t, db.SetSlotAvailability(ctx, "P1", "2024-03-02", false))

	slots, err := db.GetSlots(ctx, "P1", []string{"2024-03-01", "2024-03-02", "2024-03-03"})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots["2024-03-01"].Available)
	assert.False(t, slots["2024-03-02"].Available)
	_, ok := slots["2024-03-03"]
	assert.False(t, ok, "absent days are not offered")

	// toggling an unreserved slot is fine
	require.NoError(t, db.SetSlotAvailability(ctx, "P1", "2024-03-02", true))

	require.NoError(t, db.CreateOrderWithReservation(ctx, testOrder("O1", "P1"), []string{"2024-03-01"}))

	err = db.SetSlotAvailability(ctx, "P1", "2024-03-01", true)
	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "2024-03-01", conflict.Date)

	slots, err = db.GetSlots(ctx, "P1", []string{"2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, "O1", slots["2024-03-01"].OrderID)
}

func TestGetSlots_Empty(t *testing.T) {
	db := setupTestDB(t)
	slots, err := db.GetSlots(context.Background(), "P1", nil)
	require.NoError(t, err)
	assert.Empty(t, slots)
}
