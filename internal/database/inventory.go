package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"
)

func (db *DB) GetSlots(ctx context.Context, productID string, dates []string) (map[string]*models.InventorySlot, error) {
	slots := make(map[string]*models.InventorySlot, len(dates))
	if len(dates) == 0 {
		return slots, nil
	}

	query := `SELECT product_id, date, available, order_id, updated_at
              FROM inventory WHERE product_id = ? AND date IN (` + placeholders(len(dates)) + `)`
	args := make([]any, 0, len(dates)+1)
	args = append(args, productID)
	for _, d := range dates {
		args = append(args, d)
	}

	rows, err := db.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.InventorySlot
		var orderID sql.NullString
		if err := rows.Scan(&s.ProductID, &s.Date, &s.Available, &orderID, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory slot: %w", err)
		}
		s.OrderID = orderID.String
		slots[s.Date] = &s
	}
	return slots, rows.Err()
}

// SetSlotAvailability upserts an explicit slot unless an order holds it.
func (db *DB) SetSlotAvailability(ctx context.Context, productID, date string, available bool) error {
	query := `INSERT INTO inventory (product_id, date, available, order_id, updated_at)
              VALUES (?, ?, ?, NULL, ?)
              ON CONFLICT(product_id, date) DO UPDATE SET
                available = excluded.available,
                updated_at = excluded.updated_at
              WHERE inventory.order_id IS NULL`
	result, err := db.ExecContext(ctx, db.q(query), productID, date, available, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set slot availability: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return &domain.ConflictError{ProductID: productID, Date: date}
	}
	return nil
}

// reserveSlots flips every date from available to held by orderID. It stops at
// the first date whose precondition fails; the caller rolls back.
func (db *DB) reserveSlots(ctx context.Context, tx execer, productID, orderID string, dates []string, now time.Time) error {
	query := db.q(`UPDATE inventory SET available = ?, order_id = ?, updated_at = ?
              WHERE product_id = ? AND date = ? AND available = ?`)
	for _, date := range dates {
		result, err := tx.ExecContext(ctx, query, false, orderID, now, productID, date, true)
		if err != nil {
			return fmt.Errorf("failed to reserve slot %s: %w", date, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if rows == 0 {
			return &domain.ConflictError{ProductID: productID, Date: date}
		}
	}
	return nil
}

func (db *DB) releaseSlots(ctx context.Context, tx execer, orderID string, now time.Time) (int64, error) {
	query := db.q(`UPDATE inventory SET available = ?, order_id = NULL, updated_at = ? WHERE order_id = ?`)
	result, err := tx.ExecContext(ctx, query, true, now, orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to release slots: %w", err)
	}
	return result.RowsAffected()
}
