package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"
)

const orderColumns = `id, customer_id, customer_email, vendor_id, product_id, product_title,
	start_date, end_date, rental_days, daily_price, rental_fee, security_deposit, add_on_services,
	total_amount, commission, status, payment_status, payment_reference, paid_at,
	delivery_address, delivery_instructions, damage_claim, version, created_at, updated_at`

// CreateOrderWithReservation reserves every date and inserts the order in one
// transaction.
func (db *DB) CreateOrderWithReservation(ctx context.Context, order *models.Order, dates []string) error {
	addOns, err := json.Marshal(order.AddOnServices)
	if err != nil {
		return fmt.Errorf("failed to encode add-on services: %w", err)
	}
	now := time.Now().UTC()

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.reserveSlots(ctx, tx, order.ProductID, order.ID, dates, now); err != nil {
			return err
		}

		query := `INSERT INTO orders (` + orderColumns + `)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := tx.ExecContext(ctx, db.q(query),
			order.ID, order.CustomerID, order.CustomerEmail, order.VendorID, order.ProductID, order.ProductTitle,
			order.StartDate, order.EndDate, order.RentalDays, order.DailyPrice, order.RentalFee, order.SecurityDeposit,
			string(addOns), order.TotalAmount, order.Commission, order.Status, order.PaymentStatus,
			order.PaymentReference, order.PaidAt, order.DeliveryAddress, order.DeliveryInstructions,
			nil, 1, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	order.Version = 1
	order.CreatedAt = now
	order.UpdatedAt = now
	return nil
}

func (db *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	order, err := scanOrder(db.QueryRowContext(ctx, db.q(query), id))
	if isNoRows(err) {
		return nil, domain.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (db *DB) ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	var where []string
	var args []any

	if filter.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.VendorID != "" {
		where = append(where, "vendor_id = ?")
		args = append(args, filter.VendorID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.PaymentStatus != "" {
		where = append(where, "payment_status = ?")
		args = append(args, filter.PaymentStatus)
	}
	if !filter.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, filter.To.UTC())
	}
	if filter.WithClaims {
		where = append(where, "claim_status IS NOT NULL")
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateOrderStatus moves the order from change.From to change.To, optionally
// releasing its slots, and records tasks atomically.
func (db *DB) UpdateOrderStatus(ctx context.Context, change models.StatusChange, tasks []*models.OutboxTask) error {
	now := time.Now().UTC()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE orders SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND status = ?`
		result, err := tx.ExecContext(ctx, db.q(query), change.To, now, change.OrderID, change.From)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if err := db.requireApplied(ctx, tx, result, change.OrderID); err != nil {
			return err
		}

		if change.ReleaseSlots {
			released, err := db.releaseSlots(ctx, tx, change.OrderID, now)
			if err != nil {
				return err
			}
			db.logger.Debug().Str("order_id", change.OrderID).Int64("slots", released).Msg("Released reserved slots")
		}

		return db.insertOutboxTasks(ctx, tx, tasks, now)
	})
}

// MarkOrderPaid applies paid+confirmed to a pending, unpaid order. An order
// that is already paid is left untouched and reported as not applied.
func (db *DB) MarkOrderPaid(ctx context.Context, orderID, reference string, paidAt time.Time, tasks []*models.OutboxTask) (bool, error) {
	applied := false
	now := time.Now().UTC()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE orders SET payment_status = ?, status = ?, payment_reference = ?, paid_at = ?,
                    version = version + 1, updated_at = ?
                  WHERE id = ? AND payment_status <> ? AND status = ?`
		result, err := tx.ExecContext(ctx, db.q(query),
			models.PaymentPaid, models.StatusConfirmed, reference, paidAt.UTC(), now,
			orderID, models.PaymentPaid, models.StatusPending,
		)
		if err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}

		if rows == 0 {
			var status, paymentStatus string
			err := tx.QueryRowContext(ctx, db.q(`SELECT status, payment_status FROM orders WHERE id = ?`), orderID).
				Scan(&status, &paymentStatus)
			if isNoRows(err) {
				return domain.NotFound("order", orderID)
			}
			if err != nil {
				return fmt.Errorf("failed to read order state: %w", err)
			}
			if paymentStatus == models.PaymentPaid {
				return nil
			}
			return fmt.Errorf("order is %s: %w", status, domain.ErrInvalidTransition)
		}

		applied = true
		return db.insertOutboxTasks(ctx, tx, tasks, now)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (db *DB) FileDamageClaim(ctx context.Context, orderID string, claim *models.DamageClaim) error {
	data, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to encode damage claim: %w", err)
	}
	now := time.Now().UTC()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE orders SET damage_claim = ?, claim_status = ?, version = version + 1, updated_at = ?
                  WHERE id = ? AND claim_status IS NULL AND status IN (?, ?)`
		result, err := tx.ExecContext(ctx, db.q(query),
			string(data), claim.Status, now, orderID, models.StatusInProgress, models.StatusCompleted,
		)
		if err != nil {
			return fmt.Errorf("failed to file damage claim: %w", err)
		}
		return db.requireApplied(ctx, tx, result, orderID)
	})
}

// ResolveDamageClaim stores the resolved claim and marks the deposit refunded.
func (db *DB) ResolveDamageClaim(ctx context.Context, orderID string, claim *models.DamageClaim) error {
	data, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to encode damage claim: %w", err)
	}
	now := time.Now().UTC()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE orders SET damage_claim = ?, claim_status = ?, payment_status = ?,
                    version = version + 1, updated_at = ?
                  WHERE id = ? AND claim_status = ?`
		result, err := tx.ExecContext(ctx, db.q(query),
			string(data), claim.Status, models.PaymentRefunded, now, orderID, models.ClaimPending,
		)
		if err != nil {
			return fmt.Errorf("failed to resolve damage claim: %w", err)
		}
		return db.requireApplied(ctx, tx, result, orderID)
	})
}

// requireApplied turns a zero-row conditional update into NotFound or
// ErrConcurrentModification.
func (db *DB) requireApplied(ctx context.Context, tx *sql.Tx, result sql.Result, orderID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx, db.q(`SELECT 1 FROM orders WHERE id = ?`), orderID).Scan(&exists)
	if isNoRows(err) {
		return domain.NotFound("order", orderID)
	}
	if err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	return domain.ErrConcurrentModification
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var addOns string
	var paidAt sql.NullTime
	var claim sql.NullString

	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CustomerEmail, &o.VendorID, &o.ProductID, &o.ProductTitle,
		&o.StartDate, &o.EndDate, &o.RentalDays, &o.DailyPrice, &o.RentalFee, &o.SecurityDeposit, &addOns,
		&o.TotalAmount, &o.Commission, &o.Status, &o.PaymentStatus, &o.PaymentReference, &paidAt,
		&o.DeliveryAddress, &o.DeliveryInstructions, &claim, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if addOns != "" {
		if err := json.Unmarshal([]byte(addOns), &o.AddOnServices); err != nil {
			return nil, fmt.Errorf("failed to decode add-on services: %w", err)
		}
	}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	if claim.Valid && claim.String != "" {
		var c models.DamageClaim
		if err := json.Unmarshal([]byte(claim.String), &c); err != nil {
			return nil, fmt.Errorf("failed to decode damage claim: %w", err)
		}
		o.DamageClaim = &c
	}
	return &o, nil
}
