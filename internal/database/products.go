package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"
)

const productColumns = `id, vendor_id, vendor_name, title, description, category, city, state,
	daily_price, weekly_price, security_deposit, add_on_services, available, created_at, updated_at`

// GetProduct always reads the stored row. The catalog is written by the seed
// script, the CLI and every API instance, and orders are priced from it.
func (db *DB) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	p, err := scanProduct(db.QueryRowContext(ctx, db.q(query), id))
	if isNoRows(err) {
		return nil, domain.NotFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// ListProducts returns the whole catalog, oldest first.
func (db *DB) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return db.listProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at ASC, id ASC`)
}

func (db *DB) ListProductsByVendor(ctx context.Context, vendorID string) ([]*models.Product, error) {
	return db.listProducts(ctx, `SELECT `+productColumns+` FROM products WHERE vendor_id = ? ORDER BY created_at ASC, id ASC`, vendorID)
}

func (db *DB) listProducts(ctx context.Context, query string, args ...any) ([]*models.Product, error) {
	rows, err := db.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (db *DB) UpsertProduct(ctx context.Context, p *models.Product) error {
	addOns, err := json.Marshal(p.AddOnServices)
	if err != nil {
		return fmt.Errorf("failed to encode add-on services: %w", err)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `INSERT INTO products (` + productColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				vendor_id = excluded.vendor_id,
				vendor_name = excluded.vendor_name,
				title = excluded.title,
				description = excluded.description,
				category = excluded.category,
				city = excluded.city,
				state = excluded.state,
				daily_price = excluded.daily_price,
				weekly_price = excluded.weekly_price,
				security_deposit = excluded.security_deposit,
				add_on_services = excluded.add_on_services,
				available = excluded.available,
				updated_at = excluded.updated_at`
	_, err = db.ExecContext(ctx, db.q(query),
		p.ID, p.VendorID, p.VendorName, p.Title, p.Description, p.Category, p.City, p.State,
		p.DailyPrice, p.WeeklyPrice, p.SecurityDeposit, string(addOns), p.Available, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var addOns string
	err := row.Scan(
		&p.ID, &p.VendorID, &p.VendorName, &p.Title, &p.Description, &p.Category, &p.City, &p.State,
		&p.DailyPrice, &p.WeeklyPrice, &p.SecurityDeposit, &addOns, &p.Available, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if addOns != "" {
		if err := json.Unmarshal([]byte(addOns), &p.AddOnServices); err != nil {
			return nil, fmt.Errorf("failed to decode add-on services: %w", err)
		}
	}
	return &p, nil
}
