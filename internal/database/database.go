package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"renthaus/internal/domain"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var _ domain.Store = (*DB)(nil)

type DB struct {
	*sql.DB
	driver string
	path   string
	logger *zerolog.Logger
}

// NewDB opens a sqlite database at path and creates the schema.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// BEGIN IMMEDIATE: writers take the write lock up front.
	dsn := path + "?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
	sqlDB, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db, err := setup(sqlDB, DriverSQLite, path, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("path", path).Msg("SQLite database initialized")
	return db, nil
}

// NewPostgres opens a postgres database and creates the schema.
func NewPostgres(dsn string, maxConns int, logger *zerolog.Logger) (*DB, error) {
	sqlDB, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
	}

	db, err := setup(sqlDB, DriverPostgres, "", logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("Postgres database initialized")
	return db, nil
}

func setup(sqlDB *sql.DB, driver, path string, logger *zerolog.Logger) (*DB, error) {
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := wrap(sqlDB, driver, logger)
	db.path = path
	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return db, nil
}

func wrap(sqlDB *sql.DB, driver string, logger *zerolog.Logger) *DB {
	return &DB{
		DB:     sqlDB,
		driver: driver,
		logger: logger,
	}
}

// Path is the sqlite file path, empty for postgres.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) createTables() error {
	types := map[string][2]string{
		"{money}": {"TEXT", "NUMERIC(14,2)"},
		"{ts}":    {"DATETIME", "TIMESTAMPTZ"},
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			vendor_id TEXT NOT NULL,
			vendor_name TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			daily_price {money} NOT NULL,
			weekly_price {money} NOT NULL,
			security_deposit {money} NOT NULL,
			add_on_services TEXT NOT NULL DEFAULT '[]',
			available BOOLEAN NOT NULL DEFAULT TRUE,
			created_at {ts} NOT NULL,
			updated_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			product_id TEXT NOT NULL,
			date TEXT NOT NULL,
			available BOOLEAN NOT NULL,
			order_id TEXT,
			updated_at {ts} NOT NULL,
			PRIMARY KEY (product_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			customer_email TEXT NOT NULL DEFAULT '',
			vendor_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			product_title TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			rental_days INTEGER NOT NULL,
			daily_price {money} NOT NULL,
			rental_fee {money} NOT NULL,
			security_deposit {money} NOT NULL,
			add_on_services TEXT NOT NULL DEFAULT '[]',
			total_amount {money} NOT NULL,
			commission {money} NOT NULL,
			status TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			payment_reference TEXT NOT NULL DEFAULT '',
			paid_at {ts},
			delivery_address TEXT NOT NULL DEFAULT '',
			delivery_instructions TEXT NOT NULL DEFAULT '',
			claim_status TEXT,
			damage_claim TEXT,
			version INTEGER NOT NULL DEFAULT 1,
			created_at {ts} NOT NULL,
			updated_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			uid TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'customer',
			phone_number TEXT NOT NULL DEFAULT '',
			business_name TEXT NOT NULL DEFAULT '',
			registration_status TEXT NOT NULL DEFAULT '',
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			telegram_chat_id BIGINT NOT NULL DEFAULT 0,
			created_at {ts} NOT NULL,
			updated_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			id TEXT PRIMARY KEY,
			task_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at {ts} NOT NULL,
			locked_at {ts},
			processed_at {ts},
			next_retry_at {ts}
		)`,

		`CREATE INDEX IF NOT EXISTS idx_products_vendor_id ON products(vendor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_order_id ON inventory(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_vendor_id ON orders(vendor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role, registration_status)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_retry_at)`,
	}

	col := 0
	if db.driver == DriverPostgres {
		col = 1
	}
	for _, query := range queries {
		for placeholder, variants := range types {
			query = strings.ReplaceAll(query, placeholder, variants[col])
		}
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// q rewrites ? placeholders for drivers that use positional parameters.
func (db *DB) q(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
