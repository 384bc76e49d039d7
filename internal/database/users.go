package database

import (
	"context"
	"fmt"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"
)

const userColumns = `uid, email, display_name, role, phone_number, business_name,
	registration_status, verified, telegram_chat_id, created_at, updated_at`

func (db *DB) GetUser(ctx context.Context, uid string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = ?`
	user, err := scanUser(db.QueryRowContext(ctx, db.q(query), uid))
	if isNoRows(err) {
		return nil, domain.NotFound("user", uid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}

	query := `INSERT INTO users (` + userColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(uid) DO UPDATE SET
				email = excluded.email,
				display_name = excluded.display_name,
				role = excluded.role,
				phone_number = excluded.phone_number,
				business_name = excluded.business_name,
				registration_status = excluded.registration_status,
				verified = excluded.verified,
				telegram_chat_id = excluded.telegram_chat_id,
				updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, db.q(query),
		user.UID, user.Email, user.DisplayName, user.Role, user.PhoneNumber, user.BusinessName,
		user.RegistrationStatus, user.Verified, user.TelegramChatID, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// ListVendors returns vendors, optionally narrowed to one registration status.
func (db *DB) ListVendors(ctx context.Context, registrationStatus string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = ?`
	args := []any{models.RoleVendor}
	if registrationStatus != "" {
		query += ` AND registration_status = ?`
		args = append(args, registrationStatus)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) SetVendorApproval(ctx context.Context, uid, registrationStatus string, verified bool) error {
	query := `UPDATE users SET registration_status = ?, verified = ?, updated_at = ? WHERE uid = ? AND role = ?`
	result, err := db.ExecContext(ctx, db.q(query), registrationStatus, verified, time.Now().UTC(), uid, models.RoleVendor)
	if err != nil {
		return fmt.Errorf("failed to set vendor approval: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("vendor", uid)
	}
	return nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.UID, &u.Email, &u.DisplayName, &u.Role, &u.PhoneNumber, &u.BusinessName,
		&u.RegistrationStatus, &u.Verified, &u.TelegramChatID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
