package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool this repository uses; pgxmock satisfies
// it for tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db DB
}

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(db DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, email, name, renewal_reminders, reminder_days_before,
	spending_alerts, spending_threshold_minor, currency_code,
	last_spending_alert_sent, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Notifications.RenewalReminders,
		&u.Notifications.ReminderDaysBefore,
		&u.Notifications.SpendingAlerts,
		&u.Notifications.SpendingThresholdMinor,
		&u.Notifications.CurrencyCode,
		&u.Notifications.LastSpendingAlertSent,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListWithPreferences retrieves every user together with their notification
// preferences, for the scheduler sweep.
func (r *PostgresUserRepository) ListWithPreferences(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdatePreferences replaces the notification preferences for a user
func (r *PostgresUserRepository) UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs NotificationPrefs) error {
	if err := prefs.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE users
		SET renewal_reminders = $2, reminder_days_before = $3, spending_alerts = $4,
			spending_threshold_minor = $5, currency_code = $6, updated_at = now()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		userID,
		prefs.RenewalReminders,
		prefs.ReminderDaysBefore,
		prefs.SpendingAlerts,
		prefs.SpendingThresholdMinor,
		prefs.CurrencyCode,
	)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// StampSpendingAlertSent records when the last spending alert went out
func (r *PostgresUserRepository) StampSpendingAlertSent(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `UPDATE users SET last_spending_alert_sent = $2 WHERE id = $1`
	result, err := r.db.Exec(ctx, query, userID, at)
	if err != nil {
		return fmt.Errorf("failed to stamp spending alert: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}
