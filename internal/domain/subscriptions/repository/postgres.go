package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `id, user_id, name, provider, plan, description,
	amount_minor, currency_code, billing_cycle, interval_count,
	start_date, next_charge_date, last_charged_date, end_date,
	status, auto_renew, archived, reminder_days_before, category, tags,
	last_reminder_sent, created_at, updated_at`

// PostgresSubscriptionRepository implements SubscriptionRepository using PostgreSQL
type PostgresSubscriptionRepository struct {
	db DB
}

// NewPostgresSubscriptionRepository creates a new PostgreSQL subscription repository
func NewPostgresSubscriptionRepository(db DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	sub := &Subscription{}
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Name,
		&sub.Provider,
		&sub.Plan,
		&sub.Description,
		&sub.AmountMinor,
		&sub.CurrencyCode,
		&sub.BillingCycle,
		&sub.IntervalCount,
		&sub.StartDate,
		&sub.NextChargeDate,
		&sub.LastChargedDate,
		&sub.EndDate,
		&sub.Status,
		&sub.AutoRenew,
		&sub.Archived,
		&sub.ReminderDaysBefore,
		&sub.Category,
		&sub.Tags,
		&sub.LastReminderSent,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Create inserts a new subscription
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, name, provider, plan, description,
			amount_minor, currency_code, billing_cycle, interval_count,
			start_date, next_charge_date, last_charged_date, end_date,
			status, auto_renew, archived, reminder_days_before, category, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at, updated_at`

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Name,
		sub.Provider,
		sub.Plan,
		sub.Description,
		sub.AmountMinor,
		sub.CurrencyCode,
		sub.BillingCycle,
		sub.IntervalCount,
		sub.StartDate,
		sub.NextChargeDate,
		sub.LastChargedDate,
		sub.EndDate,
		sub.Status,
		sub.AutoRenew,
		sub.Archived,
		sub.ReminderDaysBefore,
		sub.Category,
		sub.Tags,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription by ID
func (r *PostgresSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// Update updates an existing subscription
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, sub *Subscription) error {
	query := `
		UPDATE subscriptions
		SET name = $2, provider = $3, plan = $4, description = $5,
			amount_minor = $6, currency_code = $7, billing_cycle = $8, interval_count = $9,
			start_date = $10, next_charge_date = $11, last_charged_date = $12, end_date = $13,
			status = $14, auto_renew = $15, archived = $16, reminder_days_before = $17,
			category = $18, tags = $19, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		sub.ID,
		sub.Name,
		sub.Provider,
		sub.Plan,
		sub.Description,
		sub.AmountMinor,
		sub.CurrencyCode,
		sub.BillingCycle,
		sub.IntervalCount,
		sub.StartDate,
		sub.NextChargeDate,
		sub.LastChargedDate,
		sub.EndDate,
		sub.Status,
		sub.AutoRenew,
		sub.Archived,
		sub.ReminderDaysBefore,
		sub.Category,
		sub.Tags,
	).Scan(&sub.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// Delete removes a subscription
func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM subscriptions WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByUserID retrieves all subscriptions for a user
func (r *PostgresSubscriptionRepository) ListByUserID(ctx context.Context, userID uuid.UUID, statusFilter *Status, includeCanceled bool) ([]*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`

	args := []interface{}{userID}

	if statusFilter != nil {
		query += ` AND status = $2`
		args = append(args, *statusFilter)
	} else if !includeCanceled {
		query += ` AND status != 'canceled'`
	}

	query += ` ORDER BY next_charge_date ASC NULLS LAST`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// FindDueForReminder selects active subscriptions charging inside the
// reminder window that have not been reminded within the current window.
func (r *PostgresSubscriptionRepository) FindDueForReminder(ctx context.Context, userID uuid.UUID, now, windowEnd, reminderCutoff time.Time, limit int) ([]*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
			AND status = 'active'
			AND next_charge_date >= $2
			AND next_charge_date <= $3
			AND (last_reminder_sent IS NULL OR last_reminder_sent < $4)
		ORDER BY next_charge_date ASC
		LIMIT $5`

	rows, err := r.db.Query(ctx, query, userID, now, windowEnd, reminderCutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find due subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SumActiveAmountMinor sums the raw amount of a user's active subscriptions
func (r *PostgresSubscriptionRepository) SumActiveAmountMinor(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount_minor), 0)
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'`

	var total int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum active subscriptions: %w", err)
	}
	return total, nil
}

// StampReminderSent records when the last reminder for a subscription went out
func (r *PostgresSubscriptionRepository) StampReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE subscriptions SET last_reminder_sent = $2 WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to stamp reminder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}
