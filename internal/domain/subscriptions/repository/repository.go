// Package repository provides database operations for subscriptions.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repositories use. pgxmock satisfies
// it too, so repository tests can run against an expectation-based pool.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Status represents the lifecycle state of a subscription
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusCanceled Status = "canceled"
)

// BillingCycle represents how often a subscription charges
type BillingCycle string

const (
	CycleDaily     BillingCycle = "daily"
	CycleWeekly    BillingCycle = "weekly"
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
	CycleCustom    BillingCycle = "custom"
)

// Subscription represents a recurring-subscription record
type Subscription struct {
	ID     uuid.UUID
	UserID uuid.UUID

	Name        string
	Provider    string
	Plan        string
	Description string

	AmountMinor   int64
	CurrencyCode  string
	BillingCycle  BillingCycle
	IntervalCount int

	StartDate       time.Time
	NextChargeDate  *time.Time
	LastChargedDate *time.Time
	EndDate         *time.Time

	Status    Status
	AutoRenew bool
	Archived  bool

	ReminderDaysBefore int
	Category           string
	Tags               []string

	// LastReminderSent is written only by the scheduler sweep.
	LastReminderSent *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubscriptionRepository defines the interface for subscription persistence
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUserID(ctx context.Context, userID uuid.UUID, statusFilter *Status, includeCanceled bool) ([]*Subscription, error)

	// Scheduler queries
	FindDueForReminder(ctx context.Context, userID uuid.UUID, now, windowEnd, reminderCutoff time.Time, limit int) ([]*Subscription, error)
	SumActiveAmountMinor(ctx context.Context, userID uuid.UUID) (int64, error)

	// StampReminderSent is a field-level update so the sweep cannot clobber a
	// concurrent user edit on other columns.
	StampReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}
