// Package repository provides database operations for users and their
// notification preferences.
package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Preference defaults.
const (
	DefaultReminderDaysBefore     = 3
	DefaultSpendingThresholdMinor = 500000 // 5000.00 in minor units
	DefaultCurrencyCode           = "INR"

	MinReminderDaysBefore = 1
	MaxReminderDaysBefore = 30
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// NotificationPrefs is the typed per-user notification configuration.
// Only the preferences update path and the scheduler (stamping
// LastSpendingAlertSent) mutate it.
type NotificationPrefs struct {
	RenewalReminders       bool
	ReminderDaysBefore     int
	SpendingAlerts         bool
	SpendingThresholdMinor int64
	CurrencyCode           string
	LastSpendingAlertSent  *time.Time
}

// DefaultPrefs returns the preferences applied to a new user.
func DefaultPrefs() NotificationPrefs {
	return NotificationPrefs{
		RenewalReminders:       true,
		ReminderDaysBefore:     DefaultReminderDaysBefore,
		SpendingAlerts:         true,
		SpendingThresholdMinor: DefaultSpendingThresholdMinor,
		CurrencyCode:           DefaultCurrencyCode,
	}
}

// Validate checks preference bounds at the update boundary.
func (p *NotificationPrefs) Validate() error {
	if p.ReminderDaysBefore < MinReminderDaysBefore || p.ReminderDaysBefore > MaxReminderDaysBefore {
		return fmt.Errorf("reminderDaysBefore must be between %d and %d", MinReminderDaysBefore, MaxReminderDaysBefore)
	}
	if p.SpendingThresholdMinor < 0 {
		return fmt.Errorf("spendingThreshold must be non-negative")
	}
	if !currencyCodeRe.MatchString(p.CurrencyCode) {
		return fmt.Errorf("currency must be a 3-letter ISO code")
	}
	return nil
}

// User is the notification-preferences view of an account. Auth fields live
// with the auth collaborator and are not loaded here.
type User struct {
	ID            uuid.UUID
	Email         string
	Name          string
	Notifications NotificationPrefs
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserRepository defines persistence for the preferences view
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListWithPreferences(ctx context.Context) ([]*User, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs NotificationPrefs) error

	// StampSpendingAlertSent performs a field-level update so it cannot race
	// with a concurrent preferences edit on other fields.
	StampSpendingAlertSent(ctx context.Context, userID uuid.UUID, at time.Time) error
}
