// Package service provides business logic for subscription records: creation
// defaults, validation, lifecycle transitions and derived cost figures.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
	usersrepo "github.com/FACorreiaa/subscription-tracker/internal/domain/users/repository"
	"github.com/FACorreiaa/subscription-tracker/pkg/money"
)

var (
	// ErrValidation wraps all record validation failures.
	ErrValidation = errors.New("subscription validation failed")

	// ErrCanceled is returned when a transition is attempted on a canceled
	// subscription. Canceled is terminal.
	ErrCanceled = errors.New("subscription is canceled")
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// notifyTimeout bounds each best-effort notification call.
const notifyTimeout = 15 * time.Second

// Notifier is the slice of the notification dispatcher the lifecycle methods
// use. Dispatch failures are logged here and never surfaced to callers.
type Notifier interface {
	SubscriptionUpdated(ctx context.Context, user *usersrepo.User, sub *repository.Subscription, changed map[string]string) error
	SubscriptionDeleted(ctx context.Context, user *usersrepo.User, subName string) error
}

// CategoryResolver supplies a default category when the caller omits one.
type CategoryResolver interface {
	Resolve(name, provider string) string
}

// CostBreakdown carries the derived cost figures of a subscription. Computed
// on demand, never persisted.
type CostBreakdown struct {
	AnnualCostMinor          int64
	AmountReferenceMinor     int64
	AnnualCostReferenceMinor int64
}

// Service provides subscription management business logic
type Service struct {
	repo       repository.SubscriptionRepository
	users      usersrepo.UserRepository
	categories CategoryResolver
	notifier   Notifier
	logger     *slog.Logger
}

// NewService creates a new subscriptions service
func NewService(repo repository.SubscriptionRepository, users usersrepo.UserRepository, categories CategoryResolver, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		users:      users,
		categories: categories,
		notifier:   notifier,
		logger:     logger,
	}
}

// ListSubscriptions retrieves all subscriptions for a user
func (s *Service) ListSubscriptions(ctx context.Context, userID uuid.UUID, statusFilter *repository.Status, includeCanceled bool) ([]*repository.Subscription, error) {
	return s.repo.ListByUserID(ctx, userID, statusFilter, includeCanceled)
}

// GetSubscription retrieves a subscription owned by the given user
func (s *Service) GetSubscription(ctx context.Context, userID, id uuid.UUID) (*repository.Subscription, error) {
	return s.getOwned(ctx, userID, id)
}

// CreateSubscription applies defaults, validates and persists a new record.
// NextChargeDate is derived from StartDate/BillingCycle/IntervalCount when the
// caller does not supply it, and the category is auto-resolved when empty.
func (s *Service) CreateSubscription(ctx context.Context, sub *repository.Subscription) (*repository.Subscription, error) {
	applyDefaults(sub)

	if sub.Category == "" && s.categories != nil {
		sub.Category = s.categories.Resolve(sub.Name, sub.Provider)
	}

	if err := validate(sub); err != nil {
		return nil, err
	}

	if sub.NextChargeDate == nil {
		next := ComputeNextChargeDate(sub.StartDate, sub.BillingCycle, sub.IntervalCount)
		sub.NextChargeDate = &next
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// UpdateSubscription persists billing-field changes and sends a best-effort
// update notification. Notification failure never fails the update.
func (s *Service) UpdateSubscription(ctx context.Context, userID uuid.UUID, in *repository.Subscription) (*repository.Subscription, error) {
	existing, err := s.getOwned(ctx, userID, in.ID)
	if err != nil {
		return nil, err
	}

	changed := diffBillingFields(existing, in)

	updated := *existing
	updated.Name = in.Name
	updated.Provider = in.Provider
	updated.Plan = in.Plan
	updated.Description = in.Description
	updated.AmountMinor = in.AmountMinor
	updated.CurrencyCode = in.CurrencyCode
	updated.BillingCycle = in.BillingCycle
	updated.IntervalCount = in.IntervalCount
	updated.StartDate = in.StartDate
	updated.NextChargeDate = in.NextChargeDate
	updated.LastChargedDate = in.LastChargedDate
	updated.AutoRenew = in.AutoRenew
	updated.Archived = in.Archived
	updated.ReminderDaysBefore = in.ReminderDaysBefore
	updated.Category = in.Category
	updated.Tags = in.Tags

	if err := validate(&updated); err != nil {
		return nil, err
	}

	if updated.NextChargeDate == nil {
		next := ComputeNextChargeDate(updated.StartDate, updated.BillingCycle, updated.IntervalCount)
		updated.NextChargeDate = &next
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	if len(changed) > 0 {
		s.notifyUpdated(&updated, changed)
	}
	return &updated, nil
}

// DeleteSubscription removes a record and sends a best-effort deletion notice
func (s *Service) DeleteSubscription(ctx context.Context, userID, id uuid.UUID) error {
	existing, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.notifyDeleted(existing.UserID, existing.Name)
	return nil
}

// Pause transitions an active subscription to paused and disables auto-renew
func (s *Service) Pause(ctx context.Context, userID, id uuid.UUID) (*repository.Subscription, error) {
	sub, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == repository.StatusCanceled {
		return nil, ErrCanceled
	}

	sub.Status = repository.StatusPaused
	sub.AutoRenew = false

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Resume transitions a paused subscription back to active, re-enabling
// auto-renew and recomputing the next charge date from now when it is unset.
func (s *Service) Resume(ctx context.Context, userID, id uuid.UUID) (*repository.Subscription, error) {
	sub, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == repository.StatusCanceled {
		return nil, ErrCanceled
	}

	sub.Status = repository.StatusActive
	sub.AutoRenew = true
	if sub.NextChargeDate == nil {
		next := ComputeNextChargeDate(time.Now(), sub.BillingCycle, sub.IntervalCount)
		sub.NextChargeDate = &next
	}

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Cancel terminally cancels a subscription: status, auto-renew off, end date
// stamped. Canceling an already-canceled record is a no-op.
func (s *Service) Cancel(ctx context.Context, userID, id uuid.UUID) (*repository.Subscription, error) {
	sub, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == repository.StatusCanceled {
		return sub, nil
	}

	now := time.Now()
	sub.Status = repository.StatusCanceled
	sub.AutoRenew = false
	sub.EndDate = &now

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Costs computes the derived cost figures for a subscription
func (s *Service) Costs(sub *repository.Subscription) CostBreakdown {
	annual := AnnualCostMinor(sub)
	return CostBreakdown{
		AnnualCostMinor:          annual,
		AmountReferenceMinor:     money.ToReferenceMinor(sub.AmountMinor, sub.CurrencyCode),
		AnnualCostReferenceMinor: money.ToReferenceMinor(annual, sub.CurrencyCode),
	}
}

// TotalActiveAmountMinor sums the raw amount of a user's active
// subscriptions, as compared against the spending threshold.
func (s *Service) TotalActiveAmountMinor(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.SumActiveAmountMinor(ctx, userID)
}

// AnnualSpendReferenceMinor sums annualized active subscription cost
// normalized into the reference currency.
func (s *Service) AnnualSpendReferenceMinor(ctx context.Context, userID uuid.UUID) (int64, error) {
	status := repository.StatusActive
	subs, err := s.repo.ListByUserID(ctx, userID, &status, false)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, sub := range subs {
		total += money.ToReferenceMinor(AnnualCostMinor(sub), sub.CurrencyCode)
	}
	return total, nil
}

func (s *Service) getOwned(ctx context.Context, userID, id uuid.UUID) (*repository.Subscription, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return sub, nil
}

func applyDefaults(sub *repository.Subscription) {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.Status == "" {
		sub.Status = repository.StatusActive
		sub.AutoRenew = true
	}
	if sub.BillingCycle == "" {
		sub.BillingCycle = repository.CycleMonthly
	}
	if sub.IntervalCount == 0 {
		sub.IntervalCount = 1
	}
	if sub.CurrencyCode == "" {
		sub.CurrencyCode = money.ReferenceCurrency
	}
	if sub.StartDate.IsZero() {
		sub.StartDate = time.Now()
	}
	if sub.ReminderDaysBefore == 0 {
		sub.ReminderDaysBefore = usersrepo.DefaultReminderDaysBefore
	}
}

func validate(sub *repository.Subscription) error {
	if strings.TrimSpace(sub.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if sub.AmountMinor < 0 {
		return fmt.Errorf("%w: amount must be non-negative", ErrValidation)
	}

	sub.CurrencyCode = strings.ToUpper(strings.TrimSpace(sub.CurrencyCode))
	if !currencyCodeRe.MatchString(sub.CurrencyCode) {
		return fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrValidation)
	}

	if sub.IntervalCount < 1 {
		return fmt.Errorf("%w: intervalCount must be at least 1", ErrValidation)
	}
	if sub.ReminderDaysBefore < 0 || sub.ReminderDaysBefore > 365 {
		return fmt.Errorf("%w: reminderDaysBefore must be between 0 and 365", ErrValidation)
	}
	return nil
}

// diffBillingFields reports human-readable changes to billing-relevant fields
func diffBillingFields(old, upd *repository.Subscription) map[string]string {
	changed := make(map[string]string)
	if old.Name != upd.Name {
		changed["name"] = upd.Name
	}
	if old.Provider != upd.Provider {
		changed["provider"] = upd.Provider
	}
	if old.Plan != upd.Plan {
		changed["plan"] = upd.Plan
	}
	if old.AmountMinor != upd.AmountMinor {
		changed["amount"] = money.New(upd.AmountMinor, upd.CurrencyCode).String()
	}
	if old.CurrencyCode != upd.CurrencyCode {
		changed["currency"] = upd.CurrencyCode
	}
	if old.BillingCycle != upd.BillingCycle {
		changed["billingCycle"] = string(upd.BillingCycle)
	}
	if old.IntervalCount != upd.IntervalCount {
		changed["intervalCount"] = fmt.Sprintf("%d", upd.IntervalCount)
	}
	return changed
}

func (s *Service) notifyUpdated(sub *repository.Subscription, changed map[string]string) {
	if s.notifier == nil || s.users == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	user, err := s.users.GetByID(ctx, sub.UserID)
	if err != nil {
		s.logger.Warn("failed to load user for update notification",
			slog.String("user_id", sub.UserID.String()),
			slog.Any("error", err),
		)
		return
	}

	if err := s.notifier.SubscriptionUpdated(ctx, user, sub, changed); err != nil {
		s.logger.Warn("failed to send subscription update notification",
			slog.String("subscription_id", sub.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (s *Service) notifyDeleted(userID uuid.UUID, subName string) {
	if s.notifier == nil || s.users == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load user for delete notification",
			slog.String("user_id", userID.String()),
			slog.Any("error", err),
		)
		return
	}

	if err := s.notifier.SubscriptionDeleted(ctx, user, subName); err != nil {
		s.logger.Warn("failed to send subscription delete notification",
			slog.String("subscription", subName),
			slog.Any("error", err),
		)
	}
}
