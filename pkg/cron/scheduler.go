// Package cron runs the periodic notification sweep using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	subsrepo "github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
	usersrepo "github.com/FACorreiaa/subscription-tracker/internal/domain/users/repository"
	"github.com/FACorreiaa/subscription-tracker/pkg/metrics"
)

const (
	// sweepTimeout bounds a whole sweep across all users.
	sweepTimeout = 30 * time.Minute

	// spendingAlertCooldown is the at-most-once-per-month guard for alerts.
	spendingAlertCooldown = 30 * 24 * time.Hour
)

// Notifier is the slice of the dispatcher the sweep uses.
type Notifier interface {
	RenewalReminder(ctx context.Context, user *usersrepo.User, sub *subsrepo.Subscription) error
	SpendingAlert(ctx context.Context, user *usersrepo.User, period string, totalMinor, thresholdMinor int64, currencyCode string) error
}

// Config tunes the sweep.
type Config struct {
	// SweepInterval is the wall-clock period between sweeps.
	SweepInterval time.Duration
	// DispatchTimeout bounds each individual mail dispatch so one hung
	// transport call cannot stall subsequent users.
	DispatchTimeout time.Duration
	// RemindersPerUser caps subscriptions considered per user per tick.
	RemindersPerUser int
}

// Scheduler manages the recurring reminder/alert sweep. Collaborators are
// injected; there is no process-global state.
type Scheduler struct {
	cron     *cron.Cron
	users    usersrepo.UserRepository
	subs     subsrepo.SubscriptionRepository
	notifier Notifier
	logger   *slog.Logger
	cfg      Config

	// now is swappable in tests.
	now func() time.Time

	quit chan struct{}
}

// NewScheduler creates a sweep scheduler.
func NewScheduler(users usersrepo.UserRepository, subs subsrepo.SubscriptionRepository, notifier Notifier, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 12 * time.Hour
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 15 * time.Second
	}
	if cfg.RemindersPerUser <= 0 {
		cfg.RemindersPerUser = 50
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		users:    users,
		subs:     subs,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		quit:     make(chan struct{}),
	}
}

// Start begins the recurring sweep.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.SweepInterval), s.Sweep)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("notification scheduler started",
		slog.Duration("interval", s.cfg.SweepInterval),
	)
	return nil
}

// Stop requests a graceful shutdown: the in-flight user finishes, remaining
// users are skipped, and the returned context is done once jobs drain.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("notification scheduler stopping")
	close(s.quit)
	return s.cron.Stop()
}

// RunNow manually triggers a sweep (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.Sweep()
}

// Sweep walks every user and dispatches due renewal reminders and spending
// alerts. Failures are isolated per user; the sweep itself never panics the
// host process.
func (s *Scheduler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	now := s.now()
	s.logger.Info("starting notification sweep")

	users, err := s.users.ListWithPreferences(ctx)
	if err != nil {
		s.logger.Error("failed to list users for sweep", slog.Any("error", err))
		return
	}

	var reminders, alerts, failed int
	for _, user := range users {
		select {
		case <-s.quit:
			s.logger.Info("sweep interrupted by shutdown",
				slog.Int("reminders_sent", reminders),
				slog.Int("alerts_sent", alerts),
			)
			return
		default:
		}

		r, a, err := s.processUser(ctx, user, now)
		reminders += r
		alerts += a
		if err != nil {
			failed++
			metrics.SweepUserFailuresTotal.Inc()
			s.logger.Warn("failed to process user during sweep",
				slog.String("user_id", user.ID.String()),
				slog.Any("error", err),
			)
		}
	}

	metrics.SweepsTotal.Inc()
	s.logger.Info("notification sweep completed",
		slog.Int("users", len(users)),
		slog.Int("reminders_sent", reminders),
		slog.Int("alerts_sent", alerts),
		slog.Int("users_failed", failed),
	)
}

// processUser runs the two independent checks for one user. A failure in one
// check does not prevent the other; the first error is reported for logging.
func (s *Scheduler) processUser(ctx context.Context, user *usersrepo.User, now time.Time) (reminders, alerts int, firstErr error) {
	reminders, err := s.sendDueReminders(ctx, user, now)
	if err != nil {
		firstErr = err
	}

	alerts, err = s.sendSpendingAlert(ctx, user, now)
	if err != nil && firstErr == nil {
		firstErr = err
	}
	return reminders, alerts, firstErr
}

// sendDueReminders dispatches renewal reminders for subscriptions charging
// inside the user's reminder window, at most once per window.
func (s *Scheduler) sendDueReminders(ctx context.Context, user *usersrepo.User, now time.Time) (int, error) {
	prefs := user.Notifications
	if !prefs.RenewalReminders {
		return 0, nil
	}

	days := prefs.ReminderDaysBefore
	if days <= 0 {
		days = usersrepo.DefaultReminderDaysBefore
	}

	window := time.Duration(days) * 24 * time.Hour
	windowEnd := now.Add(window)
	reminderCutoff := now.Add(-window)

	due, err := s.subs.FindDueForReminder(ctx, user.ID, now, windowEnd, reminderCutoff, s.cfg.RemindersPerUser)
	if err != nil {
		return 0, fmt.Errorf("failed to find due subscriptions: %w", err)
	}

	sent := 0
	for _, sub := range due {
		if s.dispatchReminder(ctx, user, sub) {
			sent++
		}

		// Stamp after the dispatch attempt regardless of outcome:
		// at-most-once-per-window semantics, not guaranteed delivery.
		if err := s.subs.StampReminderSent(ctx, sub.ID, now); err != nil {
			s.logger.Warn("failed to stamp reminder sent",
				slog.String("subscription_id", sub.ID.String()),
				slog.Any("error", err),
			)
		}
	}
	return sent, nil
}

func (s *Scheduler) dispatchReminder(ctx context.Context, user *usersrepo.User, sub *subsrepo.Subscription) bool {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()

	if err := s.notifier.RenewalReminder(dctx, user, sub); err != nil {
		s.logger.Warn("failed to dispatch renewal reminder",
			slog.String("subscription_id", sub.ID.String()),
			slog.Any("error", err),
		)
		return false
	}

	metrics.RemindersSentTotal.Inc()
	return true
}

// sendSpendingAlert dispatches at most one spending alert per 30 days when
// the user's active subscription total exceeds their threshold.
func (s *Scheduler) sendSpendingAlert(ctx context.Context, user *usersrepo.User, now time.Time) (int, error) {
	prefs := user.Notifications
	if !prefs.SpendingAlerts {
		return 0, nil
	}

	if last := prefs.LastSpendingAlertSent; last != nil && now.Sub(*last) < spendingAlertCooldown {
		return 0, nil
	}

	total, err := s.subs.SumActiveAmountMinor(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum active subscriptions: %w", err)
	}

	if total <= prefs.SpendingThresholdMinor {
		return 0, nil
	}

	currency := prefs.CurrencyCode
	if currency == "" {
		currency = usersrepo.DefaultCurrencyCode
	}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()

	sent := 0
	if err := s.notifier.SpendingAlert(dctx, user, "monthly", total, prefs.SpendingThresholdMinor, currency); err != nil {
		s.logger.Warn("failed to dispatch spending alert",
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err),
		)
	} else {
		metrics.SpendingAlertsSentTotal.Inc()
		sent = 1
	}

	// Same at-most-once policy as reminders: stamp after the attempt.
	if err := s.users.StampSpendingAlertSent(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to stamp spending alert sent",
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err),
		)
	}
	return sent, nil
}
