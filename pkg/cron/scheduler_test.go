package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	subsrepo "github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
	usersrepo "github.com/FACorreiaa/subscription-tracker/internal/domain/users/repository"
)

// fakeUsers implements usersrepo.UserRepository over a fixed slice.
type fakeUsers struct {
	users   []*usersrepo.User
	listErr error
	stamped map[uuid.UUID]time.Time
}

func newFakeUsers(users ...*usersrepo.User) *fakeUsers {
	return &fakeUsers{users: users, stamped: make(map[uuid.UUID]time.Time)}
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*usersrepo.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeUsers) ListWithPreferences(_ context.Context) ([]*usersrepo.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.users, nil
}

func (f *fakeUsers) UpdatePreferences(_ context.Context, _ uuid.UUID, _ usersrepo.NotificationPrefs) error {
	return nil
}

func (f *fakeUsers) StampSpendingAlertSent(_ context.Context, id uuid.UUID, at time.Time) error {
	f.stamped[id] = at
	for _, u := range f.users {
		if u.ID == id {
			stamp := at
			u.Notifications.LastSpendingAlertSent = &stamp
		}
	}
	return nil
}

// fakeSubs implements subsrepo.SubscriptionRepository with real reminder
// window filtering so at-most-once semantics are observable across sweeps.
type fakeSubs struct {
	subs    []*subsrepo.Subscription
	sums    map[uuid.UUID]int64
	findErr map[uuid.UUID]error
	sumErr  map[uuid.UUID]error
}

func newFakeSubs(subs ...*subsrepo.Subscription) *fakeSubs {
	return &fakeSubs{
		subs:    subs,
		sums:    make(map[uuid.UUID]int64),
		findErr: make(map[uuid.UUID]error),
		sumErr:  make(map[uuid.UUID]error),
	}
}

func (f *fakeSubs) Create(_ context.Context, _ *subsrepo.Subscription) error { return nil }
func (f *fakeSubs) Update(_ context.Context, _ *subsrepo.Subscription) error { return nil }
func (f *fakeSubs) Delete(_ context.Context, _ uuid.UUID) error              { return nil }

func (f *fakeSubs) GetByID(_ context.Context, id uuid.UUID) (*subsrepo.Subscription, error) {
	for _, s := range f.subs {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeSubs) ListByUserID(_ context.Context, _ uuid.UUID, _ *subsrepo.Status, _ bool) ([]*subsrepo.Subscription, error) {
	return f.subs, nil
}

func (f *fakeSubs) FindDueForReminder(_ context.Context, userID uuid.UUID, now, windowEnd, reminderCutoff time.Time, limit int) ([]*subsrepo.Subscription, error) {
	if err := f.findErr[userID]; err != nil {
		return nil, err
	}

	var due []*subsrepo.Subscription
	for _, s := range f.subs {
		if s.UserID != userID || s.Status != subsrepo.StatusActive || s.NextChargeDate == nil {
			continue
		}
		if s.NextChargeDate.Before(now) || s.NextChargeDate.After(windowEnd) {
			continue
		}
		if s.LastReminderSent != nil && !s.LastReminderSent.Before(reminderCutoff) {
			continue
		}
		due = append(due, s)
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (f *fakeSubs) SumActiveAmountMinor(_ context.Context, userID uuid.UUID) (int64, error) {
	if err := f.sumErr[userID]; err != nil {
		return 0, err
	}
	return f.sums[userID], nil
}

func (f *fakeSubs) StampReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	for _, s := range f.subs {
		if s.ID == id {
			stamp := at
			s.LastReminderSent = &stamp
		}
	}
	return nil
}

// recordingNotifier counts dispatches and can fail per user.
type recordingNotifier struct {
	reminders []uuid.UUID // subscription IDs
	alerts    []uuid.UUID // user IDs
	failFor   map[uuid.UUID]error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{failFor: make(map[uuid.UUID]error)}
}

func (n *recordingNotifier) RenewalReminder(_ context.Context, user *usersrepo.User, sub *subsrepo.Subscription) error {
	if err := n.failFor[user.ID]; err != nil {
		return err
	}
	n.reminders = append(n.reminders, sub.ID)
	return nil
}

func (n *recordingNotifier) SpendingAlert(_ context.Context, user *usersrepo.User, _ string, _, _ int64, _ string) error {
	if err := n.failFor[user.ID]; err != nil {
		return err
	}
	n.alerts = append(n.alerts, user.ID)
	return nil
}

func testUser(prefs usersrepo.NotificationPrefs) *usersrepo.User {
	return &usersrepo.User{
		ID:            uuid.New(),
		Email:         "ana@example.com",
		Name:          "Ana",
		Notifications: prefs,
	}
}

func activeSub(userID uuid.UUID, nextCharge time.Time) *subsrepo.Subscription {
	return &subsrepo.Subscription{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           "Netflix",
		AmountMinor:    64900,
		CurrencyCode:   "INR",
		BillingCycle:   subsrepo.CycleMonthly,
		IntervalCount:  1,
		Status:         subsrepo.StatusActive,
		NextChargeDate: &nextCharge,
	}
}

func newTestScheduler(users *fakeUsers, subs *fakeSubs, notifier Notifier, now time.Time) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewScheduler(users, subs, notifier, Config{}, logger)
	s.now = func() time.Time { return now }
	return s
}

func TestSweep_SendsAndStampsReminderOnce(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	user := testUser(usersrepo.DefaultPrefs())
	user.Notifications.SpendingAlerts = false

	sub := activeSub(user.ID, now.Add(48*time.Hour)) // inside the 3-day window
	users := newFakeUsers(user)
	subs := newFakeSubs(sub)
	notifier := newRecordingNotifier()

	s := newTestScheduler(users, subs, notifier, now)
	s.Sweep()

	require.Len(t, notifier.reminders, 1)
	assert.Equal(t, sub.ID, notifier.reminders[0])
	require.NotNil(t, sub.LastReminderSent)
	assert.True(t, now.Equal(*sub.LastReminderSent))

	// Second sweep inside the same window: nothing new goes out.
	s.Sweep()
	assert.Len(t, notifier.reminders, 1)
}

func TestSweep_SkipsSubscriptionsOutsideWindow(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	user := testUser(usersrepo.DefaultPrefs())
	user.Notifications.SpendingAlerts = false

	past := activeSub(user.ID, now.Add(-24*time.Hour))
	far := activeSub(user.ID, now.Add(10*24*time.Hour))
	users := newFakeUsers(user)
	subs := newFakeSubs(past, far)
	notifier := newRecordingNotifier()

	newTestScheduler(users, subs, notifier, now).Sweep()
	assert.Empty(t, notifier.reminders)
}

func TestSweep_HonorsReminderOptOut(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	prefs := usersrepo.DefaultPrefs()
	prefs.RenewalReminders = false
	prefs.SpendingAlerts = false
	user := testUser(prefs)

	subs := newFakeSubs(activeSub(user.ID, now.Add(24*time.Hour)))
	notifier := newRecordingNotifier()

	newTestScheduler(newFakeUsers(user), subs, notifier, now).Sweep()
	assert.Empty(t, notifier.reminders)
}

func TestSweep_StampsEvenWhenDispatchFails(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	user := testUser(usersrepo.DefaultPrefs())
	user.Notifications.SpendingAlerts = false

	sub := activeSub(user.ID, now.Add(24*time.Hour))
	subs := newFakeSubs(sub)
	notifier := newRecordingNotifier()
	notifier.failFor[user.ID] = errors.New("transport down")

	newTestScheduler(newFakeUsers(user), subs, notifier, now).Sweep()

	assert.Empty(t, notifier.reminders)
	require.NotNil(t, sub.LastReminderSent)
	assert.True(t, now.Equal(*sub.LastReminderSent))
}

func TestSweep_SpendingAlertOverThreshold(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	user := testUser(usersrepo.DefaultPrefs()) // threshold 500000
	user.Notifications.RenewalReminders = false

	subs := newFakeSubs()
	subs.sums[user.ID] = 520000
	users := newFakeUsers(user)
	notifier := newRecordingNotifier()

	newTestScheduler(users, subs, notifier, now).Sweep()

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, user.ID, notifier.alerts[0])
	assert.True(t, now.Equal(users.stamped[user.ID]))
}

func TestSweep_NoAlertForOrdinarySpendUnderDefaultThreshold(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	user := testUser(usersrepo.DefaultPrefs())

	// One typical subscription, 649.00 in minor units. The default threshold
	// is 5000.00 expressed in minor units, so no alert may fire.
	sub := activeSub(user.ID, now.Add(30*24*time.Hour))
	subs := newFakeSubs(sub)
	subs.sums[user.ID] = sub.AmountMinor
	notifier := newRecordingNotifier()

	newTestScheduler(newFakeUsers(user), subs, notifier, now).Sweep()
	assert.Empty(t, notifier.alerts)
}

func TestSweep_NoAlertAtOrBelowThreshold(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	user := testUser(usersrepo.DefaultPrefs())
	user.Notifications.RenewalReminders = false

	subs := newFakeSubs()
	subs.sums[user.ID] = 500000 // equal, not over
	notifier := newRecordingNotifier()

	newTestScheduler(newFakeUsers(user), subs, notifier, now).Sweep()
	assert.Empty(t, notifier.alerts)
}

func TestSweep_SpendingAlertCooldown(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		lastSent  time.Duration // how long ago
		wantAlert bool
	}{
		{"sent 10 days ago suppresses", 10 * 24 * time.Hour, false},
		{"sent 29 days ago suppresses", 29 * 24 * time.Hour, false},
		{"sent 31 days ago fires again", 31 * 24 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := usersrepo.DefaultPrefs()
			prefs.RenewalReminders = false
			last := now.Add(-tt.lastSent)
			prefs.LastSpendingAlertSent = &last
			user := testUser(prefs)

			subs := newFakeSubs()
			subs.sums[user.ID] = 999999
			notifier := newRecordingNotifier()

			newTestScheduler(newFakeUsers(user), subs, notifier, now).Sweep()

			if tt.wantAlert {
				assert.Len(t, notifier.alerts, 1)
			} else {
				assert.Empty(t, notifier.alerts)
			}
		})
	}
}

func TestSweep_SpendingAlertStampedAfterFailedDispatch(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	user := testUser(usersrepo.DefaultPrefs())
	user.Notifications.RenewalReminders = false

	subs := newFakeSubs()
	subs.sums[user.ID] = 999999
	users := newFakeUsers(user)
	notifier := newRecordingNotifier()
	notifier.failFor[user.ID] = errors.New("transport down")

	newTestScheduler(users, subs, notifier, now).Sweep()

	assert.Empty(t, notifier.alerts)
	assert.True(t, now.Equal(users.stamped[user.ID]))
}

func TestSweep_UserFailureDoesNotStopOthers(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

	broken := testUser(usersrepo.DefaultPrefs())
	broken.Notifications.SpendingAlerts = false
	healthy := testUser(usersrepo.DefaultPrefs())
	healthy.Notifications.SpendingAlerts = false

	sub := activeSub(healthy.ID, now.Add(24*time.Hour))
	subs := newFakeSubs(sub)
	subs.findErr[broken.ID] = errors.New("query timeout")

	notifier := newRecordingNotifier()
	newTestScheduler(newFakeUsers(broken, healthy), subs, notifier, now).Sweep()

	require.Len(t, notifier.reminders, 1)
	assert.Equal(t, sub.ID, notifier.reminders[0])
}

func TestSweep_ReminderAndAlertIndependent(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	user := testUser(usersrepo.DefaultPrefs())

	sub := activeSub(user.ID, now.Add(24*time.Hour))
	subs := newFakeSubs(sub)
	subs.findErr[user.ID] = errors.New("query timeout")
	subs.sums[user.ID] = 999999

	notifier := newRecordingNotifier()
	newTestScheduler(newFakeUsers(user), subs, notifier, now).Sweep()

	// The reminder check failed but the spending alert still went out.
	assert.Empty(t, notifier.reminders)
	assert.Len(t, notifier.alerts, 1)
}

func TestSweep_ListUsersFailure(t *testing.T) {
	users := newFakeUsers()
	users.listErr = errors.New("db down")
	notifier := newRecordingNotifier()

	s := newTestScheduler(users, newFakeSubs(), notifier, time.Now())
	s.Sweep() // must not panic

	assert.Empty(t, notifier.reminders)
	assert.Empty(t, notifier.alerts)
}

func TestSweep_StopSkipsRemainingUsers(t *testing.T) {
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	a := testUser(usersrepo.DefaultPrefs())
	b := testUser(usersrepo.DefaultPrefs())

	notifier := newRecordingNotifier()
	s := newTestScheduler(newFakeUsers(a, b), newFakeSubs(), notifier, now)
	s.Stop()
	s.Sweep()

	assert.Empty(t, notifier.alerts)
}

func TestSchedulerConfigDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewScheduler(newFakeUsers(), newFakeSubs(), newRecordingNotifier(), Config{}, logger)

	assert.Equal(t, 12*time.Hour, s.cfg.SweepInterval)
	assert.Equal(t, 15*time.Second, s.cfg.DispatchTimeout)
	assert.Equal(t, 50, s.cfg.RemindersPerUser)
}
