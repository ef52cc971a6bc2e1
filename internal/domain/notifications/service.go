// Package notifications formats and dispatches user-facing notification
// emails. Every method returns an explicit error; callers that treat dispatch
// as best-effort log and ignore it at their own call site, keeping the
// failure-swallowing policy visible instead of implicit.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	subsrepo "github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
	subsservice "github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/service"
	usersrepo "github.com/FACorreiaa/subscription-tracker/internal/domain/users/repository"
	"github.com/FACorreiaa/subscription-tracker/pkg/mailer"
	"github.com/FACorreiaa/subscription-tracker/pkg/money"
)

// ErrNoAdminRecipient is returned by the admin notification methods when no
// admin email address is configured.
var ErrNoAdminRecipient = errors.New("notifications: no admin recipient configured")

// Service formats notifications and hands them to the mail transport.
type Service struct {
	mail       mailer.Mailer
	adminEmail string
	logger     *slog.Logger
}

// NewService creates a notification dispatcher
func NewService(mail mailer.Mailer, adminEmail string, logger *slog.Logger) *Service {
	return &Service{
		mail:       mail,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

// Enabled reports whether the underlying transport can deliver mail.
func (s *Service) Enabled() bool {
	return s.mail.Enabled()
}

// RenewalReminder notifies a user that a subscription renews soon.
func (s *Service) RenewalReminder(ctx context.Context, user *usersrepo.User, sub *subsrepo.Subscription) error {
	if sub.NextChargeDate == nil {
		return fmt.Errorf("subscription %s has no next charge date", sub.ID)
	}

	renewsOn := sub.NextChargeDate.Format("Mon Jan 2 2006")
	amount := money.New(sub.AmountMinor, sub.CurrencyCode)

	subject := fmt.Sprintf("Reminder: %s renews on %s", sub.Name, renewsOn)
	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Your subscription <b>%s</b> (%s) will renew on <b>%s</b>.</p>
<p>Amount: <b>%s %s</b>, billed %s.</p>`,
		user.Name, sub.Name, planLabel(sub), renewsOn,
		amount.String(), sub.CurrencyCode,
		subsservice.DescribeCycle(sub.BillingCycle),
	)
	text := fmt.Sprintf(
		"Hi %s,\n\nYour subscription %s (%s) will renew on %s.\nAmount: %s %s, billed %s.\n",
		user.Name, sub.Name, planLabel(sub), renewsOn,
		amount.String(), sub.CurrencyCode,
		subsservice.DescribeCycle(sub.BillingCycle),
	)

	return s.send(ctx, user.Email, subject, html, text)
}

// SpendingAlert notifies a user that their subscription spend for a period
// exceeded their threshold. Callers only invoke it when total > threshold.
func (s *Service) SpendingAlert(ctx context.Context, user *usersrepo.User, period string, totalMinor, thresholdMinor int64, currencyCode string) error {
	total := money.New(totalMinor, currencyCode)
	threshold := money.New(thresholdMinor, currencyCode)

	subject := fmt.Sprintf("Spending alert: %s total %s %s", period, total.String(), currencyCode)
	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Your subscriptions total <b>%s %s</b> for %s, which exceeds your threshold of <b>%s %s</b>.</p>`,
		user.Name, total.String(), currencyCode, period, threshold.String(), currencyCode,
	)
	text := fmt.Sprintf(
		"Hi %s,\n\nYour subscriptions total %s %s for %s, which exceeds your threshold of %s %s.\n",
		user.Name, total.String(), currencyCode, period, threshold.String(), currencyCode,
	)

	return s.send(ctx, user.Email, subject, html, text)
}

// SubscriptionUpdated notifies a user that billing-relevant fields changed.
func (s *Service) SubscriptionUpdated(ctx context.Context, user *usersrepo.User, sub *subsrepo.Subscription, changed map[string]string) error {
	subject := fmt.Sprintf("%s subscription updated", sub.Name)

	keys := make([]string, 0, len(changed))
	for k := range changed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, changed[k]))
	}

	html := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your subscription <b>%s</b> was updated.</p><p>%s</p>`,
		user.Name, sub.Name, strings.Join(lines, "<br/>"),
	)
	text := fmt.Sprintf(
		"Hi %s,\n\nYour subscription %s was updated.\n%s\n",
		user.Name, sub.Name, strings.Join(lines, "\n"),
	)

	return s.send(ctx, user.Email, subject, html, text)
}

// SubscriptionDeleted notifies a user that a subscription was removed.
func (s *Service) SubscriptionDeleted(ctx context.Context, user *usersrepo.User, subName string) error {
	subject := fmt.Sprintf("%s subscription deleted", subName)
	html := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your subscription <b>%s</b> has been removed.</p>`,
		user.Name, subName,
	)
	text := fmt.Sprintf("Hi %s,\n\nYour subscription %s has been removed.\n", user.Name, subName)

	return s.send(ctx, user.Email, subject, html, text)
}

// AdminNewUser notifies the configured admin address about a registration.
func (s *Service) AdminNewUser(ctx context.Context, user *usersrepo.User) error {
	if s.adminEmail == "" {
		return ErrNoAdminRecipient
	}

	subject := fmt.Sprintf("New user registered: %s", user.Email)
	html := fmt.Sprintf(`<p>Name: %s</p><p>Email: %s</p>`, user.Name, user.Email)
	text := fmt.Sprintf("Name: %s\nEmail: %s\n", user.Name, user.Email)

	return s.send(ctx, s.adminEmail, subject, html, text)
}

// AdminSupportMessage notifies the configured admin address about a new
// support-ticket message.
func (s *Service) AdminSupportMessage(ctx context.Context, ticketID, subject, body string) error {
	if s.adminEmail == "" {
		return ErrNoAdminRecipient
	}

	mailSubject := fmt.Sprintf("Support ticket %s: %s", ticketID, subject)
	html := fmt.Sprintf(`<p>Ticket: %s</p><p>%s</p>`, ticketID, body)
	text := fmt.Sprintf("Ticket: %s\n\n%s\n", ticketID, body)

	return s.send(ctx, s.adminEmail, mailSubject, html, text)
}

func (s *Service) send(ctx context.Context, to, subject, html, text string) error {
	err := s.mail.Send(ctx, &mailer.Email{
		To:      to,
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("failed to dispatch %q: %w", subject, err)
	}

	s.logger.Debug("notification dispatched",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}

func planLabel(sub *subsrepo.Subscription) string {
	if sub.Plan != "" {
		return sub.Plan
	}
	return "standard plan"
}
