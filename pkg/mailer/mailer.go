// Package mailer wraps the Resend API as the outbound mail transport.
// A missing API key puts the service into a disabled state where every send
// fails with ErrNotConfigured instead of preventing startup.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ErrNotConfigured is returned by Send when no Resend API key was provided.
var ErrNotConfigured = errors.New("mailer: transport not configured")

// Email is a single outbound message.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends email. Implemented by Service; test doubles implement it in
// package tests.
type Mailer interface {
	Send(ctx context.Context, email *Email) error
	Enabled() bool
}

// Service sends email through Resend.
type Service struct {
	client    *resend.Client
	fromEmail string
	logger    *slog.Logger
}

// NewService creates a mail service. An empty apiKey yields a disabled
// service.
func NewService(apiKey, fromEmail string, logger *slog.Logger) *Service {
	var client *resend.Client
	if apiKey != "" {
		client = resend.NewClient(apiKey)
	} else {
		logger.Warn("resend client not configured, outbound mail disabled")
	}

	return &Service{
		client:    client,
		fromEmail: fromEmail,
		logger:    logger,
	}
}

// Enabled reports whether a transport is configured.
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Send delivers a single email. Returns ErrNotConfigured when the transport
// is disabled.
func (s *Service) Send(ctx context.Context, email *Email) error {
	if s.client == nil {
		s.logger.Debug("mail send skipped, transport disabled",
			slog.String("to", email.To),
			slog.String("subject", email.Subject),
		)
		return ErrNotConfigured
	}

	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
