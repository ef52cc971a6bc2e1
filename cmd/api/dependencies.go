package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/categorization"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/notifications"
	subsrepo "github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
	subsservice "github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/service"
	usersrepo "github.com/FACorreiaa/subscription-tracker/internal/domain/users/repository"
	"github.com/FACorreiaa/subscription-tracker/pkg/config"
	"github.com/FACorreiaa/subscription-tracker/pkg/cron"
	"github.com/FACorreiaa/subscription-tracker/pkg/db"
	"github.com/FACorreiaa/subscription-tracker/pkg/mailer"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	UserRepo          usersrepo.UserRepository
	SubscriptionsRepo subsrepo.SubscriptionRepository

	// Services
	Mailer               *mailer.Service
	CategoryResolver     *categorization.Resolver
	NotificationsService *notifications.Service
	SubscriptionsService *subsservice.Service

	// Background jobs
	Scheduler *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	dsn := cfg.Database.DSN()
	if err := db.Migrate(dsn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	database, err := db.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	deps.DB = database

	deps.UserRepo = usersrepo.NewPostgresUserRepository(database.Pool)
	deps.SubscriptionsRepo = subsrepo.NewPostgresSubscriptionRepository(database.Pool)

	deps.Mailer = mailer.NewService(cfg.Mail.APIKey, cfg.Mail.FromEmail, logger)
	deps.CategoryResolver = categorization.NewDefaultResolver()
	deps.NotificationsService = notifications.NewService(deps.Mailer, cfg.Mail.AdminEmail, logger)

	deps.SubscriptionsService = subsservice.NewService(
		deps.SubscriptionsRepo,
		deps.UserRepo,
		deps.CategoryResolver,
		deps.NotificationsService,
		logger,
	)

	deps.Scheduler = cron.NewScheduler(
		deps.UserRepo,
		deps.SubscriptionsRepo,
		deps.NotificationsService,
		cron.Config{
			SweepInterval:    cfg.Scheduler.SweepInterval,
			DispatchTimeout:  cfg.Scheduler.DispatchTimeout,
			RemindersPerUser: cfg.Scheduler.RemindersPerUser,
		},
		logger,
	)

	return deps, nil
}

// Close releases held resources
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
