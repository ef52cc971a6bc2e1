package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Mail      MailConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// MailConfig configures the Resend transport. An empty APIKey is valid and
// means outbound mail is disabled, not a startup failure.
type MailConfig struct {
	APIKey     string
	FromEmail  string
	AdminEmail string
}

type SchedulerConfig struct {
	SweepInterval    time.Duration
	DispatchTimeout  time.Duration
	RemindersPerUser int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "subtracker-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Mail: MailConfig{
			APIKey:     getEnv("RESEND_API_KEY", ""),
			FromEmail:  getEnv("RESEND_FROM_EMAIL", "SubTracker <no-reply@subtracker.app>"),
			AdminEmail: getEnv("ADMIN_EMAIL", ""),
		},
		Scheduler: SchedulerConfig{
			SweepInterval:    getEnvAsDuration("SCHEDULER_SWEEP_INTERVAL", 12*time.Hour),
			DispatchTimeout:  getEnvAsDuration("SCHEDULER_DISPATCH_TIMEOUT", 15*time.Second),
			RemindersPerUser: getEnvAsInt("SCHEDULER_REMINDERS_PER_USER", 50),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
