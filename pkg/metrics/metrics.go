// Package metrics exposes Prometheus counters for the notification sweep.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepsTotal counts completed scheduler sweeps.
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subtracker_scheduler_sweeps_total",
		Help: "Number of notification sweeps completed.",
	})

	// RemindersSentTotal counts renewal reminders dispatched.
	RemindersSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subtracker_reminders_sent_total",
		Help: "Number of renewal reminder emails dispatched.",
	})

	// SpendingAlertsSentTotal counts spending alerts dispatched.
	SpendingAlertsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subtracker_spending_alerts_sent_total",
		Help: "Number of spending alert emails dispatched.",
	})

	// SweepUserFailuresTotal counts users skipped during a sweep due to errors.
	SweepUserFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subtracker_sweep_user_failures_total",
		Help: "Number of users skipped during sweeps because of errors.",
	})
)
