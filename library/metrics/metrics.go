// Package metrics holds the prometheus collectors of the service.
//
// Collectors are registered on the default registry, which is served on
// `/metrics` by the gin metric middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "agency"

var (
	// RequestErrors counts classified request errors
	RequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Request errors by category and severity",
		},
		[]string{"category", "severity"},
	)

	// LeadsSubmitted counts stored leads
	LeadsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_submitted_total",
			Help:      "Leads stored by kind",
		},
		[]string{"kind"},
	)

	// CommentsSubmitted counts visitor comments
	CommentsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_submitted_total",
			Help:      "Visitor comments waiting for moderation",
		},
	)

	// MailsSent counts mail deliveries
	MailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mails_sent_total",
			Help:      "Mail deliveries by template tag and status",
		},
		[]string{"tag", "status"},
	)

	// LoginAttempts counts login steps by outcome
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login steps by stage and result",
		},
		[]string{"stage", "result"},
	)
)

// RecordMail records a mail delivery
func RecordMail(tag string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}

	MailsSent.WithLabelValues(tag, status).Inc()
}
