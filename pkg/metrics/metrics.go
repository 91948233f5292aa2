package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scheduling-domain counters. Collectors are created
// unregistered so tests can build throwaway instances; cmd/api registers
// them once via Register.
type Metrics struct {
	AppointmentsCreated  prometheus.Counter
	AppointmentsUpdated  prometheus.Counter
	ConflictsRejected    prometheus.Counter
	UnauthorizedWrites   *prometheus.CounterVec
	ValidationFailures   *prometheus.CounterVec
	EventPublishFailures prometheus.Counter
	NotificationsSent    prometheus.Counter
	NotificationsFailed  prometheus.Counter
}

func New(namespace string) *Metrics {
	return &Metrics{
		AppointmentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_created_total",
			Help:      "Total number of appointments created",
		}),
		AppointmentsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_updated_total",
			Help:      "Total number of appointments updated",
		}),
		ConflictsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduling_conflicts_rejected_total",
			Help:      "Total number of bookings rejected for overlapping an existing one",
		}),
		UnauthorizedWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unauthorized_writes_total",
			Help:      "Total number of writes rejected by the field authorization matrix",
		}, []string{"role"}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Total number of requests rejected by entity validation",
		}, []string{"reason"}),
		EventPublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Total number of appointment events that could not be published",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of booking notification emails sent",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of booking notification emails that failed",
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.AppointmentsCreated,
		m.AppointmentsUpdated,
		m.ConflictsRejected,
		m.UnauthorizedWrites,
		m.ValidationFailures,
		m.EventPublishFailures,
		m.NotificationsSent,
		m.NotificationsFailed,
	)
}
