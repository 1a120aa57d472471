package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeDelivered labels notifications that reached the channel.
	OutcomeDelivered = "delivered"
	// OutcomeConfigError labels notifications rejected before any
	// network call.
	OutcomeConfigError = "config_error"
	// OutcomeFailed labels notifications whose final post failed.
	OutcomeFailed = "failed"
)

var (
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mattersend",
			Name:      "notifications_total",
			Help:      "Total number of status notifications handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	degradedStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mattersend",
			Name:      "degraded_steps_total",
			Help:      "Best-effort pipeline steps that degraded without blocking delivery.",
		},
		[]string{"step"},
	)

	deliverySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mattersend",
			Name:      "delivery_seconds",
			Help:      "End-to-end notification dispatch latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

// Register attaches mattersend collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		notificationsTotal,
		degradedStepsTotal,
		deliverySeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDispatch records one dispatch outcome and its latency.
func ObserveDispatch(duration time.Duration, outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	deliverySeconds.Observe(duration.Seconds())
}

// ObserveDegradedStep counts a best-effort step that did not complete
// cleanly.
func ObserveDegradedStep(step string) {
	degradedStepsTotal.WithLabelValues(step).Inc()
}
