package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minichat",
		Subsystem: "session",
		Name:      "ops_total",
		Help:      "Session operations by op and result code.",
	}, []string{"op", "code"})

	// liveEvents counts message feed events: applied, or dropped by reason.
	liveEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minichat",
		Subsystem: "subscription",
		Name:      "events_total",
		Help:      "Live message events by result.",
	}, []string{"result"})

	subscribeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "minichat",
		Subsystem: "subscription",
		Name:      "subscribe_errors_total",
		Help:      "Failed feed subscribe calls.",
	})

	notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minichat",
		Subsystem: "notification",
		Name:      "events_total",
		Help:      "Incoming events seen by the notification aggregator by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(sessionOps, liveEvents, subscribeErrors, notifications)
}

// observe counts one session operation.
func observe(op string, err error) {
	sessionOps.WithLabelValues(op, ErrorCode(err).String()).Inc()
}
