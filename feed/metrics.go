package feed

import "github.com/prometheus/client_golang/prometheus"

var (
	// feedEvents counts incoming events by transport (kafka, ws) and result
	// (delivered, filtered, invalid, error).
	feedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minichat",
		Subsystem: "feed",
		Name:      "events_total",
		Help:      "Incoming feed events by transport and result.",
	}, []string{"transport", "result"})

	feedPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minichat",
		Subsystem: "feed",
		Name:      "published_total",
		Help:      "Published insert events by result.",
	}, []string{"result"})

	feedSubscriptions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "minichat",
		Subsystem: "feed",
		Name:      "subscriptions",
		Help:      "Open feed subscriptions by transport.",
	}, []string{"transport"})
)

func init() {
	prometheus.MustRegister(feedEvents, feedPublished, feedSubscriptions)
}
