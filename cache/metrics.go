package cache

import "github.com/prometheus/client_golang/prometheus"

const (
	opHit       = "hit"
	opMiss      = "miss"
	opSave      = "save"
	opDelete    = "delete"
	opExpired   = "expired"
	opCorrupted = "corrupted"
	opMigrated  = "migrated"
	opError     = "error"
)

var cacheOps = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "minichat",
	Subsystem: "cache",
	Name:      "ops_total",
	Help:      "Message cache operations by outcome.",
}, []string{"op"})

func init() {
	prometheus.MustRegister(cacheOps)
}
