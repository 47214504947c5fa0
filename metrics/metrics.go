// Package metrics holds the Prometheus collectors for channel and alt activity.
// Collectors are registered with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cspx"

// Channel operation names.
const (
	OpPut     = "put"
	OpTake    = "take"
	OpTryPut  = "try_put"
	OpTryTake = "try_take"
	OpClose   = "close"
)

// Results shared by channel ops and alt.
const (
	ResultOK        = "ok"
	ResultClosed    = "closed"
	ResultCancelled = "cancelled"
	ResultEmpty     = "empty"
	ResultFull      = "full"
	ResultTake      = "take"
	ResultPut       = "put"
	ResultDefault   = "default"
	ResultInvalid   = "invalid"
)

// Alt modes.
const (
	ModePriority = "priority"
	ModeFair     = "fair"
)

var (
	ChannelOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_ops_total",
			Help:      "channel operations by op and result",
		},
		[]string{"op", "result"},
	)

	Waiters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_waiters",
			Help:      "goroutines currently parked on a channel",
		},
	)

	AltOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alt_total",
			Help:      "alt calls by mode and result",
		},
		[]string{"mode", "result"},
	)

	AltRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alt_retries_total",
			Help:      "alt commits lost to a concurrent party",
		},
	)
)

func init() {
	prometheus.MustRegister(ChannelOps, Waiters, AltOutcomes, AltRetries)
}

func ObserveOp(op, result string) {
	ChannelOps.WithLabelValues(op, result).Inc()
}

func ObserveAlt(priority bool, result string) {
	mode := ModeFair
	if priority {
		mode = ModePriority
	}
	AltOutcomes.WithLabelValues(mode, result).Inc()
}
