package checker

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the counters exported by the batch checker and monitor.
type Metrics struct {
	LookupsTotal   *prometheus.CounterVec // status=occupied|free|error
	ThrottlesTotal prometheus.Counter
	ThrottleWait   prometheus.Counter
	SkippedTotal   prometheus.Counter
	CyclesTotal    prometheus.Counter
	CycleErrors    prometheus.Counter
	FreedTotal     prometheus.Counter
	CycleSeconds   prometheus.Histogram
	Running        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handlewatch_lookups_total",
				Help: "Directory lookups by resulting status",
			},
			[]string{"status"},
		),
		ThrottlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handlewatch_throttles_total",
			Help: "Batches stopped by a throttle signal",
		}),
		ThrottleWait: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handlewatch_throttle_wait_seconds_total",
			Help: "Cooldown time demanded by the directory service",
		}),
		SkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handlewatch_lookups_skipped_total",
			Help: "Handles left unchecked because their batch was throttled",
		}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handlewatch_cycles_total",
			Help: "Completed monitoring cycles",
		}),
		CycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handlewatch_cycle_errors_total",
			Help: "Monitoring cycles aborted by an error",
		}),
		FreedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handlewatch_freed_total",
			Help: "Freed handle notifications emitted",
		}),
		CycleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "handlewatch_cycle_seconds",
			Help:    "Duration of a full monitoring cycle",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "handlewatch_monitor_running",
			Help: "1 while the monitoring loop is running",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LookupsTotal,
			m.ThrottlesTotal,
			m.ThrottleWait,
			m.SkippedTotal,
			m.CyclesTotal,
			m.CycleErrors,
			m.FreedTotal,
			m.CycleSeconds,
			m.Running,
		)
	}
	return m
}
