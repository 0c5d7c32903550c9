package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	WatcherEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devshell_watcher_events_total",
		Help: "Total number of raw file system events drained by the watcher, by kind.",
	}, []string{"kind"})

	WatcherOverflowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devshell_watcher_overflows_total",
		Help: "Total number of overflow events reported by the native watch service.",
	})

	WatcherNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devshell_watcher_notifications_total",
		Help: "Total number of change notifications delivered to listeners.",
	})

	WatcherTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devshell_watcher_transitions_total",
		Help: "Total number of registry transitions applied by the dispatch loop.",
	}, []string{"transition"})

	WatcherRegistrationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devshell_watcher_registration_failures_total",
		Help: "Total number of native watch registrations that failed during dispatch.",
	})

	WatcherKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devshell_watcher_keys",
		Help: "Current number of live native watch keys across all watch sessions.",
	})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devshell_watcher_dispatch_seconds",
		Help:    "Time spent processing one batch of events.",
		Buckets: prometheus.DefBuckets,
	})

	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devshell_builds_total",
		Help: "Total number of rebuilds run, by result.",
	}, []string{"result"})

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devshell_build_seconds",
		Help:    "Time spent running the build command.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	BuildsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devshell_builds_throttled_total",
		Help: "Total number of rebuilds held back by build.min_interval.",
	})

	BuildsCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devshell_builds_coalesced_total",
		Help: "Total number of change notifications folded into an already pending rebuild.",
	})
)
