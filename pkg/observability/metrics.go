package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pagestream",
			Subsystem: "connection",
			Name:      "active",
			Help:      "Number of open stream websocket connections",
		},
	)

	CommandsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagestream",
			Subsystem: "connection",
			Name:      "commands_total",
			Help:      "Client commands received by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// Session metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pagestream",
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of registered sessions, including those pending removal",
		},
	)

	SessionsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagestream",
			Subsystem: "session",
			Name:      "resolved_total",
			Help:      "Session resolutions by result (created, reused)",
		},
		[]string{"result"},
	)

	SessionsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagestream",
			Subsystem: "session",
			Name:      "removed_total",
			Help:      "Session removals by reason",
		},
		[]string{"reason"},
	)

	// Engine metrics
	ActiveEngines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pagestream",
			Subsystem: "engine",
			Name:      "active",
			Help:      "Number of pooled render engines",
		},
	)

	EnginesLaunched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pagestream",
			Subsystem: "engine",
			Name:      "launched_total",
			Help:      "Render engines launched",
		},
	)

	EnginesReaped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagestream",
			Subsystem: "engine",
			Name:      "reaped_total",
			Help:      "Render engines closed, by result (reaped, replaced, shutdown, error)",
		},
		[]string{"result"},
	)

	// Frame metrics
	FramesCaptured = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pagestream",
			Subsystem: "frame",
			Name:      "captured_total",
			Help:      "Successful frame captures",
		},
	)

	FramesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pagestream",
			Subsystem: "frame",
			Name:      "delivered_total",
			Help:      "Frames written to a connection",
		},
	)

	FramesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pagestream",
			Subsystem: "frame",
			Name:      "deduplicated_total",
			Help:      "Frames dropped because they matched the last delivered frame",
		},
	)

	CaptureErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagestream",
			Subsystem: "frame",
			Name:      "capture_errors_total",
			Help:      "Failed captures by kind",
		},
		[]string{"kind"},
	)

	CaptureDeferred = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pagestream",
			Subsystem: "frame",
			Name:      "capture_deferred_total",
			Help:      "Capture requests deferred because a capture was in flight",
		},
	)

	CaptureLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pagestream",
			Subsystem: "frame",
			Name:      "capture_seconds",
			Help:      "Capture latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
	)
)
