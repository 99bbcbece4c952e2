package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// signalsProcessed counts signals handled by the processors.
	// Labels: queue (sync, async), kind (signal variant name)
	signalsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogtask",
		Subsystem: "scheduler",
		Name:      "signals_processed_total",
		Help:      "Signals handled by the sync and async processors",
	}, []string{"queue", "kind"})

	// blockCrashes counts per-signal failures reported as crashes.
	blockCrashes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cogtask",
		Subsystem: "scheduler",
		Name:      "block_crashes_total",
		Help:      "Per-signal processing errors reported to the server",
	})

	// interrupts counts user interrupt gestures.
	interrupts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cogtask",
		Subsystem: "scheduler",
		Name:      "interrupts_total",
		Help:      "Blocks interrupted by the user",
	})

	// logEntries counts entries handed to the persistence sink.
	// Labels: status (ok, error)
	logEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogtask",
		Subsystem: "scheduler",
		Name:      "log_entries_total",
		Help:      "Log entries forwarded to the persistence sink",
	}, []string{"status"})
)
