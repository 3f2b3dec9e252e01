package recorder

import "github.com/prometheus/client_golang/prometheus"

var (
	stepsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recorder_steps_total",
			Help: "Steps appended to the artifact store, by phase and status.",
		},
		[]string{"phase", "status"},
	)

	redactionsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recorder_redactions_total",
			Help: "Secret values masked before a step payload was written.",
		},
	)

	retriesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recorder_retries_total",
			Help: "Retry-phase steps emitted by a tool wrapper.",
		},
	)

	discardedIO = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recorder_discarded_io_total",
			Help: "Tool I/O bytes received after their owning step had already closed.",
		},
	)

	runsTruncated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recorder_runs_truncated_total",
			Help: "Runs sealed early because the configured step ceiling was reached.",
		},
	)
)

func init() {
	prometheus.MustRegister(stepsRecorded, redactionsApplied, retriesRecorded, discardedIO, runsTruncated)
}
