package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(operationPollsTotal, operationTransitionsTotal, operationOutcomesTotal, artifactBytesTotal)
}

var (
	operationPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bimcloud_operation_polls_total",
			Help: "Status fetches issued per operation type.",
		},
		[]string{"type"},
	)

	operationTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bimcloud_operation_status_transitions_total",
			Help: "Observed status changes per operation type and new status.",
		},
		[]string{"type", "status"},
	)

	operationOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bimcloud_operation_outcomes_total",
			Help: "Poll runs by operation type and outcome (finished/failed/canceled/timed_out/aborted/error).",
		},
		[]string{"type", "outcome"},
	)

	artifactBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bimcloud_artifact_bytes_total",
			Help: "Bytes written to local artifact storage per operation type.",
		},
		[]string{"type"},
	)
)

func IncPoll(opType string) {
	operationPollsTotal.WithLabelValues(norm(opType)).Inc()
}

func IncTransition(opType, status string) {
	operationTransitionsTotal.WithLabelValues(norm(opType), norm(status)).Inc()
}

func IncOutcome(opType, outcome string) {
	operationOutcomesTotal.WithLabelValues(norm(opType), norm(outcome)).Inc()
}

func AddArtifactBytes(opType string, n int64) {
	if n <= 0 {
		return
	}
	artifactBytesTotal.WithLabelValues(norm(opType)).Add(float64(n))
}
