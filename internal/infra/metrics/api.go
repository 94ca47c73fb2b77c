package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(apiCallLatencyMs) }

var apiCallLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bimcloud_api_call_latency_ms",
		Help:    "Remote call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 15000},
	},
	[]string{"call", "success"},
)

func ObserveAPICall(call string, latencyMs int64, success bool) {
	apiCallLatencyMs.WithLabelValues(norm(call), strconv.FormatBool(success)).Observe(float64(latencyMs))
}
