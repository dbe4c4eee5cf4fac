package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryLogsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrogeo_query_logs_recorded_total",
			Help: "Query logs persisted, by query type and result status",
		},
		[]string{"query_type", "result_status"},
	)

	QueryProcessingSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "astrogeo_query_processing_seconds",
			Help:    "Processing time reported by recorded query logs",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"query_type"},
	)

	APICallsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrogeo_api_calls_recorded_total",
			Help: "Outbound API calls persisted, by provider and status class",
		},
		[]string{"provider", "status_class"},
	)

	APIResponseMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "astrogeo_api_response_ms",
			Help:    "Provider response latency in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"provider"},
	)

	FeedbackSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrogeo_feedback_submitted_total",
			Help: "Feedback submitted, by rating",
		},
		[]string{"rating"},
	)

	FeedbackResolved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "astrogeo_feedback_resolved_total",
			Help: "Resolve calls that succeeded",
		},
	)

	RepositoryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrogeo_repository_errors_total",
			Help: "Repository failures by table and error kind",
		},
		[]string{"entity", "kind"},
	)

	StatsCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrogeo_stats_cache_hits_total",
			Help: "Statistics served from redis",
		},
		[]string{"report"},
	)

	StatsCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrogeo_stats_cache_misses_total",
			Help: "Statistics computed from the database",
		},
		[]string{"report"},
	)
)

func init() {
	prometheus.MustRegister(QueryLogsRecorded)
	prometheus.MustRegister(QueryProcessingSeconds)
	prometheus.MustRegister(APICallsRecorded)
	prometheus.MustRegister(APIResponseMs)
	prometheus.MustRegister(FeedbackSubmitted)
	prometheus.MustRegister(FeedbackResolved)
	prometheus.MustRegister(RepositoryErrors)
	prometheus.MustRegister(StatsCacheHits)
	prometheus.MustRegister(StatsCacheMisses)
}

// StatusClass buckets an HTTP status code into "2xx", "4xx", ... or "unknown".
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
