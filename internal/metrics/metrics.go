package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysisRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_analysis_requests_total",
		Help: "Requests sent to the analysis service, by outcome",
	}, []string{"outcome"})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "traffic_analysis_duration_seconds",
		Help:    "Time from sending a video to the analysis service until it answered",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	AnalysesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "traffic_analyses_in_flight",
		Help: "Analysis requests currently outstanding across all sessions",
	})

	IgnoredStartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traffic_analysis_ignored_starts_total",
		Help: "Start requests ignored because no video was selected or one was already running",
	})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_uploads_total",
		Help: "Video selections received, by result",
	}, []string{"result"})

	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_exports_total",
		Help: "Client downloads served, by kind",
	}, []string{"kind"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "traffic_active_sessions",
		Help: "Browser sessions currently held in memory",
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
