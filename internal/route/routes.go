package route

import (
	"net/http"

	"trafficanalyzer/internal/config"
	"trafficanalyzer/internal/handler"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/metrics"
	"trafficanalyzer/internal/middleware"
	"trafficanalyzer/internal/service/websocket"
	"trafficanalyzer/internal/session"
	"trafficanalyzer/internal/web"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	Pages    *web.Pages
	Sessions *session.Store
	Hub      *websocket.HubService
	Reports  handler.ReportService
	Videos   handler.VideoFetcher
	// Endpoint is the analysis service URL shown on the settings page.
	Endpoint string
}

// SetupRoutes registers pages, static assets, API endpoints and monitoring,
// and wraps the mux with the session and authentication middleware.
func SetupRoutes(d Dependencies) http.Handler {
	cfg, logger := d.Config, d.Logger
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", web.Static()))

	// Pages
	mux.HandleFunc("GET /{$}", handler.IndexPageHandler(d.Pages, cfg, logger))
	mux.HandleFunc("GET /reports", handler.ReportsPageHandler(d.Pages, cfg, logger))
	mux.HandleFunc("GET /settings", handler.SettingsPageHandler(d.Pages, cfg, d.Endpoint, d.Sessions, logger))
	mux.HandleFunc("GET /login", handler.LoginPageHandler(d.Pages, cfg, logger))

	// Upload lifecycle
	mux.HandleFunc("POST /api/video", handler.SelectVideoHandler(cfg, logger))
	mux.HandleFunc("POST /api/analysis", handler.StartAnalysisHandler(logger))
	mux.HandleFunc("GET /api/state", handler.StateHandler(logger))
	mux.HandleFunc("GET /api/export/csv", handler.ExportCSVHandler(logger))
	mux.HandleFunc("GET /api/export/video", handler.ExportVideoHandler(d.Videos, logger))
	mux.HandleFunc("GET /api/ws", handler.StateWebsocketHandler(d.Hub, logger))

	// Report history
	mux.HandleFunc("GET /api/reports", handler.ListReportsHandler(d.Reports, logger))
	mux.HandleFunc("DELETE /api/reports", handler.ClearReportsHandler(d.Reports, logger))
	mux.HandleFunc("GET /api/reports/{id}/csv", handler.ReportCSVHandler(d.Reports, logger))
	mux.HandleFunc("DELETE /api/reports/{id}", handler.DeleteReportHandler(d.Reports, logger))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	// Auth endpoints
	mux.HandleFunc("POST /auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("GET /auth/logout", handler.LogoutHandler)

	// Monitoring
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Apply middleware
	return middleware.SessionMiddleware(d.Sessions)(middleware.AuthMiddleware(cfg)(mux))
}
