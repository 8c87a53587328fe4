package handler

import (
	"net/http"
	"time"

	"trafficanalyzer/internal/config"
	"trafficanalyzer/internal/lifecycle"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/web"
)

// PageData is passed to every page template.
type PageData struct {
	Title       string
	Active      string
	AuthEnabled bool

	Snapshot   lifecycle.Snapshot
	Cards      []web.Card
	Categories []web.Category
	Settings   *SettingsView
}

// SettingsView is the read-only configuration shown on the settings page.
type SettingsView struct {
	AnalysisEndpoint string
	Timeout          time.Duration
	MaxUploadMB      int64
	StrictMP4        bool
	SessionTTL       time.Duration
	ActiveSessions   int
	LogLevels        []string
}

// SessionCounter reports how many sessions are alive.
type SessionCounter interface {
	Len() int
}

func render(w http.ResponseWriter, pages *web.Pages, name string, data *PageData, logger *logger.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pages.Render(w, name, data); err != nil {
		logger.Error("Error rendering %s page: %v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// IndexPageHandler renders the dashboard with the session's current state.
func IndexPageHandler(pages *web.Pages, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(w, r, logger)
		if c == nil {
			return
		}

		snap := c.Snapshot()
		render(w, pages, web.PageIndex, &PageData{
			Title:       "Dashboard",
			Active:      "dashboard",
			AuthEnabled: cfg.AuthEnabled(),
			Snapshot:    snap,
			Cards:       web.Cards(snap.Counts),
		}, logger)
	}
}

// ReportsPageHandler renders the report history page; data is loaded by
// the page from /api/reports.
func ReportsPageHandler(pages *web.Pages, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, pages, web.PageReports, &PageData{
			Title:       "Reports",
			Active:      "reports",
			AuthEnabled: cfg.AuthEnabled(),
			Categories:  web.Categories,
		}, logger)
	}
}

// SettingsPageHandler renders the effective configuration.
func SettingsPageHandler(pages *web.Pages, cfg *config.Config, endpoint string, sessions SessionCounter, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, pages, web.PageSettings, &PageData{
			Title:       "Settings",
			Active:      "settings",
			AuthEnabled: cfg.AuthEnabled(),
			Settings: &SettingsView{
				AnalysisEndpoint: endpoint,
				Timeout:          cfg.AnalysisTimeout,
				MaxUploadMB:      cfg.MaxUploadMB,
				StrictMP4:        cfg.StrictMP4,
				SessionTTL:       cfg.SessionTTL,
				ActiveSessions:   sessions.Len(),
				LogLevels:        []string{"info", "warning", "error"},
			},
		}, logger)
	}
}

// LoginPageHandler renders the login form, or sends the user home when no
// password is configured.
func LoginPageHandler(pages *web.Pages, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.AuthEnabled() {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		render(w, pages, web.PageLogin, &PageData{
			Title:  "Login",
			Active: "login",
		}, logger)
	}
}
