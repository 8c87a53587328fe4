package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"trafficanalyzer/internal/lifecycle"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/session"
)

// controllerFrom returns the lifecycle controller of the request's session.
// It answers 500 itself when the session middleware did not run.
func controllerFrom(w http.ResponseWriter, r *http.Request, logger *logger.Logger) *lifecycle.Controller {
	sess := session.FromContext(r.Context())
	if sess == nil {
		logger.Error("No session on %s %s", r.Method, r.URL.Path)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	return sess.Controller
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func attachment(w http.ResponseWriter, fileName, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.Header().Set("Cache-Control", "no-store")
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
