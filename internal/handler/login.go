package handler

import (
	"crypto/subtle"
	"net/http"

	"trafficanalyzer/internal/config"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/session"
)

// LoginHandler handles POST /auth/login by checking the password and
// marking the session as logged in.
func LoginHandler(config *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		password := r.FormValue("password")
		if subtle.ConstantTimeCompare([]byte(password), []byte(config.Password)) != 1 {
			logger.Warning("Failed login attempt from %s", r.RemoteAddr)
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}

		sess.SetAuthenticated(true)
		logger.Info("Session %s logged in", sess.ID)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// LogoutHandler handles GET /auth/logout.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if sess := session.FromContext(r.Context()); sess != nil {
		sess.SetAuthenticated(false)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
