package middleware

import (
	"net/http"
	"strings"

	"trafficanalyzer/internal/config"
	"trafficanalyzer/internal/session"
)

// AuthMiddleware lets a request through only when the session logged in.
// It does nothing when no password is configured.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.AuthEnabled() || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			sess := session.FromContext(r.Context())
			if sess == nil || !sess.Authenticated() {
				// API calls get 401, pages redirect to the login form
				if strings.HasPrefix(r.URL.Path, "/api/") ||
					r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublic(path string) bool {
	return path == "/login" ||
		path == "/auth/login" ||
		path == "/healthz" ||
		path == "/metrics" ||
		strings.HasPrefix(path, "/static/")
}
