package middleware

import (
	"net/http"

	"trafficanalyzer/internal/session"
)

// SessionMiddleware attaches the browser's session to the request context,
// creating one and setting its cookie on the first visit. Every request
// counts as activity for the idle sweep. Monitoring endpoints never get a
// session.
func SessionMiddleware(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			var sess *session.Session
			if cookie, err := r.Cookie(session.CookieName); err == nil {
				sess = store.Get(cookie.Value)
			}
			if sess != nil {
				sess.Controller.Touch()
			} else {
				sess = store.Create()
				http.SetCookie(w, &http.Cookie{
					Name:     session.CookieName,
					Value:    sess.ID,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}
