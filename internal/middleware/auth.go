package middleware

import (
	"net/http"
	"strings"

	"malariascope/internal/session"
)

// SessionMiddleware attaches the visitor's session to the request context,
// creating one with defaults on the first interaction.
func SessionMiddleware(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess *session.Session
			if cookie, err := r.Cookie(session.CookieName); err == nil {
				if existing, ok := store.Get(cookie.Value); ok {
					sess = existing
					store.Touch(sess.ID)
				}
			}

			if sess == nil {
				sess = store.Create()
				http.SetCookie(w, &http.Cookie{
					Name:     session.CookieName,
					Value:    sess.ID,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
		})
	}
}

// AuthMiddleware checks that the session passed the login form.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		// Login, theme toggle, health check and static assets stay reachable
		if isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		sess, ok := session.FromContext(r.Context())
		if !ok || !sess.Authenticated {
			// API and AJAX requests get 401
			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			// Plain page requests go to the login form
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublic(path string) bool {
	switch path {
	case "/login", "/auth/login", "/theme", "/healthcheck":
		return true
	}
	return strings.HasPrefix(path, "/static/")
}
