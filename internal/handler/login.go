package handler

import (
	"errors"
	"net/http"

	"malariascope/internal/config"
	"malariascope/internal/dto"
	"malariascope/internal/logger"
	"malariascope/internal/session"
)

// LoginPageHandler handles GET /login by rendering the credential form.
// Authenticated sessions are sent to the main page.
func LoginPageHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}
		if sess.Authenticated {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		render(w, logger, http.StatusOK, "login.html", newPage(cfg, sess))
	}
}

// LoginHandler handles POST /auth/login. Any non-empty username and password
// pass; the password is not checked against anything.
func LoginHandler(cfg *config.Config, store *session.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		username := r.FormValue("username")
		password := r.FormValue("password")

		if err := session.Login(sess, username, password); err != nil {
			var inputErr *session.AuthInputError
			if !errors.As(err, &inputErr) {
				logger.Error("Login failed for %s: %v", session.Describe(sess), err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			logger.Warning("Rejected login for %s: missing %s", session.Describe(sess), inputErr.Field)

			page := newPage(cfg, sess)
			page.User = username
			page.Flashes = append(page.Flashes, dto.Flash{Kind: dto.FlashError, Message: err.Error()})
			render(w, logger, http.StatusBadRequest, "login.html", page)
			return
		}

		store.Save(sess)
		logger.Info("User %s logged in", sess.User)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// LogoutHandler handles POST /auth/logout by clearing the user of the session.
func LogoutHandler(store *session.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		user := sess.User
		session.Logout(sess)
		store.Save(sess)

		logger.Info("User %s logged out", user)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// ThemeHandler handles POST /theme. A checked dark_mode box turns dark mode on.
func ThemeHandler(store *session.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		session.SetDarkMode(sess, r.FormValue("dark_mode") == "on")
		store.Save(sess)

		next := "/"
		if r.FormValue("next") == "/login" || !sess.Authenticated {
			next = "/login"
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
	}
}
