package session

import "fmt"

// AuthInputError reports an empty credential field on the login form.
type AuthInputError struct {
	Field string
}

func (e *AuthInputError) Error() string {
	return "Please enter username and password."
}

// Login marks sess as authenticated for username.
//
// The password is only checked for presence and is never verified against a
// credential store. This is a placeholder gate, not authentication.
func Login(sess *Session, username, password string) error {
	if username == "" {
		return &AuthInputError{Field: "username"}
	}
	if password == "" {
		return &AuthInputError{Field: "password"}
	}

	sess.Authenticated = true
	sess.User = username
	return nil
}

// Logout returns sess to the unauthenticated state. The theme choice survives.
func Logout(sess *Session) {
	sess.Authenticated = false
	sess.User = ""
}

// SetDarkMode records the theme toggle.
func SetDarkMode(sess *Session, dark bool) {
	sess.DarkMode = dark
}

// Describe is used in log lines.
func Describe(sess *Session) string {
	if !sess.Authenticated {
		return fmt.Sprintf("session %.8s (anonymous)", sess.ID)
	}
	return fmt.Sprintf("session %.8s (%s)", sess.ID, sess.User)
}
