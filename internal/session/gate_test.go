package session

import (
	"errors"
	"testing"
	"time"
)

func TestLogin_Success(t *testing.T) {
	sess := Defaults("s1", time.Now())

	if err := Login(sess, "alice", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if !sess.Authenticated {
		t.Error("expected session to be authenticated")
	}
	if sess.User != "alice" {
		t.Errorf("expected user 'alice', got %q", sess.User)
	}
}

func TestLogin_EmptyFields(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		field    string
	}{
		{"empty username", "", "pw", "username"},
		{"empty password", "alice", "", "password"},
		{"both empty", "", "", "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := Defaults("s1", time.Now())

			err := Login(sess, tt.username, tt.password)

			var inputErr *AuthInputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("expected AuthInputError, got %v", err)
			}
			if inputErr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, inputErr.Field)
			}
			if err.Error() != "Please enter username and password." {
				t.Errorf("unexpected message %q", err.Error())
			}
			if sess.Authenticated || sess.User != "" {
				t.Errorf("session mutated on failed login: %+v", sess)
			}
		})
	}
}

func TestLogout_ClearsUser(t *testing.T) {
	sess := Defaults("s1", time.Now())
	sess.DarkMode = true
	if err := Login(sess, "alice", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	Logout(sess)

	if sess.Authenticated {
		t.Error("expected session to be unauthenticated after logout")
	}
	if sess.User != "" {
		t.Errorf("expected user cleared, got %q", sess.User)
	}
	if !sess.DarkMode {
		t.Error("theme choice should survive logout")
	}
}
