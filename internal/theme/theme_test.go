package theme

import (
	"strings"
	"testing"
)

func TestApply(t *testing.T) {
	tests := []struct {
		dark     bool
		contains string
		absent   string
	}{
		{true, "#0e1117", "background-color: white"},
		{false, "background-color: white", "#0e1117"},
	}

	for _, tt := range tests {
		css := string(Apply(tt.dark))
		if !strings.Contains(css, tt.contains) {
			t.Errorf("Apply(%v) missing %q", tt.dark, tt.contains)
		}
		if strings.Contains(css, tt.absent) {
			t.Errorf("Apply(%v) unexpectedly contains %q", tt.dark, tt.absent)
		}
	}
}

func TestApply_Idempotent(t *testing.T) {
	if Apply(true) != Apply(true) || Apply(false) != Apply(false) {
		t.Error("Apply must return the same directive for the same flag")
	}
}
