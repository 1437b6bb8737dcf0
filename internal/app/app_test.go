package app

import (
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"malariascope/internal/config"
	"malariascope/internal/service/ai"
)

type fakeEngine struct{}

func (fakeEngine) Detect(img image.Image, confidence, iou float64) ([]ai.Detection, error) {
	return []ai.Detection{}, nil
}

func (fakeEngine) Close() error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:              0,
		ModelPath:         filepath.Join(dir, "best.onnx"),
		ResultsDirectory:  filepath.Join(dir, "results"),
		DatabasePath:      filepath.Join(dir, "data", "test.db"),
		LogDirectory:      filepath.Join(dir, "logs"),
		DefaultConfidence: 0.25,
		DefaultIoU:        0.45,
		MaxUploadSize:     1 << 20,
	}
}

func fakeLoader(string) (ai.Engine, error) {
	return fakeEngine{}, nil
}

func TestNew_MissingModelIsFatal(t *testing.T) {
	cfg := testConfig(t)

	_, err := New(cfg, fakeLoader)
	var loadErr *ai.ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ModelLoadError, got %v", err)
	}
	if _, err := os.Stat(cfg.DatabasePath); !os.IsNotExist(err) {
		t.Error("database should not be opened when the model fails")
	}
}

func TestNew_LoaderFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.ModelPath, []byte("not onnx"), 0644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}

	_, err := New(cfg, func(string) (ai.Engine, error) { return nil, errors.New("bad graph") })
	var loadErr *ai.ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ModelLoadError, got %v", err)
	}
}

func TestNew_ServesRoutes(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.ModelPath, []byte("weights"), 0644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}

	application, err := New(cfg, fakeLoader)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer application.Close()

	tests := []struct {
		path     string
		expected int
	}{
		{"/healthcheck", http.StatusOK},
		{"/login", http.StatusOK},
		{"/", http.StatusSeeOther},
		{"/api/runs", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.expected {
			t.Errorf("GET %s = %d, expected %d", tt.path, rec.Code, tt.expected)
		}
	}
}
