package ai

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"malariascope/internal/logger"
)

type fakeEngine struct{}

func (fakeEngine) Detect(img image.Image, confidence, iou float64) ([]Detection, error) {
	return []Detection{}, nil
}

func (fakeEngine) Close() error { return nil }

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	l, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func writeModel(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "best.onnx")
	if err := os.WriteFile(path, []byte("weights"), 0644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}
	return path
}

func TestProvider_ReturnsSameEngine(t *testing.T) {
	calls := 0
	loader := func(path string) (Engine, error) {
		calls++
		return &fakeEngine{}, nil
	}
	provider := NewProvider(writeModel(t), loader, newTestLogger(t))

	var wg sync.WaitGroup
	engines := make([]Engine, 8)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engine, err := provider.Get()
			if err != nil {
				t.Errorf("Get failed: %v", err)
			}
			engines[i] = engine
		}(i)
	}
	wg.Wait()

	for i, engine := range engines {
		if engine != engines[0] {
			t.Errorf("engine %d differs from the first handle", i)
		}
	}
	if calls != 1 {
		t.Errorf("expected the loader to run once, ran %d times", calls)
	}
}

func TestProvider_MissingModelFile(t *testing.T) {
	calls := 0
	loader := func(path string) (Engine, error) {
		calls++
		return &fakeEngine{}, nil
	}
	missing := filepath.Join(t.TempDir(), "gone.onnx")
	provider := NewProvider(missing, loader, newTestLogger(t))

	for i := 0; i < 2; i++ {
		engine, err := provider.Get()

		var loadErr *ModelLoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("call %d: expected ModelLoadError, got %v", i, err)
		}
		if loadErr.Path != missing {
			t.Errorf("expected path %q, got %q", missing, loadErr.Path)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected wrapped not-exist error, got %v", err)
		}
		if engine != nil {
			t.Error("expected no engine after a failed load")
		}
	}

	// Restoring the file does not help until restart.
	if err := os.WriteFile(missing, []byte("weights"), 0644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}
	if _, err := provider.Get(); err == nil {
		t.Error("load failure should be sticky for the process lifetime")
	}
	if calls != 0 {
		t.Errorf("loader should not run for a missing file, ran %d times", calls)
	}
}

func TestProvider_InvalidArtifact(t *testing.T) {
	loader := func(path string) (Engine, error) {
		return nil, errors.New("not an onnx graph")
	}
	provider := NewProvider(writeModel(t), loader, newTestLogger(t))

	_, err := provider.Get()

	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ModelLoadError, got %v", err)
	}
	if err := provider.Close(); err != nil {
		t.Errorf("Close on an unloaded provider failed: %v", err)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	if !errors.Is(&InferenceError{Err: cause}, cause) {
		t.Error("InferenceError should unwrap to its cause")
	}
	if !errors.Is(&ModelLoadError{Path: "m", Err: cause}, cause) {
		t.Error("ModelLoadError should unwrap to its cause")
	}
}
