package pipeline

import (
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"malariascope/internal/logger"
	"malariascope/internal/model"
	"malariascope/internal/repository/sqlite"
	"malariascope/internal/service/ai"
	"malariascope/internal/service/storage"
)

type fakeEngine struct {
	detections []ai.Detection
	err        error
	panicMsg   string
	seen       image.Rectangle
}

func (e *fakeEngine) Detect(img image.Image, confidence, iou float64) ([]ai.Detection, error) {
	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	e.seen = img.Bounds()
	return e.detections, e.err
}

func (e *fakeEngine) Close() error { return nil }

type failingSaver struct{}

func (failingSaver) Save(original, annotated image.Image, username string) (*model.ArtifactPair, error) {
	return nil, &storage.WriteError{Path: "results/" + username, Err: os.ErrPermission}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.RunEvent
}

func (n *recordingNotifier) Notify(username string, message []byte) {
	var event model.RunEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) stages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var stages []string
	for _, e := range n.events {
		stages = append(stages, e.Stage)
	}
	return stages
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	l, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func newProvider(t *testing.T, engine ai.Engine, log *logger.Logger) *ai.Provider {
	t.Helper()

	path := filepath.Join(t.TempDir(), "best.onnx")
	if err := os.WriteFile(path, []byte("weights"), 0644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}
	return ai.NewProvider(path, func(string) (ai.Engine, error) { return engine, nil }, log)
}

func TestRun_EndToEnd(t *testing.T) {
	t.Chdir(t.TempDir())
	log := newTestLogger(t)

	engine := &fakeEngine{detections: []ai.Detection{
		{ClassID: 0, Label: "trophozoite", Confidence: 0.9, X: 100, Y: 100, Width: 50, Height: 50},
	}}
	store := storage.NewArtifactStore("results", log)
	store.SetClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) })

	db, err := sqlite.New(filepath.Join("data", "test.db"))
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()
	runRepo := sqlite.NewRunRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)
	notifier := &recordingNotifier{}

	p := New(newProvider(t, engine, log), store, runRepo, detectionRepo, notifier, log)

	result, err := p.Run(encodeJPEG(t, 512, 512), 0.25, 0.45, "carol")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if engine.seen.Dx() != TargetSize || engine.seen.Dy() != TargetSize {
		t.Errorf("engine saw %v, expected %dx%d", engine.seen, TargetSize, TargetSize)
	}
	if got := result.Annotated.Bounds().Size(); got.X != TargetSize || got.Y != TargetSize {
		t.Errorf("annotated image has size %v", got)
	}
	if result.SaveErr != nil {
		t.Fatalf("unexpected save error: %v", result.SaveErr)
	}
	if result.Pair.Dir() != "results/carol" {
		t.Errorf("expected results under results/carol, got %s", result.Pair.Dir())
	}
	for _, path := range []string{"results/carol/input_20240102_030405.jpg", "results/carol/output_20240102_030405.jpg"} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}

	runs, err := runRepo.GetAll(&model.RunFilter{Username: "carol"})
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].DetectionCount != 1 {
		t.Fatalf("expected one indexed run with one detection, got %+v", runs)
	}
	labels, err := detectionRepo.GetLabelsByRunID(runs[0].ID)
	if err != nil {
		t.Fatalf("failed to get labels: %v", err)
	}
	if len(labels) != 1 || labels[0] != "trophozoite" {
		t.Errorf("unexpected labels %v", labels)
	}

	stages := notifier.stages()
	if len(stages) != 2 || stages[0] != model.StageProcessing || stages[1] != model.StageDone {
		t.Errorf("unexpected stages %v", stages)
	}
	if last := notifier.events[1].Message; last != "Results saved to results/carol/" {
		t.Errorf("unexpected done message %q", last)
	}

	info, err := os.ReadFile(filepath.Join(log.Dir(), logger.InfoFile))
	if err != nil {
		t.Fatalf("failed to read info log: %v", err)
	}
	if !strings.Contains(string(info), "user=carol") || !strings.Contains(string(info), "detections=1") {
		t.Errorf("expected run fields in info log, got %q", info)
	}
}

func TestRun_EmptyDetections(t *testing.T) {
	root := t.TempDir()
	log := newTestLogger(t)

	p := New(newProvider(t, &fakeEngine{detections: []ai.Detection{}}, log),
		storage.NewArtifactStore(root, log), nil, nil, nil, log)

	result, err := p.Run(encodeJPEG(t, 64, 48), 0.25, 0.45, "carol")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Detections) != 0 {
		t.Errorf("expected no detections, got %d", len(result.Detections))
	}
	if result.Pair == nil {
		t.Fatal("expected artifacts to be saved")
	}
}

func TestRun_SaveFailureStillReturnsResult(t *testing.T) {
	log := newTestLogger(t)
	notifier := &recordingNotifier{}
	p := New(newProvider(t, &fakeEngine{}, log), failingSaver{}, nil, nil, notifier, log)

	result, err := p.Run(encodeJPEG(t, 32, 32), 0.25, 0.45, "carol")
	if err != nil {
		t.Fatalf("expected no pipeline error, got %v", err)
	}
	if result == nil || result.Annotated == nil {
		t.Fatal("expected the rendered result despite the save failure")
	}

	var writeErr *storage.WriteError
	if !errors.As(result.SaveErr, &writeErr) {
		t.Errorf("expected SaveErr to be a WriteError, got %v", result.SaveErr)
	}
	if result.Pair != nil {
		t.Error("expected no artifact pair")
	}
	if stages := notifier.stages(); stages[len(stages)-1] != model.StageFailed {
		t.Errorf("expected a failed event, got %v", stages)
	}

	warnings, err := os.ReadFile(filepath.Join(log.Dir(), logger.WarningFile))
	if err != nil {
		t.Fatalf("failed to read warning log: %v", err)
	}
	if !strings.Contains(string(warnings), "user=carol") {
		t.Errorf("expected the user field in warning log, got %q", warnings)
	}
}

func TestRun_InferenceErrors(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
	}{
		{"error", &fakeEngine{err: errors.New("tensor shape mismatch")}},
		{"panic", &fakeEngine{panicMsg: "segfault in model"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := newTestLogger(t)
			root := t.TempDir()
			p := New(newProvider(t, tt.engine, log), storage.NewArtifactStore(root, log), nil, nil, nil, log)

			result, err := p.Run(encodeJPEG(t, 32, 32), 0.25, 0.45, "carol")
			var inferenceErr *ai.InferenceError
			if !errors.As(err, &inferenceErr) {
				t.Fatalf("expected InferenceError, got %v", err)
			}
			if result != nil {
				t.Error("expected no result")
			}

			entries, _ := os.ReadDir(root)
			if len(entries) != 0 {
				t.Error("nothing should be saved after a failed inference")
			}
		})
	}
}

func TestRun_DecodeError(t *testing.T) {
	log := newTestLogger(t)
	p := New(newProvider(t, &fakeEngine{}, log), failingSaver{}, nil, nil, nil, log)

	_, err := p.Run([]byte("garbage"), 0.25, 0.45, "carol")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestRun_MissingModel(t *testing.T) {
	log := newTestLogger(t)
	provider := ai.NewProvider(filepath.Join(t.TempDir(), "missing.onnx"),
		func(string) (ai.Engine, error) { return &fakeEngine{}, nil }, log)
	p := New(provider, failingSaver{}, nil, nil, nil, log)

	for i := 0; i < 2; i++ {
		_, err := p.Run(encodeJPEG(t, 32, 32), 0.25, 0.45, "carol")
		var loadErr *ai.ModelLoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("attempt %d: expected ModelLoadError, got %v", i, err)
		}
	}
}

func TestRun_OversizedUpload(t *testing.T) {
	log := newTestLogger(t)
	engine := &fakeEngine{}
	notifier := &recordingNotifier{}
	p := New(newProvider(t, engine, log), failingSaver{}, nil, nil, notifier, log)
	p.SetMaxPixels(32 * 32)

	_, err := p.Run(encodeJPEG(t, 33, 32), 0.25, 0.45, "carol")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if !engine.seen.Empty() {
		t.Error("engine should not run on a rejected upload")
	}
	if stages := notifier.stages(); len(stages) == 0 || stages[len(stages)-1] != model.StageFailed {
		t.Errorf("expected a failed stage, got %v", stages)
	}

	if _, err := p.Run(pngHeader(13500, 13500), 0.25, 0.45, "carol"); !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError for a 182M pixel header, got %v", err)
	}
}
