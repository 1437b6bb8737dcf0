package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"malariascope/internal/logger"
)

// Detection is one region reported by the model, in pixel coordinates of
// the image that was passed to Detect.
type Detection struct {
	ClassID    int
	Label      string
	Confidence float64
	X          int
	Y          int
	Width      int
	Height     int
}

func (d Detection) Rect() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
}

// Engine is the opaque detection capability. Implementations must be safe
// for concurrent use.
type Engine interface {
	Detect(img image.Image, confidence, iou float64) ([]Detection, error)
	Close() error
}

// Loader builds an Engine from a model artifact on disk.
type Loader func(modelPath string) (Engine, error)

// ModelLoadError means the model artifact is missing or unusable. It is
// sticky: a Provider that failed once keeps failing until restart.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load detection model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// InferenceError wraps a failure raised while the model was running.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Provider lazily loads the model once and hands out the same Engine for the
// lifetime of the process.
type Provider struct {
	modelPath string
	loader    Loader
	logger    *logger.Logger

	once   sync.Once
	engine Engine
	err    error
}

func NewProvider(modelPath string, loader Loader, logger *logger.Logger) *Provider {
	return &Provider{
		modelPath: modelPath,
		loader:    loader,
		logger:    logger,
	}
}

// Get returns the cached engine, loading it on first call.
func (p *Provider) Get() (Engine, error) {
	p.once.Do(func() {
		if _, err := os.Stat(p.modelPath); err != nil {
			p.err = &ModelLoadError{Path: p.modelPath, Err: err}
			p.logger.Error("Model file unavailable: %v", err)
			return
		}

		engine, err := p.loader(p.modelPath)
		if err != nil {
			p.err = &ModelLoadError{Path: p.modelPath, Err: err}
			p.logger.Error("Could not initialize detection model: %v", err)
			return
		}

		p.engine = engine
		p.logger.Info("Detection model loaded from %s", p.modelPath)
	})
	return p.engine, p.err
}

// Close releases the engine if it was ever loaded.
func (p *Provider) Close() error {
	if p.engine == nil {
		return nil
	}
	return p.engine.Close()
}
