// Package pipeline connects an upload to the detection model and the
// per-user artifact store.
package pipeline

import (
	"encoding/json"
	"fmt"
	"image"

	"malariascope/internal/logger"
	"malariascope/internal/model"
	"malariascope/internal/repository"
	"malariascope/internal/service/ai"

	"github.com/sirupsen/logrus"
)

// ModelProvider hands out the shared detection engine.
type ModelProvider interface {
	Get() (ai.Engine, error)
}

// ArtifactSaver persists the normalized and annotated images of a run.
type ArtifactSaver interface {
	Save(original, annotated image.Image, username string) (*model.ArtifactPair, error)
}

// Notifier pushes status messages to a user's open pages.
type Notifier interface {
	Notify(username string, message []byte)
}

// Result is everything a page needs to show one run.
type Result struct {
	Original   image.Image
	Annotated  *image.RGBA
	Detections []ai.Detection
	Confidence float64
	IoU        float64
	Pair       *model.ArtifactPair
	SaveErr    error // set when detection worked but persisting did not
}

type Pipeline struct {
	models        ModelProvider
	artifacts     ArtifactSaver
	runRepo       repository.RunRepository
	detectionRepo repository.DetectionRepository
	notifier      Notifier
	logger        *logger.Logger
	maxPixels     int
}

// New builds a Pipeline. The repositories and notifier may be nil.
func New(models ModelProvider, artifacts ArtifactSaver, runRepo repository.RunRepository,
	detectionRepo repository.DetectionRepository, notifier Notifier, logger *logger.Logger) *Pipeline {
	return &Pipeline{
		models:        models,
		artifacts:     artifacts,
		runRepo:       runRepo,
		detectionRepo: detectionRepo,
		notifier:      notifier,
		logger:        logger,
		maxPixels:     DefaultMaxPixels,
	}
}

// SetMaxPixels changes the decoded size limit for uploads.
func (p *Pipeline) SetMaxPixels(n int) {
	p.maxPixels = n
}

// Run decodes raw, normalizes it, detects, annotates and saves both images
// under username. A returned error means nothing was rendered; a save
// failure is reported through Result.SaveErr instead.
func (p *Pipeline) Run(raw []byte, confidence, iou float64, username string) (*Result, error) {
	p.notify(username, model.StageProcessing, "Analyzing blood sample...")

	decoded, err := Decode(raw, p.maxPixels)
	if err != nil {
		p.fail(username, err)
		return nil, err
	}
	normalized := Normalize(decoded)

	engine, err := p.models.Get()
	if err != nil {
		p.fail(username, err)
		return nil, err
	}

	detections, err := detect(engine, normalized, confidence, iou)
	if err != nil {
		p.fail(username, err)
		return nil, err
	}
	p.logger.With(logrus.Fields{"user": username, "detections": len(detections)}).
		Infof("Detection finished (conf=%.2f, iou=%.2f)", confidence, iou)

	result := &Result{
		Original:   normalized,
		Annotated:  ai.Annotate(normalized, detections),
		Detections: detections,
		Confidence: confidence,
		IoU:        iou,
	}

	pair, err := p.artifacts.Save(result.Original, result.Annotated, username)
	if err != nil {
		result.SaveErr = err
		p.fail(username, err)
		return result, nil
	}
	result.Pair = pair

	p.record(result)
	p.notify(username, model.StageDone, fmt.Sprintf("Results saved to %s/", pair.Dir()))
	return result, nil
}

// detect converts a panicking engine into an InferenceError for this run only.
func detect(engine ai.Engine, img image.Image, confidence, iou float64) (detections []ai.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			detections = nil
			err = &ai.InferenceError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	detections, err = engine.Detect(img, confidence, iou)
	if err != nil {
		return nil, &ai.InferenceError{Err: err}
	}
	return detections, nil
}

// record indexes a saved run. Index failures are logged, the files are the
// source of truth.
func (p *Pipeline) record(result *Result) {
	if p.runRepo == nil {
		return
	}

	run := &model.Run{
		Username:       result.Pair.Username,
		Timestamp:      result.Pair.Timestamp,
		InputPath:      result.Pair.InputPath,
		OutputPath:     result.Pair.OutputPath,
		Confidence:     result.Confidence,
		IoU:            result.IoU,
		DetectionCount: len(result.Detections),
	}
	runID, err := p.runRepo.Insert(run)
	if err != nil {
		p.logger.Error("Error saving run to database %s: %v", run.InputPath, err)
		return
	}

	if p.detectionRepo == nil || len(result.Detections) == 0 {
		return
	}
	dbDetections := make([]model.Detection, 0, len(result.Detections))
	for _, det := range result.Detections {
		dbDetections = append(dbDetections, model.Detection{
			RunID:      runID,
			Label:      det.Label,
			X:          det.X,
			Y:          det.Y,
			Width:      det.Width,
			Height:     det.Height,
			Confidence: det.Confidence,
		})
	}
	if err := p.detectionRepo.InsertBatch(dbDetections); err != nil {
		p.logger.Error("Error saving detections to database: %v", err)
	}
}

func (p *Pipeline) fail(username string, err error) {
	p.logger.With(logrus.Fields{"user": username}).Warnf("Run failed: %v", err)
	p.notify(username, model.StageFailed, err.Error())
}

func (p *Pipeline) notify(username, stage, message string) {
	if p.notifier == nil {
		return
	}
	payload, err := json.Marshal(model.RunEvent{Stage: stage, Message: message})
	if err != nil {
		p.logger.Error("Error encoding run event: %v", err)
		return
	}
	p.notifier.Notify(username, payload)
}
