package handler

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"malariascope/internal/config"
	"malariascope/internal/dto"
	"malariascope/internal/logger"
	"malariascope/internal/service/ai"
	"malariascope/internal/service/pipeline"
	"malariascope/internal/service/storage"
)

// IndexHandler handles GET / by rendering the upload page with no result.
func IndexHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		page := newPage(cfg, sess)
		page.Flashes = append(page.Flashes, dto.Flash{
			Kind:    dto.FlashInfo,
			Message: "Upload a blood smear image to begin detection.",
		})
		render(w, logger, http.StatusOK, "index.html", page)
	}
}

// DetectHandler handles POST /detect: the uploaded image runs through the
// pipeline and the page is rendered with both images and the save status.
func DetectHandler(cfg *config.Config, p *pipeline.Pipeline, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		page := newPage(cfg, sess)
		fail := func(status int, message string) {
			page.Flashes = append(page.Flashes, dto.Flash{Kind: dto.FlashError, Message: message})
			render(w, logger, status, "index.html", page)
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)
		if err := r.ParseMultipartForm(cfg.MaxUploadSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				fail(http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d MB.", cfg.MaxUploadSize>>20))
				return
			}
			fail(http.StatusBadRequest, "Upload a blood smear image to begin detection.")
			return
		}

		page.Confidence = parseThreshold(r.FormValue("confidence"), cfg.DefaultConfidence)
		page.IoU = parseThreshold(r.FormValue("iou"), cfg.DefaultIoU)

		file, header, err := r.FormFile("image")
		if err != nil {
			fail(http.StatusBadRequest, "Upload a blood smear image to begin detection.")
			return
		}
		defer file.Close()

		if err := pipeline.CheckUploadType(header.Filename); err != nil {
			logger.Warning("Rejected upload %q from %s", header.Filename, sess.User)
			fail(http.StatusBadRequest, err.Error())
			return
		}

		raw, err := io.ReadAll(file)
		if err != nil {
			logger.Error("Error reading upload from %s: %v", sess.User, err)
			fail(http.StatusBadRequest, "Could not read the uploaded file.")
			return
		}

		result, err := p.Run(raw, page.Confidence, page.IoU, sess.User)
		if err != nil {
			var decodeErr *pipeline.DecodeError
			var loadErr *ai.ModelLoadError
			var inferenceErr *ai.InferenceError
			switch {
			case errors.As(err, &decodeErr):
				fail(http.StatusBadRequest, "The uploaded file is not a readable image.")
			case errors.As(err, &loadErr):
				fail(http.StatusServiceUnavailable, "Detection model unavailable: "+loadErr.Err.Error())
			case errors.As(err, &inferenceErr):
				fail(http.StatusInternalServerError, "Detection failed: "+inferenceErr.Err.Error())
			default:
				logger.Error("Run for %s failed: %v", sess.User, err)
				fail(http.StatusInternalServerError, "Detection failed.")
			}
			return
		}

		view, err := resultView(result)
		if err != nil {
			logger.Error("Error encoding result images: %v", err)
			fail(http.StatusInternalServerError, "Could not display the result.")
			return
		}
		page.Result = view

		var writeErr *storage.WriteError
		switch {
		case result.SaveErr == nil:
			page.Flashes = append(page.Flashes, dto.Flash{
				Kind:    dto.FlashSuccess,
				Message: "Results saved to",
				Code:    result.Pair.Dir() + "/",
			})
		case errors.As(result.SaveErr, &writeErr):
			page.Flashes = append(page.Flashes, dto.Flash{
				Kind:    dto.FlashError,
				Message: "Results could not be saved: " + writeErr.Err.Error(),
			})
		default:
			page.Flashes = append(page.Flashes, dto.Flash{
				Kind:    dto.FlashError,
				Message: "Results could not be saved: " + result.SaveErr.Error(),
			})
		}

		render(w, logger, http.StatusOK, "index.html", page)
	}
}

func resultView(result *pipeline.Result) (*dto.ResultView, error) {
	input, err := dataURI(result.Original)
	if err != nil {
		return nil, err
	}
	output, err := dataURI(result.Annotated)
	if err != nil {
		return nil, err
	}

	view := &dto.ResultView{InputURI: input, OutputURI: output}
	for _, det := range result.Detections {
		view.Detections = append(view.Detections, dto.DetectionRow{
			Label:      det.Label,
			Confidence: fmt.Sprintf("%.2f", det.Confidence),
			Box:        fmt.Sprintf("%d,%d %dx%d", det.X, det.Y, det.Width, det.Height),
		})
	}
	return view, nil
}

// parseThreshold reads a slider value, clamping it into [0, 1]. Missing or
// malformed values fall back to def.
func parseThreshold(v string, def float64) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return def
	}
	return math.Min(1, math.Max(0, f))
}
