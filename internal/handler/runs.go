package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"malariascope/internal/dto"
	"malariascope/internal/logger"
	"malariascope/internal/model"
	"malariascope/internal/repository"
	"malariascope/internal/service/storage"
)

// GetRunsHandler returns the current user's run history, newest first.
func GetRunsHandler(artifacts *storage.ArtifactStore, logger *logger.Logger,
	runRepo repository.RunRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &model.RunFilter{
			Username: sess.User,
			Limit:    limit,
			Offset:   (page - 1) * limit,
		}

		runs, err := runRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying runs from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := runRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting runs: %v", err)
			totalCount = len(runs)
		}

		infos := []dto.RunInfo{}
		for _, run := range runs {
			labels := []string{}
			boxes := []model.Detection{}
			if detectionRepo != nil {
				found, err := detectionRepo.GetLabelsByRunID(run.ID)
				if err != nil {
					logger.Error("Error getting labels for run %d: %v", run.ID, err)
				} else if found != nil {
					labels = found
				}
				dets, err := detectionRepo.GetByRunID(run.ID)
				if err != nil {
					logger.Error("Error getting detections for run %d: %v", run.ID, err)
				} else if dets != nil {
					boxes = dets
				}
			}

			infos = append(infos, dto.RunInfo{
				ID:             run.ID,
				Date:           run.Timestamp,
				TimeOfDay:      run.Timestamp,
				Confidence:     run.Confidence,
				IoU:            run.IoU,
				DetectionCount: run.DetectionCount,
				Labels:         labels,
				Detections:     boxes,
				InputURL:       fmt.Sprintf("/api/runs/view?id=%d&kind=input", run.ID),
				OutputURL:      fmt.Sprintf("/api/runs/view?id=%d&kind=output", run.ID),
			})
		}

		data := dto.RunsData{
			Runs:        infos,
			ResultsDir:  artifacts.Root(),
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// ViewRunHandler serves the input or output image of a run owned by the
// current user.
func ViewRunHandler(runRepo repository.RunRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok := ownedRun(w, r, runRepo, logger)
		if !ok {
			return
		}

		switch r.URL.Query().Get("kind") {
		case "input":
			http.ServeFile(w, r, run.InputPath)
		case "output", "":
			http.ServeFile(w, r, run.OutputPath)
		default:
			http.Error(w, "kind must be input or output", http.StatusBadRequest)
		}
	}
}

// DeleteRunHandler removes a run's files and its index entry.
func DeleteRunHandler(artifacts *storage.ArtifactStore, runRepo repository.RunRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		run, ok := ownedRun(w, r, runRepo, logger)
		if !ok {
			return
		}

		if err := artifacts.Remove(run.InputPath, run.OutputPath); err != nil {
			logger.Error("Failed to delete files of run %d: %v", run.ID, err)
			http.Error(w, "Unable to delete run files", http.StatusInternalServerError)
			return
		}
		if err := runRepo.Delete(run.ID); err != nil {
			logger.Error("Failed to delete run %d from database: %v", run.ID, err)
			http.Error(w, "Unable to delete run", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted run %d of %s", run.ID, run.Username)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "deleted", "id": run.ID})
	}
}

// ownedRun resolves the id query parameter to a run of the current user.
// Runs of other users are reported as missing.
func ownedRun(w http.ResponseWriter, r *http.Request, runRepo repository.RunRepository, logger *logger.Logger) (*model.Run, bool) {
	sess, ok := currentSession(w, r)
	if !ok {
		return nil, false
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "id parameter is required", http.StatusBadRequest)
		return nil, false
	}

	run, err := runRepo.GetByID(id)
	if err != nil {
		logger.Error("Error loading run %d: %v", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	if run == nil || run.Username != sess.User {
		http.NotFound(w, r)
		return nil, false
	}
	return run, true
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
