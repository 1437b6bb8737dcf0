package repository

import (
	"malariascope/internal/model"
)

// RunRepository defines the interface for run index operations.
type RunRepository interface {
	// Create operations
	Insert(run *model.Run) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Run, error)
	GetAll(filter *model.RunFilter) ([]model.Run, error)
	GetTotalCount(filter *model.RunFilter) (int, error)
	ExistsByInputPath(path string) (bool, error)

	// Delete operations
	Delete(id int64) error
}

// DetectionRepository defines the interface for per-run detection rows.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.Detection) error

	// Read operations
	GetByRunID(runID int64) ([]model.Detection, error)
	GetLabelsByRunID(runID int64) ([]string, error)
}
