package model

import (
	"path/filepath"
	"time"
)

// ArtifactPair is the persisted evidence of one pipeline run.
type ArtifactPair struct {
	Username   string    `json:"username"`
	Timestamp  time.Time `json:"timestamp"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path"`
}

// Dir is the per-user directory both files live in.
func (p ArtifactPair) Dir() string {
	return filepath.Dir(p.InputPath)
}

// Run is an indexed pipeline run.
type Run struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Timestamp      time.Time `json:"timestamp"`
	InputPath      string    `json:"input_path"`
	OutputPath     string    `json:"output_path"`
	Confidence     float64   `json:"confidence"`
	IoU            float64   `json:"iou"`
	DetectionCount int       `json:"detection_count"`
}

// RunFilter narrows run queries to one user and a page.
type RunFilter struct {
	Username string
	Limit    int
	Offset   int
}
