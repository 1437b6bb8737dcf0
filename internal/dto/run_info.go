package dto

import (
	"encoding/json"
	"time"

	"malariascope/internal/model"
)

// RunInfo is one entry of a user's run history.
type RunInfo struct {
	ID             int64             `json:"id"`
	Date           time.Time         `json:"date"`
	TimeOfDay      time.Time         `json:"timeOfDay"`
	Confidence     float64           `json:"confidence"`
	IoU            float64           `json:"iou"`
	DetectionCount int               `json:"detectionCount"`
	Labels         []string          `json:"labels"`
	Detections     []model.Detection `json:"detections"`
	InputURL       string            `json:"inputUrl"`
	OutputURL      string            `json:"outputUrl"`
}

// MarshalJSON formats the date and time of day of the run.
func (r RunInfo) MarshalJSON() ([]byte, error) {
	type Alias RunInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      r.Date.Format("02-01-2006"),
		TimeOfDay: r.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(r),
	})
}
