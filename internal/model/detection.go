package model

// Detection represents a detected region stored for a run.
type Detection struct {
	ID         int64   `json:"id"`
	RunID      int64   `json:"run_id"`
	Label      string  `json:"label"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Run stages pushed to a user's viewers.
const (
	StageProcessing = "processing"
	StageDone       = "done"
	StageFailed     = "failed"
)

// RunEvent is a status update for the user's open pages.
type RunEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}
