package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	BackendOpenCV      = "opencv"
	BackendONNXRuntime = "onnxruntime"
)

type Config struct {
	Port              int
	ModelPath         string
	ModelBackend      string // opencv or onnxruntime
	ONNXRuntimeLib    string // shared library used by the onnxruntime backend
	ModelInputSize    int    // square input edge the network was exported with
	LabelsPath        string // optional data.yaml with class names
	ResultsDirectory  string
	DatabasePath      string
	LogDirectory      string
	DefaultConfidence float64
	DefaultIoU        float64
	MaxUploadSize     int64 // bytes
	MaxUploadPixels   int   // decoded width*height
	SessionTTL        time.Duration
}

func Load() *Config {
	return &Config{
		Port:              getEnvAsInt("PORT", 8080),
		ModelPath:         getEnv("MODEL_PATH", filepath.Join(".", "models", "best.onnx")),
		ModelBackend:      getEnv("MODEL_BACKEND", BackendOpenCV),
		ONNXRuntimeLib:    getEnv("ONNXRUNTIME_LIB", filepath.Join(".", "third_party", "onnxruntime.so")),
		ModelInputSize:    getEnvAsInt("MODEL_INPUT_SIZE", 640),
		LabelsPath:        getEnv("LABELS_PATH", ""),
		ResultsDirectory:  getEnv("RESULTS_DIR", "results"),
		DatabasePath:      getEnv("DB_PATH", filepath.Join("data", "malariascope.db")),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DefaultConfidence: getEnvAsFloat("DEFAULT_CONFIDENCE", 0.25),
		DefaultIoU:        getEnvAsFloat("DEFAULT_IOU", 0.45),
		MaxUploadSize:     getEnvAsInt64("MAX_UPLOAD_MB", 32) << 20,
		MaxUploadPixels:   getEnvAsInt("MAX_UPLOAD_PIXELS", 89_478_485),
		SessionTTL:        time.Duration(getEnvAsInt("SESSION_TTL_HOURS", 12)) * time.Hour,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat only accepts values inside [0, 1]; thresholds are its only users.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	return defaultValue
}
