package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"malariascope/internal/app"
	"malariascope/internal/config"
	"malariascope/internal/service/ai"
	"malariascope/internal/service/ai/onnx"
	"malariascope/internal/service/ai/opencv"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the detection web interface",
		Long: `Loads the detection model and starts the web interface.

The model is read from MODEL_PATH with the backend named by MODEL_BACKEND
(opencv or onnxruntime). A missing or invalid model stops the command before
the server starts.`,
		Example: `  # Start server on the port from PORT (default 8080)
  malariascope serve

  # Start server on a custom port
  malariascope serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			loader, err := buildLoader(cfg)
			if err != nil {
				return err
			}

			application, err := app.New(cfg, loader)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")

	return cmd
}

// buildLoader picks the inference backend and its class names.
func buildLoader(cfg *config.Config) (ai.Loader, error) {
	var labels []string
	if cfg.LabelsPath != "" {
		loaded, err := ai.LoadLabels(cfg.LabelsPath)
		if err != nil {
			return nil, err
		}
		labels = loaded
	}

	switch cfg.ModelBackend {
	case config.BackendOpenCV:
		return opencv.Loader(cfg.ModelInputSize, labels), nil
	case config.BackendONNXRuntime:
		if len(labels) == 0 {
			return nil, fmt.Errorf("MODEL_BACKEND=%s needs LABELS_PATH to know the class count", cfg.ModelBackend)
		}
		return onnx.Loader(cfg.ONNXRuntimeLib, cfg.ModelInputSize, labels), nil
	default:
		return nil, fmt.Errorf("unknown MODEL_BACKEND %q, expected %s or %s",
			cfg.ModelBackend, config.BackendOpenCV, config.BackendONNXRuntime)
	}
}
