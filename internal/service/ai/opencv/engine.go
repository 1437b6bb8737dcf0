// Package opencv runs an exported YOLO ONNX graph through OpenCV's DNN module.
package opencv

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"malariascope/internal/service/ai"
)

type Engine struct {
	mu        sync.Mutex
	net       gocv.Net
	inputSize int
	labels    []string
}

// New loads the network and sets backend/target preferences.
func New(modelPath string, inputSize int, labels []string) (*Engine, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &Engine{
		net:       net,
		inputSize: inputSize,
		labels:    labels,
	}, nil
}

// Loader adapts New to ai.Loader.
func Loader(inputSize int, labels []string) ai.Loader {
	return func(modelPath string) (ai.Engine, error) {
		engine, err := New(modelPath, inputSize, labels)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

func (e *Engine) Detect(img image.Image, confidence, iou float64) ([]ai.Detection, error) {
	// ImageToMatRGB lays pixels out as BGR; BlobFromImage swaps them back.
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("converted image is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(e.inputSize, e.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.mu.Lock()
	e.net.SetInput(blob, "")
	output := e.net.Forward("")
	e.mu.Unlock()
	defer output.Close()

	// Output is [1, 4+classes, anchors].
	dims := output.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	values := make([]float32, len(data))
	copy(values, data)

	head := ai.Head{Classes: dims[1] - 4, Anchors: dims[2], InputSize: e.inputSize}
	return head.Decode(values, img.Bounds(), confidence, iou, e.labels)
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}
