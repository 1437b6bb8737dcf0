// Package onnx runs an exported YOLO graph through ONNX Runtime.
package onnx

import (
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"malariascope/internal/service/ai"
)

// Engine holds one session with preallocated input and output tensors, so
// Detect calls are serialized.
type Engine struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	head    ai.Head
	labels  []string
}

// New initializes the runtime from libPath and opens modelPath. The class
// count comes from labels since the tensors are allocated up front.
func New(modelPath, libPath string, inputSize int, labels []string) (*Engine, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("onnxruntime backend needs class names (LABELS_PATH)")
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	head := ai.Head{Classes: len(labels), Anchors: ai.AnchorsFor(inputSize), InputSize: inputSize}

	inputShape := ort.NewShape(1, 3, int64(inputSize), int64(inputSize))
	inputTensor, err := ort.NewTensor(inputShape, make([]float32, 3*inputSize*inputSize))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, err
	}

	outputShape := ort.NewShape(1, int64(4+head.Classes), int64(head.Anchors))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, err
	}

	return &Engine{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		head:    head,
		labels:  labels,
	}, nil
}

// Loader adapts New to ai.Loader.
func Loader(libPath string, inputSize int, labels []string) ai.Loader {
	return func(modelPath string) (ai.Engine, error) {
		engine, err := New(modelPath, libPath, inputSize, labels)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

func (e *Engine) Detect(img image.Image, confidence, iou float64) ([]ai.Detection, error) {
	input := ai.ToCHW(img, e.head.InputSize)

	e.mu.Lock()
	copy(e.input.GetData(), input)
	if err := e.session.Run(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	output := make([]float32, len(e.output.GetData()))
	copy(output, e.output.GetData())
	e.mu.Unlock()

	return e.head.Decode(output, img.Bounds(), confidence, iou, e.labels)
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Destroy()
	e.input.Destroy()
	e.output.Destroy()
	return ort.DestroyEnvironment()
}
