package ai

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/nfnt/resize"
)

const (
	// MaxCandidates caps boxes entering suppression.
	MaxCandidates = 30000
	// MaxDetections caps boxes reported per image.
	MaxDetections = 300
)

// Head describes a YOLOv8 detection output of shape [1, 4+Classes, Anchors]:
// rows cx, cy, w, h in input pixels, then one score row per class.
type Head struct {
	Classes   int
	Anchors   int
	InputSize int
}

// AnchorsFor returns the anchor count of a stride 8/16/32 head for a square input.
func AnchorsFor(inputSize int) int {
	total := 0
	for _, stride := range []int{8, 16, 32} {
		n := inputSize / stride
		total += n * n
	}
	return total
}

// Decode filters the raw output by confidence, scales boxes into bounds and
// applies per-class non-maximum suppression. Results are ordered by
// descending confidence.
func (h Head) Decode(output []float32, bounds image.Rectangle, confidence, iou float64, labels []string) ([]Detection, error) {
	if h.Classes <= 0 || h.Anchors <= 0 || h.InputSize <= 0 {
		return nil, fmt.Errorf("invalid output head %+v", h)
	}
	if want := (4 + h.Classes) * h.Anchors; len(output) < want {
		return nil, fmt.Errorf("model output has %d values, want %d", len(output), want)
	}

	scaleX := float64(bounds.Dx()) / float64(h.InputSize)
	scaleY := float64(bounds.Dy()) / float64(h.InputSize)
	n := h.Anchors

	var boxes []Detection
	for i := 0; i < n; i++ {
		classID, prob := 0, float32(0)
		for j := 0; j < h.Classes; j++ {
			if curr := output[n*(j+4)+i]; curr > prob {
				prob = curr
				classID = j
			}
		}

		if float64(prob) <= confidence {
			continue
		}

		xc := float64(output[i])
		yc := float64(output[n+i])
		w := float64(output[2*n+i])
		hh := float64(output[3*n+i])

		rect := image.Rect(
			bounds.Min.X+int(math.Round((xc-w/2)*scaleX)),
			bounds.Min.Y+int(math.Round((yc-hh/2)*scaleY)),
			bounds.Min.X+int(math.Round((xc+w/2)*scaleX)),
			bounds.Min.Y+int(math.Round((yc+hh/2)*scaleY)),
		).Intersect(bounds)
		if rect.Empty() {
			continue
		}

		boxes = append(boxes, Detection{
			ClassID:    classID,
			Label:      LabelFor(labels, classID),
			Confidence: float64(prob),
			X:          rect.Min.X,
			Y:          rect.Min.Y,
			Width:      rect.Dx(),
			Height:     rect.Dy(),
		})
	}

	return NonMaxSuppression(boxes, iou), nil
}

// NonMaxSuppression keeps the highest scoring box of every overlapping group
// of the same class. Boxes overlapping a kept box by more than iouThreshold
// are dropped.
func NonMaxSuppression(boxes []Detection, iouThreshold float64) []Detection {
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Confidence > boxes[j].Confidence
	})
	if len(boxes) > MaxCandidates {
		boxes = boxes[:MaxCandidates]
	}

	detections := []Detection{}
	selected := make([]bool, len(boxes))
	for i := 0; i < len(boxes); i++ {
		if selected[i] {
			continue
		}

		detections = append(detections, boxes[i])
		selected[i] = true
		if len(detections) == MaxDetections {
			break
		}

		for j := i + 1; j < len(boxes); j++ {
			if selected[j] || boxes[j].ClassID != boxes[i].ClassID {
				continue
			}
			if CalculateIoU(boxes[i], boxes[j]) > iouThreshold {
				selected[j] = true
			}
		}
	}

	return detections
}

// CalculateIoU returns intersection over union of two boxes.
func CalculateIoU(a, b Detection) float64 {
	inter := a.Rect().Intersect(b.Rect())
	if inter.Empty() {
		return 0
	}
	intersectionArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Width*a.Height+b.Width*b.Height) - intersectionArea
	if union <= 0 {
		return 0
	}
	return intersectionArea / union
}

// ToCHW resamples img to size×size and lays it out as normalized planar RGB.
func ToCHW(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	min := resized.Bounds().Min
	plane := size * size
	input := make([]float32, plane*3)

	idx := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(min.X+x, min.Y+y).RGBA()
			input[idx] = float32(r>>8) / 255.0
			input[idx+plane] = float32(g>>8) / 255.0
			input[idx+2*plane] = float32(b>>8) / 255.0
			idx++
		}
	}

	return input
}
