package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
)

// TargetSize is the edge every upload is stretched to. Aspect ratio is not
// preserved, which distorts non-square smears.
const TargetSize = 1024

// DefaultMaxPixels caps the decoded size of an upload, matching the usual
// decompression bomb limit of image libraries.
const DefaultMaxPixels = 89_478_485

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// UnsupportedTypeError rejects an upload by its file extension.
type UnsupportedTypeError struct {
	Filename string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q: upload a jpg, jpeg or png image", filepath.Ext(e.Filename))
}

// DecodeError means the upload bytes are not a supported raster image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CheckUploadType accepts jpg, jpeg and png file names, case-insensitively.
func CheckUploadType(filename string) error {
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return &UnsupportedTypeError{Filename: filename}
	}
	return nil
}

// Decode parses data and drops any alpha channel, leaving opaque RGB. Images
// whose header declares more than maxPixels pixels are rejected before any
// pixel data is read; maxPixels <= 0 uses DefaultMaxPixels.
func Decode(data []byte, maxPixels int) (*image.RGBA, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, &DecodeError{Err: fmt.Errorf("image is %dx%d, limit is %d pixels", cfg.Width, cfg.Height, maxPixels)}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return toRGB(img), nil
}

func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
		}
	}
	return out
}

// Normalize stretches img to TargetSize×TargetSize. Images already at that
// size are returned as is.
func Normalize(img image.Image) image.Image {
	size := img.Bounds().Size()
	if size.X == TargetSize && size.Y == TargetSize {
		return img
	}
	return resize.Resize(TargetSize, TargetSize, img, resize.Bicubic)
}
