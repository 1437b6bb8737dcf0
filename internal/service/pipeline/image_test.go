package pipeline

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeNormalize_AlwaysTargetSize(t *testing.T) {
	sizes := []struct {
		w, h int
	}{
		{512, 512},
		{1024, 1024},
		{2048, 1536},
		{37, 901},
		{1, 1},
	}

	for _, sz := range sizes {
		decoded, err := Decode(encodeJPEG(t, sz.w, sz.h), 0)
		if err != nil {
			t.Fatalf("Decode %dx%d failed: %v", sz.w, sz.h, err)
		}
		got := Normalize(decoded).Bounds().Size()
		if got.X != TargetSize || got.Y != TargetSize {
			t.Errorf("%dx%d normalized to %v", sz.w, sz.h, got)
		}
	}
}

func TestNormalize_KeepsTargetSizedImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, TargetSize, TargetSize))
	if Normalize(img) != image.Image(img) {
		t.Error("expected an already normalized image to be returned unchanged")
	}
}

func TestDecode_DropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 10, B: 20, A: 0})
	src.SetNRGBA(1, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 128})

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}

	decoded, err := Decode(buf.Bytes(), 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := decoded.RGBAAt(0, 0); got != (color.RGBA{R: 255, G: 10, B: 20, A: 255}) {
		t.Errorf("unexpected pixel %v", got)
	}
	if got := decoded.RGBAAt(1, 1); got != (color.RGBA{R: 1, G: 2, B: 3, A: 255}) {
		t.Errorf("unexpected pixel %v", got)
	}
}

func TestDecode_InvalidBytes(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"), 0)

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decodeErr.Unwrap() == nil {
		t.Error("expected the decoder error to be wrapped")
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w×h grayscale
// image, with no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth, color type 0, default compression, filter, interlace

	chunk := append([]byte("IHDR"), ihdr...)
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecode_RejectsOversizedImage(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		maxPixels int
	}{
		{"header declares 182M pixels", pngHeader(13500, 13500), 0},
		{"header declares 400M pixels", pngHeader(20000, 20000), 0},
		{"small image over a custom limit", encodeJPEG(t, 10, 10), 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := Decode(tt.data, tt.maxPixels)
			if decoded != nil {
				t.Error("expected no image for an oversized upload")
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
		})
	}
}

func TestDecode_AcceptsImageAtLimit(t *testing.T) {
	decoded, err := Decode(encodeJPEG(t, 10, 10), 100)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := decoded.Bounds().Size(); got.X != 10 || got.Y != 10 {
		t.Errorf("unexpected size %v", got)
	}
}

func TestCheckUploadType(t *testing.T) {
	tests := []struct {
		filename string
		ok       bool
	}{
		{"smear.jpg", true},
		{"smear.JPEG", true},
		{"slide.Png", true},
		{"smear.gif", false},
		{"smear.bmp", false},
		{"smear", false},
		{"smear.jpg.exe", false},
	}

	for _, tt := range tests {
		err := CheckUploadType(tt.filename)
		if tt.ok && err != nil {
			t.Errorf("CheckUploadType(%q) = %v, expected nil", tt.filename, err)
		}
		if !tt.ok {
			var typeErr *UnsupportedTypeError
			if !errors.As(err, &typeErr) {
				t.Errorf("CheckUploadType(%q) = %v, expected UnsupportedTypeError", tt.filename, err)
			}
		}
	}
}
