package ai

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LineWidth is the box outline thickness in pixels.
const LineWidth = 3

var palette = []color.RGBA{
	{0xFF, 0x38, 0x38, 0xFF}, {0xFF, 0x9D, 0x97, 0xFF}, {0xFF, 0x70, 0x1F, 0xFF}, {0xFF, 0xB2, 0x1D, 0xFF},
	{0xCF, 0xD2, 0x31, 0xFF}, {0x48, 0xF9, 0x0A, 0xFF}, {0x92, 0xCC, 0x17, 0xFF}, {0x3D, 0xDB, 0x86, 0xFF},
	{0x1A, 0x93, 0x34, 0xFF}, {0x00, 0xD4, 0xBB, 0xFF}, {0x2C, 0x99, 0xA8, 0xFF}, {0x00, 0xC2, 0xFF, 0xFF},
	{0x34, 0x45, 0x93, 0xFF}, {0x64, 0x73, 0xFF, 0xFF}, {0x00, 0x18, 0xEC, 0xFF}, {0x84, 0x38, 0xFF, 0xFF},
}

// ClassColor returns the outline color used for a class.
func ClassColor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

// Annotate draws every detection as a box with a "label 0.87" tag over a
// copy of img. img itself is left untouched.
func Annotate(img image.Image, detections []Detection) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	for _, d := range detections {
		c := ClassColor(d.ClassID)
		rect := d.Rect().Sub(b.Min)
		drawBox(out, rect, c)
		drawLabel(out, rect, fmt.Sprintf("%s %.2f", d.Label, d.Confidence), c)
	}

	return out
}

func drawBox(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	src := image.NewUniform(c)
	lw := LineWidth
	if r.Dx() < 2*lw || r.Dy() < 2*lw {
		draw.Draw(dst, r, src, image.Point{}, draw.Src)
		return
	}
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+lw), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-lw, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+lw, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Max.X-lw, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
}

func drawLabel(dst *image.RGBA, box image.Rectangle, text string, c color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 4
	height := face.Metrics().Height.Ceil() + 2

	// Tag sits above the box unless that would leave the image.
	top := box.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = box.Min.Y
	}
	tag := image.Rect(box.Min.X, top, box.Min.X+width, top+height)
	draw.Draw(dst, tag, image.NewUniform(c), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(tag.Min.X+2, tag.Min.Y+face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(text)
}
