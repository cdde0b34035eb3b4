// Package presence flags human presence from frame-to-frame pixel change.
package presence

import (
	"image"

	"golang.org/x/image/draw"
)

// Sampling canvas. Frames are scaled to this width before comparison.
const (
	SampleWidth     = 160
	MinSampleHeight = 90
)

// Frame is a downsampled RGBA capture ready for differencing.
type Frame struct {
	img *image.RGBA
}

// NewFrame scales src onto the sampling canvas, keeping its aspect ratio.
func NewFrame(src image.Image) Frame {
	b := src.Bounds()
	h := MinSampleHeight
	if b.Dx() > 0 {
		if ph := b.Dy() * SampleWidth / b.Dx(); ph > h {
			h = ph
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, SampleWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return Frame{img: dst}
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool { return f.img == nil || len(f.img.Pix) == 0 }

// Bounds returns the sampled size.
func (f Frame) Bounds() image.Rectangle {
	if f.img == nil {
		return image.Rectangle{}
	}
	return f.img.Bounds()
}

// diff returns the mean absolute RGB difference between a and b in [0,1],
// visiting every fourth pixel. ok is false when the frames cannot be compared.
func diff(a, b Frame) (avg float64, ok bool) {
	if a.Empty() || b.Empty() || len(a.img.Pix) != len(b.img.Pix) {
		return 0, false
	}
	var sum, count int
	pa, pb := a.img.Pix, b.img.Pix
	for i := 0; i+2 < len(pa); i += 16 {
		sum += absInt(int(pa[i])-int(pb[i])) +
			absInt(int(pa[i+1])-int(pb[i+1])) +
			absInt(int(pa[i+2])-int(pb[i+2]))
		count++
	}
	if count == 0 {
		return 0, false
	}
	return float64(sum) / float64(count*255*3), true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
