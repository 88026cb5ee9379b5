package utils

import (
	"image"

	"github.com/disintegration/imaging"
)

// Gray is an 8-bit grayscale plane with row-major pixel data.
type Gray struct {
	Pix    []uint8
	Width  int
	Height int
}

// ToGray converts an image into a grayscale plane.
func ToGray(img image.Image) *Gray {
	g := imaging.Grayscale(img)
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &Gray{Pix: make([]uint8, w*h), Width: w, Height: h}
	for y := range h {
		row := y * g.Stride
		for x := range w {
			// NRGBA grayscale: R == G == B
			out.Pix[y*w+x] = g.Pix[row+x*4]
		}
	}
	return out
}

// At returns the pixel value at (x, y), or 255 (white) outside bounds.
func (g *Gray) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return 255
	}
	return g.Pix[y*g.Width+x]
}

// BilinearAt samples the plane at a fractional position.
func (g *Gray) BilinearAt(x, y float64) float64 {
	x0, y0 := int(x), int(y)
	fx, fy := x-float64(x0), y-float64(y0)
	v00 := float64(g.At(x0, y0))
	v10 := float64(g.At(x0+1, y0))
	v01 := float64(g.At(x0, y0+1))
	v11 := float64(g.At(x0+1, y0+1))
	top := v00*(1-fx) + v10*fx
	bot := v01*(1-fx) + v11*fx
	return top*(1-fy) + bot*fy
}

// OtsuThreshold computes a global binarization threshold from the histogram.
// Pixels darker than the threshold are considered ink.
func (g *Gray) OtsuThreshold() uint8 {
	var hist [256]int
	for _, p := range g.Pix {
		hist[p]++
	}
	total := len(g.Pix)
	if total == 0 {
		return 128
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	var maxVar float64
	best := 128
	for t := range 256 {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > maxVar {
			maxVar = between
			best = t
		}
	}
	return uint8(best)
}

// Binarize returns a mask where true marks ink (pixels at or below threshold).
func (g *Gray) Binarize(threshold uint8) []bool {
	mask := make([]bool, len(g.Pix))
	for i, p := range g.Pix {
		if p <= threshold {
			mask[i] = true
		}
	}
	return mask
}
