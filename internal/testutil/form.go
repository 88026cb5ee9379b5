// Package testutil renders synthetic filled bubble-sheet images for tests
// and the genform command.
package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/eduscan/markscan/internal/template"
	"github.com/eduscan/markscan/internal/utils"
)

// CellMark names one extra bubble to fill, e.g. to fabricate a double mark.
type CellMark struct {
	Subject  string
	Question int
	Option   int
}

// FormFill describes how a synthetic form is filled in.
type FormFill struct {
	// StudentNumber is marked digit by digit; shorter strings leave the
	// remaining columns blank.
	StudentNumber string
	// Answers maps subject to option labels per question ("" leaves the
	// question blank). Missing subjects are left fully blank.
	Answers map[string][]string
	// Extra fills additional answer bubbles on top of Answers.
	Extra []CellMark
	// SkipFiducials omits the fiducial marks at the given corner indices.
	SkipFiducials []int
	// Rotate rotates the rendered form by the given degrees.
	Rotate float64
	// Scale is the pixel size of one logical unit (default 10).
	Scale float64
}

// RenderForm draws a filled form for the template.
func RenderForm(tpl *template.Template, fill FormFill) image.Image {
	scale := fill.Scale
	if scale <= 0 {
		scale = 10
	}
	w := int(tpl.Width * scale)
	h := int(tpl.Height * scale)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	black := color.RGBA{A: 255}

	skip := make(map[int]bool, len(fill.SkipFiducials))
	for _, i := range fill.SkipFiducials {
		skip[i] = true
	}
	for i, f := range tpl.Fiducials {
		if skip[i] {
			continue
		}
		half := f.Size * scale / 2
		fillRect(img,
			int(f.X*scale-half), int(f.Y*scale-half),
			int(f.X*scale+half), int(f.Y*scale+half), black)
	}

	drawDigitGrid(img, tpl, fill.StudentNumber, scale, black)
	drawSections(img, tpl, fill, scale, black)

	if fill.Rotate != 0 {
		return imaging.Rotate(img, fill.Rotate, color.White)
	}
	return img
}

// SaveForm writes a rendered form to a PNG file.
func SaveForm(tpl *template.Template, fill FormFill, path string) error {
	img := RenderForm(tpl, fill)
	f, err := os.Create(path) //nolint:gosec // G304: output path chosen by the caller
	if err != nil {
		return fmt.Errorf("creating form image: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding form image: %w", err)
	}
	return nil
}

func drawDigitGrid(img *image.RGBA, tpl *template.Template, number string, scale float64, ink color.RGBA) {
	grid := tpl.StudentNumber
	for col := range grid.Columns {
		marked := -1
		if col < len(number) {
			if d, err := strconv.Atoi(string(number[col])); err == nil {
				marked = d
			}
		}
		for row := range template.DigitRows {
			c := grid.CellCenter(row, col)
			drawCircle(img, c.X*scale, c.Y*scale, grid.BubbleRadius*scale, ink)
			if row == marked {
				fillCircle(img, c.X*scale, c.Y*scale, grid.BubbleRadius*scale-1, ink)
			}
		}
	}
}

func drawSections(img *image.RGBA, tpl *template.Template, fill FormFill, scale float64, ink color.RGBA) {
	for _, sec := range tpl.Sections {
		answers := fill.Answers[sec.Subject]
		for q := range sec.Questions {
			marked := -1
			if q < len(answers) {
				for oi, label := range sec.Options {
					if answers[q] == label {
						marked = oi
						break
					}
				}
			}
			for oi := range sec.Options {
				c := sec.CellCenter(q, oi)
				drawCircle(img, c.X*scale, c.Y*scale, sec.BubbleRadius*scale, ink)
				if oi == marked {
					fillCircle(img, c.X*scale, c.Y*scale, sec.BubbleRadius*scale-1, ink)
				}
			}
		}
	}

	for _, m := range fill.Extra {
		for _, sec := range tpl.Sections {
			if sec.Subject != m.Subject || m.Question >= sec.Questions || m.Option >= len(sec.Options) {
				continue
			}
			c := sec.CellCenter(m.Question, m.Option)
			fillCircle(img, c.X*scale, c.Y*scale, sec.BubbleRadius*scale-1, ink)
		}
	}
}

// fillRect fills an axis-aligned rectangle given corner pixel coordinates.
func fillRect(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	draw.Draw(img, image.Rect(x1, y1, x2, y2), &image.Uniform{c}, image.Point{}, draw.Src)
}

// fillCircle fills a disc centered at (cx, cy).
func fillCircle(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	b := utils.NewBox(cx-r, cy-r, cx+r, cy+r)
	rect := b.ToRect(img.Bounds())
	ctr := b.Center()
	for y := rect.Min.Y; y <= rect.Max.Y; y++ {
		for x := rect.Min.X; x <= rect.Max.X; x++ {
			dx := float64(x) - ctr.X
			dy := float64(y) - ctr.Y
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// drawCircle draws a one-pixel-ish circle outline.
func drawCircle(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	b := utils.NewBox(cx-r-1, cy-r-1, cx+r+1, cy+r+1)
	rect := b.ToRect(img.Bounds())
	for y := rect.Min.Y; y <= rect.Max.Y; y++ {
		for x := rect.Min.X; x <= rect.Max.X; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			d := dx*dx + dy*dy
			if d <= r*r && d >= (r-1.5)*(r-1.5) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}
