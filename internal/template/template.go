// Package template describes bubble-sheet form layouts in logical grid
// coordinates. A template is data, not code: layouts are versioned and can be
// loaded from YAML files alongside the built-in ones.
package template

import (
	"errors"
	"fmt"

	"github.com/eduscan/markscan/internal/utils"
)

// Fiducial describes one printed calibration mark by its center and size
// in logical coordinates. Marks are solid squares.
type Fiducial struct {
	X    float64 `yaml:"x" json:"x"`
	Y    float64 `yaml:"y" json:"y"`
	Size float64 `yaml:"size" json:"size"`
}

// Center returns the mark center as a point.
func (f Fiducial) Center() utils.Point { return utils.Point{X: f.X, Y: f.Y} }

// DigitGrid describes the student-number grid: one column per digit position,
// ten rows for digits 0-9.
type DigitGrid struct {
	X            float64 `yaml:"x" json:"x"`
	Y            float64 `yaml:"y" json:"y"`
	Columns      int     `yaml:"columns" json:"columns"`
	ColPitch     float64 `yaml:"col_pitch" json:"col_pitch"`
	RowPitch     float64 `yaml:"row_pitch" json:"row_pitch"`
	BubbleRadius float64 `yaml:"bubble_radius" json:"bubble_radius"`
}

// DigitRows is the number of rows in a digit grid, one per decimal digit.
const DigitRows = 10

// CellCenter returns the logical center of the bubble for the given digit row
// and column.
func (g DigitGrid) CellCenter(row, col int) utils.Point {
	return utils.Point{
		X: g.X + float64(col)*g.ColPitch,
		Y: g.Y + float64(row)*g.RowPitch,
	}
}

// Section describes one subject's answer grid: questions are rows, answer
// options are columns.
type Section struct {
	Subject      string   `yaml:"subject" json:"subject"`
	X            float64  `yaml:"x" json:"x"`
	Y            float64  `yaml:"y" json:"y"`
	Questions    int      `yaml:"questions" json:"questions"`
	Options      []string `yaml:"options" json:"options"`
	ColPitch     float64  `yaml:"col_pitch" json:"col_pitch"`
	RowPitch     float64  `yaml:"row_pitch" json:"row_pitch"`
	BubbleRadius float64  `yaml:"bubble_radius" json:"bubble_radius"`
}

// CellCenter returns the logical center of the bubble for the given question
// row and option column.
func (s Section) CellCenter(question, option int) utils.Point {
	return utils.Point{
		X: s.X + float64(option)*s.ColPitch,
		Y: s.Y + float64(question)*s.RowPitch,
	}
}

// Detection holds per-template bubble classification thresholds.
type Detection struct {
	// FillThreshold is the minimum dark-pixel ratio for a filled bubble.
	FillThreshold float64 `yaml:"fill_threshold" json:"fill_threshold"`
	// EmptyThreshold is the maximum dark-pixel ratio for an empty bubble.
	// Ratios between the two thresholds are indeterminate.
	EmptyThreshold float64 `yaml:"empty_threshold" json:"empty_threshold"`
}

// Template is a complete form layout keyed by its name (the formType).
type Template struct {
	Name    string `yaml:"name" json:"name"`
	Version int    `yaml:"version" json:"version"`

	// Logical grid dimensions. All coordinates below are expressed in this
	// space; the alignment transform maps them to pixels.
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`

	// Fiducials in corner order: top-left, top-right, bottom-right, bottom-left.
	Fiducials     [4]Fiducial `yaml:"fiducials" json:"fiducials"`
	StudentNumber DigitGrid   `yaml:"student_number" json:"student_number"`
	Sections      []Section   `yaml:"sections" json:"sections"`
	Detection     Detection   `yaml:"detection" json:"detection"`
}

// Validate checks the template for degenerate geometry.
func (t *Template) Validate() error {
	if t.Name == "" {
		return errors.New("template name is empty")
	}
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("template %s: non-positive dimensions", t.Name)
	}
	for i, f := range t.Fiducials {
		if f.Size <= 0 {
			return fmt.Errorf("template %s: fiducial %d has non-positive size", t.Name, i)
		}
		if f.X < 0 || f.Y < 0 || f.X > t.Width || f.Y > t.Height {
			return fmt.Errorf("template %s: fiducial %d outside grid", t.Name, i)
		}
	}
	if t.StudentNumber.Columns <= 0 {
		return fmt.Errorf("template %s: student number grid has no columns", t.Name)
	}
	if t.StudentNumber.ColPitch <= 0 || t.StudentNumber.RowPitch <= 0 || t.StudentNumber.BubbleRadius <= 0 {
		return fmt.Errorf("template %s: student number grid has degenerate pitch", t.Name)
	}
	if len(t.Sections) == 0 {
		return fmt.Errorf("template %s: no answer sections", t.Name)
	}
	for _, s := range t.Sections {
		if s.Subject == "" {
			return fmt.Errorf("template %s: section with empty subject", t.Name)
		}
		if s.Questions <= 0 {
			return fmt.Errorf("template %s: section %s has no questions", t.Name, s.Subject)
		}
		if len(s.Options) < 2 {
			return fmt.Errorf("template %s: section %s needs at least two options", t.Name, s.Subject)
		}
		if s.ColPitch <= 0 || s.RowPitch <= 0 || s.BubbleRadius <= 0 {
			return fmt.Errorf("template %s: section %s has degenerate pitch", t.Name, s.Subject)
		}
	}
	if t.Detection.FillThreshold <= t.Detection.EmptyThreshold {
		return fmt.Errorf("template %s: fill threshold must exceed empty threshold", t.Name)
	}
	return nil
}
