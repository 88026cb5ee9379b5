// Package align locates the printed fiducial marks on a scanned form and
// computes the transform from the template's logical grid to pixel space.
package align

import "errors"

// ErrAlignmentNotFound is returned when too few fiducial marks are found, or
// the found marks deviate from the template's expected spacing. Alignment
// fails closed: a guessed transform would silently corrupt every downstream
// field.
var ErrAlignmentNotFound = errors.New("alignment marks not found")

// Config controls fiducial detection.
type Config struct {
	// MinMarks is the minimum number of corner marks required, out of four.
	// Three marks still determine an affine transform; the fourth corner is
	// completed as a parallelogram.
	MinMarks int
	// AreaTolerance is the allowed factor between a candidate's pixel area
	// and the expected mark area (both directions).
	AreaTolerance float64
	// AspectMin/AspectMax bound a candidate's width/height ratio; marks are
	// square.
	AspectMin float64
	AspectMax float64
	// MinDensity is the minimum ink coverage of a candidate's bounding box;
	// marks are solid.
	MinDensity float64
	// SearchRadiusFrac bounds the distance between a candidate and its
	// expected corner position, as a fraction of the smaller image side.
	SearchRadiusFrac float64
	// MaxShiftFrac further bounds that distance as a fraction of the
	// smallest expected mark spacing. Filled bubbles can pass the shape
	// filters; keeping candidates near the corners keeps them out.
	MaxShiftFrac float64
	// SpacingTolerance is the maximum relative deviation between opposite
	// side lengths of the detected quad.
	SpacingTolerance float64
}

// DefaultConfig returns detection defaults.
func DefaultConfig() Config {
	return Config{
		MinMarks:         3,
		AreaTolerance:    4.0,
		AspectMin:        0.7,
		AspectMax:        1.3,
		MinDensity:       0.5,
		SearchRadiusFrac: 0.25,
		MaxShiftFrac:     0.1,
		SpacingTolerance: 0.2,
	}
}
