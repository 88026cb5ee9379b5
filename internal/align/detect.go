package align

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/eduscan/markscan/internal/ingest"
	"github.com/eduscan/markscan/internal/template"
	"github.com/eduscan/markscan/internal/utils"
)

// Transform maps the template's logical grid into pixel coordinates.
type Transform struct {
	h          utils.Homography
	MarksFound int
}

// Project maps a logical point to pixel coordinates.
func (t *Transform) Project(p utils.Point) utils.Point {
	x, y := t.h.Apply(p.X, p.Y)
	return utils.Point{X: x, Y: y}
}

// Detect locates the template's fiducial marks in the raster and solves the
// grid-to-pixel transform. Returns ErrAlignmentNotFound (wrapped) when the
// marks cannot be established within tolerance.
func Detect(r *ingest.Raster, tpl *template.Template, cfg Config) (*Transform, error) {
	g := r.Gray
	thresh := g.OtsuThreshold()
	mask := g.Binarize(thresh)
	comps := connectedComponents(mask, g.Width, g.Height)

	corners, found, err := assignCorners(comps, tpl, g.Width, g.Height, cfg)
	if err != nil {
		return nil, err
	}

	if err := validateSpacing(corners, cfg.SpacingTolerance); err != nil {
		return nil, err
	}

	var src [4]utils.Point
	for i, f := range tpl.Fiducials {
		src[i] = f.Center()
	}
	h, ok := utils.ComputeHomography(src, corners)
	if !ok {
		return nil, fmt.Errorf("%w: degenerate mark geometry", ErrAlignmentNotFound)
	}

	slog.Debug("alignment established",
		"form_type", tpl.Name,
		"marks_found", found,
		"otsu_threshold", thresh)

	return &Transform{h: h, MarksFound: found}, nil
}

// assignCorners matches mark candidates to the template's expected corner
// positions. It requires at least cfg.MinMarks matches and completes one
// missing corner as a parallelogram.
func assignCorners(
	comps []compStats,
	tpl *template.Template,
	w, h int,
	cfg Config,
) ([4]utils.Point, int, error) {
	// Coarse scale estimate: the scan roughly fills the frame.
	sx := float64(w) / tpl.Width
	sy := float64(h) / tpl.Height

	var expected [4]utils.Point
	for i, f := range tpl.Fiducials {
		expected[i] = utils.Point{X: f.X * sx, Y: f.Y * sy}
	}

	// The search radius covers coarse scan misplacement, but a candidate is
	// only credible close to its corner: stray ink (a filled bubble has
	// mark-like area and shape) sits well inside the fiducial frame.
	radius := cfg.SearchRadiusFrac * math.Min(float64(w), float64(h))
	if cfg.MaxShiftFrac > 0 {
		radius = math.Min(radius, cfg.MaxShiftFrac*minSpacing(expected))
	}

	var corners [4]utils.Point
	var have [4]bool
	used := make(map[int]bool)
	found := 0

	for i, f := range tpl.Fiducials {
		expectedArea := (f.Size * sx) * (f.Size * sy)

		best := -1
		bestDist := radius
		for ci, c := range comps {
			if used[ci] || !isMarkCandidate(c, expectedArea, cfg) {
				continue
			}
			d := utils.Dist(c.centroid(), expected[i])
			if d < bestDist {
				bestDist = d
				best = ci
			}
		}
		if best >= 0 {
			used[best] = true
			corners[i] = comps[best].centroid()
			have[i] = true
			found++
		}
	}

	if found < cfg.MinMarks {
		return corners, found, fmt.Errorf("%w: %d of 4 marks located", ErrAlignmentNotFound, found)
	}

	if err := validateFoundSpacing(corners, expected, have, cfg.SpacingTolerance); err != nil {
		return corners, found, err
	}

	if found == 3 {
		completeParallelogram(&corners, have)
	}
	return corners, found, nil
}

// minSpacing returns the smallest pairwise distance between the expected
// corner positions.
func minSpacing(expected [4]utils.Point) float64 {
	m := math.Inf(1)
	for i := range 4 {
		for j := i + 1; j < 4; j++ {
			m = math.Min(m, utils.Dist(expected[i], expected[j]))
		}
	}
	return m
}

// validateFoundSpacing checks the located marks' pairwise distances against
// the template's expected spacing under the coarse scale estimate. It must
// run before parallelogram completion: a completed quad has equal opposite
// sides no matter where the three inputs sit, so only the genuinely found
// marks carry evidence that the candidate set is the fiducial frame and not
// stray ink with a mark-like shape.
func validateFoundSpacing(corners, expected [4]utils.Point, have [4]bool, tolerance float64) error {
	for i := range 4 {
		if !have[i] {
			continue
		}
		for j := i + 1; j < 4; j++ {
			if !have[j] {
				continue
			}
			want := utils.Dist(expected[i], expected[j])
			if want <= 0 {
				return fmt.Errorf("%w: degenerate expected geometry", ErrAlignmentNotFound)
			}
			if relDev(utils.Dist(corners[i], corners[j]), want) > tolerance {
				return fmt.Errorf("%w: mark %d-%d spacing outside tolerance", ErrAlignmentNotFound, i, j)
			}
		}
	}
	return nil
}

// isMarkCandidate filters components by area band, squareness and solidity.
func isMarkCandidate(c compStats, expectedArea float64, cfg Config) bool {
	area := float64(c.count)
	if area < expectedArea/cfg.AreaTolerance || area > expectedArea*cfg.AreaTolerance {
		return false
	}
	b := c.box()
	aspect := b.Width() / b.Height()
	if aspect < cfg.AspectMin || aspect > cfg.AspectMax {
		return false
	}
	return c.density() >= cfg.MinDensity
}

// completeParallelogram fills in the single missing corner. Opposite corners
// of a parallelogram share their midpoint: TL + BR = TR + BL.
func completeParallelogram(corners *[4]utils.Point, have [4]bool) {
	for i := range 4 {
		if have[i] {
			continue
		}
		opp := (i + 2) % 4
		a := (i + 1) % 4
		b := (i + 3) % 4
		corners[i] = utils.Point{
			X: corners[a].X + corners[b].X - corners[opp].X,
			Y: corners[a].Y + corners[b].Y - corners[opp].Y,
		}
		return
	}
}

// validateSpacing rejects assembled quads that are degenerate or whose
// opposite sides differ beyond tolerance. Mark-to-template spacing is
// enforced on the found marks before completion; this is a final shape check
// on the full quad.
func validateSpacing(corners [4]utils.Point, tolerance float64) error {
	top := utils.Dist(corners[0], corners[1])
	bottom := utils.Dist(corners[3], corners[2])
	left := utils.Dist(corners[0], corners[3])
	right := utils.Dist(corners[1], corners[2])

	if top <= 0 || bottom <= 0 || left <= 0 || right <= 0 {
		return fmt.Errorf("%w: degenerate quad", ErrAlignmentNotFound)
	}
	if relDev(top, bottom) > tolerance || relDev(left, right) > tolerance {
		return fmt.Errorf("%w: mark spacing outside tolerance", ErrAlignmentNotFound)
	}
	return nil
}

func relDev(a, b float64) float64 {
	return math.Abs(a-b) / math.Max(a, b)
}
