package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduscan/markscan/internal/template"
	"github.com/eduscan/markscan/internal/testutil"
	"github.com/eduscan/markscan/internal/utils"
)

const renderScale = 4

func standardTemplate(t *testing.T) *template.Template {
	t.Helper()
	tpl, err := template.NewRegistry().Get(template.StandardFourChoice)
	require.NoError(t, err)
	return tpl
}

func TestDetectCleanForm(t *testing.T) {
	tpl := standardTemplate(t)
	fill := testutil.CleanFill(tpl, "20250142")
	fill.Scale = renderScale
	r := testutil.RenderRaster(t, tpl, fill)

	tr, err := Detect(r, tpl, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 4, tr.MarksFound)

	// Each fiducial center must project close to its rendered position.
	for _, f := range tpl.Fiducials {
		p := tr.Project(f.Center())
		assert.InDelta(t, f.X*renderScale, p.X, 2.0)
		assert.InDelta(t, f.Y*renderScale, p.Y, 2.0)
	}
}

func TestDetectCompletesMissingCorner(t *testing.T) {
	tpl := standardTemplate(t)
	fill := testutil.CleanFill(tpl, "20250142")
	fill.Scale = renderScale
	fill.SkipFiducials = []int{2}
	r := testutil.RenderRaster(t, tpl, fill)

	tr, err := Detect(r, tpl, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, tr.MarksFound)

	// The completed corner still lands where the template expects it.
	p := tr.Project(tpl.Fiducials[2].Center())
	assert.InDelta(t, tpl.Fiducials[2].X*renderScale, p.X, 4.0)
	assert.InDelta(t, tpl.Fiducials[2].Y*renderScale, p.Y, 4.0)
}

func TestDetectRejectsBubbleStandingInForCorner(t *testing.T) {
	tpl := standardTemplate(t)
	fill := testutil.CleanFill(tpl, "20250142")
	fill.Scale = renderScale
	// Opposite corners occluded. Filled bubbles near the digit grid pass the
	// per-mark shape filters and can be picked up for a missing corner, but
	// their distances to the genuine marks give them away.
	fill.SkipFiducials = []int{0, 2}
	r := testutil.RenderRaster(t, tpl, fill)

	_, err := Detect(r, tpl, DefaultConfig())
	require.ErrorIs(t, err, ErrAlignmentNotFound)
}

func TestDetectFailsWithTwoMarks(t *testing.T) {
	tpl := standardTemplate(t)
	fill := testutil.CleanFill(tpl, "20250142")
	fill.Scale = renderScale
	fill.SkipFiducials = []int{1, 2}
	r := testutil.RenderRaster(t, tpl, fill)

	_, err := Detect(r, tpl, DefaultConfig())
	require.ErrorIs(t, err, ErrAlignmentNotFound)
}

func TestDetectFailsOnBlankSheet(t *testing.T) {
	tpl := standardTemplate(t)
	fill := testutil.FormFill{Scale: renderScale, SkipFiducials: []int{0, 1, 2, 3}}
	r := testutil.RenderRaster(t, tpl, fill)

	_, err := Detect(r, tpl, DefaultConfig())
	require.ErrorIs(t, err, ErrAlignmentNotFound)
}

func TestIsMarkCandidate(t *testing.T) {
	cfg := DefaultConfig()
	square := compStats{count: 900, minX: 0, minY: 0, maxX: 29, maxY: 29}
	assert.True(t, isMarkCandidate(square, 1000, cfg))

	// Area far outside the expected band.
	assert.False(t, isMarkCandidate(square, 100000, cfg))

	// A long thin smear fails the aspect bound.
	smear := compStats{count: 900, minX: 0, minY: 0, maxX: 299, maxY: 2}
	assert.False(t, isMarkCandidate(smear, 1000, cfg))

	// A hollow outline fails the density bound.
	hollow := compStats{count: 120, minX: 0, minY: 0, maxX: 29, maxY: 29}
	assert.False(t, isMarkCandidate(hollow, 120, cfg))
}

func TestValidateSpacing(t *testing.T) {
	good := [4]utils.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 140}, {X: 0, Y: 140}}
	assert.NoError(t, validateSpacing(good, 0.2))

	// Top side much shorter than the bottom.
	skewed := [4]utils.Point{{X: 30, Y: 0}, {X: 70, Y: 0}, {X: 100, Y: 140}, {X: 0, Y: 140}}
	assert.ErrorIs(t, validateSpacing(skewed, 0.2), ErrAlignmentNotFound)
}

func TestValidateFoundSpacing(t *testing.T) {
	expected := [4]utils.Point{{X: 100, Y: 100}, {X: 900, Y: 100}, {X: 900, Y: 1300}, {X: 100, Y: 1300}}
	have := [4]bool{true, true, false, true}

	assert.NoError(t, validateFoundSpacing(expected, expected, have, 0.2))

	// A stray candidate standing in for a corner sits at the wrong distance
	// from the genuine marks, even though it is inside the search radius.
	stray := expected
	stray[0] = utils.Point{X: 320, Y: 280}
	assert.ErrorIs(t, validateFoundSpacing(stray, expected, have, 0.2), ErrAlignmentNotFound)

	// Missing corners are not compared.
	partial := expected
	partial[2] = utils.Point{}
	assert.NoError(t, validateFoundSpacing(partial, expected, have, 0.2))
}

func TestCompleteParallelogram(t *testing.T) {
	corners := [4]utils.Point{{X: 10, Y: 10}, {X: 110, Y: 10}, {}, {X: 10, Y: 150}}
	have := [4]bool{true, true, false, true}
	completeParallelogram(&corners, have)
	assert.Equal(t, utils.Point{X: 110, Y: 150}, corners[2])
}

func TestConnectedComponents(t *testing.T) {
	// Two separate 2x2 blocks in a 6x3 mask.
	mask := []bool{
		true, true, false, false, true, true,
		true, true, false, false, true, true,
		false, false, false, false, false, false,
	}
	comps := connectedComponents(mask, 6, 3)
	require.Len(t, comps, 2)
	assert.Equal(t, 4, comps[0].count)
	assert.Equal(t, utils.Point{X: 0.5, Y: 0.5}, comps[0].centroid())
	assert.InDelta(t, 1.0, comps[0].density(), 1e-9)
}
