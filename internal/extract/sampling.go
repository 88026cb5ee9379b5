package extract

import (
	"github.com/eduscan/markscan/internal/align"
	"github.com/eduscan/markscan/internal/utils"
)

// sampleGrid is the number of sample points per axis inside a bubble.
const sampleGrid = 8

// sampler measures ink coverage of logical bubble regions through the
// alignment transform.
type sampler struct {
	gray   *utils.Gray
	tr     *align.Transform
	thresh float64
}

func newSampler(gray *utils.Gray, tr *align.Transform) *sampler {
	return &sampler{
		gray:   gray,
		tr:     tr,
		thresh: float64(gray.OtsuThreshold()),
	}
}

// fillRatio returns the dark-pixel fraction inside the logical circle at
// center with the given radius. Points are taken on a sampleGrid x sampleGrid
// lattice clipped to the inscribed circle and projected individually, so the
// measurement follows the perspective of the transform.
func (s *sampler) fillRatio(center utils.Point, radius float64) float64 {
	// Sample slightly inside the printed outline so the ring of an empty
	// bubble does not count as ink.
	r := radius * 0.8
	step := 2 * r / float64(sampleGrid-1)

	dark, total := 0, 0
	for iy := range sampleGrid {
		dy := -r + float64(iy)*step
		for ix := range sampleGrid {
			dx := -r + float64(ix)*step
			if dx*dx+dy*dy > r*r {
				continue
			}
			p := s.tr.Project(utils.Point{X: center.X + dx, Y: center.Y + dy})
			v := s.gray.BilinearAt(p.X, p.Y)
			total++
			if v <= s.thresh {
				dark++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(dark) / float64(total)
}
