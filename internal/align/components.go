package align

import (
	"container/list"

	"github.com/eduscan/markscan/internal/utils"
)

// compStats holds pixel statistics for one connected component.
type compStats struct {
	count int
	sumX  int64
	sumY  int64
	minX  int
	minY  int
	maxX  int
	maxY  int
}

// box returns the component's pixel bounding box (max edges exclusive).
func (c compStats) box() utils.Box {
	return utils.NewBox(float64(c.minX), float64(c.minY), float64(c.maxX+1), float64(c.maxY+1))
}

func (c compStats) centroid() utils.Point {
	return utils.Point{
		X: float64(c.sumX) / float64(c.count),
		Y: float64(c.sumY) / float64(c.count),
	}
}

// density is the ink coverage of the component's bounding box.
func (c compStats) density() float64 {
	b := c.box()
	return float64(c.count) / (b.Width() * b.Height())
}

// connectedComponents finds 4-connected ink components in the mask.
func connectedComponents(mask []bool, w, h int) []compStats {
	visited := make([]bool, w*h)
	var comps []compStats

	for y := range h {
		for x := range w {
			idx := y*w + x
			if mask[idx] && !visited[idx] {
				comps = append(comps, componentBFS(mask, visited, w, h, x, y))
			}
		}
	}
	return comps
}

// componentBFS traverses one component starting from a seed pixel.
func componentBFS(mask []bool, visited []bool, w, h, startX, startY int) compStats {
	idx := func(x, y int) int { return y*w + x }
	startIdx := idx(startX, startY)

	st := compStats{minX: startX, minY: startY, maxX: startX, maxY: startY}
	q := list.New()
	q.PushBack(startIdx)
	visited[startIdx] = true

	dirs := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		ci, ok := e.Value.(int)
		if !ok {
			continue
		}
		cx, cy := ci%w, ci/w
		updateStats(&st, cx, cy)
		for _, d := range dirs {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			ni := idx(nx, ny)
			if mask[ni] && !visited[ni] {
				visited[ni] = true
				q.PushBack(ni)
			}
		}
	}
	return st
}

func updateStats(st *compStats, x, y int) {
	st.count++
	st.sumX += int64(x)
	st.sumY += int64(y)
	if x < st.minX {
		st.minX = x
	}
	if y < st.minY {
		st.minY = y
	}
	if x > st.maxX {
		st.maxX = x
	}
	if y > st.maxY {
		st.maxY = y
	}
}
