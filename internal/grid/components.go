package grid

// Connectivity selects the neighborhood used for component labeling.
type Connectivity int

const (
	Conn4 Connectivity = 4
	Conn8 Connectivity = 8
)

// Component is one maximal set of connected true pixels.
type Component struct {
	// Pixels holds the flat indices (y*W + x) of member pixels. The
	// fill is seeded in scan order, so labeling is deterministic.
	Pixels []int
	// CentroidX and CentroidY are the mean pixel coordinates.
	CentroidX float64
	CentroidY float64
}

// Size returns the component's pixel count.
func (c *Component) Size() int { return len(c.Pixels) }

// Components labels connected regions of the mask and returns them in
// first-encountered scan order. Regions smaller than minSize pixels are
// discarded; pass 0 to keep everything.
func Components(m *Mask, conn Connectivity, minSize int) []Component {
	w, h := m.W, m.H
	visited := make([]bool, w*h)
	var offsets [][2]int
	if conn == Conn8 {
		offsets = [][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}
	} else {
		offsets = [][2]int{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}
	}

	var comps []Component
	stack := make([]int, 0, 64)

	for start := 0; start < w*h; start++ {
		if visited[start] || !m.bits[start] {
			continue
		}
		// Flood fill from this seed.
		var pixels []int
		sumX, sumY := 0.0, 0.0
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			pixels = append(pixels, idx)
			x, y := idx%w, idx/w
			sumX += float64(x)
			sumY += float64(y)
			for _, o := range offsets {
				nx, ny := x+o[0], y+o[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				nidx := ny*w + nx
				if !visited[nidx] && m.bits[nidx] {
					visited[nidx] = true
					stack = append(stack, nidx)
				}
			}
		}
		if len(pixels) < minSize {
			continue
		}
		n := float64(len(pixels))
		comps = append(comps, Component{
			Pixels:    pixels,
			CentroidX: sumX / n,
			CentroidY: sumY / n,
		})
	}
	return comps
}

// RemoveSmall clears every connected region of the mask smaller than
// minSize pixels, in place, and returns the mask.
func RemoveSmall(m *Mask, conn Connectivity, minSize int) *Mask {
	for _, comp := range Components(m, conn, 0) {
		if len(comp.Pixels) < minSize {
			for _, idx := range comp.Pixels {
				m.bits[idx] = false
			}
		}
	}
	return m
}
