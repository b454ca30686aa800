// Package grid provides the pixel-grid primitives shared by the analysis
// stages: boolean masks, float grids on gonum dense matrices, morphology,
// Gaussian smoothing, Euclidean distance transforms, and connected
// component labeling.
package grid

// Mask is a fixed-size boolean pixel grid, row-major.
type Mask struct {
	W, H int
	bits []bool
}

// NewMask allocates an all-false mask of the given dimensions.
func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, bits: make([]bool, w*h)}
}

// At reports the value at (x, y). Out-of-range coordinates read false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.bits[y*m.W+x]
}

// Set stores v at (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return
	}
	m.bits[y*m.W+x] = v
}

// Count returns the number of true pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	c := NewMask(m.W, m.H)
	copy(c.bits, m.bits)
	return c
}

// Or sets every pixel that is true in other. Panics on shape mismatch:
// all grids derived from one raster share its exact dimensions.
func (m *Mask) Or(other *Mask) {
	mustSameShape(m, other)
	for i, b := range other.bits {
		if b {
			m.bits[i] = true
		}
	}
}

// Any reports whether at least one pixel is true.
func (m *Mask) Any() bool {
	for _, b := range m.bits {
		if b {
			return true
		}
	}
	return false
}

func mustSameShape(a, b *Mask) {
	if a.W != b.W || a.H != b.H {
		panic("grid: mask shape mismatch")
	}
}

// Dilate returns the 3x3 dilation of the mask.
func (m *Mask) Dilate() *Mask {
	out := NewMask(m.W, m.H)
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.bits[y*m.W+x] {
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						out.Set(x+dx, y+dy, true)
					}
				}
			}
		}
	}
	return out
}

// Erode returns the 3x3 erosion of the mask. Border pixels erode, since
// out-of-range neighbors read false.
func (m *Mask) Erode() *Mask {
	out := NewMask(m.W, m.H)
	for y := 0; y < m.H; y++ {
	next:
		for x := 0; x < m.W; x++ {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if !m.At(x+dx, y+dy) {
						continue next
					}
				}
			}
			out.bits[y*m.W+x] = true
		}
	}
	return out
}

// Close applies one morphological closing pass (dilate then erode),
// removing single-pixel holes and speckle noise.
func (m *Mask) Close() *Mask {
	return m.Dilate().Erode()
}
