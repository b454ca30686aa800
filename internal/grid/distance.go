package grid

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DistanceTransform computes the exact Euclidean distance from every
// pixel to the nearest true pixel of the mask, in pixel units, using the
// Felzenszwalb-Huttenlocher lower-envelope algorithm. A mask with no
// true pixels yields +Inf everywhere.
func DistanceTransform(m *Mask) *mat.Dense {
	w, h := m.W, m.H
	out := mat.NewDense(h, w, nil)

	// Squared distances, seeded with 0 on mask pixels.
	sq := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if m.At(x, y) {
				sq[y*w+x] = 0
			} else {
				sq[y*w+x] = math.Inf(1)
			}
		}
	}

	// Columns first, then rows.
	col := make([]float64, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = sq[y*w+x]
		}
		dt1d(col)
		for y := 0; y < h; y++ {
			sq[y*w+x] = col[y]
		}
	}
	row := make([]float64, w)
	for y := 0; y < h; y++ {
		copy(row, sq[y*w:(y+1)*w])
		dt1d(row)
		for x := 0; x < w; x++ {
			out.Set(y, x, math.Sqrt(row[x]))
		}
	}
	return out
}

// dt1d computes the 1D squared distance transform of f in place via the
// lower envelope of parabolas rooted at each finite sample. Infinite
// samples (no seed in that scanline yet) contribute no parabola.
func dt1d(f []float64) {
	n := len(f)
	v := make([]int, n)       // parabola roots in the envelope
	z := make([]float64, n+1) // boundaries between envelope segments
	k := -1

	for q := 0; q < n; q++ {
		if math.IsInf(f[q], 1) {
			continue
		}
		var s float64
		for k >= 0 {
			p := v[k]
			s = ((f[q] + float64(q*q)) - (f[p] + float64(p*p))) / float64(2*(q-p))
			if s > z[k] {
				break
			}
			k--
		}
		k++
		v[k] = q
		if k == 0 {
			z[0] = math.Inf(-1)
		} else {
			z[k] = s
		}
		z[k+1] = math.Inf(1)
	}

	if k < 0 {
		// No finite sample in this scanline; leave the infinities.
		return
	}

	out := make([]float64, n)
	j := 0
	for q := 0; q < n; q++ {
		for z[j+1] < float64(q) {
			j++
		}
		p := v[j]
		d := float64(q - p)
		out[q] = d*d + f[p]
	}
	copy(f, out)
}
