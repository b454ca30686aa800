package grid

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// NewDense allocates a zeroed h-by-w float grid. Rows index y, columns
// index x, matching raster layout.
func NewDense(w, h int) *mat.Dense {
	return mat.NewDense(h, w, nil)
}

// Clip bounds every cell of g to [lo, hi] in place.
func Clip(g *mat.Dense, lo, hi float64) {
	r, c := g.Dims()
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			v := g.At(y, x)
			if v < lo {
				g.Set(y, x, lo)
			} else if v > hi {
				g.Set(y, x, hi)
			}
		}
	}
}

// Mean returns the arithmetic mean of all cells, 0 for an empty grid.
func Mean(g *mat.Dense) float64 {
	r, c := g.Dims()
	if r == 0 || c == 0 {
		return 0
	}
	sum := 0.0
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			sum += g.At(y, x)
		}
	}
	return sum / float64(r*c)
}

// GaussianBlur returns a smoothed copy of g using a separable Gaussian
// kernel. Sigma <= 0 returns an unmodified copy. Edges clamp to the
// nearest cell.
func GaussianBlur(g *mat.Dense, sigma float64) *mat.Dense {
	r, c := g.Dims()
	out := mat.NewDense(r, c, nil)
	out.Copy(g)
	if sigma <= 0 {
		return out
	}

	kernel := gaussianKernel(sigma)
	half := len(kernel) / 2

	// Horizontal pass.
	tmp := mat.NewDense(r, c, nil)
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			sum := 0.0
			for k, w := range kernel {
				xx := clampInt(x+k-half, 0, c-1)
				sum += w * out.At(y, xx)
			}
			tmp.Set(y, x, sum)
		}
	}

	// Vertical pass.
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			sum := 0.0
			for k, w := range kernel {
				yy := clampInt(y+k-half, 0, r-1)
				sum += w * tmp.At(yy, x)
			}
			out.Set(y, x, sum)
		}
	}
	return out
}

// gaussianKernel builds a normalized 1D kernel with radius 3*sigma.
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
