package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestClip(t *testing.T) {
	g := mat.NewDense(2, 2, []float64{-1, 0.5, 2, 1})
	Clip(g, 0, 1)
	assert.Equal(t, 0.0, g.At(0, 0))
	assert.Equal(t, 0.5, g.At(0, 1))
	assert.Equal(t, 1.0, g.At(1, 0))
	assert.Equal(t, 1.0, g.At(1, 1))
}

func TestMean(t *testing.T) {
	g := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	assert.InDelta(t, 2.5, Mean(g), 1e-9)
}

func TestGaussianBlurPreservesConstantGrid(t *testing.T) {
	g := NewDense(6, 6)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			g.Set(y, x, 0.7)
		}
	}

	out := GaussianBlur(g, 1.5)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			assert.InDelta(t, 0.7, out.At(y, x), 1e-9, "blur must preserve a constant field")
		}
	}
}

func TestGaussianBlurSpreadsImpulse(t *testing.T) {
	g := NewDense(11, 11)
	g.Set(5, 5, 1.0)

	out := GaussianBlur(g, 1.0)
	center := out.At(5, 5)
	neighbor := out.At(5, 6)
	far := out.At(5, 9)

	assert.Less(t, center, 1.0, "peak must flatten")
	assert.Greater(t, neighbor, 0.0, "mass must spread to neighbors")
	assert.Greater(t, center, neighbor)
	assert.Greater(t, neighbor, far)
}

func TestGaussianBlurZeroSigmaIsCopy(t *testing.T) {
	g := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	out := GaussianBlur(g, 0)
	assert.Equal(t, g.RawMatrix().Data, out.RawMatrix().Data)
}
