// Package detect computes per-pixel vegetation and shadow features from
// the raw color channels of a satellite raster. It needs nothing but the
// raster itself: no vector data, no network, no model calls.
package detect

import (
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/canopy-cli/internal/config"
	"github.com/sells-group/canopy-cli/internal/grid"
	"github.com/sells-group/canopy-cli/internal/model"
)

// ndviEpsilon guards the NDVI denominator against black pixels.
const ndviEpsilon = 1e-6

// Features bundles the detector outputs. All grids share the raster's
// exact pixel dimensions.
type Features struct {
	// Vegetation marks pixels whose green/red balance and brightness
	// indicate existing canopy or grass.
	Vegetation *grid.Mask
	// Shadow marks dark, desaturated pixels outside vegetation.
	Shadow *grid.Mask
	// ShadowIntensity is the continuous 1-normalized-brightness field
	// in [0,1], Gaussian smoothed for gradient continuity.
	ShadowIntensity *mat.Dense
	// NDVI holds the raw index per pixel, kept for diagnostics.
	NDVI *mat.Dense
}

// NDVI computes the normalized green/red difference for a single pixel.
// The epsilon keeps the division defined on black pixels.
func NDVI(r, g float64) float64 {
	return (g - r) / (g + r + ndviEpsilon)
}

// Detect runs vegetation and shadow detection over the raster.
func Detect(raster *model.RasterBuffer, cfg config.DetectionConfig) *Features {
	w, h := raster.Width, raster.Height

	veg := grid.NewMask(w, h)
	ndvi := grid.NewDense(w, h)
	brightness := grid.NewDense(w, h)
	saturation := grid.NewDense(w, h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := raster.RGB(x, y)
			rf, gf, bf := float64(r), float64(g), float64(b)

			idx := NDVI(rf, gf)
			ndvi.Set(y, x, idx)

			v := max3(rf, gf, bf)
			brightness.Set(y, x, v)
			if v > 0 {
				saturation.Set(y, x, (v-min3(rf, gf, bf))/v*255)
			}

			if idx > cfg.NDVIThreshold && v > cfg.MinVegetationBrightness {
				veg.Set(x, y, true)
			}
		}
	}

	// Closing removes single-pixel speckle from the vegetation mask.
	veg = veg.Close()

	// Shadow: dark and desaturated, excluding vegetation so dense canopy
	// is not double-counted as shade.
	shadow := grid.NewMask(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if veg.At(x, y) {
				continue
			}
			if brightness.At(y, x) < cfg.ShadowDarkThreshold &&
				saturation.At(y, x) < cfg.ShadowDesaturationThresh {
				shadow.Set(x, y, true)
			}
		}
	}
	shadow = grid.RemoveSmall(shadow.Close(), grid.Conn8, cfg.ShadowMinClusterPx)

	// Continuous shadow intensity for the sun-exposure score component,
	// distinct from the binary mask above.
	intensity := grid.NewDense(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			intensity.Set(y, x, 1-brightness.At(y, x)/255)
		}
	}
	intensity = grid.GaussianBlur(intensity, cfg.ShadowBlurSigma)
	grid.Clip(intensity, 0, 1)

	return &Features{
		Vegetation:      veg,
		Shadow:          shadow,
		ShadowIntensity: intensity,
		NDVI:            ndvi,
	}
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
