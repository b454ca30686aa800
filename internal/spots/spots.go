// Package spots extracts critical planting spots from the scored grid:
// connected top-tier regions reduced to representative points.
package spots

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/canopy-cli/internal/config"
	"github.com/sells-group/canopy-cli/internal/grid"
	"github.com/sells-group/canopy-cli/internal/model"
	"github.com/sells-group/canopy-cli/internal/rasterize"
)

// Extract labels 8-connected regions of the critical-tier mask, drops
// regions under the minimum cluster size, and reduces each survivor to a
// CriticalSpot carrying its centroid, mean score, and area. The result
// is sorted by descending mean score, ties broken by ascending id. Ids
// follow labeling scan order, so the whole output is deterministic.
func Extract(critical *grid.Mask, score *mat.Dense, t *rasterize.Transform, cfg config.ExtractionConfig) []model.CriticalSpot {
	comps := grid.Components(critical, grid.Conn8, cfg.MinClusterPx)

	out := make([]model.CriticalSpot, 0, len(comps))
	res := t.MetersPerPixel
	for i, c := range comps {
		sum := 0.0
		for _, idx := range c.Pixels {
			x, y := idx%critical.W, idx/critical.W
			sum += score.At(y, x)
		}

		lat, lng := t.PixelToGeo(c.CentroidX, c.CentroidY)
		out = append(out, model.CriticalSpot{
			ID:        i + 1,
			PixelX:    c.CentroidX,
			PixelY:    c.CentroidY,
			Latitude:  lat,
			Longitude: lng,
			Score:     sum / float64(len(c.Pixels)),
			Pixels:    len(c.Pixels),
			AreaM2:    float64(len(c.Pixels)) * res * res,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
