// Package osm fetches vector geometry for a bounding box from the
// Overpass API and converts it into the pipeline's feature model.
package osm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/serjvanilla/go-overpass"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/canopy-cli/internal/model"
	"github.com/sells-group/canopy-cli/internal/resilience"
)

// Client queries a single Overpass endpoint with rate limiting and
// retries.
type Client struct {
	api     overpass.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// New builds an Overpass client. requestsPerSec throttles queries across
// all callers sharing the client; public Overpass instances expect well
// under one query per second.
func New(endpoint string, timeout time.Duration, requestsPerSec float64) *Client {
	httpClient := &http.Client{Timeout: timeout}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("overpass", "query")
	return &Client{
		api:     overpass.NewWithSettings(endpoint, 1, httpClient),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		retry:   retry,
	}
}

// FetchGeometry returns the buildings, streets, and amenities inside the
// bounding box as one GeometryCollection.
func (c *Client) FetchGeometry(ctx context.Context, bounds model.BBox) (*model.GeometryCollection, error) {
	if !bounds.Valid() {
		return nil, eris.Errorf("osm: degenerate bounding box %+v", bounds)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "osm: rate limit")
	}

	// south,west,north,east per Overpass bbox convention.
	bbox := fmt.Sprintf("%f,%f,%f,%f", bounds.MinLat, bounds.MinLng, bounds.MaxLat, bounds.MaxLng)
	query := fmt.Sprintf(`
		[out:json][timeout:25];
		(
			way["building"](%s);
			way["highway"](%s);
			node["amenity"](%s);
		);
		out body;
		>;
		out skel qt;
	`, bbox, bbox, bbox)

	result, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (overpass.Result, error) {
		return c.api.Query(query)
	})
	if err != nil {
		return nil, eris.Wrap(err, "osm: overpass query")
	}

	gc := convert(&result)
	zap.L().Debug("fetched osm geometry",
		zap.Int("buildings", gc.CountKind(model.KindBuilding)),
		zap.Int("streets", gc.CountKind(model.KindStreet)),
		zap.Int("amenities", gc.CountKind(model.KindAmenity)),
	)
	return gc, nil
}

// convert maps the Overpass result to features. Ways and nodes arrive in
// maps, so both are walked in ascending id order to keep the output
// deterministic.
func convert(result *overpass.Result) *model.GeometryCollection {
	gc := &model.GeometryCollection{}

	wayIDs := make([]int64, 0, len(result.Ways))
	for id := range result.Ways {
		wayIDs = append(wayIDs, id)
	}
	sort.Slice(wayIDs, func(i, j int) bool { return wayIDs[i] < wayIDs[j] })

	for _, id := range wayIDs {
		way := result.Ways[id]
		if way == nil || len(way.Nodes) < 2 {
			continue
		}

		coords := make([]geom.Coord, 0, len(way.Nodes))
		for _, n := range way.Nodes {
			if n == nil {
				continue
			}
			coords = append(coords, geom.Coord{n.Lon, n.Lat})
		}
		if len(coords) < 2 {
			continue
		}

		switch {
		case way.Tags["building"] != "":
			ring := closeRing(coords)
			if len(ring) < 4 {
				continue
			}
			poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
			if err != nil {
				continue
			}
			gc.Features = append(gc.Features, model.Feature{Kind: model.KindBuilding, Geom: poly})

		case way.Tags["highway"] != "":
			line, err := geom.NewLineString(geom.XY).SetCoords(coords)
			if err != nil {
				continue
			}
			gc.Features = append(gc.Features, model.Feature{
				Kind:  model.KindStreet,
				Class: way.Tags["highway"],
				Geom:  line,
			})
		}
	}

	nodeIDs := make([]int64, 0, len(result.Nodes))
	for id := range result.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	for _, id := range nodeIDs {
		node := result.Nodes[id]
		if node == nil || node.Tags["amenity"] == "" {
			continue
		}
		pt, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{node.Lon, node.Lat})
		if err != nil {
			continue
		}
		gc.Features = append(gc.Features, model.Feature{
			Kind: model.KindAmenity,
			Name: node.Tags["name"],
			Geom: pt,
		})
	}

	return gc
}

// closeRing ensures the ring's last coordinate repeats the first.
func closeRing(coords []geom.Coord) []geom.Coord {
	if len(coords) == 0 {
		return coords
	}
	first, last := coords[0], coords[len(coords)-1]
	if first[0] != last[0] || first[1] != last[1] {
		coords = append(coords, geom.Coord{first[0], first[1]})
	}
	return coords
}
