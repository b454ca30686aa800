package osm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/canopy-cli/internal/model"
)

func TestFetchGeometryRejectsDegenerateBBox(t *testing.T) {
	c := New("http://127.0.0.1:1/api/interpreter", time.Second, 10)

	_, err := c.FetchGeometry(context.Background(), model.BBox{
		MinLng: 101.64, MinLat: 3.15, MaxLng: 101.62, MaxLat: 3.13,
	})
	assert.Error(t, err)
}

func TestCloseRing(t *testing.T) {
	tests := []struct {
		name    string
		coords  []geom.Coord
		wantLen int
	}{
		{
			name:    "open ring gains closing coordinate",
			coords:  []geom.Coord{{0, 0}, {1, 0}, {1, 1}},
			wantLen: 4,
		},
		{
			name:    "closed ring unchanged",
			coords:  []geom.Coord{{0, 0}, {1, 0}, {1, 1}, {0, 0}},
			wantLen: 4,
		},
		{
			name:    "empty input",
			coords:  nil,
			wantLen: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := closeRing(tt.coords)
			assert.Len(t, got, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, got[0], got[len(got)-1])
			}
		})
	}
}
