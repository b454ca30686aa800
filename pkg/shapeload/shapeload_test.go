package shapeload

import (
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/canopy-cli/internal/model"
)

func TestConvert_Polygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: 101.630, Y: 3.140},
			{X: 101.631, Y: 3.140},
			{X: 101.631, Y: 3.141},
			{X: 101.630, Y: 3.140},
		},
	}

	feats := Convert(poly, "", "")
	require.Len(t, feats, 1)
	assert.Equal(t, model.KindBuilding, feats[0].Kind)
}

func TestConvert_MultiPartPolyLine(t *testing.T) {
	pl := &shp.PolyLine{
		NumParts: 2,
		Parts:    []int32{0, 3},
		Points: []shp.Point{
			{X: 101.630, Y: 3.140},
			{X: 101.631, Y: 3.141},
			{X: 101.632, Y: 3.142},
			{X: 101.640, Y: 3.150},
			{X: 101.641, Y: 3.151},
		},
	}

	feats := Convert(pl, "residential", "")
	require.Len(t, feats, 2)
	for _, f := range feats {
		assert.Equal(t, model.KindStreet, f.Kind)
		assert.Equal(t, "residential", f.Class)
	}
}

func TestConvert_Point(t *testing.T) {
	pt := &shp.Point{X: 101.63, Y: 3.14}

	feats := Convert(pt, "", "Corner Cafe")
	require.Len(t, feats, 1)
	assert.Equal(t, model.KindAmenity, feats[0].Kind)
	assert.Equal(t, "Corner Cafe", feats[0].Name)
}

func TestConvert_EmptyShapes(t *testing.T) {
	assert.Nil(t, Convert(&shp.Polygon{}, "", ""))
	assert.Nil(t, Convert(&shp.PolyLine{}, "", ""))
	assert.Nil(t, Convert(nil, "", ""))
}

func TestConvert_DegeneratePolygonDropped(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: 101.630, Y: 3.140},
			{X: 101.631, Y: 3.140},
		},
	}
	assert.Nil(t, Convert(poly, "", ""))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.shp")
	assert.Error(t, err)
}
