package monitor

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rlplanner/internal/imagegen/l3grid"
)

// sampleGrid is 4x3 with one cell of each kind on the bottom row.
func sampleGrid() *l3grid.Grid {
	g := &l3grid.Grid{
		Width:      4,
		Height:     3,
		Resolution: 0.5,
		OriginCol:  1,
		OriginRow:  1,
		Cells:      make([]int8, 12),
	}
	for i := range g.Cells {
		g.Cells[i] = l3grid.CellUnknown
	}
	g.Cells[0] = l3grid.CellFree
	g.Cells[1] = l3grid.CellOccupied
	g.Cells[2] = l3grid.CellPath
	g.Cells[3] = l3grid.CellGoal
	return g
}

func TestCellGray(t *testing.T) {
	cases := []struct {
		v    int8
		want uint8
	}{
		{l3grid.CellFree, grayFree},
		{l3grid.CellOccupied, grayOccupied},
		{l3grid.CellGoal, grayGoal},
		{l3grid.CellPath, grayPath},
		{l3grid.CellUnknown, grayUnknown},
		{42, grayUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cellGray(tc.v, l3grid.CellPath), "value %d", tc.v)
	}
	assert.Equal(t, uint8(grayPath), cellGray(42, 42), "custom path value")
}

func TestGridImage_Orientation(t *testing.T) {
	img := GridImage(sampleGrid(), l3grid.CellPath)
	require.Equal(t, 4, img.Bounds().Dx())
	require.Equal(t, 3, img.Bounds().Dy())

	// Grid row 0 is drawn on the bottom image row.
	assert.Equal(t, uint8(grayFree), img.GrayAt(0, 2).Y)
	assert.Equal(t, uint8(grayOccupied), img.GrayAt(1, 2).Y)
	assert.Equal(t, uint8(grayPath), img.GrayAt(2, 2).Y)
	assert.Equal(t, uint8(grayGoal), img.GrayAt(3, 2).Y)
	assert.Equal(t, uint8(grayUnknown), img.GrayAt(0, 0).Y)
}

func TestEncodePNG_Scale(t *testing.T) {
	body, err := EncodePNG(sampleGrid(), l3grid.CellPath, 3)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 9, img.Bounds().Dy())

	r, _, _, _ := img.At(4, 8).RGBA()
	assert.Equal(t, uint32(grayOccupied), r>>8)
}

func TestEncodePNG_BadScale(t *testing.T) {
	_, err := EncodePNG(sampleGrid(), l3grid.CellPath, 0)
	assert.Error(t, err)
	_, err = EncodePNG(sampleGrid(), l3grid.CellPath, MaxPNGScale+1)
	assert.Error(t, err)
}

func TestGridXYZ(t *testing.T) {
	x := gridXYZ{g: sampleGrid()}
	c, r := x.Dims()
	assert.Equal(t, 4, c)
	assert.Equal(t, 3, r)
	assert.Equal(t, -0.5, x.X(0))
	assert.Equal(t, 0.5, x.Y(2))
	assert.Equal(t, 100.0, x.Z(1, 0))
	assert.True(t, x.Z(0, 2) != x.Z(0, 2), "unknown cells are NaN")
}

func TestPlotPNG(t *testing.T) {
	body, err := PlotPNG(sampleGrid(), "test")
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(body))
	assert.NoError(t, err)
}

func TestChartHTML(t *testing.T) {
	body, err := ChartHTML(sampleGrid(), "4x3")
	require.NoError(t, err)
	html := string(body)
	assert.True(t, strings.Contains(html, "echarts"), "page loads echarts")
	assert.Contains(t, html, "4x3")
}
