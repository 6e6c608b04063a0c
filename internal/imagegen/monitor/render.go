package monitor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"golang.org/x/image/draw"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rlplanner/internal/imagegen/l3grid"
)

// MaxPNGScale bounds the ?scale= upscaling factor.
const MaxPNGScale = 16

// Gray levels follow the map_server convention for free, occupied and
// unknown cells. Overlays sit in between so they stay distinguishable.
const (
	grayFree     = 254
	grayUnknown  = 205
	grayPath     = 140
	grayGoal     = 70
	grayOccupied = 0
)

func cellGray(v, pathValue int8) uint8 {
	switch v {
	case l3grid.CellFree:
		return grayFree
	case l3grid.CellOccupied:
		return grayOccupied
	case l3grid.CellGoal:
		return grayGoal
	case pathValue:
		return grayPath
	default:
		return grayUnknown
	}
}

// GridImage renders g one pixel per cell. The robot's forward axis points
// right and its left points up, so grid row 0 is the bottom image row.
func GridImage(g *l3grid.Grid, pathValue int8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for row := 0; row < g.Height; row++ {
		y := g.Height - 1 - row
		for col := 0; col < g.Width; col++ {
			img.SetGray(col, y, color.Gray{Y: cellGray(g.Cells[row*g.Width+col], pathValue)})
		}
	}
	return img
}

// EncodePNG renders g as a grayscale PNG upscaled by scale with
// nearest-neighbour sampling, so each cell stays a crisp square.
func EncodePNG(g *l3grid.Grid, pathValue int8, scale int) ([]byte, error) {
	if scale < 1 || scale > MaxPNGScale {
		return nil, fmt.Errorf("scale must be in [1, %d], got %d", MaxPNGScale, scale)
	}
	src := GridImage(g, pathValue)
	var out image.Image = src
	if scale > 1 {
		dst := image.NewGray(image.Rect(0, 0, g.Width*scale, g.Height*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		out = dst
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// gridXYZ adapts a Grid to plotter.GridXYZ in robot-frame meters.
// Unknown cells are NaN so the heat map leaves them blank.
type gridXYZ struct {
	g *l3grid.Grid
}

func (x gridXYZ) Dims() (c, r int) { return x.g.Width, x.g.Height }

func (x gridXYZ) Z(c, r int) float64 {
	v := x.g.Cells[r*x.g.Width+c]
	if v == l3grid.CellUnknown {
		return math.NaN()
	}
	return float64(v)
}

func (x gridXYZ) X(c int) float64 { return float64(c-x.g.OriginCol) * x.g.Resolution }
func (x gridXYZ) Y(r int) float64 { return float64(r-x.g.OriginRow) * x.g.Resolution }

// PlotPNG renders g as a gonum/plot heat map with metric axes.
func PlotPNG(g *l3grid.Grid, title string) ([]byte, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x forward (m)"
	p.Y.Label.Text = "y left (m)"

	hm := plotter.NewHeatMap(gridXYZ{g: g}, palette.Heat(12, 1))
	hm.Min, hm.Max = 0, 100
	hm.NaN = color.Gray{Y: grayUnknown}
	p.Add(hm)

	w := 8 * vg.Inch
	h := w * vg.Length(g.Height) / vg.Length(g.Width)
	if h < 3*vg.Inch {
		h = 3 * vg.Inch
	}
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create plot writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render plot: %w", err)
	}
	return buf.Bytes(), nil
}

// ChartHTML renders g as an interactive go-echarts heat map page.
func ChartHTML(g *l3grid.Grid, subtitle string) ([]byte, error) {
	xs := make([]string, g.Width)
	for c := range xs {
		xs[c] = fmt.Sprintf("%.2f", gridXYZ{g: g}.X(c))
	}
	ys := make([]string, g.Height)
	for r := range ys {
		ys[r] = fmt.Sprintf("%.2f", gridXYZ{g: g}.Y(r))
	}

	data := make([]opts.HeatMapData, 0, len(g.Cells))
	for i, v := range g.Cells {
		data = append(data, opts.HeatMapData{Value: [3]interface{}{i % g.Width, i / g.Width, int(v)}})
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "State Image", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "State Image", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xs, Name: "x (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys, Name: "y (m)", NameLocation: "middle", NameGap: 40}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        -1,
			Max:        100,
			InRange:    &opts.VisualMapInRange{Color: []string{"#555555", "#ffffff", "#4575b4", "#fdae61", "#d73027"}},
		}),
	)
	hm.SetXAxis(xs).AddSeries("cells", data)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}
