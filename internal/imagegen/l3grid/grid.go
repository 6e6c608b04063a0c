package l3grid

import (
	"errors"
	"fmt"
)

// Cell values. Scan rasterization only ever writes CellFree and
// CellOccupied over CellUnknown; CellPath and CellGoal are overlays.
const (
	CellUnknown  int8 = -1
	CellFree     int8 = 0
	CellPath     int8 = 50
	CellGoal     int8 = 75
	CellOccupied int8 = 100
)

// ErrGridMismatch is returned when a grid was not allocated for the
// Config it is being painted with.
var ErrGridMismatch = errors.New("grid dimensions do not match config")

// Grid is a fixed-size occupancy raster centred on the robot. Cells are
// row-major: rows run along the lateral (y) axis, columns along the
// forward (x) axis, index = row*Width + col.
type Grid struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Resolution float64 `json:"resolution"` // meters per cell
	OriginCol  int     `json:"origin_col"` // column of the robot origin
	OriginRow  int     `json:"origin_row"` // row of the robot origin
	Cells      []int8  `json:"cells"`      // len = Width * Height
}

// GridStats counts cells per value.
type GridStats struct {
	Unknown  int `json:"unknown"`
	Free     int `json:"free"`
	Occupied int `json:"occupied"`
	Path     int `json:"path"`
	Goal     int `json:"goal"`
	Other    int `json:"other"`
}

// NewGrid allocates a grid for c with every cell CellUnknown.
func NewGrid(c Config) *Grid {
	g := &Grid{
		Width:      c.Width(),
		Height:     c.Height,
		Resolution: c.Resolution,
		OriginCol:  c.WidthNeg,
		OriginRow:  c.Height / 2,
		Cells:      make([]int8, c.CellCount()),
	}
	g.Fill(CellUnknown)
	return g
}

// Fill sets every cell to v.
func (g *Grid) Fill(v int8) {
	for i := range g.Cells {
		g.Cells[i] = v
	}
}

// At returns the value of cell (col, row) or CellUnknown when outside.
func (g *Grid) At(col, row int) int8 {
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return CellUnknown
	}
	return g.Cells[row*g.Width+col]
}

// Stats counts cells by value. pathValue is the value the path was drawn
// with; pass CellPath when the default was used.
func (g *Grid) Stats(pathValue int8) GridStats {
	var s GridStats
	for _, v := range g.Cells {
		switch v {
		case CellUnknown:
			s.Unknown++
		case CellFree:
			s.Free++
		case CellOccupied:
			s.Occupied++
		case CellGoal:
			s.Goal++
		case pathValue:
			s.Path++
		default:
			s.Other++
		}
	}
	return s
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Cells = append([]int8(nil), g.Cells...)
	return &c
}

// matches reports whether g was allocated from c.
func (g *Grid) matches(c Config) error {
	if g == nil {
		return fmt.Errorf("%w: nil grid", ErrGridMismatch)
	}
	if g.Width != c.Width() || g.Height != c.Height || len(g.Cells) != c.CellCount() {
		return fmt.Errorf("%w: grid %dx%d (%d cells), config %dx%d",
			ErrGridMismatch, g.Width, g.Height, len(g.Cells), c.Width(), c.Height)
	}
	return nil
}

// set writes v unconditionally.
func (g *Grid) set(idx int, v int8) {
	g.Cells[idx] = v
}

// raise writes v only when it outranks the current value under
// OCCUPIED > FREE > UNKNOWN, so a later beam can never clear an obstacle.
func (g *Grid) raise(idx int, v int8) {
	if v > g.Cells[idx] {
		g.Cells[idx] = v
	}
}
