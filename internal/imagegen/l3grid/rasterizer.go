package l3grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/rlplanner/internal/imagegen/l1scan"
)

var (
	// ErrNilScan is returned when generation is attempted without a scan.
	ErrNilScan = errors.New("scan is nil")
	// ErrInvalidWaypoint is returned for waypoints with non-finite coordinates.
	ErrInvalidWaypoint = errors.New("waypoint coordinates must be finite")
)

// Rasterizer paints scans, paths and goals onto grids built from one
// immutable Config. It holds no other state and is safe to share.
type Rasterizer struct {
	cfg Config
}

// NewRasterizer validates cfg and captures it.
func NewRasterizer(cfg Config) (*Rasterizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid config: %w", err)
	}
	return &Rasterizer{cfg: cfg}, nil
}

// Config returns the captured configuration.
func (r *Rasterizer) Config() Config {
	return r.cfg
}

// NewGrid allocates an all-unknown grid for this rasterizer.
func (r *Rasterizer) NewGrid() *Grid {
	return NewGrid(r.cfg)
}

// ScanStats summarises how a scan was painted.
type ScanStats struct {
	Samples     int `json:"samples"`       // readings inside the angular sweep
	Valid       int `json:"valid"`         // readings inside [RangeMin, RangeMax]
	TooClose    int `json:"too_close"`     // readings below RangeMin
	NoReturn    int `json:"no_return"`     // readings above RangeMax or +Inf
	NaN         int `json:"nan"`           // NaN readings
	OutOfBounds int `json:"out_of_bounds"` // valid endpoints outside the grid
	OutOfSweep  int `json:"out_of_sweep"`  // readings whose angle falls outside [AngleMin, AngleMax]
}

// AddScanToImage paints one scan. Each valid reading marks its endpoint
// cell occupied and, when MarkFreeSpace is set, the cells strictly between
// the sensor cell and the endpoint free. Cells behind an obstacle are
// never touched. Writes follow OCCUPIED > FREE > UNKNOWN so overlapping
// beams cannot clear an obstacle.
func (r *Rasterizer) AddScanToImage(g *Grid, scan *l1scan.LaserScan) (ScanStats, error) {
	var st ScanStats
	if scan == nil {
		return st, ErrNilScan
	}
	if err := g.matches(r.cfg); err != nil {
		return st, err
	}
	if err := scan.Validate(); err != nil {
		return st, fmt.Errorf("invalid scan: %w", err)
	}

	mount := r.cfg.SensorMount
	origin := mount.Translation()

	samples := scan.Samples()
	st.OutOfSweep = len(scan.Ranges) - len(samples)
	for _, s := range samples {
		st.Samples++
		switch scan.Classify(s.Range) {
		case l1scan.RangeValid:
			st.Valid++
			ex, ey := s.Endpoint()
			end := mount.TransformPoint(r2.Vec{X: ex, Y: ey})
			if r.cfg.MarkFreeSpace {
				r.markRayFree(g, origin, end, false)
			}
			idx, ok := r.cfg.PointToIndex(end.X, end.Y)
			if !ok {
				st.OutOfBounds++
				continue
			}
			g.raise(idx, CellOccupied)

		case l1scan.RangeNoReturn:
			st.NoReturn++
			if r.cfg.InvalidRangePolicy == FreeToMax {
				ex, ey := l1scan.PolarToCartesian(scan.RangeMax, s.Angle)
				end := mount.TransformPoint(r2.Vec{X: ex, Y: ey})
				r.markRayFree(g, origin, end, true)
			}

		case l1scan.RangeTooClose:
			st.TooClose++

		case l1scan.RangeNaN:
			st.NaN++
		}
	}
	return st, nil
}

// markRayFree raises the cells between from and to to CellFree. The cell
// containing from is never written; the cell containing to is written only
// when includeEnd is set.
func (r *Rasterizer) markRayFree(g *Grid, from, to r2.Vec, includeEnd bool) {
	startCol, startRow, okStart := r.cfg.PointToCell(from.X, from.Y)
	endCol, endRow, okEnd := r.cfg.PointToCell(to.X, to.Y)
	r.walkSegment(from.X, from.Y, to.X, to.Y, func(idx, col, row int) {
		if okStart && col == startCol && row == startRow {
			return
		}
		if !includeEnd && okEnd && col == endCol && row == endRow {
			return
		}
		g.raise(idx, CellFree)
	})
}

// AddGoalPoint paints a GoalMarkerSize square of CellGoal centred on the
// cell containing (x, y). Cells outside the grid are skipped.
func (r *Rasterizer) AddGoalPoint(g *Grid, x, y float64) error {
	if err := g.matches(r.cfg); err != nil {
		return err
	}
	r.paintGoal(g, x, y)
	return nil
}

func (r *Rasterizer) paintGoal(g *Grid, x, y float64) {
	col, row, ok := r.cfg.PointToCell(x, y)
	if !ok {
		return
	}
	n := r.cfg.GoalMarkerSize
	half := n / 2
	for dr := -half; dr < n-half; dr++ {
		for dc := -half; dc < n-half; dc++ {
			if idx, ok := r.cfg.CellIndex(col+dc, row+dr); ok {
				g.set(idx, CellGoal)
			}
		}
	}
}

// AddPathToImage draws one line per consecutive waypoint pair with the
// configured PathValue.
func (r *Rasterizer) AddPathToImage(g *Grid, waypoints []r2.Vec) error {
	if err := g.matches(r.cfg); err != nil {
		return err
	}
	for i := 1; i < len(waypoints); i++ {
		a, b := waypoints[i-1], waypoints[i]
		r.drawLine(g, a.X, a.Y, b.X, b.Y, r.cfg.PathValue)
	}
	return nil
}

// Result is a generated grid with its bookkeeping.
type Result struct {
	Grid      *Grid
	ScanStats ScanStats
	GridStats GridStats
}

// GenerateImage builds the state image for one scan and one waypoint
// list: a fresh all-unknown grid, the scan, one path line per consecutive
// waypoint pair, then the goal square on the final waypoint. An empty
// waypoint list yields a scan-only grid. On error no grid is returned.
func (r *Rasterizer) GenerateImage(scan *l1scan.LaserScan, waypoints []r2.Vec) (*Grid, error) {
	res, err := r.Generate(scan, waypoints)
	if err != nil {
		return nil, err
	}
	return res.Grid, nil
}

// Generate is GenerateImage plus scan and cell statistics.
func (r *Rasterizer) Generate(scan *l1scan.LaserScan, waypoints []r2.Vec) (*Result, error) {
	if scan == nil {
		return nil, ErrNilScan
	}
	for i, wp := range waypoints {
		if !finite(wp.X) || !finite(wp.Y) {
			return nil, fmt.Errorf("%w: waypoint %d = (%f, %f)", ErrInvalidWaypoint, i, wp.X, wp.Y)
		}
	}

	g := r.NewGrid()
	st, err := r.AddScanToImage(g, scan)
	if err != nil {
		return nil, err
	}
	if err := r.AddPathToImage(g, waypoints); err != nil {
		return nil, err
	}
	if n := len(waypoints); n > 0 {
		goal := waypoints[n-1]
		if err := r.AddGoalPoint(g, goal.X, goal.Y); err != nil {
			return nil, err
		}
	}

	return &Result{Grid: g, ScanStats: st, GridStats: g.Stats(r.cfg.PathValue)}, nil
}

// GenerateImage validates cfg and generates a single grid. Callers that
// generate repeatedly should build one Rasterizer and reuse it.
func GenerateImage(cfg Config, scan *l1scan.LaserScan, waypoints []r2.Vec) (*Grid, error) {
	r, err := NewRasterizer(cfg)
	if err != nil {
		return nil, err
	}
	return r.GenerateImage(scan, waypoints)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
