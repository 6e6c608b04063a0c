package l3grid

import "math"

// gridCells visits the in-grid cells of the Bresenham line between two
// cells, endpoints included. The endpoints are put in a canonical order
// first so a→b and b→a visit the same cells.
//
// Each row offset (or column offset for steep lines) is computed directly
// from the error term, so the walk covers only the span of the line that
// overlaps the grid however far away the endpoints are.
func gridCells(c0, r0, c1, r1, width, height int, visit func(col, row int)) {
	if c1 < c0 || (c1 == c0 && r1 < r0) {
		c0, r0, c1, r1 = c1, r1, c0, r0
	}
	dx := int64(c1 - c0)
	dy := int64(abs(r1 - r0))
	sy := 1
	if r1 < r0 {
		sy = -1
	}

	if dx >= dy {
		// One cell per column.
		lo := max(0, int64(-c0))
		hi := min(dx, int64(width-1-c0))
		for i := lo; i <= hi; i++ {
			row := r0 + sy*int(bresenhamOffset(i, dy, dx))
			if row >= 0 && row < height {
				visit(c0+int(i), row)
			}
		}
		return
	}

	// Steep: one cell per row.
	var lo, hi int64
	if sy > 0 {
		lo, hi = max(0, int64(-r0)), min(dy, int64(height-1-r0))
	} else {
		lo, hi = max(0, int64(r0-height+1)), min(dy, int64(r0))
	}
	for j := lo; j <= hi; j++ {
		col := c0 + int(bresenhamOffset(j, dx, dy))
		if col >= 0 && col < width {
			visit(col, r0+sy*int(j))
		}
	}
}

// bresenhamOffset is the minor-axis offset after step major steps of a
// line spanning major and minor cells (minor <= major).
func bresenhamOffset(step, minor, major int64) int64 {
	if major == 0 {
		return 0
	}
	return (2*minor*step + major) / (2 * major)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// segmentCells converts a robot-frame segment into its endpoint cells.
// An endpoint too far away for PointToCell is pulled back along the
// segment to the edge of the representable area; the other endpoint keeps
// its own cell. ok is false when the segment has a non-finite endpoint or
// lies entirely outside the representable area.
func (c Config) segmentCells(x1, y1, x2, y2 float64) (c0, r0, c1, r1 int, ok bool) {
	for _, v := range [...]float64{x1, y1, x2, y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, 0, 0, false
		}
	}
	c0, r0, ok0 := c.PointToCell(x1, y1)
	c1, r1, ok1 := c.PointToCell(x2, y2)
	if ok0 && ok1 {
		return c0, r0, c1, r1, true
	}

	const lim = maxCellCoord - 1
	res := c.Resolution
	cx0, cy0, cx1, cy1, hit := clipSegment(x1/res, y1/res, x2/res, y2/res, -lim, lim, -lim, lim)
	if !hit {
		return 0, 0, 0, 0, false
	}
	if !ok0 {
		if c0, r0, ok0 = c.PointToCell(cx0*res, cy0*res); !ok0 {
			return 0, 0, 0, 0, false
		}
	}
	if !ok1 {
		if c1, r1, ok1 = c.PointToCell(cx1*res, cy1*res); !ok1 {
			return 0, 0, 0, 0, false
		}
	}
	return c0, r0, c1, r1, true
}

// clipSegment clips (x0,y0)-(x1,y1) to the axis-aligned box using
// Liang-Barsky. ok is false when the segment misses the box.
func clipSegment(x0, y0, x1, y1, xmin, xmax, ymin, ymax float64) (cx0, cy0, cx1, cy1 float64, ok bool) {
	t0, t1 := 0.0, 1.0
	dx, dy := x1-x0, y1-y0
	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{x0 - xmin, xmax - x0, y0 - ymin, ymax - y0}
	for i := range p {
		if p[i] == 0 {
			if q[i] < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		t := q[i] / p[i]
		if p[i] < 0 {
			if t > t1 {
				return 0, 0, 0, 0, false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return 0, 0, 0, 0, false
			}
			if t < t1 {
				t1 = t
			}
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

// AddLineToImage draws a Bresenham line between the cells nearest
// (x1, y1) and (x2, y2), writing value into every in-bounds cell. Cells
// outside the grid are skipped and the walk continues.
func (r *Rasterizer) AddLineToImage(g *Grid, x1, y1, x2, y2 float64, value int8) error {
	if err := g.matches(r.cfg); err != nil {
		return err
	}
	r.drawLine(g, x1, y1, x2, y2, value)
	return nil
}

func (r *Rasterizer) drawLine(g *Grid, x1, y1, x2, y2 float64, value int8) {
	r.walkSegment(x1, y1, x2, y2, func(idx, _, _ int) {
		g.set(idx, value)
	})
}

// walkSegment calls visit with the index and cell of every in-grid cell
// on the line between the cells nearest the two points.
func (r *Rasterizer) walkSegment(x1, y1, x2, y2 float64, visit func(idx, col, row int)) {
	c0, r0, c1, r1, ok := r.cfg.segmentCells(x1, y1, x2, y2)
	if !ok {
		return
	}
	gridCells(c0, r0, c1, r1, r.cfg.Width(), r.cfg.Height, func(col, row int) {
		if idx, ok := r.cfg.CellIndex(col, row); ok {
			visit(idx, col, row)
		}
	})
}
