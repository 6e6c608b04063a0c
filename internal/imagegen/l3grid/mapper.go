package l3grid

import "math"

// OutOfBounds is the index returned for points or cells outside the grid.
const OutOfBounds = -1

// maxCellCoord bounds the cell coordinates PointToCell will produce so
// float to int conversion and the line walk's error terms never overflow.
const maxCellCoord = 1 << 28

// OriginCell returns the cell holding the robot origin.
func (c Config) OriginCell() (col, row int) {
	return c.WidthNeg, c.Height / 2
}

// PointToCell maps a robot-frame point to its (possibly out of grid) cell.
// ok is false only for non-finite input or coordinates too large to
// represent.
func (c Config) PointToCell(x, y float64) (col, row int, ok bool) {
	fx := math.Round(x / c.Resolution)
	fy := math.Round(y / c.Resolution)
	if math.IsNaN(fx) || math.IsNaN(fy) || math.Abs(fx) > maxCellCoord || math.Abs(fy) > maxCellCoord {
		return 0, 0, false
	}
	col = int(fx) + c.WidthNeg
	row = int(fy) + c.Height/2
	return col, row, true
}

// CellIndex resolves (col, row) to a flat index. It is the only bounds
// check in the package: every write goes through it.
func (c Config) CellIndex(col, row int) (int, bool) {
	if col < 0 || col >= c.Width() || row < 0 || row >= c.Height {
		return OutOfBounds, false
	}
	return row*c.Width() + col, true
}

// PointToIndex maps a robot-frame point in meters to a flat cell index,
// or (OutOfBounds, false) when it falls outside the grid.
func (c Config) PointToIndex(x, y float64) (int, bool) {
	col, row, ok := c.PointToCell(x, y)
	if !ok {
		return OutOfBounds, false
	}
	return c.CellIndex(col, row)
}

// CellCenter is the inverse of PointToCell: the robot-frame center of
// (col, row) in meters.
func (c Config) CellCenter(col, row int) (x, y float64) {
	x = float64(col-c.WidthNeg) * c.Resolution
	y = float64(row-c.Height/2) * c.Resolution
	return x, y
}

// IndexToCell splits a flat index back into (col, row).
func (c Config) IndexToCell(idx int) (col, row int) {
	w := c.Width()
	return idx % w, idx / w
}

// Extent returns the robot-frame rectangle covered by the grid, from the
// outer edge of the first cell to the outer edge of the last.
func (c Config) Extent() (minX, maxX, minY, maxY float64) {
	half := c.Resolution / 2
	minX, minY = c.CellCenter(0, 0)
	maxX, maxY = c.CellCenter(c.Width()-1, c.Height-1)
	return minX - half, maxX + half, minY - half, maxY + half
}

// MetricDist is the Euclidean norm of (x, y).
func MetricDist(x, y float64) float64 {
	return math.Sqrt(x*x + y*y)
}
