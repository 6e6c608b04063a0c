package l1scan

import "math"

// PolarToCartesian converts a planar range reading into sensor-frame
// Cartesian coordinates.
// Coordinate convention: X=forward along the sensor heading, Y=left,
// angles counter-clockwise from X.
func PolarToCartesian(rangeMeters, angleRad float64) (x, y float64) {
	x = rangeMeters * math.Cos(angleRad)
	y = rangeMeters * math.Sin(angleRad)
	return
}

// Endpoint returns the sensor-frame Cartesian endpoint of a sample.
func (s Sample) Endpoint() (x, y float64) {
	return PolarToCartesian(s.Range, s.Angle)
}
