package l1scan

import (
	"errors"
	"fmt"
	"math"
)

// angleTolerance absorbs float accumulation when checking that a sample
// angle lies inside [AngleMin, AngleMax].
const angleTolerance = 1e-6

var (
	// ErrEmptyScan is returned by Validate for a scan without range readings.
	ErrEmptyScan = errors.New("scan has no range readings")
	// ErrBadIncrement is returned when a multi-sample scan has a zero or
	// non-finite angular increment.
	ErrBadIncrement = errors.New("scan angle_increment must be finite and non-zero")
	// ErrBadRangeBounds is returned when range_min/range_max are unusable.
	ErrBadRangeBounds = errors.New("scan range bounds invalid")
)

// LaserScan is a single planar sweep of a range sensor, expressed in the
// sensor frame. Field names follow sensor_msgs/LaserScan so recorded scans
// can be replayed without renaming.
type LaserScan struct {
	FrameID     string    `json:"frame_id" yaml:"frame_id"`
	StampNanos  int64     `json:"stamp_nanos" yaml:"stamp_nanos"` // acquisition time, unix nanos
	AngleMin    float64   `json:"angle_min" yaml:"angle_min"`     // radians
	AngleMax    float64   `json:"angle_max" yaml:"angle_max"`     // radians
	AngleInc    float64   `json:"angle_increment" yaml:"angle_increment"`
	RangeMin    float64   `json:"range_min" yaml:"range_min"` // meters
	RangeMax    float64   `json:"range_max" yaml:"range_max"` // meters
	Ranges      Ranges    `json:"ranges" yaml:"ranges"`
	Intensities []float64 `json:"intensities,omitempty" yaml:"intensities,omitempty"`
}

// Sample is one range reading paired with its beam angle.
type Sample struct {
	Index int
	Angle float64 // radians, relative to sensor heading
	Range float64 // meters
}

// RangeClass classifies a reading against the sensor bounds.
type RangeClass int

const (
	// RangeValid is a usable return inside [RangeMin, RangeMax].
	RangeValid RangeClass = iota
	// RangeTooClose is below RangeMin (self-hits, dust, blinding).
	RangeTooClose
	// RangeNoReturn is above RangeMax or +Inf: the beam saw nothing.
	RangeNoReturn
	// RangeNaN is a reading the driver could not produce.
	RangeNaN
)

func (c RangeClass) String() string {
	switch c {
	case RangeValid:
		return "valid"
	case RangeTooClose:
		return "too_close"
	case RangeNoReturn:
		return "no_return"
	case RangeNaN:
		return "nan"
	default:
		return fmt.Sprintf("RangeClass(%d)", int(c))
	}
}

// Validate checks the scan header. Individual invalid ranges are not an
// error; they are classified per sample by Classify.
func (s *LaserScan) Validate() error {
	if s == nil || len(s.Ranges) == 0 {
		return ErrEmptyScan
	}
	if math.IsNaN(s.AngleMin) || math.IsInf(s.AngleMin, 0) ||
		math.IsNaN(s.AngleMax) || math.IsInf(s.AngleMax, 0) {
		return fmt.Errorf("scan angle bounds must be finite, got [%f, %f]", s.AngleMin, s.AngleMax)
	}
	if len(s.Ranges) > 1 && (s.AngleInc == 0 || math.IsNaN(s.AngleInc) || math.IsInf(s.AngleInc, 0)) {
		return fmt.Errorf("%w: got %f", ErrBadIncrement, s.AngleInc)
	}
	if math.IsNaN(s.RangeMin) || math.IsNaN(s.RangeMax) || s.RangeMin < 0 || s.RangeMin > s.RangeMax {
		return fmt.Errorf("%w: min=%f max=%f", ErrBadRangeBounds, s.RangeMin, s.RangeMax)
	}
	if len(s.Intensities) != 0 && len(s.Intensities) != len(s.Ranges) {
		return fmt.Errorf("scan has %d intensities for %d ranges", len(s.Intensities), len(s.Ranges))
	}
	return nil
}

// Classify reports whether r is usable under the scan's range bounds.
func (s *LaserScan) Classify(r float64) RangeClass {
	switch {
	case math.IsNaN(r):
		return RangeNaN
	case r < s.RangeMin:
		return RangeTooClose
	case r > s.RangeMax:
		// +Inf lands here as well.
		return RangeNoReturn
	default:
		return RangeValid
	}
}

// AngleAt returns the beam angle of sample i.
func (s *LaserScan) AngleAt(i int) float64 {
	return s.AngleMin + float64(i)*s.AngleInc
}

// InAngleBounds reports whether angle lies within the advertised sweep.
func (s *LaserScan) InAngleBounds(angle float64) bool {
	lo, hi := s.AngleMin, s.AngleMax
	if lo > hi {
		lo, hi = hi, lo
	}
	return angle >= lo-angleTolerance && angle <= hi+angleTolerance
}

// Samples returns every reading in increasing angle order. Scans recorded
// with a negative increment are walked back to front. Samples whose angle
// falls outside [AngleMin, AngleMax] are dropped; callers can compare the
// result's length with len(Ranges) to see how many.
func (s *LaserScan) Samples() []Sample {
	n := len(s.Ranges)
	out := make([]Sample, 0, n)
	for k := 0; k < n; k++ {
		i := k
		if s.AngleInc < 0 {
			i = n - 1 - k
		}
		angle := s.AngleAt(i)
		if !s.InAngleBounds(angle) {
			continue
		}
		out = append(out, Sample{Index: i, Angle: angle, Range: s.Ranges[i]})
	}
	return out
}

// CountValid returns the number of readings classified RangeValid.
func (s *LaserScan) CountValid() int {
	valid := 0
	for _, r := range s.Ranges {
		if s.Classify(r) == RangeValid {
			valid++
		}
	}
	return valid
}

// Clone returns a deep copy so stored scans are never aliased by callers.
func (s *LaserScan) Clone() *LaserScan {
	if s == nil {
		return nil
	}
	c := *s
	c.Ranges = append([]float64(nil), s.Ranges...)
	if s.Intensities != nil {
		c.Intensities = append([]float64(nil), s.Intensities...)
	}
	return &c
}
