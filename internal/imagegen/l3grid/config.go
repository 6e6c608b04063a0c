package l3grid

import (
	"fmt"

	"github.com/banshee-data/rlplanner/internal/config"
	"github.com/banshee-data/rlplanner/internal/imagegen/l2frames"
)

// InvalidRangePolicy decides what a ray without a usable return paints.
type InvalidRangePolicy int

const (
	// LeaveUnknown skips invalid readings; their rays stay CellUnknown.
	LeaveUnknown InvalidRangePolicy = iota
	// FreeToMax marks no-return readings (beyond RangeMax or +Inf) free out
	// to RangeMax. Too-close and NaN readings are still skipped.
	FreeToMax
)

func (p InvalidRangePolicy) String() string {
	switch p {
	case LeaveUnknown:
		return config.PolicyLeaveUnknown
	case FreeToMax:
		return config.PolicyFreeToMax
	default:
		return fmt.Sprintf("InvalidRangePolicy(%d)", int(p))
	}
}

// ParseInvalidRangePolicy maps a config name onto a policy.
func ParseInvalidRangePolicy(s string) (InvalidRangePolicy, error) {
	switch s {
	case "", config.PolicyLeaveUnknown:
		return LeaveUnknown, nil
	case config.PolicyFreeToMax:
		return FreeToMax, nil
	default:
		return LeaveUnknown, fmt.Errorf("unknown invalid range policy %q", s)
	}
}

// Config is the immutable description of the grid and how inputs are
// painted onto it. Build it once (DefaultConfig, ConfigFromImageConfig or
// the With* helpers) and share it by value.
type Config struct {
	WidthPos   int     // cells ahead of the robot origin
	WidthNeg   int     // cells behind the robot origin
	Height     int     // lateral cells, origin row at Height/2
	Resolution float64 // meters per cell

	GoalMarkerSize int  // side length of the goal square in cells
	PathValue      int8 // value written along the path polyline

	MarkFreeSpace      bool               // paint ray interiors free
	InvalidRangePolicy InvalidRangePolicy // handling of unusable readings

	// SensorMount is the scanner pose within the robot frame.
	SensorMount l2frames.Pose2D
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return ConfigFromImageConfig(config.EmptyImageConfig())
}

// ConfigFromImageConfig builds a Config from a loaded ImageConfig. Unset
// fields take the ImageConfig defaults. Call Validate on the result.
func ConfigFromImageConfig(ic *config.ImageConfig) Config {
	policy, err := ParseInvalidRangePolicy(ic.GetInvalidRangePolicy())
	if err != nil {
		// ImageConfig.Validate rejects unknown names; fall back for
		// unvalidated input.
		policy = LeaveUnknown
	}
	mx, my, myaw := ic.GetSensorMount()
	return Config{
		WidthPos:           ic.GetWidthPos(),
		WidthNeg:           ic.GetWidthNeg(),
		Height:             ic.GetHeight(),
		Resolution:         ic.GetResolution(),
		GoalMarkerSize:     ic.GetGoalMarkerSize(),
		PathValue:          int8(ic.GetPathValue()),
		MarkFreeSpace:      ic.GetMarkFreeSpace(),
		InvalidRangePolicy: policy,
		SensorMount:        l2frames.Pose2D{X: mx, Y: my, Yaw: myaw},
	}
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.WidthPos < 0 || c.WidthNeg < 0 {
		return fmt.Errorf("WidthPos and WidthNeg must be non-negative, got %d/%d", c.WidthPos, c.WidthNeg)
	}
	if c.Width() <= 0 {
		return fmt.Errorf("WidthPos + WidthNeg must be positive, got %d", c.Width())
	}
	if c.Height <= 0 {
		return fmt.Errorf("Height must be positive, got %d", c.Height)
	}
	if !(c.Resolution > 0) {
		return fmt.Errorf("Resolution must be positive, got %f", c.Resolution)
	}
	if c.GoalMarkerSize < 1 {
		return fmt.Errorf("GoalMarkerSize must be at least 1, got %d", c.GoalMarkerSize)
	}
	switch c.PathValue {
	case CellUnknown, CellFree, CellOccupied, CellGoal:
		return fmt.Errorf("PathValue %d collides with a reserved cell value", c.PathValue)
	}
	if c.InvalidRangePolicy != LeaveUnknown && c.InvalidRangePolicy != FreeToMax {
		return fmt.Errorf("unknown InvalidRangePolicy %d", int(c.InvalidRangePolicy))
	}
	return nil
}

// Width is the number of grid columns.
func (c Config) Width() int {
	return c.WidthPos + c.WidthNeg
}

// CellCount is the number of cells in a grid built from c.
func (c Config) CellCount() int {
	return c.Width() * c.Height
}

// WithDimensions returns a copy of c with the given geometry.
func (c Config) WithDimensions(widthPos, widthNeg, height int, resolution float64) Config {
	c.WidthPos, c.WidthNeg, c.Height, c.Resolution = widthPos, widthNeg, height, resolution
	return c
}

// WithGoalMarkerSize returns a copy of c with the goal square side set.
func (c Config) WithGoalMarkerSize(n int) Config {
	c.GoalMarkerSize = n
	return c
}

// WithPathValue returns a copy of c with the path polyline value set.
func (c Config) WithPathValue(v int8) Config {
	c.PathValue = v
	return c
}

// WithMarkFreeSpace returns a copy of c with free-ray marking toggled.
func (c Config) WithMarkFreeSpace(on bool) Config {
	c.MarkFreeSpace = on
	return c
}

// WithInvalidRangePolicy returns a copy of c with the policy set.
func (c Config) WithInvalidRangePolicy(p InvalidRangePolicy) Config {
	c.InvalidRangePolicy = p
	return c
}

// WithSensorMount returns a copy of c with the scanner pose set.
func (c Config) WithSensorMount(p l2frames.Pose2D) Config {
	c.SensorMount = p
	return c
}
