package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/rlplanner/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical image generation defaults.
const DefaultConfigPath = "config/imagegen.defaults.json"

// Built-in defaults used when a field is absent from the loaded file.
const (
	DefaultWidthPos           = 80
	DefaultWidthNeg           = 20
	DefaultHeight             = 80
	DefaultResolution         = 0.05
	DefaultGoalMarkerSize     = 3
	DefaultPathValue          = 50
	DefaultMarkFreeSpace      = true
	DefaultInvalidRangePolicy = "leave_unknown"
	DefaultRobotFrame         = "base_footprint"
)

// Invalid range policy names accepted by invalid_range_policy.
const (
	PolicyLeaveUnknown = "leave_unknown"
	PolicyFreeToMax    = "free_to_max"
)

// ImageConfig is the root configuration for state image generation. The
// same schema is served by GET /api/config so a running service's settings
// can be saved and replayed.
type ImageConfig struct {
	// Grid geometry
	WidthPos       *int     `json:"img_width_pos,omitempty" yaml:"img_width_pos,omitempty"`
	WidthNeg       *int     `json:"img_width_neg,omitempty" yaml:"img_width_neg,omitempty"`
	Height         *int     `json:"img_height,omitempty" yaml:"img_height,omitempty"`
	Resolution     *float64 `json:"resolution,omitempty" yaml:"resolution,omitempty"` // meters per cell
	GoalMarkerSize *int     `json:"goal_marker_size,omitempty" yaml:"goal_marker_size,omitempty"`
	PathValue      *int     `json:"path_value,omitempty" yaml:"path_value,omitempty"`

	// Scan rasterization
	MarkFreeSpace      *bool   `json:"mark_free_space,omitempty" yaml:"mark_free_space,omitempty"`
	InvalidRangePolicy *string `json:"invalid_range_policy,omitempty" yaml:"invalid_range_policy,omitempty"`

	// Sensor mount within the robot frame
	SensorMountX   *float64 `json:"sensor_mount_x,omitempty" yaml:"sensor_mount_x,omitempty"`
	SensorMountY   *float64 `json:"sensor_mount_y,omitempty" yaml:"sensor_mount_y,omitempty"`
	SensorMountYaw *float64 `json:"sensor_mount_yaw,omitempty" yaml:"sensor_mount_yaw,omitempty"` // radians

	// Frame resolution
	RobotFrame  *string `json:"robot_frame,omitempty" yaml:"robot_frame,omitempty"`
	MaxPoseSkew *string `json:"max_pose_skew,omitempty" yaml:"max_pose_skew,omitempty"` // duration string like "100ms"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyImageConfig returns an ImageConfig with all fields unset.
func EmptyImageConfig() *ImageConfig {
	return &ImageConfig{}
}

// DefaultImageConfig returns an ImageConfig with every field populated
// from the built-in defaults.
func DefaultImageConfig() *ImageConfig {
	return &ImageConfig{
		WidthPos:           ptrInt(DefaultWidthPos),
		WidthNeg:           ptrInt(DefaultWidthNeg),
		Height:             ptrInt(DefaultHeight),
		Resolution:         ptrFloat64(DefaultResolution),
		GoalMarkerSize:     ptrInt(DefaultGoalMarkerSize),
		PathValue:          ptrInt(DefaultPathValue),
		MarkFreeSpace:      ptrBool(DefaultMarkFreeSpace),
		InvalidRangePolicy: ptrString(DefaultInvalidRangePolicy),
		SensorMountX:       ptrFloat64(0),
		SensorMountY:       ptrFloat64(0),
		SensorMountYaw:     ptrFloat64(0),
		RobotFrame:         ptrString(DefaultRobotFrame),
		MaxPoseSkew:        ptrString("0s"),
	}
}

// LoadImageConfig loads an ImageConfig from a .json, .yaml or .yml file.
// Fields omitted from the file keep their defaults via the Get* methods,
// so partial configs are safe.
func LoadImageConfig(path string) (*ImageConfig, error) {
	return LoadImageConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadImageConfigFS is LoadImageConfig reading through fsys.
func LoadImageConfigFS(fsys fsutil.FileSystem, path string) (*ImageConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyImageConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and common parents. Panics if the file cannot be loaded,
// intended for test setup.
func MustLoadDefaultConfig() *ImageConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/imagegen/l3grid/
		"../../../../" + DefaultConfigPath, // from internal/imagegen/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadImageConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *ImageConfig) Validate() error {
	if c.WidthPos != nil && *c.WidthPos < 0 {
		return fmt.Errorf("img_width_pos must be non-negative, got %d", *c.WidthPos)
	}
	if c.WidthNeg != nil && *c.WidthNeg < 0 {
		return fmt.Errorf("img_width_neg must be non-negative, got %d", *c.WidthNeg)
	}
	if c.GetWidthPos()+c.GetWidthNeg() <= 0 {
		return fmt.Errorf("img_width_pos + img_width_neg must be positive")
	}
	if c.Height != nil && *c.Height <= 0 {
		return fmt.Errorf("img_height must be positive, got %d", *c.Height)
	}
	if c.Resolution != nil && !(*c.Resolution > 0) {
		return fmt.Errorf("resolution must be positive, got %f", *c.Resolution)
	}
	if c.GoalMarkerSize != nil && *c.GoalMarkerSize < 1 {
		return fmt.Errorf("goal_marker_size must be at least 1, got %d", *c.GoalMarkerSize)
	}
	if c.PathValue != nil && (*c.PathValue < -128 || *c.PathValue > 127) {
		return fmt.Errorf("path_value must fit in int8, got %d", *c.PathValue)
	}
	if c.InvalidRangePolicy != nil {
		switch *c.InvalidRangePolicy {
		case PolicyLeaveUnknown, PolicyFreeToMax:
		default:
			return fmt.Errorf("invalid_range_policy must be %q or %q, got %q",
				PolicyLeaveUnknown, PolicyFreeToMax, *c.InvalidRangePolicy)
		}
	}
	if c.MaxPoseSkew != nil && *c.MaxPoseSkew != "" {
		d, err := time.ParseDuration(*c.MaxPoseSkew)
		if err != nil {
			return fmt.Errorf("invalid max_pose_skew '%s': %w", *c.MaxPoseSkew, err)
		}
		if d < 0 {
			return fmt.Errorf("max_pose_skew must be non-negative, got %v", d)
		}
	}
	return nil
}

// GetWidthPos returns the img_width_pos value or the default.
func (c *ImageConfig) GetWidthPos() int {
	if c.WidthPos == nil {
		return DefaultWidthPos
	}
	return *c.WidthPos
}

// GetWidthNeg returns the img_width_neg value or the default.
func (c *ImageConfig) GetWidthNeg() int {
	if c.WidthNeg == nil {
		return DefaultWidthNeg
	}
	return *c.WidthNeg
}

// GetHeight returns the img_height value or the default.
func (c *ImageConfig) GetHeight() int {
	if c.Height == nil {
		return DefaultHeight
	}
	return *c.Height
}

// GetResolution returns the resolution value or the default.
func (c *ImageConfig) GetResolution() float64 {
	if c.Resolution == nil {
		return DefaultResolution
	}
	return *c.Resolution
}

// GetGoalMarkerSize returns the goal_marker_size value or the default.
func (c *ImageConfig) GetGoalMarkerSize() int {
	if c.GoalMarkerSize == nil {
		return DefaultGoalMarkerSize
	}
	return *c.GoalMarkerSize
}

// GetPathValue returns the path_value value or the default.
func (c *ImageConfig) GetPathValue() int {
	if c.PathValue == nil {
		return DefaultPathValue
	}
	return *c.PathValue
}

// GetMarkFreeSpace returns the mark_free_space value or the default.
func (c *ImageConfig) GetMarkFreeSpace() bool {
	if c.MarkFreeSpace == nil {
		return DefaultMarkFreeSpace
	}
	return *c.MarkFreeSpace
}

// GetInvalidRangePolicy returns the invalid_range_policy value or the default.
func (c *ImageConfig) GetInvalidRangePolicy() string {
	if c.InvalidRangePolicy == nil || *c.InvalidRangePolicy == "" {
		return DefaultInvalidRangePolicy
	}
	return *c.InvalidRangePolicy
}

// GetSensorMount returns the sensor mount pose components, defaulting to
// a scanner at the robot origin facing forward.
func (c *ImageConfig) GetSensorMount() (x, y, yaw float64) {
	if c.SensorMountX != nil {
		x = *c.SensorMountX
	}
	if c.SensorMountY != nil {
		y = *c.SensorMountY
	}
	if c.SensorMountYaw != nil {
		yaw = *c.SensorMountYaw
	}
	return x, y, yaw
}

// GetRobotFrame returns the robot_frame value or the default.
func (c *ImageConfig) GetRobotFrame() string {
	if c.RobotFrame == nil || *c.RobotFrame == "" {
		return DefaultRobotFrame
	}
	return *c.RobotFrame
}

// GetMaxPoseSkew parses and returns MaxPoseSkew. Zero disables the check.
func (c *ImageConfig) GetMaxPoseSkew() time.Duration {
	if c.MaxPoseSkew == nil || *c.MaxPoseSkew == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.MaxPoseSkew)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}

// Resolved returns a copy with every field populated, either from c or
// from the defaults. The result is what GET /api/config serves, so it can
// be saved and loaded back unchanged.
func (c *ImageConfig) Resolved() *ImageConfig {
	x, y, yaw := c.GetSensorMount()
	return &ImageConfig{
		WidthPos:           ptrInt(c.GetWidthPos()),
		WidthNeg:           ptrInt(c.GetWidthNeg()),
		Height:             ptrInt(c.GetHeight()),
		Resolution:         ptrFloat64(c.GetResolution()),
		GoalMarkerSize:     ptrInt(c.GetGoalMarkerSize()),
		PathValue:          ptrInt(c.GetPathValue()),
		MarkFreeSpace:      ptrBool(c.GetMarkFreeSpace()),
		InvalidRangePolicy: ptrString(c.GetInvalidRangePolicy()),
		SensorMountX:       ptrFloat64(x),
		SensorMountY:       ptrFloat64(y),
		SensorMountYaw:     ptrFloat64(yaw),
		RobotFrame:         ptrString(c.GetRobotFrame()),
		MaxPoseSkew:        ptrString(c.GetMaxPoseSkew().String()),
	}
}
