package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/rlplanner/internal/fsutil"
)

func TestDefaultImageConfig(t *testing.T) {
	cfg := DefaultImageConfig()

	if cfg.WidthPos == nil || *cfg.WidthPos != DefaultWidthPos {
		t.Errorf("Expected WidthPos %d, got %v", DefaultWidthPos, cfg.WidthPos)
	}
	if cfg.Resolution == nil || *cfg.Resolution != DefaultResolution {
		t.Errorf("Expected Resolution %f, got %v", DefaultResolution, cfg.Resolution)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.GetInvalidRangePolicy() != PolicyLeaveUnknown {
		t.Errorf("GetInvalidRangePolicy() = %q, want %q", cfg.GetInvalidRangePolicy(), PolicyLeaveUnknown)
	}
	if cfg.GetMaxPoseSkew() != 0 {
		t.Errorf("GetMaxPoseSkew() = %v, want 0", cfg.GetMaxPoseSkew())
	}
}

func TestEmptyImageConfigGetters(t *testing.T) {
	cfg := EmptyImageConfig()

	if cfg.GetWidthPos() != DefaultWidthPos {
		t.Errorf("GetWidthPos() = %d, want %d", cfg.GetWidthPos(), DefaultWidthPos)
	}
	if cfg.GetWidthNeg() != DefaultWidthNeg {
		t.Errorf("GetWidthNeg() = %d, want %d", cfg.GetWidthNeg(), DefaultWidthNeg)
	}
	if cfg.GetHeight() != DefaultHeight {
		t.Errorf("GetHeight() = %d, want %d", cfg.GetHeight(), DefaultHeight)
	}
	if cfg.GetGoalMarkerSize() != DefaultGoalMarkerSize {
		t.Errorf("GetGoalMarkerSize() = %d, want %d", cfg.GetGoalMarkerSize(), DefaultGoalMarkerSize)
	}
	if cfg.GetPathValue() != DefaultPathValue {
		t.Errorf("GetPathValue() = %d, want %d", cfg.GetPathValue(), DefaultPathValue)
	}
	if cfg.GetMarkFreeSpace() != DefaultMarkFreeSpace {
		t.Errorf("GetMarkFreeSpace() = %v, want %v", cfg.GetMarkFreeSpace(), DefaultMarkFreeSpace)
	}
	if cfg.GetRobotFrame() != DefaultRobotFrame {
		t.Errorf("GetRobotFrame() = %q, want %q", cfg.GetRobotFrame(), DefaultRobotFrame)
	}
	x, y, yaw := cfg.GetSensorMount()
	if x != 0 || y != 0 || yaw != 0 {
		t.Errorf("GetSensorMount() = (%f, %f, %f), want zeros", x, y, yaw)
	}
}

func TestLoadImageConfigJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "imagegen.json")

	testJSON := `{
  "img_width_pos": 60,
  "img_height": 40,
  "resolution": 0.1,
  "invalid_range_policy": "free_to_max",
  "sensor_mount_x": 0.25,
  "max_pose_skew": "150ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadImageConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetWidthPos() != 60 {
		t.Errorf("GetWidthPos() = %d, want 60", cfg.GetWidthPos())
	}
	if cfg.GetWidthNeg() != DefaultWidthNeg {
		t.Errorf("omitted img_width_neg should default, got %d", cfg.GetWidthNeg())
	}
	if cfg.GetHeight() != 40 {
		t.Errorf("GetHeight() = %d, want 40", cfg.GetHeight())
	}
	if cfg.GetResolution() != 0.1 {
		t.Errorf("GetResolution() = %f, want 0.1", cfg.GetResolution())
	}
	if cfg.GetInvalidRangePolicy() != PolicyFreeToMax {
		t.Errorf("GetInvalidRangePolicy() = %q, want %q", cfg.GetInvalidRangePolicy(), PolicyFreeToMax)
	}
	if x, _, _ := cfg.GetSensorMount(); x != 0.25 {
		t.Errorf("sensor mount x = %f, want 0.25", x)
	}
	if cfg.GetMaxPoseSkew() != 150*time.Millisecond {
		t.Errorf("GetMaxPoseSkew() = %v, want 150ms", cfg.GetMaxPoseSkew())
	}
}

func TestLoadImageConfigYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "imagegen.yaml")

	testYAML := `img_width_pos: 30
img_width_neg: 10
img_height: 20
resolution: 0.2
goal_marker_size: 5
mark_free_space: false
robot_frame: base_link
`
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadImageConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetWidthPos() != 30 || cfg.GetWidthNeg() != 10 || cfg.GetHeight() != 20 {
		t.Errorf("unexpected geometry: %d/%d/%d", cfg.GetWidthPos(), cfg.GetWidthNeg(), cfg.GetHeight())
	}
	if cfg.GetGoalMarkerSize() != 5 {
		t.Errorf("GetGoalMarkerSize() = %d, want 5", cfg.GetGoalMarkerSize())
	}
	if cfg.GetMarkFreeSpace() {
		t.Errorf("GetMarkFreeSpace() = true, want false")
	}
	if cfg.GetRobotFrame() != "base_link" {
		t.Errorf("GetRobotFrame() = %q, want base_link", cfg.GetRobotFrame())
	}
}

func TestLoadImageConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"bad extension", write("cfg.txt", "{}"), "extension"},
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"bad json", write("bad.json", "{"), "failed to parse config JSON"},
		{"bad yaml", write("bad.yaml", "img_height: [1"), "failed to parse config YAML"},
		{"invalid values", write("neg.json", `{"resolution": -1}`), "invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadImageConfig(tt.path)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadImageConfigTooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.json")
	if err := os.WriteFile(p, make([]byte, 1024*1024+1), 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if _, err := LoadImageConfig(p); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestImageConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  *ImageConfig
		ok   bool
	}{
		{"empty", &ImageConfig{}, true},
		{"negative width_pos", &ImageConfig{WidthPos: ptrInt(-1)}, false},
		{"negative width_neg", &ImageConfig{WidthNeg: ptrInt(-1)}, false},
		{"zero total width", &ImageConfig{WidthPos: ptrInt(0), WidthNeg: ptrInt(0)}, false},
		{"width behind only", &ImageConfig{WidthPos: ptrInt(0), WidthNeg: ptrInt(5)}, true},
		{"zero height", &ImageConfig{Height: ptrInt(0)}, false},
		{"zero resolution", &ImageConfig{Resolution: ptrFloat64(0)}, false},
		{"zero goal size", &ImageConfig{GoalMarkerSize: ptrInt(0)}, false},
		{"path value overflow", &ImageConfig{PathValue: ptrInt(200)}, false},
		{"unknown policy", &ImageConfig{InvalidRangePolicy: ptrString("guess")}, false},
		{"free_to_max policy", &ImageConfig{InvalidRangePolicy: ptrString(PolicyFreeToMax)}, true},
		{"bad skew", &ImageConfig{MaxPoseSkew: ptrString("soon")}, false},
		{"negative skew", &ImageConfig{MaxPoseSkew: ptrString("-1s")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetWidthPos() != DefaultWidthPos || cfg.GetHeight() != DefaultHeight {
		t.Errorf("defaults file disagrees with built-in defaults: %d/%d", cfg.GetWidthPos(), cfg.GetHeight())
	}
	if cfg.GetRobotFrame() != DefaultRobotFrame {
		t.Errorf("GetRobotFrame() = %q, want %q", cfg.GetRobotFrame(), DefaultRobotFrame)
	}
}

func TestImageConfigResolved(t *testing.T) {
	if diff := cmp.Diff(DefaultImageConfig(), EmptyImageConfig().Resolved()); diff != "" {
		t.Errorf("Resolved() of empty config differs from defaults (-want +got):\n%s", diff)
	}

	width := 42
	skew := "150ms"
	partial := &ImageConfig{WidthPos: &width, MaxPoseSkew: &skew}
	got := partial.Resolved()
	if *got.WidthPos != 42 || *got.MaxPoseSkew != "150ms" || *got.Height != DefaultHeight {
		t.Errorf("Resolved() = width %d skew %s height %d", *got.WidthPos, *got.MaxPoseSkew, *got.Height)
	}
	if got.WidthPos == partial.WidthPos {
		t.Error("Resolved() must not alias the source pointers")
	}
}

func TestLoadImageConfigFS(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	if err := mfs.MkdirAll("/etc/rlplanner", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := mfs.WriteFileAtomic("/etc/rlplanner/img.yaml", []byte("img_height: 40\nmark_free_space: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadImageConfigFS(mfs, "/etc/rlplanner/img.yaml")
	if err != nil {
		t.Fatalf("LoadImageConfigFS failed: %v", err)
	}
	if cfg.GetHeight() != 40 || cfg.GetMarkFreeSpace() {
		t.Errorf("unexpected config: height=%d mark_free_space=%v", cfg.GetHeight(), cfg.GetMarkFreeSpace())
	}
	if cfg.GetWidthPos() != DefaultWidthPos {
		t.Errorf("omitted fields should keep defaults, got width_pos=%d", cfg.GetWidthPos())
	}

	if _, err := LoadImageConfigFS(mfs, "/etc/rlplanner/missing.json"); err == nil {
		t.Error("expected error for missing file")
	}
}
