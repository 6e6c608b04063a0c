package l2frames

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/rlplanner/internal/imagegen/l1scan"
)

var (
	// ErrNoScan is returned when no scan has been received yet.
	ErrNoScan = errors.New("no scan available")
	// ErrNoTransform is returned when the path frame cannot be resolved
	// into the robot frame.
	ErrNoTransform = errors.New("no transform to robot frame")
	// ErrStaleTransform is returned when the robot pose and the scan were
	// captured too far apart to be combined.
	ErrStaleTransform = errors.New("robot pose is stale relative to scan")
)

// Path is a planned waypoint sequence expressed in FrameID.
type Path struct {
	FrameID    FrameID  `json:"frame_id"`
	StampNanos int64    `json:"stamp_nanos"`
	Points     []r2.Vec `json:"points"`
}

// StampedPose is the robot pose within FrameID at StampNanos.
type StampedPose struct {
	FrameID    FrameID `json:"frame_id"`
	StampNanos int64   `json:"stamp_nanos"`
	Pose       Pose2D  `json:"pose"`
}

// Snapshot is one mutually consistent input set for image generation:
// a sensor-frame scan and waypoints already in the robot frame.
type Snapshot struct {
	Scan      *l1scan.LaserScan
	Waypoints []r2.Vec
}

// SensorFrameProvider supplies the rasterizer's inputs. Implementations
// own transform resolution and temporal consistency; the rasterizer never
// looks up frames itself.
type SensorFrameProvider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// ProviderFunc adapts a plain function to SensorFrameProvider.
type ProviderFunc func(ctx context.Context) (*Snapshot, error)

// Snapshot calls f(ctx).
func (f ProviderFunc) Snapshot(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// LatestStore keeps the most recent scan, path and robot pose and serves
// them as a Snapshot. It is safe for concurrent use.
type LatestStore struct {
	robotFrame  FrameID
	maxPoseSkew time.Duration

	mu   sync.RWMutex
	scan *l1scan.LaserScan
	path *Path
	pose *StampedPose
}

// Ensure LatestStore satisfies the provider boundary.
var _ SensorFrameProvider = (*LatestStore)(nil)

// NewLatestStore creates a store centred on robotFrame. A zero
// maxPoseSkew disables the staleness check.
func NewLatestStore(robotFrame FrameID, maxPoseSkew time.Duration) *LatestStore {
	if robotFrame == "" {
		robotFrame = DefaultRobotFrame
	}
	return &LatestStore{robotFrame: robotFrame, maxPoseSkew: maxPoseSkew}
}

// RobotFrame returns the frame waypoints are resolved into.
func (s *LatestStore) RobotFrame() FrameID {
	return s.robotFrame
}

// UpdateScan replaces the stored scan with a copy of scan.
func (s *LatestStore) UpdateScan(scan *l1scan.LaserScan) error {
	if err := scan.Validate(); err != nil {
		return fmt.Errorf("rejecting scan: %w", err)
	}
	c := scan.Clone()
	s.mu.Lock()
	s.scan = c
	s.mu.Unlock()
	return nil
}

// UpdatePath replaces the stored path. An empty point list clears the plan.
func (s *LatestStore) UpdatePath(p Path) {
	c := p
	c.Points = append([]r2.Vec(nil), p.Points...)
	s.mu.Lock()
	s.path = &c
	s.mu.Unlock()
}

// UpdatePose records the robot pose within a world frame.
func (s *LatestStore) UpdatePose(p StampedPose) {
	s.mu.Lock()
	s.pose = &p
	s.mu.Unlock()
}

// Snapshot returns the latest scan and the latest path resolved into the
// robot frame. A missing path yields an empty waypoint list.
func (s *LatestStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	scan, path, pose := s.scan, s.path, s.pose
	s.mu.RUnlock()

	if scan == nil {
		return nil, ErrNoScan
	}
	snap := &Snapshot{Scan: scan}
	if path == nil || len(path.Points) == 0 {
		return snap, nil
	}

	wps, err := s.resolvePath(scan, path, pose)
	if err != nil {
		return nil, err
	}
	snap.Waypoints = wps
	return snap, nil
}

func (s *LatestStore) resolvePath(scan *l1scan.LaserScan, path *Path, pose *StampedPose) ([]r2.Vec, error) {
	out := make([]r2.Vec, len(path.Points))
	if path.FrameID == "" || path.FrameID == s.robotFrame {
		copy(out, path.Points)
		return out, nil
	}
	if pose == nil || pose.FrameID != path.FrameID {
		return nil, fmt.Errorf("%w: path frame %q", ErrNoTransform, path.FrameID)
	}
	if s.maxPoseSkew > 0 {
		skew := time.Duration(pose.StampNanos - scan.StampNanos)
		if skew < 0 {
			skew = -skew
		}
		if skew > s.maxPoseSkew {
			return nil, fmt.Errorf("%w: skew %v exceeds %v", ErrStaleTransform, skew, s.maxPoseSkew)
		}
	}
	// The pose places the robot in the path frame; its inverse maps path
	// points into the robot frame.
	toRobot := pose.Pose.Inverse()
	for i, p := range path.Points {
		out[i] = toRobot.TransformPoint(p)
	}
	return out, nil
}
