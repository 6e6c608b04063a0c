package l2frames

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/rlplanner/internal/imagegen/l1scan"
)

func assertVecNear(t *testing.T, want, got r2.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-9, "y")
}

func TestPose2D_TransformRoundTrip(t *testing.T) {
	poses := []Pose2D{
		{},
		{X: 1, Y: 2},
		{Yaw: math.Pi / 2},
		{X: -3, Y: 0.5, Yaw: 2.1},
	}
	pts := []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: -2.5, Y: 4}}
	for _, p := range poses {
		for _, q := range pts {
			assertVecNear(t, q, p.Inverse().TransformPoint(p.TransformPoint(q)))
		}
	}
}

func TestPose2D_TransformPoint(t *testing.T) {
	p := Pose2D{X: 1, Y: 1, Yaw: math.Pi / 2}
	// Forward in the child frame points along +Y in the parent frame.
	assertVecNear(t, r2.Vec{X: 1, Y: 3}, p.TransformPoint(r2.Vec{X: 2}))
	assertVecNear(t, r2.Vec{X: 2, Y: 0}, p.Inverse().TransformPoint(r2.Vec{X: 1, Y: 3}))
}

func TestPose2D_Inverse(t *testing.T) {
	p := Pose2D{X: 1, Yaw: math.Pi / 2}
	inv := p.Inverse()
	assert.InDelta(t, 0, inv.X, 1e-9)
	assert.InDelta(t, 1, inv.Y, 1e-9)
	assert.InDelta(t, -math.Pi/2, inv.Yaw, 1e-9)

	q := r2.Vec{X: 0.3, Y: -0.7}
	assertVecNear(t, q, p.TransformPoint(inv.TransformPoint(q)))

	wrapped := Pose2D{Yaw: -math.Pi}.Inverse()
	assert.InDelta(t, math.Pi, wrapped.Yaw, 1e-12)
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, math.Pi, NormalizeAngle(math.Pi), 1e-12)
	assert.InDelta(t, math.Pi, NormalizeAngle(-math.Pi), 1e-12)
	assert.InDelta(t, 0, NormalizeAngle(4*math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi/2, NormalizeAngle(3*math.Pi/2), 1e-12)
}

func validScan(stamp int64) *l1scan.LaserScan {
	return &l1scan.LaserScan{
		FrameID:    "laser",
		StampNanos: stamp,
		AngleMin:   0,
		AngleMax:   0.2,
		AngleInc:   0.1,
		RangeMax:   10,
		Ranges:     []float64{1, 2, 3},
	}
}

func TestLatestStore_NoScan(t *testing.T) {
	s := NewLatestStore("", 0)
	assert.Equal(t, DefaultRobotFrame, s.RobotFrame())
	_, err := s.Snapshot(context.Background())
	assert.True(t, errors.Is(err, ErrNoScan))
}

func TestLatestStore_RejectsInvalidScan(t *testing.T) {
	s := NewLatestStore("", 0)
	err := s.UpdateScan(&l1scan.LaserScan{})
	assert.True(t, errors.Is(err, l1scan.ErrEmptyScan))
}

func TestLatestStore_ScanOnly(t *testing.T) {
	s := NewLatestStore("", 0)
	scan := validScan(1)
	require.NoError(t, s.UpdateScan(scan))
	scan.Ranges[0] = 99 // caller mutation must not leak into the store

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Scan.Ranges[0])
	assert.Empty(t, snap.Waypoints)
}

func TestLatestStore_RobotFramePassthrough(t *testing.T) {
	s := NewLatestStore("base_link", 0)
	require.NoError(t, s.UpdateScan(validScan(1)))
	s.UpdatePath(Path{FrameID: "base_link", Points: []r2.Vec{{X: 1}, {X: 2, Y: 1}}})

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []r2.Vec{{X: 1}, {X: 2, Y: 1}}, snap.Waypoints)
}

func TestLatestStore_ResolvesWorldPath(t *testing.T) {
	s := NewLatestStore("", 0)
	require.NoError(t, s.UpdateScan(validScan(1)))
	s.UpdatePose(StampedPose{FrameID: "map", Pose: Pose2D{X: 10, Y: 5, Yaw: math.Pi / 2}})
	s.UpdatePath(Path{FrameID: "map", Points: []r2.Vec{{X: 10, Y: 7}}})

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Waypoints, 1)
	// Two meters north of a north-facing robot is two meters ahead.
	assertVecNear(t, r2.Vec{X: 2, Y: 0}, snap.Waypoints[0])
}

func TestLatestStore_MissingTransform(t *testing.T) {
	s := NewLatestStore("", 0)
	require.NoError(t, s.UpdateScan(validScan(1)))
	s.UpdatePose(StampedPose{FrameID: "odom"})
	s.UpdatePath(Path{FrameID: "map", Points: []r2.Vec{{X: 1}}})

	_, err := s.Snapshot(context.Background())
	assert.True(t, errors.Is(err, ErrNoTransform))
}

func TestLatestStore_StalePose(t *testing.T) {
	s := NewLatestStore("", 100*time.Millisecond)
	require.NoError(t, s.UpdateScan(validScan(int64(time.Second))))
	s.UpdatePath(Path{FrameID: "map", Points: []r2.Vec{{X: 1}}})

	s.UpdatePose(StampedPose{FrameID: "map", StampNanos: int64(500 * time.Millisecond)})
	_, err := s.Snapshot(context.Background())
	assert.True(t, errors.Is(err, ErrStaleTransform))

	s.UpdatePose(StampedPose{FrameID: "map", StampNanos: int64(950 * time.Millisecond)})
	_, err = s.Snapshot(context.Background())
	assert.NoError(t, err)
}

func TestLatestStore_CancelledContext(t *testing.T) {
	s := NewLatestStore("", 0)
	require.NoError(t, s.UpdateScan(validScan(1)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLatestStore_ConcurrentAccess(t *testing.T) {
	s := NewLatestStore("", 0)
	require.NoError(t, s.UpdateScan(validScan(1)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.UpdateScan(validScan(int64(i)))
			s.UpdatePath(Path{Points: []r2.Vec{{X: float64(i)}}})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Snapshot(context.Background())
		}()
	}
	wg.Wait()

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Waypoints, 1)
}

func TestProviderFunc(t *testing.T) {
	want := &Snapshot{Scan: validScan(1)}
	var p SensorFrameProvider = ProviderFunc(func(ctx context.Context) (*Snapshot, error) {
		return want, nil
	})
	got, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)
}
