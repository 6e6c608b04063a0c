package l2frames

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// FrameID is a human-readable coordinate frame identifier.
type FrameID string

// DefaultRobotFrame is the frame the state image is centered on.
const DefaultRobotFrame FrameID = "base_footprint"

// Pose2D is a planar rigid transform: translation (X, Y) in meters and a
// counter-clockwise rotation Yaw in radians. A Pose2D describing frame B in
// frame A maps B coordinates into A coordinates.
type Pose2D struct {
	X   float64 `json:"x" yaml:"x"`
	Y   float64 `json:"y" yaml:"y"`
	Yaw float64 `json:"yaw" yaml:"yaw"`
}

// Translation returns the pose origin as a vector.
func (p Pose2D) Translation() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// TransformPoint maps q from the child frame into the parent frame.
func (p Pose2D) TransformPoint(q r2.Vec) r2.Vec {
	rot := r2.NewRotation(p.Yaw, r2.Vec{})
	return r2.Add(rot.Rotate(q), p.Translation())
}

// Inverse returns the transform that undoes p.
func (p Pose2D) Inverse() Pose2D {
	t := Pose2D{Yaw: -p.Yaw}.TransformPoint(r2.Scale(-1, p.Translation()))
	return Pose2D{X: t.X, Y: t.Y, Yaw: NormalizeAngle(-p.Yaw)}
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
