// Package l2frames owns Layer 2 (Frames) of the state image data model.
//
// Responsibilities: planar rigid transforms between the world, robot and
// sensor frames, and the SensorFrameProvider boundary that hands the
// rasterizer a scan plus waypoints already expressed in the robot frame.
// Key types: Pose2D, Path, Snapshot, LatestStore.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2frames
