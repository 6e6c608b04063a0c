// Package l3grid owns Layer 3 (Grid) of the state image data model.
//
// Responsibilities: the fixed-size occupancy grid handed to the policy,
// the coordinate mapper from robot-frame meters to cells, and the
// rasterizers that paint scan rays, path polylines and the goal marker.
// Key types: Config, Grid, Rasterizer.
//
// Dependency rule: L3 may depend on L1-L2, but never on the service or
// monitor packages. No I/O is allowed in this package.
//
// Cell encoding follows nav_msgs/OccupancyGrid: -1 unknown, 0 free,
// 100 occupied. Path and goal cells use the overlay values CellPath and
// CellGoal so a consumer can tell them apart from obstacles.
package l3grid
