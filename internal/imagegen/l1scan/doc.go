// Package l1scan owns Layer 1 (Scan) of the state image data model.
//
// Responsibilities: the planar range-scan model, sample iteration in
// angular order, range validity classification and polar to Cartesian
// conversion in the sensor frame.
// Key types: LaserScan, Sample, RangeClass.
//
// Dependency rule: L1 depends on nothing above it. Frame transforms belong
// to l2frames, rasterization to l3grid.
package l1scan
