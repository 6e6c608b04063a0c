// Package service is the trigger boundary of the state image generator.
//
// A Generator turns a Request (inline scan and waypoints, or nothing) into
// a Response holding the rasterized grid. When the request carries no
// scan the configured SensorFrameProvider is asked for the latest
// snapshot. Every generation is logged and, when a recorder is attached,
// written to the event log.
//
// The same Generator is exposed over gRPC (RegisterGRPC, GRPCServer) and
// over HTTP by the monitor package.
package service
