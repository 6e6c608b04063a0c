package service

import (
	"context"
	"errors"

	"github.com/banshee-data/rlplanner/internal/imagegen/l2frames"
)

// ErrInvalidRequest marks failures caused by the caller's input: a
// malformed inline scan or non-finite waypoints.
var ErrInvalidRequest = errors.New("invalid request")

// ErrorKind groups generation errors by how a transport should report them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	// KindInvalid is bad caller input.
	KindInvalid
	// KindUnavailable means inputs are not ready yet: no scan, or the path
	// cannot be resolved into the robot frame.
	KindUnavailable
	// KindCanceled is a cancelled or expired request context.
	KindCanceled
)

// Classify maps err onto an ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalid
	case errors.Is(err, l2frames.ErrNoScan),
		errors.Is(err, l2frames.ErrNoTransform),
		errors.Is(err, l2frames.ErrStaleTransform):
		return KindUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
