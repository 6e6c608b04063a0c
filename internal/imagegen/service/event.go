package service

import (
	"context"
)

// Request sources recorded with each event.
const (
	SourceInline   = "inline"
	SourceProvider = "provider"
	SourcePeriodic = "periodic"
)

// Event is the per-generation record written to the event log. It holds
// statistics only, never the grid itself.
type Event struct {
	RequestID        string `json:"request_id"`
	CreatedUnixNanos int64  `json:"created_unix_nanos"`
	Source           string `json:"source"`
	ScanSamples      int    `json:"scan_samples"`
	ValidSamples     int    `json:"valid_samples"`
	Waypoints        int    `json:"waypoints"`
	OccupiedCells    int    `json:"occupied_cells"`
	FreeCells        int    `json:"free_cells"`
	PathCells        int    `json:"path_cells"`
	GoalCells        int    `json:"goal_cells"`
	DurationMicros   int64  `json:"duration_us"`
	Error            string `json:"error,omitempty"`
}

// EventRecorder persists generation events.
type EventRecorder interface {
	RecordGeneration(ctx context.Context, ev Event) error
}

// EventRecorderFunc adapts a function to EventRecorder.
type EventRecorderFunc func(ctx context.Context, ev Event) error

// RecordGeneration calls f(ctx, ev).
func (f EventRecorderFunc) RecordGeneration(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
