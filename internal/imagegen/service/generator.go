package service

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/rlplanner/internal/imagegen/l1scan"
	"github.com/banshee-data/rlplanner/internal/imagegen/l2frames"
	"github.com/banshee-data/rlplanner/internal/imagegen/l3grid"
	"github.com/banshee-data/rlplanner/internal/monitoring"
	"github.com/banshee-data/rlplanner/internal/timeutil"
)

var logf = monitoring.Prefixed("imagegen")

// Request asks for one state image. A nil Scan means "use the provider's
// latest snapshot". Waypoints, when non-nil, replace the provider's path;
// they are robot-frame meters.
type Request struct {
	Scan      *l1scan.LaserScan `json:"scan,omitempty"`
	Waypoints []r2.Vec          `json:"waypoints,omitempty"`
}

// Response is one generated state image.
type Response struct {
	RequestID      string           `json:"request_id"`
	StampNanos     int64            `json:"stamp_nanos"`
	Source         string           `json:"source"`
	Grid           *l3grid.Grid     `json:"grid"`
	ScanStats      l3grid.ScanStats `json:"scan_stats"`
	GridStats      l3grid.GridStats `json:"grid_stats"`
	DurationMicros int64            `json:"duration_us"`
}

// GeneratorStats are lifetime counters for a Generator.
type GeneratorStats struct {
	Generated uint64 `json:"generated"`
	Failed    uint64 `json:"failed"`
}

// Generator runs the rasterizer against request or provider inputs. It is
// safe for concurrent use; each call owns its grid.
type Generator struct {
	rasterizer *l3grid.Rasterizer
	provider   l2frames.SensorFrameProvider
	recorder   EventRecorder
	clock      timeutil.Clock

	latest    atomic.Pointer[Response]
	generated atomic.Uint64
	failed    atomic.Uint64
}

// NewGenerator creates a Generator. provider may be nil, in which case
// every request must carry its own scan.
func NewGenerator(r *l3grid.Rasterizer, provider l2frames.SensorFrameProvider) *Generator {
	return &Generator{
		rasterizer: r,
		provider:   provider,
		clock:      timeutil.RealClock{},
	}
}

// SetRecorder attaches an event recorder. Recording failures are logged
// and never fail a generation.
func (g *Generator) SetRecorder(rec EventRecorder) {
	g.recorder = rec
}

// SetClock replaces the clock used for stamps and durations.
func (g *Generator) SetClock(c timeutil.Clock) {
	g.clock = c
}

// Config returns the grid configuration in use.
func (g *Generator) Config() l3grid.Config {
	return g.rasterizer.Config()
}

// Latest returns the most recent successful response, or nil.
func (g *Generator) Latest() *Response {
	return g.latest.Load()
}

// Stats returns the lifetime counters.
func (g *Generator) Stats() GeneratorStats {
	return GeneratorStats{Generated: g.generated.Load(), Failed: g.failed.Load()}
}

// Generate produces one state image. On error no grid is returned.
func (g *Generator) Generate(ctx context.Context, req *Request) (*Response, error) {
	return g.generate(ctx, req, "")
}

func (g *Generator) generate(ctx context.Context, req *Request, source string) (*Response, error) {
	start := g.clock.Now()
	ev := Event{
		RequestID:        uuid.NewString(),
		CreatedUnixNanos: start.UnixNano(),
	}

	resp, err := g.run(ctx, req, source, &ev)
	ev.DurationMicros = g.clock.Since(start).Microseconds()
	if err != nil {
		g.failed.Add(1)
		ev.Error = err.Error()
		logf("request %s (%s) failed: %v", ev.RequestID, ev.Source, err)
	} else {
		g.generated.Add(1)
		resp.DurationMicros = ev.DurationMicros
		g.latest.Store(resp)
		logf("request %s (%s): %d/%d valid samples, %d waypoints, %d occupied, %d free in %dus",
			ev.RequestID, ev.Source, ev.ValidSamples, ev.ScanSamples, ev.Waypoints,
			ev.OccupiedCells, ev.FreeCells, ev.DurationMicros)
	}
	g.record(ctx, ev)
	return resp, err
}

func (g *Generator) run(ctx context.Context, req *Request, source string, ev *Event) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil {
		req = &Request{}
	}

	scan, waypoints := req.Scan, req.Waypoints
	switch {
	case scan != nil:
		ev.Source = SourceInline
		if err := scan.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	case g.provider == nil:
		ev.Source = SourceProvider
		return nil, l2frames.ErrNoScan
	default:
		ev.Source = SourceProvider
		snap, err := g.provider.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if snap == nil || snap.Scan == nil {
			return nil, l2frames.ErrNoScan
		}
		scan = snap.Scan
		if waypoints == nil {
			waypoints = snap.Waypoints
		}
	}
	if source != "" {
		ev.Source = source
	}
	for i, wp := range waypoints {
		if math.IsNaN(wp.X) || math.IsNaN(wp.Y) || math.IsInf(wp.X, 0) || math.IsInf(wp.Y, 0) {
			return nil, fmt.Errorf("%w: waypoint %d is not finite", ErrInvalidRequest, i)
		}
	}

	res, err := g.rasterizer.Generate(scan, waypoints)
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	if n := res.ScanStats.OutOfSweep; n > 0 {
		logf("request %s: dropped %d of %d readings outside the advertised sweep [%.4f, %.4f]",
			ev.RequestID, n, len(scan.Ranges), scan.AngleMin, scan.AngleMax)
	}

	ev.ScanSamples = res.ScanStats.Samples
	ev.ValidSamples = res.ScanStats.Valid
	ev.Waypoints = len(waypoints)
	ev.OccupiedCells = res.GridStats.Occupied
	ev.FreeCells = res.GridStats.Free
	ev.PathCells = res.GridStats.Path
	ev.GoalCells = res.GridStats.Goal

	return &Response{
		RequestID:  ev.RequestID,
		StampNanos: ev.CreatedUnixNanos,
		Source:     ev.Source,
		Grid:       res.Grid,
		ScanStats:  res.ScanStats,
		GridStats:  res.GridStats,
	}, nil
}

func (g *Generator) record(ctx context.Context, ev Event) {
	if g.recorder == nil {
		return
	}
	// The caller's context may already be cancelled; the event is still
	// worth keeping.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := g.recorder.RecordGeneration(rctx, ev); err != nil {
		logf("failed to record event %s: %v", ev.RequestID, err)
	}
}

// RunPeriodic generates from the provider every interval until ctx is
// done, passing each successful response to onImage (which may be nil).
// Missing inputs are logged once per outage rather than on every tick.
func (g *Generator) RunPeriodic(ctx context.Context, interval time.Duration, onImage func(*Response)) error {
	if interval <= 0 {
		return fmt.Errorf("periodic interval must be positive, got %v", interval)
	}
	if g.provider == nil {
		return l2frames.ErrNoScan
	}
	ticker := g.clock.NewTicker(interval)
	defer ticker.Stop()

	logf("periodic generation every %v", interval)
	waiting := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}

		snap, err := g.provider.Snapshot(ctx)
		if err == nil && (snap == nil || snap.Scan == nil) {
			err = l2frames.ErrNoScan
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !waiting {
				logf("periodic generation waiting for inputs: %v", err)
				waiting = true
			}
			continue
		}
		waiting = false

		resp, err := g.generate(ctx, &Request{Scan: snap.Scan, Waypoints: snap.Waypoints}, SourcePeriodic)
		if err == nil && onImage != nil {
			onImage(resp)
		}
	}
}
