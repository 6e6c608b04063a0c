// Package sqlite persists generation events in a SQLite database and
// exposes it on the tsweb debug page through tailsql.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/rlplanner/internal/httputil"
	"github.com/banshee-data/rlplanner/internal/imagegen/service"
)

// MaxRecentEvents caps RecentEvents.
const MaxRecentEvents = 1000

// EventStore is the generation event log.
type EventStore struct {
	db   *sql.DB
	path string
}

// Ensure EventStore can be attached to a Generator.
var _ service.EventRecorder = (*EventStore)(nil)

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema. Use ":memory:" only with a single connection.
func Open(path string) (*EventStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &EventStore{db: db, path: path}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *EventStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for admin tooling.
func (s *EventStore) DB() *sql.DB {
	return s.db
}

// RecordGeneration inserts one event.
func (s *EventStore) RecordGeneration(ctx context.Context, ev service.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO imagegen_events (
			request_id, created_unix_nanos, source, scan_samples, valid_samples,
			waypoints, occupied_cells, free_cells, path_cells, goal_cells,
			duration_us, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RequestID, ev.CreatedUnixNanos, ev.Source, ev.ScanSamples, ev.ValidSamples,
		ev.Waypoints, ev.OccupiedCells, ev.FreeCells, ev.PathCells, ev.GoalCells,
		ev.DurationMicros, ev.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", ev.RequestID, err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first. limit is clamped
// to [1, MaxRecentEvents].
func (s *EventStore) RecentEvents(ctx context.Context, limit int) ([]service.Event, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxRecentEvents {
		limit = MaxRecentEvents
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, created_unix_nanos, source, scan_samples, valid_samples,
			waypoints, occupied_cells, free_cells, path_cells, goal_cells,
			duration_us, error
		FROM imagegen_events
		ORDER BY created_unix_nanos DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []service.Event{}
	for rows.Next() {
		var ev service.Event
		if err := rows.Scan(
			&ev.RequestID, &ev.CreatedUnixNanos, &ev.Source, &ev.ScanSamples, &ev.ValidSamples,
			&ev.Waypoints, &ev.OccupiedCells, &ev.FreeCells, &ev.PathCells, &ev.GoalCells,
			&ev.DurationMicros, &ev.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// EventSummary aggregates the whole event log.
type EventSummary struct {
	Total             int64   `json:"total"`
	Failed            int64   `json:"failed"`
	MeanDurationMicro float64 `json:"mean_duration_us"`
	MaxDurationMicro  int64   `json:"max_duration_us"`
}

// Summary aggregates all stored events.
func (s *EventStore) Summary(ctx context.Context) (EventSummary, error) {
	var sum EventSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_us), 0),
			COALESCE(MAX(duration_us), 0)
		FROM imagegen_events`).Scan(&sum.Total, &sum.Failed, &sum.MeanDurationMicro, &sum.MaxDurationMicro)
	if err != nil {
		return sum, fmt.Errorf("failed to summarise events: %w", err)
	}
	return sum, nil
}

// DeleteBefore removes events created before cutoffUnixNanos and returns
// how many were deleted.
func (s *EventStore) DeleteBefore(ctx context.Context, cutoffUnixNanos int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM imagegen_events WHERE created_unix_nanos < ?`, cutoffUnixNanos)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}

// AttachAdminRoutes mounts the tsweb debugger on mux with a tailsql live
// SQL console over the event log and a JSON summary page.
func (s *EventStore) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+s.path, s.db, &tailsql.DBOptions{
		Label: "Image generation events",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("imagegen-events", "Generation event summary", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sum, err := s.Summary(r.Context())
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, sum)
	}))
	return nil
}
