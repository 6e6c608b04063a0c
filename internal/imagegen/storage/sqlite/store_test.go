package sqlite

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rlplanner/internal/imagegen/service"
	"github.com/banshee-data/rlplanner/internal/testutil"
)

func openTestStore(t *testing.T) *EventStore {
	t.Helper()
	testutil.MuteLogs(t)

	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(i int) service.Event {
	return service.Event{
		RequestID:        fmt.Sprintf("req-%d", i),
		CreatedUnixNanos: int64(1_000 + i),
		Source:           service.SourceInline,
		ScanSamples:      360,
		ValidSamples:     300 + i,
		Waypoints:        4,
		OccupiedCells:    120,
		FreeCells:        900,
		PathCells:        30,
		GoalCells:        9,
		DurationMicros:   int64(100 * (i + 1)),
	}
}

func TestOpen_MigratesSchema(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Running again on an up-to-date schema is a no-op.
	require.NoError(t, s.MigrateUp())
}

func TestRecordAndRecentEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordGeneration(ctx, testEvent(i)))
	}
	failed := testEvent(3)
	failed.Error = "no scan available"
	require.NoError(t, s.RecordGeneration(ctx, failed))

	got, err := s.RecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, failed, got[0])
	assert.Equal(t, testEvent(2), got[1])

	all, err := s.RecentEvents(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1, "limit is clamped to at least one")

	all, err = s.RecentEvents(ctx, MaxRecentEvents+10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRecordGeneration_DuplicateRequestID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordGeneration(ctx, testEvent(1)))
	assert.Error(t, s.RecordGeneration(ctx, testEvent(1)))
}

func TestSummaryAndDeleteBefore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventSummary{}, sum)

	for i := 0; i < 4; i++ {
		ev := testEvent(i)
		if i == 0 {
			ev.Error = "boom"
		}
		require.NoError(t, s.RecordGeneration(ctx, ev))
	}
	sum, err = s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum.Total)
	assert.Equal(t, int64(1), sum.Failed)
	assert.InDelta(t, 250.0, sum.MeanDurationMicro, 1e-9)
	assert.Equal(t, int64(400), sum.MaxDurationMicro)

	n, err := s.DeleteBefore(ctx, 1_002)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	left, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestMigrateDown(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.MigrateDown())

	version, _, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.Error(t, s.RecordGeneration(context.Background(), testEvent(1)))

	require.NoError(t, s.MigrateUp())
	assert.NoError(t, s.RecordGeneration(context.Background(), testEvent(1)))
}

func TestEventStore_AsRecorder(t *testing.T) {
	s := openTestStore(t)
	var rec service.EventRecorder = s
	require.NoError(t, rec.RecordGeneration(context.Background(), testEvent(7)))

	got, err := s.RecentEvents(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "req-7", got[0].RequestID)
}

func TestAttachAdminRoutes(t *testing.T) {
	s := openTestStore(t)
	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))

	// Debug routes may answer 403 to non-local callers but must be mounted.
	for _, endpoint := range []string{"/debug/", "/debug/tailsql/", "/debug/imagegen-events"} {
		t.Run(endpoint, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, endpoint, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			assert.NotEqual(t, http.StatusNotFound, w.Code)
		})
	}
}
