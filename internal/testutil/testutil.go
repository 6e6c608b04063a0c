// Package testutil provides shared test helpers.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/banshee-data/rlplanner/internal/monitoring"
)

// MuteLogs silences monitoring.Logf for the duration of the test.
func MuteLogs(t testing.TB) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// LogBuffer collects log lines. It is safe for concurrent use.
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
}

// Lines returns a copy of the captured lines.
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

// String joins the captured lines with newlines.
func (b *LogBuffer) String() string {
	return strings.Join(b.Lines(), "\n")
}

// CaptureLogs routes monitoring.Logf into a LogBuffer for the duration of
// the test.
func CaptureLogs(t testing.TB) *LogBuffer {
	t.Helper()
	original := monitoring.Logf
	b := &LogBuffer{}
	monitoring.SetLogger(func(format string, args ...interface{}) {
		line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
		b.mu.Lock()
		b.lines = append(b.lines, line)
		b.mu.Unlock()
	})
	t.Cleanup(func() { monitoring.Logf = original })
	return b
}

// Serve sends one request to h. An empty body sends none.
func Serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, r))
	return w
}
