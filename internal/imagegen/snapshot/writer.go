// Package snapshot exports generated state images as PNG files, keeping
// a bounded history plus a stable latest.png for external viewers.
package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/banshee-data/rlplanner/internal/fsutil"
	"github.com/banshee-data/rlplanner/internal/imagegen/monitor"
	"github.com/banshee-data/rlplanner/internal/imagegen/service"
	"github.com/banshee-data/rlplanner/internal/monitoring"
	"github.com/banshee-data/rlplanner/internal/security"
)

const (
	// LatestName is rewritten on every export.
	LatestName = "latest.png"

	historyPrefix = "state_"
	historySuffix = ".png"
)

var logf = monitoring.Prefixed("snapshot")

// Writer writes responses into one directory. It is not safe for
// concurrent use; RunPeriodic calls it from a single goroutine.
type Writer struct {
	fs        fsutil.FileSystem
	dir       string
	keep      int
	scale     int
	pathValue int8
}

// NewWriter creates dir if needed. keep is the number of timestamped
// history files to retain; zero writes only latest.png.
func NewWriter(fsys fsutil.FileSystem, dir string, keep, scale int, pathValue int8) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if keep < 0 {
		return nil, fmt.Errorf("snapshot keep must be non-negative, got %d", keep)
	}
	if scale < 1 || scale > monitor.MaxPNGScale {
		return nil, fmt.Errorf("snapshot scale must be in [1, %d], got %d", monitor.MaxPNGScale, scale)
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Writer{fs: fsys, dir: dir, keep: keep, scale: scale, pathValue: pathValue}, nil
}

// historyName sorts chronologically: the stamp is zero padded.
func historyName(resp *service.Response) string {
	return fmt.Sprintf("%s%019d_%s%s", historyPrefix, resp.StampNanos, resp.RequestID, historySuffix)
}

// Write exports resp and prunes old history. It returns the path of the
// history file, or of latest.png when keep is zero.
func (w *Writer) Write(resp *service.Response) (string, error) {
	if resp == nil || resp.Grid == nil {
		return "", fmt.Errorf("no grid to export")
	}
	body, err := monitor.EncodePNG(resp.Grid, w.pathValue, w.scale)
	if err != nil {
		return "", err
	}

	latest, err := security.SafeJoin(w.dir, LatestName)
	if err != nil {
		return "", err
	}
	if err := w.fs.WriteFileAtomic(latest, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", latest, err)
	}
	if w.keep == 0 {
		return latest, nil
	}

	hist, err := security.SafeJoin(w.dir, historyName(resp))
	if err != nil {
		return "", err
	}
	if err := w.fs.WriteFileAtomic(hist, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", hist, err)
	}
	if err := w.prune(); err != nil {
		logf("prune failed: %v", err)
	}
	return hist, nil
}

func (w *Writer) prune() error {
	names, err := w.fs.List(w.dir)
	if err != nil {
		return err
	}
	var history []string
	for _, n := range names {
		if strings.HasPrefix(n, historyPrefix) && strings.HasSuffix(n, historySuffix) {
			history = append(history, n)
		}
	}
	if len(history) <= w.keep {
		return nil
	}
	sort.Strings(history)
	for _, n := range history[:len(history)-w.keep] {
		p, err := security.SafeJoin(w.dir, n)
		if err != nil {
			return err
		}
		if err := w.fs.Remove(p); err != nil {
			return err
		}
	}
	return nil
}

// OnImage adapts Write to Generator.RunPeriodic, logging failures.
func (w *Writer) OnImage(resp *service.Response) {
	if _, err := w.Write(resp); err != nil {
		logf("export of %s failed: %v", resp.RequestID, err)
	}
}
