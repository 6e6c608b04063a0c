// Package monitor serves the state image generator over HTTP: JSON grids,
// PNG and chart renderings, input feeds for the frame store, config,
// version and the event log.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/rlplanner/internal/config"
	"github.com/banshee-data/rlplanner/internal/httputil"
	"github.com/banshee-data/rlplanner/internal/imagegen/l1scan"
	"github.com/banshee-data/rlplanner/internal/imagegen/l2frames"
	"github.com/banshee-data/rlplanner/internal/imagegen/service"
	"github.com/banshee-data/rlplanner/internal/monitoring"
	"github.com/banshee-data/rlplanner/internal/version"
)

// maxBodyBytes bounds JSON request bodies; a 4k-beam scan is ~100 KB.
const maxBodyBytes = 8 << 20

// defaultEventLimit is used when /api/events has no ?limit=.
const defaultEventLimit = 50

// EventLister reads back recorded generation events.
type EventLister interface {
	RecentEvents(ctx context.Context, limit int) ([]service.Event, error)
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address   string
	Generator *service.Generator
	// Store receives PUT /api/scan, /api/path and /api/pose. Optional.
	Store *l2frames.LatestStore
	// Events backs GET /api/events. Optional.
	Events EventLister
	// ImageConfig is served by GET /api/config.
	ImageConfig *config.ImageConfig
	// AttachAdmin mounts extra routes such as /debug/. Optional.
	AttachAdmin func(mux *http.ServeMux) error
}

// WebServer is the HTTP front end of the generator.
type WebServer struct {
	address     string
	gen         *service.Generator
	store       *l2frames.LatestStore
	events      EventLister
	imageConfig *config.ImageConfig
	server      *http.Server
}

// NewWebServer builds the server and its routes.
func NewWebServer(cfg WebServerConfig) (*WebServer, error) {
	if cfg.Generator == nil {
		return nil, errors.New("web server needs a generator")
	}
	ic := cfg.ImageConfig
	if ic == nil {
		ic = config.EmptyImageConfig()
	}
	ws := &WebServer{
		address:     cfg.Address,
		gen:         cfg.Generator,
		store:       cfg.Store,
		events:      cfg.Events,
		imageConfig: ic,
	}

	mux := ws.setupRoutes()
	if cfg.AttachAdmin != nil {
		if err := cfg.AttachAdmin(mux); err != nil {
			return nil, fmt.Errorf("failed to attach admin routes: %w", err)
		}
	}
	ws.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           LoggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws, nil
}

// Handler returns the routed, logging handler.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/state-image", ws.handleStateImage)
	mux.HandleFunc("/api/state-image/latest", ws.handleStateImageLatest)
	mux.HandleFunc("/api/state-image.png", ws.handleStateImagePNG)
	mux.HandleFunc("/api/state-image/plot.png", ws.handleStateImagePlot)
	mux.HandleFunc("/api/state-image/chart", ws.handleStateImageChart)
	mux.HandleFunc("/api/scan", ws.handleScan)
	mux.HandleFunc("/api/path", ws.handlePath)
	mux.HandleFunc("/api/pose", ws.handlePose)
	mux.HandleFunc("/api/config", ws.handleConfig)
	mux.HandleFunc("/api/version", ws.handleVersion)
	mux.HandleFunc("/api/events", ws.handleEvents)
	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":    "ok",
		"generator": ws.gen.Stats(),
	})
}

// writeGenerateError maps generation failures onto HTTP statuses.
func writeGenerateError(w http.ResponseWriter, err error) {
	switch service.Classify(err) {
	case service.KindInvalid:
		httputil.BadRequest(w, err.Error())
	case service.KindUnavailable, service.KindCanceled:
		httputil.ServiceUnavailable(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

// handleStateImage generates one grid. The body is an optional
// {"scan": ..., "waypoints": [...]} request; without it the frame store
// supplies the inputs.
func (ws *WebServer) handleStateImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	req := &service.Request{}
	if err := httputil.DecodeJSON(r, maxBodyBytes, req); err != nil && !errors.Is(err, httputil.ErrEmptyBody) {
		httputil.BadRequest(w, err.Error())
		return
	}
	resp, err := ws.gen.Generate(r.Context(), req)
	if err != nil {
		writeGenerateError(w, err)
		return
	}
	httputil.WriteJSONOK(w, resp)
}

func (ws *WebServer) handleStateImageLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := ws.gen.Latest()
	if resp == nil {
		httputil.NotFound(w, "no state image generated yet")
		return
	}
	httputil.WriteJSONOK(w, resp)
}

// generateForView runs a provider-backed generation for the render
// endpoints, or reuses the latest image when ?latest=true.
func (ws *WebServer) generateForView(w http.ResponseWriter, r *http.Request) (*service.Response, bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return nil, false
	}
	if latest, _ := strconv.ParseBool(r.URL.Query().Get("latest")); latest {
		if resp := ws.gen.Latest(); resp != nil {
			return resp, true
		}
		httputil.NotFound(w, "no state image generated yet")
		return nil, false
	}
	resp, err := ws.gen.Generate(r.Context(), nil)
	if err != nil {
		writeGenerateError(w, err)
		return nil, false
	}
	return resp, true
}

func (ws *WebServer) handleStateImagePNG(w http.ResponseWriter, r *http.Request) {
	scale := 4
	if s := r.URL.Query().Get("scale"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > MaxPNGScale {
			httputil.BadRequest(w, fmt.Sprintf("scale must be an integer in [1, %d]", MaxPNGScale))
			return
		}
		scale = v
	}
	resp, ok := ws.generateForView(w, r)
	if !ok {
		return
	}
	body, err := EncodePNG(resp.Grid, ws.gen.Config().PathValue, scale)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteBytes(w, "image/png", body)
}

func (ws *WebServer) handleStateImagePlot(w http.ResponseWriter, r *http.Request) {
	resp, ok := ws.generateForView(w, r)
	if !ok {
		return
	}
	body, err := PlotPNG(resp.Grid, fmt.Sprintf("State image %s", resp.RequestID))
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteBytes(w, "image/png", body)
}

func (ws *WebServer) handleStateImageChart(w http.ResponseWriter, r *http.Request) {
	resp, ok := ws.generateForView(w, r)
	if !ok {
		return
	}
	subtitle := fmt.Sprintf("%dx%d @ %.3f m  occupied=%d free=%d path=%d goal=%d",
		resp.Grid.Width, resp.Grid.Height, resp.Grid.Resolution,
		resp.GridStats.Occupied, resp.GridStats.Free, resp.GridStats.Path, resp.GridStats.Goal)
	body, err := ChartHTML(resp.Grid, subtitle)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteBytes(w, "text/html; charset=utf-8", body)
}

// requireStore rejects feed requests when no frame store is configured.
func (ws *WebServer) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPut {
		httputil.MethodNotAllowed(w)
		return false
	}
	if ws.store == nil {
		httputil.NotFound(w, "no frame store configured")
		return false
	}
	return true
}

func (ws *WebServer) handleScan(w http.ResponseWriter, r *http.Request) {
	if !ws.requireStore(w, r) {
		return
	}
	var scan l1scan.LaserScan
	if err := httputil.DecodeJSON(r, maxBodyBytes, &scan); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := ws.store.UpdateScan(&scan); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"samples": len(scan.Ranges),
		"valid":   scan.CountValid(),
	})
}

func (ws *WebServer) handlePath(w http.ResponseWriter, r *http.Request) {
	if !ws.requireStore(w, r) {
		return
	}
	var path l2frames.Path
	if err := httputil.DecodeJSON(r, maxBodyBytes, &path); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ws.store.UpdatePath(path)
	httputil.WriteJSONOK(w, map[string]interface{}{
		"frame_id":  path.FrameID,
		"waypoints": len(path.Points),
	})
}

func (ws *WebServer) handlePose(w http.ResponseWriter, r *http.Request) {
	if !ws.requireStore(w, r) {
		return
	}
	var pose l2frames.StampedPose
	if err := httputil.DecodeJSON(r, maxBodyBytes, &pose); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if pose.FrameID == "" {
		httputil.BadRequest(w, "pose frame_id is required")
		return
	}
	ws.store.UpdatePose(pose)
	httputil.WriteJSONOK(w, pose)
}

func (ws *WebServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.imageConfig.Resolved())
}

func (ws *WebServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Get())
}

func (ws *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.events == nil {
		httputil.NotFound(w, "event log disabled")
		return
	}
	limit := defaultEventLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = v
	}
	events, err := ws.events.RecentEvents(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, events)
}
