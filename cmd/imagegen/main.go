package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/rlplanner/internal/config"
	"github.com/banshee-data/rlplanner/internal/fsutil"
	"github.com/banshee-data/rlplanner/internal/imagegen/l2frames"
	"github.com/banshee-data/rlplanner/internal/imagegen/l3grid"
	"github.com/banshee-data/rlplanner/internal/imagegen/monitor"
	"github.com/banshee-data/rlplanner/internal/imagegen/service"
	"github.com/banshee-data/rlplanner/internal/imagegen/snapshot"
	"github.com/banshee-data/rlplanner/internal/imagegen/storage/sqlite"
	"github.com/banshee-data/rlplanner/internal/version"
)

var (
	listen         = flag.String("listen", ":8082", "HTTP listen address")
	grpcListen     = flag.String("grpc-listen", ":50061", "gRPC listen address (empty disables gRPC)")
	configFile     = flag.String("config", "", "Path to an image config (.json, .yaml or .yml); defaults apply when empty")
	dbFile         = flag.String("db", "imagegen_events.db", "Path to the SQLite event log (empty disables it)")
	interval       = flag.Duration("interval", 0, "Generate from the latest inputs on this interval (0 disables)")
	robotFrame     = flag.String("robot-frame", "", "Override the robot frame waypoints are resolved into")
	eventRetention = flag.Duration("event-retention", 7*24*time.Hour, "Prune logged events older than this at startup (0 keeps all)")
	snapshotDir    = flag.String("snapshot-dir", "", "Write periodic images as PNG into this directory (requires -interval)")
	snapshotKeep   = flag.Int("snapshot-keep", 20, "Timestamped PNGs to retain in -snapshot-dir besides latest.png")
	snapshotScale  = flag.Int("snapshot-scale", 4, "Pixels per cell for exported PNGs")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

// loadImageConfig reads path, or returns defaults when path is empty, and
// applies the -robot-frame override.
func loadImageConfig(path, frame string) (*config.ImageConfig, error) {
	ic := config.EmptyImageConfig()
	if path != "" {
		loaded, err := config.LoadImageConfig(path)
		if err != nil {
			return nil, err
		}
		ic = loaded
	}
	if frame != "" {
		ic.RobotFrame = &frame
	}
	return ic, nil
}

// buildGenerator wires the rasterizer and the latest-input store for ic.
func buildGenerator(ic *config.ImageConfig) (*service.Generator, *l2frames.LatestStore, error) {
	r, err := l3grid.NewRasterizer(l3grid.ConfigFromImageConfig(ic))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid grid config: %w", err)
	}
	store := l2frames.NewLatestStore(l2frames.FrameID(ic.GetRobotFrame()), ic.GetMaxPoseSkew())
	return service.NewGenerator(r, store), store, nil
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.Get().String())
		return
	}
	log.Printf("%s starting", version.Get().String())

	ic, err := loadImageConfig(*configFile, *robotFrame)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	gen, store, err := buildGenerator(ic)
	if err != nil {
		log.Fatal(err)
	}
	cfg := gen.Config()
	log.Printf("grid %dx%d at %.3f m/cell, robot frame %s", cfg.Width(), cfg.Height, cfg.Resolution, store.RobotFrame())

	webCfg := monitor.WebServerConfig{
		Address:     *listen,
		Generator:   gen,
		Store:       store,
		ImageConfig: ic,
	}

	if *dbFile != "" {
		events, err := sqlite.Open(*dbFile)
		if err != nil {
			log.Fatalf("failed to open event log: %v", err)
		}
		defer events.Close()
		if *eventRetention > 0 {
			cutoff := time.Now().Add(-*eventRetention).UnixNano()
			n, err := events.DeleteBefore(context.Background(), cutoff)
			if err != nil {
				log.Printf("failed to prune event log: %v", err)
			} else if n > 0 {
				log.Printf("pruned %d events older than %v", n, *eventRetention)
			}
		}
		gen.SetRecorder(events)
		webCfg.Events = events
		webCfg.AttachAdmin = events.AttachAdminRoutes
	}

	var onImage func(*service.Response)
	if *snapshotDir != "" {
		if *interval <= 0 {
			log.Fatal("-snapshot-dir requires -interval")
		}
		w, err := snapshot.NewWriter(fsutil.OSFileSystem{}, *snapshotDir, *snapshotKeep, *snapshotScale, cfg.PathValue)
		if err != nil {
			log.Fatalf("failed to set up snapshot export: %v", err)
		}
		onImage = w.OnImage
	}

	ws, err := monitor.NewWebServer(webCfg)
	if err != nil {
		log.Fatalf("failed to create web server: %v", err)
	}

	var grpcServer *service.GRPCServer
	if *grpcListen != "" {
		grpcServer = service.NewGRPCServer(*grpcListen, gen)
		if err := grpcServer.Start(); err != nil {
			log.Fatalf("failed to start gRPC server: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if *interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gen.RunPeriodic(ctx, *interval, onImage); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("periodic generation stopped: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil {
			log.Printf("web server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	if grpcServer != nil {
		grpcServer.Stop()
	}
	wg.Wait()
	log.Printf("imagegen stopped")
}
