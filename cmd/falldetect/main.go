package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ayusman/falldetect/internal/app"
	"github.com/ayusman/falldetect/internal/capture"
	"github.com/ayusman/falldetect/internal/config"
	"github.com/ayusman/falldetect/internal/detector"
	"github.com/ayusman/falldetect/internal/fall"
	"github.com/ayusman/falldetect/internal/overlay"
	"github.com/ayusman/falldetect/internal/plugin"
	"github.com/ayusman/falldetect/internal/server"
	"github.com/ayusman/falldetect/internal/server/api"
	"github.com/ayusman/falldetect/internal/store"
	"github.com/ayusman/falldetect/internal/trace"
	"github.com/ayusman/falldetect/internal/tray"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a JSON config file")
		device     = flag.Int("camera", 0, "camera device index")
		video      = flag.String("video", "", "analyze a video file instead of the camera")
		headless   = flag.Bool("headless", false, "run without the preview window")
		useTray    = flag.Bool("tray", false, "show the system tray menu (headless only)")
		addr       = flag.String("addr", "", "HTTP listen address (may be empty when headless)")
		tracePath  = flag.String("trace", "", "append per-frame indicators to this JSONL file")
		dataDir    = flag.String("data", "", "data directory (default ~/.falldetect)")
		noMirror   = flag.Bool("no-mirror", false, "do not mirror webcam frames")
	)
	flag.Parse()

	fmt.Println("Fall Detect - Pose-based fall detection")

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "camera":
			cfg.Camera.Device = *device
		case "video":
			cfg.Camera.Video = *video
		case "headless":
			cfg.Headless = *headless
		case "tray":
			cfg.Tray = *useTray
		case "addr":
			cfg.ServerAddr = *addr
		case "trace":
			cfg.TracePath = *tracePath
		case "data":
			cfg.DataDir = *dataDir
		case "no-mirror":
			cfg.Camera.Mirror = !*noMirror
		}
	})
	if cfg.Tray && !cfg.Headless {
		log.Println("Tray menu needs -headless; ignoring -tray")
		cfg.Tray = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Fall detection failed: %v", err)
	}
}

func run(cfg *config.Config) error {
	dir, err := cfg.ResolveDataDir()
	if err != nil {
		return err
	}

	st, err := store.New(filepath.Join(dir, "falldetect.db"))
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	pluginDir := cfg.PluginDir
	if pluginDir == "" {
		pluginDir = filepath.Join(dir, "plugins")
	}
	plugins := plugin.NewManager(pluginDir)
	if err := plugins.Discover(); err != nil {
		return fmt.Errorf("failed to discover plugins: %w", err)
	}
	log.Printf("Loaded %d plugins from %s", len(plugins.List()), pluginDir)

	det, err := detector.NewMediaPipeDetector(cfg.DetectorConfig())
	if err != nil {
		return fmt.Errorf("pose detector unavailable: %w", err)
	}

	source := "camera:" + strconv.Itoa(cfg.Camera.Device)
	if cfg.Camera.Video != "" {
		source = cfg.Camera.Video
	}
	cam := capture.New(capture.Config{
		Device: cfg.Camera.Device,
		Video:  cfg.Camera.Video,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	})

	var rec *trace.Recorder
	if cfg.TracePath != "" {
		if rec, err = trace.Create(cfg.TracePath); err != nil {
			return err
		}
		log.Printf("Recording trace to %s", cfg.TracePath)
	}

	var menu *tray.Tray
	if cfg.Tray {
		menu = tray.New()
	}

	hub := server.NewHub()
	frames := server.NewFrameBuffer()

	a, err := app.New(app.Config{
		Camera:     cam,
		Detector:   det,
		Thresholds: cfg.FallThresholds(),
		Source:     source,
		Mirror:     cfg.Camera.Mirror,
		Store:      st,
		Plugins:    plugins,
		Executor:   plugin.NewExecutor(time.Duration(cfg.PluginTimeout)),
		Frames:     frames,
		Hub:        hub,
		Trace:      rec,
		OnTransition: func(tr fall.Transition, status api.Status) {
			if menu != nil {
				menu.SetStatus(status.Label)
			}
		},
	})
	if err != nil {
		det.Close()
		if rec != nil {
			rec.Close()
		}
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	var httpSrv *http.Server
	if cfg.ServerAddr != "" {
		webDir := cfg.StaticDir
		if webDir == "" {
			webDir = findWebDir()
		}
		if webDir != "" {
			fmt.Printf("Serving static files from: %s\n", webDir)
		}

		srv := server.New(server.Config{
			StaticDir:  webDir,
			Store:      st,
			Plugins:    plugins,
			Controller: a,
			Frames:     frames,
			Hub:        hub,
		})
		httpSrv = srv.HTTPServer(cfg.ServerAddr)
		go func() {
			fmt.Printf("Starting server on %s\n", cfg.ServerAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Server failed: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Headless {
		win := overlay.NewWindow(overlay.DefaultTitle)
		defer win.Close()
		fmt.Println("Press 'q' to quit, 'r' to reset the fall state")
		return a.Run(ctx, win)
	}

	if err := a.Start(); err != nil {
		return err
	}

	if menu != nil {
		menu.OnToggle(a.SetEnabled)
		menu.OnReset(a.Reset)
		menu.OnDashboard(func() {
			if err := openBrowser(dashboardURL(cfg.ServerAddr)); err != nil {
				log.Printf("Failed to open dashboard: %v", err)
			}
		})
		menu.OnQuit(stop)
		menu.SetStatus(a.Status().Label)

		go func() {
			select {
			case <-ctx.Done():
			case <-a.Done():
			}
			menu.Quit()
		}()
		menu.Run()
	} else {
		select {
		case <-ctx.Done():
		case <-a.Done():
		}
	}

	a.Stop()
	return a.Err()
}
