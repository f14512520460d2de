package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayusman/falldetect/internal/app"
	"github.com/ayusman/falldetect/internal/capture"
	"github.com/ayusman/falldetect/internal/config"
	"github.com/ayusman/falldetect/internal/objects"
	"github.com/ayusman/falldetect/internal/overlay"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a JSON config file")
		model      = flag.String("model", "", "YOLOv8 ONNX model path")
		device     = flag.Int("camera", 0, "camera device index")
		video      = flag.String("video", "", "analyze a video file instead of the camera")
	)
	flag.Parse()

	fmt.Println("Object Detect - Bounding box detection")

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
		case "model":
			cfg.Objects.Model = *model
		case "camera":
			cfg.Camera.Device = *device
		case "video":
			cfg.Camera.Video = *video
		}
	})

	detCfg := objects.DefaultConfig()
	if cfg.Objects.Model != "" {
		detCfg.ModelPath = cfg.Objects.Model
	}
	detCfg.ScoreThreshold = float32(cfg.Objects.ScoreThreshold)
	detCfg.MaxResults = cfg.Objects.MaxResults

	det, err := objects.New(detCfg)
	if err != nil {
		log.Fatalf("Failed to load object detector: %v", err)
	}
	defer det.Close()

	cam := capture.New(capture.Config{
		Device: cfg.Camera.Device,
		Video:  cfg.Camera.Video,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	})
	if err := cam.Open(); err != nil {
		log.Fatalf("Failed to open camera: %v", err)
	}
	defer cam.Close()

	win := overlay.NewWindow(objects.WindowTitle)
	defer win.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := app.NewObjectHandler(det, nil)
	loop := &app.Loop{
		Camera:  cam,
		Handler: handler,
		Display: win,
		Mirror:  cfg.Camera.Mirror && !cam.IsFile(),
	}

	fmt.Println("Press 'q' to quit")
	if err := loop.Run(ctx); err != nil {
		log.Fatalf("Object detection failed: %v", err)
	}
	log.Printf("Processed %d frames", handler.Frames())
}
