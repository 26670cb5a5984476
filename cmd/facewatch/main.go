// Facewatch - live face detection with overlays, narration and a web dashboard
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-facewatch/internal/log"
	"github.com/teslashibe/go-facewatch/pkg/app"
)

func main() {
	cfg := parseFlags()

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	log.Init(level)

	logger := log.Component("main")
	logger.Info("starting facewatch",
		"source", cfg.Source,
		"detector", cfg.Detector,
		"port", cfg.Port,
		"narrate", cfg.Narrate,
	)

	a, err := app.New(cfg, app.WithLogger(log.L()))
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(2)
	}

	if err := a.Init(); err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runErr := a.Run(ctx)
	if err := a.Shutdown(); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	if runErr != nil {
		logger.Error("runtime error", "error", runErr)
		os.Exit(1)
	}
}

// parseFlags builds the configuration: defaults, then environment, then flags.
func parseFlags() app.Config {
	cfg := app.DefaultConfig()
	cfg.LoadEnvConfig()

	flag.StringVar(&cfg.Source, "source", cfg.Source, `Frame source: "camera" or a path to an image`)
	flag.IntVar(&cfg.Device, "device", cfg.Device, "Camera device index")
	flag.StringVar(&cfg.Detector, "detector", cfg.Detector, "Face detector: yunet or cascade")
	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "YuNet ONNX model path")
	flag.StringVar(&cfg.CascadePath, "cascade", cfg.CascadePath, "Haar cascade XML path")
	flag.StringVar(&cfg.Port, "port", cfg.Port, "Dashboard port (empty disables the dashboard)")
	flag.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "Save an annotated PNG of a still image into this directory")
	flag.DurationVar(&cfg.MinInterval, "interval", cfg.MinInterval, "Minimum time between detector calls")
	flag.BoolVar(&cfg.Narrate, "narrate", cfg.Narrate, "Announce face count changes aloud")
	flag.StringVar(&cfg.Voice, "voice", cfg.Voice, "TTS voice name")
	flag.Float64Var(&cfg.SpeechRate, "rate", cfg.SpeechRate, "Speaking rate multiplier")
	flag.DurationVar(&cfg.Settle, "settle", cfg.Settle, "Wait for the face count to settle before narrating (0 = immediate)")
	flag.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Synthesize speech without playing it")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")
	flag.BoolVar(&cfg.DebugFrames, "debug-frames", cfg.DebugFrames, "Log every detection cycle (very verbose)")
	flag.Parse()

	return cfg
}
