package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/visiona/tlplay/internal/compositor"
	"github.com/visiona/tlplay/internal/editmodel"
	"github.com/visiona/tlplay/internal/framecache"
	"github.com/visiona/tlplay/internal/playback"
	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/reader"
	"github.com/visiona/tlplay/internal/reader/sequence"
	"github.com/visiona/tlplay/internal/tlconfig"
	"github.com/visiona/tlplay/internal/tllog"
)

const version = "v0.1.0"

// Config is this demo binary's own flag surface, separate from
// tlconfig.Config: these flags pick which edit list to play and how
// loud to log, tlconfig governs the engine's own tuning knobs.
type Config struct {
	EditListPath string
	ConfigPath   string
	Loop         string
	DurationSec  int
	Debug        bool
}

func main() {
	cfg := parseFlags()

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	printBanner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, stopping gracefully...")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil && err != context.Canceled {
		logger.Error("playback session failed", "error", err)
		os.Exit(1)
	}

	logger.Info("tlplay stopped gracefully")
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.EditListPath, "edit-list", "", "path to a JSON edit list (required)")
	flag.StringVar(&cfg.ConfigPath, "config", "", "path to a YAML engine config (optional)")
	flag.StringVar(&cfg.Loop, "loop", "loop", "loop policy: loop, once, pingpong")
	flag.IntVar(&cfg.DurationSec, "duration", 10, "seconds to run the session before exiting")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	flag.Parse()

	if cfg.EditListPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --edit-list is required")
		flag.Usage()
		os.Exit(1)
	}
	return cfg
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	engineCfg := tlconfig.Default()
	if cfg.ConfigPath != "" {
		loaded, err := tlconfig.Load(cfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load engine config: %w", err)
		}
		engineCfg = loaded
	}

	hub := tllog.NewHub(logger)

	sessionID := uuid.NewString()
	logger.Info("starting playback session", "session_id", sessionID, "edit_list", cfg.EditListPath)

	timeline, err := editmodel.Load(cfg.EditListPath)
	if err != nil {
		return fmt.Errorf("failed to load edit list: %w", err)
	}

	registry := reader.NewRegistry()
	registry.Register(sequence.New())

	opts := reader.Options{
		reader.OptThreadCount:   fmt.Sprintf("%d", engineCfg.Reader.ThreadCount),
		reader.OptDefaultSpeed:  fmt.Sprintf("%.3f", engineCfg.Reader.DefaultSpeedFallback),
	}

	comp := compositor.New(timeline, registry, sequence.NewGenerator(), opts, hub)

	readAhead := int64(engineCfg.Cache.ReadAheadSeconds * float64(timeline.GlobalRate))
	readBehind := int64(engineCfg.Cache.ReadBehindSeconds * float64(timeline.GlobalRate))
	cache := framecache.New(comp, readAhead, readBehind)

	ctrl := playback.New(comp, cache, timeline.GlobalRange, timeline.GlobalRate)
	ctrl.SetLoop(loopFromFlag(cfg.Loop))

	obs := ctrl.Observables()
	obs.Playback.Subscribe(func(pb playback.Playback) {
		logger.Debug("playback state changed", "state", pb.String())
	})
	obs.CurrentTime.Subscribe(func(t rational.Time) {
		logger.Debug("current time", "seconds", t.Seconds())
	})

	ctrl.Start(ctx)
	ctrl.SetPlayback(playback.Forward)

	reportTicker := time.NewTicker(time.Second)
	defer reportTicker.Stop()
	deadline := time.After(time.Duration(cfg.DurationSec) * time.Second)

	for {
		select {
		case <-ctx.Done():
			ctrl.Close()
			return ctx.Err()
		case <-deadline:
			ctrl.Close()
			return nil
		case <-reportTicker.C:
			logger.Info("status",
				"current_time", ctrl.CurrentTime().Seconds(),
				"cached_ranges", len(cache.CachedRanges()),
				"open_readers", comp.OpenReaderCount(),
			)
		}
	}
}

func loopFromFlag(s string) playback.Loop {
	switch s {
	case "once":
		return playback.Once
	case "pingpong":
		return playback.PingPong
	default:
		return playback.LoopMode
	}
}

func printBanner(cfg Config) {
	fmt.Println("===================================================================")
	fmt.Println("  tlplay - Timeline Playback Engine")
	fmt.Printf("  Version %s\n", version)
	fmt.Println("===================================================================")
	fmt.Printf("  Edit list:  %s\n", cfg.EditListPath)
	fmt.Printf("  Loop:       %s\n", cfg.Loop)
	fmt.Printf("  Duration:   %ds\n", cfg.DurationSec)
	fmt.Println("===================================================================")
	fmt.Println()
}
