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

	"github.com/mnazzaro/voice-client/internal/capture"
	"github.com/mnazzaro/voice-client/internal/config"
	"github.com/mnazzaro/voice-client/internal/denoise"
	"github.com/mnazzaro/voice-client/internal/metrics"
	"github.com/mnazzaro/voice-client/internal/pipeline"
	"github.com/mnazzaro/voice-client/internal/segment"
	"github.com/mnazzaro/voice-client/internal/server"
	"github.com/mnazzaro/voice-client/internal/storage"
	"github.com/mnazzaro/voice-client/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "voice-client"
	serviceVersion    = "1.0.0"
)

// consumer is either the speech segmenter or the duration splitter; exactly
// one runs at a time.
type consumer interface {
	Start() error
	Stop()
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("mode", cfg.Mode),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("frame_duration_ms", cfg.Audio.FrameDurationMS),
		slog.Int("vad_aggressiveness", cfg.VAD.Aggressiveness),
		slog.Int("silence_threshold_ms", cfg.VAD.SilenceThresholdMS),
		slog.Int("pre_roll_ms", cfg.VAD.PreRollMS),
		slog.Bool("denoise", cfg.Denoise.Enabled),
		slog.String("output_dir", cfg.Storage.OutputDir),
		slog.String("capture_source", cfg.Capture.Source),
	)

	// The classifier contract only covers certain frame/rate combinations;
	// anything else is fatal at startup, never at runtime.
	if err := vad.ValidFrame(cfg.Audio.FrameDurationMS, cfg.Audio.SampleRate); err != nil {
		logger.Error("Unsupported audio format", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appMetrics := metrics.NewMetrics()

	queue := pipeline.NewFrameQueue()

	sink, err := storage.NewFileSink(cfg.Storage.OutputDir, cfg.Audio.SampleRate, cfg.Storage.Gzip, logger)
	if err != nil {
		logger.Error("Failed to create storage sink", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var source capture.Source
	switch cfg.Capture.Source {
	case config.SourceUDP:
		source = capture.NewUDPSource(cfg.Capture.BindAddress, cfg.Capture.UDPPort,
			cfg.Capture.BufferSize, cfg.Audio.FrameBytes(), queue, logger, appMetrics)
	case config.SourceFile:
		source = capture.NewFileSource(cfg.Capture.FilePath, cfg.Audio.FrameBytes(),
			cfg.Audio.FrameDuration(), queue, logger, appMetrics)
	}

	if err := source.Start(); err != nil {
		logger.Error("Failed to start capture source", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The noise profile is captured once from the leading silence, before
	// the steady-state consumer starts.
	var suppressor *denoise.Suppressor
	if cfg.Denoise.Enabled {
		suppressor = denoise.NewSuppressor(denoise.NewSpectralGate(), cfg.Audio.SampleRate, logger)
		learnNoiseProfile(queue, suppressor, cfg, logger)
	}

	var active consumer
	var consumerStats func() any

	switch cfg.Mode {
	case config.ModeVAD:
		classifier, err := vad.NewEnergyClassifier(cfg.VAD.Aggressiveness)
		if err != nil {
			logger.Error("Failed to create classifier", slog.String("error", err.Error()))
			os.Exit(1)
		}

		seg := segment.NewSegmenter(segment.SegmenterConfig{
			SampleRate:      cfg.Audio.SampleRate,
			FrameDuration:   cfg.Audio.FrameDuration(),
			PreRollFrames:   cfg.PreRollFrames(),
			MaxSilentChunks: cfg.MaxSilentChunks(),
		}, queue, classifier, suppressorOrNil(suppressor), sink, logger, appMetrics)

		active = seg
		consumerStats = func() any { return seg.Stats() }

	case config.ModeDuration:
		sp := segment.NewSplitter(segment.SplitterConfig{
			FrameDuration: cfg.Audio.FrameDuration(),
			TargetFrames:  cfg.TargetFramesPerFile(),
		}, queue, suppressorOrNil(suppressor), sink, logger, appMetrics)

		active = sp
		consumerStats = func() any { return sp.Stats() }
	}

	if err := active.Start(); err != nil {
		logger.Error("Failed to start consumer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, cfg.Mode, logger, queue, sink, consumerStats)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
		shutdownCancel()
	}

	// Stop the producer first so the consumer can flush what is queued.
	if err := source.Stop(); err != nil {
		logger.Error("Error stopping capture source", slog.String("error", err.Error()))
	}

	active.Stop()

	logger.Info("Service stopped")
}

// learnNoiseProfile drains the leading silence from the queue and hands it
// to the suppressor. Failure to collect enough audio degrades suppression to
// pass-through rather than blocking startup.
func learnNoiseProfile(queue *pipeline.FrameQueue, suppressor *denoise.Suppressor,
	cfg *config.Config, logger *slog.Logger) {

	want := cfg.LearnFrames()
	learnDuration := time.Duration(cfg.Denoise.LearnDurationMS) * time.Millisecond
	deadline := time.Now().Add(2*learnDuration + 2*time.Second)

	logger.Info("Capturing noise profile, keep silent...",
		slog.Duration("duration", learnDuration),
	)

	frames := make([][]byte, 0, want)
	for len(frames) < want && time.Now().Before(deadline) {
		frame, ok := queue.Dequeue(200 * time.Millisecond)
		if !ok {
			continue
		}
		frames = append(frames, frame)
	}

	if len(frames) < want {
		logger.Warn("Noise profile capture incomplete",
			slog.Int("wanted_frames", want),
			slog.Int("got_frames", len(frames)),
		)
	}

	suppressor.LearnProfile(frames)
}

// suppressorOrNil avoids handing the consumers a typed-nil interface.
func suppressorOrNil(s *denoise.Suppressor) segment.Suppressor {
	if s == nil {
		return nil
	}
	return s
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
