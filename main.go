// Command sentry monitors a live video stream for threats entering the
// danger zone and raises debounced alerts with evidence frames and an
// audible alarm.
package main

import (
	"fmt"
	"image"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sentry-ai/go-sentry/alert"
	"github.com/sentry-ai/go-sentry/audio"
	"github.com/sentry-ai/go-sentry/config"
	"github.com/sentry-ai/go-sentry/detect"
	"github.com/sentry-ai/go-sentry/evidence"
	"github.com/sentry-ai/go-sentry/metrics"
	"github.com/sentry-ai/go-sentry/sentry"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentry: %v\n", err)
		return 2
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentry: %v\n", err)
		return 2
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(level)

	log.Info().Str("version", version).Msg("sentry starting")

	detector, err := buildDetector(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("detector initialization failed")
		return 1
	}
	defer detector.Close()

	store, err := evidence.NewStore(cfg.OutputDir)
	if err != nil {
		log.Error().Err(err).Msg("evidence store initialization failed")
		return 1
	}

	player := audio.NewPlayer(cfg.SoundFile, log)
	debouncer := alert.NewDebouncer(store, player, log,
		alert.WithCooldown(cfg.Cooldown))

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(cfg.MetricsAddr); err != nil {
				log.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics exposed")
	}

	var capture sentry.Capture
	if cfg.VideoPath != "" {
		capture = sentry.NewFileSource(cfg.VideoPath)
	} else {
		capture = sentry.NewDeviceSource(cfg.DeviceID)
	}

	opts := []sentry.Option{
		sentry.WithStride(cfg.Stride),
		sentry.WithMetrics(m),
	}
	if cfg.ShowWindow {
		opts = append(opts, sentry.WithDisplay(sentry.NewWindow("Sentry-AI Dashboard")))
	}

	system := sentry.New(capture, detector, debouncer, log, opts...)
	if err := system.Run(); err != nil {
		if errors.Is(err, sentry.ErrCaptureUnavailable) {
			log.Error().Err(err).Msg("could not open video source")
		} else {
			log.Error().Err(err).Msg("monitoring loop failed")
		}
		return 1
	}

	log.Info().Msg("sentry stopped")
	return 0
}

func buildDetector(cfg *config.Config, log zerolog.Logger) (detect.Detector, error) {
	dcfg := detect.Config{
		ModelPath:           cfg.ModelPath,
		InputShape:          image.Pt(640, 640),
		ConfidenceThreshold: float32(cfg.Confidence),
		NMSThreshold:        float32(cfg.NMSThreshold),
		AllowedClasses:      detect.DefaultAllowedClasses(),
	}
	switch cfg.Backend {
	case "ort":
		return detect.NewORTDetector(dcfg, log)
	default:
		return detect.NewDNNDetector(dcfg, log)
	}
}
