// Package config - Runtime configuration from flags with environment
// defaults.
package config

import (
	"flag"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Defaults.
const (
	DefaultModelPath = "yolov8n.onnx"
	DefaultOutputDir = "evidence"
	DefaultBackend   = "dnn"
)

// Config holds every runtime knob. Each flag falls back to a SENTRY_*
// environment variable, optionally loaded from a .env file.
type Config struct {
	DeviceID     int
	VideoPath    string
	ModelPath    string
	Backend      string // "dnn" or "ort"
	Confidence   float64
	NMSThreshold float64
	Stride       int
	Cooldown     time.Duration
	OutputDir    string
	SoundFile    string
	ShowWindow   bool
	MetricsAddr  string
	LogLevel     string
}

// Load parses args into a Config. A .env file in the working directory is
// honored when present; explicit flags win over the environment.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load() // optional; absence is fine

	cfg := &Config{}
	fs := flag.NewFlagSet("sentry", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.IntVar(&cfg.DeviceID, "device", envInt("SENTRY_DEVICE", 0),
		"Camera device ID")
	fs.StringVar(&cfg.VideoPath, "video", envStr("SENTRY_VIDEO", ""),
		"Video file to monitor instead of a camera")
	fs.StringVar(&cfg.ModelPath, "model", envStr("SENTRY_MODEL", DefaultModelPath),
		"Path to the ONNX detection model")
	fs.StringVar(&cfg.Backend, "backend", envStr("SENTRY_BACKEND", DefaultBackend),
		"Inference backend: dnn or ort")
	fs.Float64Var(&cfg.Confidence, "confidence", envFloat("SENTRY_CONFIDENCE", 0.4),
		"Confidence floor; detections must strictly exceed it")
	fs.Float64Var(&cfg.NMSThreshold, "nms", envFloat("SENTRY_NMS", 0.5),
		"Non-maximum suppression IoU threshold")
	fs.IntVar(&cfg.Stride, "stride", envInt("SENTRY_STRIDE", 3),
		"Run inference on every N-th frame")
	fs.DurationVar(&cfg.Cooldown, "cooldown", envDuration("SENTRY_COOLDOWN", 5*time.Second),
		"Minimum interval between fired alerts")
	fs.StringVar(&cfg.OutputDir, "output-dir", envStr("SENTRY_OUTPUT_DIR", DefaultOutputDir),
		"Directory for evidence frames")
	fs.StringVar(&cfg.SoundFile, "sound", envStr("SENTRY_SOUND", ""),
		"Alarm sound file (platform default when empty)")
	fs.BoolVar(&cfg.ShowWindow, "show-window", envBool("SENTRY_SHOW_WINDOW", true),
		"Show the dashboard window")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", envStr("SENTRY_METRICS_ADDR", ""),
		"Prometheus listen address (disabled when empty)")
	fs.StringVar(&cfg.LogLevel, "log-level", envStr("SENTRY_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "parse flags")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Backend != "dnn" && c.Backend != "ort" {
		return errors.Errorf("unknown backend %q (want dnn or ort)", c.Backend)
	}
	if c.Stride <= 0 {
		return errors.Errorf("stride must be positive, got %d", c.Stride)
	}
	if c.Cooldown <= 0 {
		return errors.Errorf("cooldown must be positive, got %v", c.Cooldown)
	}
	if c.Confidence < 0 || c.Confidence >= 1 {
		return errors.Errorf("confidence must be in [0,1), got %v", c.Confidence)
	}
	return nil
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
