// Package sentry - The armed monitoring loop: pulls frames, schedules
// inference on a fixed stride, evaluates zone containment, and drives the
// alert debouncer.
package sentry

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/sentry-ai/go-sentry/alert"
	"github.com/sentry-ai/go-sentry/detect"
	"github.com/sentry-ai/go-sentry/metrics"
	"github.com/sentry-ai/go-sentry/zone"
)

// ErrCaptureUnavailable means the camera or stream could not be opened.
// It is the only fatal startup error; everything else degrades.
var ErrCaptureUnavailable = errors.New("capture unavailable")

const (
	// DefaultStride runs inference on every third frame; the frames in
	// between are annotated with the cached detections. Trades detection
	// latency for throughput.
	DefaultStride = 3

	// DefaultStatus is the overlay status text while the loop runs.
	DefaultStatus = "ARMED"

	quitKey = 'q'
)

// Capture reads frames from a video source.
type Capture interface {
	Open() error
	Read(dst *gocv.Mat) bool
	Close() error
}

// Display consumes annotated frames and surfaces key presses.
type Display interface {
	Show(frame gocv.Mat)
	PollKey() int
	Close() error
}

// System owns the per-stream monitoring state: the danger zone, the frame
// counter, and the detection cache. Single-threaded; every collaborator call
// is synchronous within the tick except the debouncer's audio dispatch.
type System struct {
	capture   Capture
	detector  detect.Detector
	debouncer *alert.Debouncer
	display   Display
	metrics   *metrics.Metrics
	log       zerolog.Logger

	stride int
	status string

	zone       *zone.DangerZone
	frameCount int
	cached     []detect.Detection
	cachedAt   int
}

// Option configures a System.
type Option func(*System)

// WithDisplay attaches a display; without one the system runs headless and
// stops only at end-of-stream.
func WithDisplay(d Display) Option {
	return func(s *System) { s.display = d }
}

// WithStride overrides the inference stride.
func WithStride(n int) Option {
	return func(s *System) {
		if n > 0 {
			s.stride = n
		}
	}
}

// WithMetrics attaches pipeline instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *System) { s.metrics = m }
}

// WithZone presets the danger zone instead of sizing it from the first
// frame.
func WithZone(z *zone.DangerZone) Option {
	return func(s *System) { s.zone = z }
}

// WithStatus overrides the overlay status text.
func WithStatus(status string) Option {
	return func(s *System) { s.status = status }
}

// New assembles a monitoring system.
func New(capture Capture, detector detect.Detector, debouncer *alert.Debouncer,
	log zerolog.Logger, opts ...Option) *System {
	s := &System{
		capture:   capture,
		detector:  detector,
		debouncer: debouncer,
		log:       log.With().Str("component", "sentry").Logger(),
		stride:    DefaultStride,
		status:    DefaultStatus,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives the loop until a quit key, end-of-stream, or a fatal capture
// error. All acquired resources are released before it returns.
func (s *System) Run() error {
	if err := s.capture.Open(); err != nil {
		return errors.Wrapf(ErrCaptureUnavailable, "%v", err)
	}
	defer func() {
		if err := s.capture.Close(); err != nil {
			s.log.Warn().Err(err).Msg("capture close failed")
		}
	}()
	if s.display != nil {
		defer func() {
			if err := s.display.Close(); err != nil {
				s.log.Warn().Err(err).Msg("display close failed")
			}
		}()
	}

	frame := gocv.NewMat()
	defer frame.Close()

	// Size the danger zone from the first frame. If this read fails the
	// zone stays nil and is retried on the next successful read, rather
	// than leaving containment dark for the whole session.
	if s.zone == nil && s.capture.Read(&frame) && !frame.Empty() {
		s.initZone(frame)
	}

	s.log.Info().Str("status", s.status).Int("stride", s.stride).
		Msg("sentry armed, press 'q' to quit")

	for {
		if ok := s.capture.Read(&frame); !ok {
			s.log.Info().Int("frames", s.frameCount).Msg("stream ended")
			return nil
		}
		if frame.Empty() {
			continue
		}
		if s.tick(&frame) {
			s.log.Info().Msg("quit requested")
			return nil
		}
	}
}

// tick processes one frame and reports whether a quit was requested.
func (s *System) tick(frame *gocv.Mat) (quit bool) {
	start := time.Now()
	s.frameCount++
	if s.metrics != nil {
		s.metrics.FramesRead.Inc()
	}

	if s.zone == nil {
		s.initZone(*frame)
	}

	if s.frameCount%s.stride == 0 {
		dets, err := s.detector.Detect(*frame)
		if err != nil {
			// Soft failure: keep the cached detections and move on.
			s.log.Warn().Err(err).Int("frame", s.frameCount).
				Msg("inference failed, reusing cached detections")
			if s.metrics != nil {
				s.metrics.InferenceErrors.Inc()
			}
		} else {
			s.cached = dets
			s.cachedAt = s.frameCount
			if s.metrics != nil {
				s.metrics.Inferences.Inc()
				s.metrics.Detections.Add(float64(len(dets)))
			}
		}
	}

	overlay := NewOverlay()
	threatActive := false

	for _, det := range s.cached {
		inZone := s.zone.Contains(det.Center())
		if inZone {
			threatActive = true
			if _, fired := s.debouncer.MaybeTrigger(det, *frame); fired {
				if s.metrics != nil {
					s.metrics.AlertsFired.Inc()
				}
			} else if s.metrics != nil {
				s.metrics.AlertsSuppressed.Inc()
			}
		}
		overlay.AddDetection(det, inZone)
	}

	overlay.AddZone(s.zone, threatActive)
	overlay.AddStatus(s.status)
	overlay.Draw(frame)

	if s.metrics != nil {
		s.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}

	if s.display != nil {
		s.display.Show(*frame)
		if key := s.display.PollKey(); key == quitKey {
			return true
		}
	}
	return false
}

func (s *System) initZone(frame gocv.Mat) {
	size := frame.Size()
	z, err := zone.FromFrame(size[1], size[0])
	if err != nil {
		s.log.Warn().Err(err).Msg("danger zone initialization failed")
		return
	}
	s.zone = z
	s.log.Info().Int("width", size[1]).Int("height", size[0]).
		Msg("danger zone initialized")
}

// Zone returns the current danger zone; nil before initialization.
func (s *System) Zone() *zone.DangerZone {
	return s.zone
}

// CachedDetections returns the detection cache and the frame index it was
// computed on.
func (s *System) CachedDetections() ([]detect.Detection, int) {
	return s.cached, s.cachedAt
}
