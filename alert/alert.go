// Package alert - Debounced threat alerting with evidence capture and an
// audible alarm.
package alert

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/sentry-ai/go-sentry/detect"
)

// DefaultCooldown is the minimum interval between two fired alerts.
// Prevents alarm fatigue when a threat stays in the zone.
const DefaultCooldown = 5 * time.Second

// Evidence persists the triggering frame for later review.
type Evidence interface {
	Save(frame gocv.Mat, firedAt time.Time) (string, error)
}

// Audio plays the audible alarm. Best-effort; failures are logged and
// dropped.
type Audio interface {
	Play() error
}

// Action describes one fired alert.
type Action struct {
	Label        string
	Score        float32
	FiredAt      time.Time
	EvidencePath string
}

// Debouncer gates alert side effects behind a cooldown window. Any in-zone
// detection, regardless of class, shares the single global window: many
// qualifying detections within one window produce at most one fired action.
//
// Not safe for concurrent use; the control loop is the only caller.
type Debouncer struct {
	clock    clock.Clock
	cooldown time.Duration
	evidence Evidence
	audio    Audio
	log      zerolog.Logger

	// dispatch runs the audio side effect. Defaults to a detached
	// goroutine so playback latency never stalls the video loop.
	dispatch func(func())

	last time.Time // zero means never fired
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithCooldown overrides the default 5-second cooldown.
func WithCooldown(d time.Duration) Option {
	return func(db *Debouncer) { db.cooldown = d }
}

// WithClock injects the time source, letting tests drive the cooldown
// boundary deterministically.
func WithClock(c clock.Clock) Option {
	return func(db *Debouncer) { db.clock = c }
}

// NewDebouncer creates a debouncer in the armed state: the first qualifying
// detection always fires.
func NewDebouncer(evidence Evidence, audio Audio, log zerolog.Logger, opts ...Option) *Debouncer {
	d := &Debouncer{
		clock:    clock.New(),
		cooldown: DefaultCooldown,
		evidence: evidence,
		audio:    audio,
		log:      log.With().Str("component", "alert").Logger(),
		dispatch: func(f func()) { go f() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaybeTrigger fires an alert for the detection unless the cooldown window
// is still open. The window stays closed until strictly more than the
// cooldown has elapsed since the last fired alert.
//
// On fire, the evidence write happens synchronously so it captures the
// frame's pixel state before the loop overwrites the buffer; the alarm is
// dispatched fire-and-forget. Collaborator failures are logged and never
// roll back the debouncer state.
func (d *Debouncer) MaybeTrigger(det detect.Detection, frame gocv.Mat) (*Action, bool) {
	now := d.clock.Now()
	if !d.last.IsZero() && now.Sub(d.last) <= d.cooldown {
		return nil, false
	}
	d.last = now

	d.log.Warn().
		Str("label", det.Label).
		Float32("score", det.Score).
		Msg("threat detected")

	action := &Action{
		Label:   det.Label,
		Score:   det.Score,
		FiredAt: now,
	}

	if d.evidence != nil {
		path, err := d.evidence.Save(frame, now)
		if err != nil {
			d.log.Error().Err(err).Msg("evidence write failed")
		} else {
			action.EvidencePath = path
			d.log.Info().Str("path", path).Msg("evidence saved")
		}
	}

	if d.audio != nil {
		audio := d.audio
		log := d.log
		d.dispatch(func() {
			if err := audio.Play(); err != nil {
				log.Error().Err(err).Msg("alarm playback failed")
			}
		})
	}

	return action, true
}

// LastFired returns when the debouncer last fired; zero if never.
func (d *Debouncer) LastFired() time.Time {
	return d.last
}
