package sentry

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/sentry-ai/go-sentry/alert"
	"github.com/sentry-ai/go-sentry/detect"
	"github.com/sentry-ai/go-sentry/zone"
)

// stubCapture produces a fixed number of synthetic frames, then reports
// stream end.
type stubCapture struct {
	openErr       error
	frames        int
	width, height int
	reads         int
	closed        bool
	onRead        func(read int)
}

func (c *stubCapture) Open() error { return c.openErr }

func (c *stubCapture) Read(dst *gocv.Mat) bool {
	if c.reads >= c.frames {
		return false
	}
	c.reads++
	if c.onRead != nil {
		c.onRead(c.reads)
	}
	m := gocv.NewMatWithSize(c.height, c.width, gocv.MatTypeCV8UC3)
	defer m.Close()
	m.CopyTo(dst)
	return true
}

func (c *stubCapture) Close() error {
	c.closed = true
	return nil
}

type stubDetector struct {
	calls int
	dets  []detect.Detection
	err   error
}

func (d *stubDetector) Detect(_ gocv.Mat) ([]detect.Detection, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.dets, nil
}

func (d *stubDetector) Close() error { return nil }

type stubDisplay struct {
	shown  int
	keys   []int
	closed bool
}

func (d *stubDisplay) Show(_ gocv.Mat) { d.shown++ }

func (d *stubDisplay) PollKey() int {
	if len(d.keys) == 0 {
		return -1
	}
	k := d.keys[0]
	d.keys = d.keys[1:]
	return k
}

func (d *stubDisplay) Close() error {
	d.closed = true
	return nil
}

type countingEvidence struct {
	saves int
}

func (e *countingEvidence) Save(_ gocv.Mat, _ time.Time) (string, error) {
	e.saves++
	return "threat_0.jpg", nil
}

func inZonePerson() detect.Detection {
	return detect.Detection{
		Box:     image.Rect(40, 40, 60, 60),
		Score:   0.9,
		ClassID: detect.ClassPerson,
		Label:   "person",
	}
}

func quietDebouncer(t *testing.T) *alert.Debouncer {
	t.Helper()
	return alert.NewDebouncer(nil, nil, zerolog.Nop(), alert.WithClock(clock.NewMock()))
}

func TestRunCaptureUnavailable(t *testing.T) {
	capture := &stubCapture{openErr: errors.New("device busy")}
	detector := &stubDetector{}
	s := New(capture, detector, quietDebouncer(t), zerolog.Nop())

	err := s.Run()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCaptureUnavailable))
	assert.Zero(t, detector.calls, "no frame may be processed")
	assert.False(t, capture.closed, "capture was never opened")
}

func TestRunStopsGracefullyAtStreamEnd(t *testing.T) {
	capture := &stubCapture{frames: 5, width: 100, height: 100}
	detector := &stubDetector{}
	s := New(capture, detector, quietDebouncer(t), zerolog.Nop())

	err := s.Run()

	require.NoError(t, err)
	assert.True(t, capture.closed, "capture must be released")
}

func TestDetectionCadence(t *testing.T) {
	// One read initializes the zone, the next nine are ticks 1..9.
	capture := &stubCapture{frames: 10, width: 100, height: 100}
	detector := &stubDetector{dets: []detect.Detection{inZonePerson()}}
	s := New(capture, detector, quietDebouncer(t), zerolog.Nop())

	err := s.Run()

	require.NoError(t, err)
	// Stride 3 over ticks 1..9 invokes inference on ticks 3, 6, 9 only.
	assert.Equal(t, 3, detector.calls)
	cached, cachedAt := s.CachedDetections()
	assert.Len(t, cached, 1)
	assert.Equal(t, 9, cachedAt)
}

func TestZoneInitializedFromFirstFrame(t *testing.T) {
	capture := &stubCapture{frames: 2, width: 200, height: 100}
	s := New(capture, &stubDetector{}, quietDebouncer(t), zerolog.Nop())

	require.NoError(t, s.Run())

	z := s.Zone()
	require.NotNil(t, z)
	assert.Equal(t, image.Pt(50, 25), z.Vertices()[0])
	assert.Equal(t, image.Pt(150, 25), z.Vertices()[1])
}

func TestInferenceFailureKeepsCachedDetections(t *testing.T) {
	capture := &stubCapture{frames: 7, width: 100, height: 100}
	detector := &stubDetector{dets: []detect.Detection{inZonePerson()}}
	s := New(capture, detector, quietDebouncer(t), zerolog.Nop())

	// Fail inference from tick 4 onwards: the tick-3 cache must survive.
	capture.onRead = func(read int) {
		if read >= 5 { // read 5 is tick 4
			detector.err = errors.New("model exploded")
		}
	}

	err := s.Run()

	require.NoError(t, err, "detection failures must not crash the loop")
	cached, cachedAt := s.CachedDetections()
	assert.Len(t, cached, 1)
	assert.Equal(t, 3, cachedAt, "cache still holds the tick-3 result")
}

func TestQuitKeyStopsLoop(t *testing.T) {
	capture := &stubCapture{frames: 100, width: 100, height: 100}
	display := &stubDisplay{keys: []int{-1, -1, quitKey}}
	s := New(capture, &stubDetector{}, quietDebouncer(t), zerolog.Nop(),
		WithDisplay(display))

	err := s.Run()

	require.NoError(t, err)
	assert.Equal(t, 3, display.shown, "loop stops on the tick the quit key arrives")
	assert.True(t, display.closed)
	assert.True(t, capture.closed)
}

func TestDebounceScenario(t *testing.T) {
	// Zone (25,25)-(75,75) in a 100x100 frame; an in-zone person on every
	// tick. First detection fires, a second two seconds later is quiet, a
	// third six seconds after the first fires again.
	mock := clock.NewMock()
	ev := &countingEvidence{}
	deb := alert.NewDebouncer(ev, nil, zerolog.Nop(), alert.WithClock(mock))

	// The zone is preset, so every read is a tick.
	capture := &stubCapture{frames: 3, width: 100, height: 100}
	capture.onRead = func(read int) {
		switch read {
		case 2: // second tick: t0 + 2s
			mock.Add(2 * time.Second)
		case 3: // third tick: t0 + 6s
			mock.Add(4 * time.Second)
		}
	}

	z, err := zone.New([]image.Point{
		{X: 25, Y: 25}, {X: 75, Y: 25}, {X: 75, Y: 75}, {X: 25, Y: 75},
	})
	require.NoError(t, err)

	detector := &stubDetector{dets: []detect.Detection{inZonePerson()}}
	s := New(capture, detector, deb, zerolog.Nop(),
		WithStride(1), WithZone(z))

	require.NoError(t, s.Run())
	assert.Equal(t, 2, ev.saves, "fired at t0 and t0+6s, suppressed at t0+2s")
}

func TestOverlayInstructions(t *testing.T) {
	z, err := zone.FromFrame(100, 100)
	require.NoError(t, err)

	o := NewOverlay()
	o.AddDetection(inZonePerson(), true)
	o.AddDetection(detect.Detection{Box: image.Rect(0, 0, 10, 10), Score: 0.5, Label: "knife"}, false)
	o.AddZone(z, true)
	o.AddStatus("ARMED")

	require.Len(t, o.Boxes, 2)
	assert.Equal(t, dangerColor, o.Boxes[0].Color)
	assert.Equal(t, "person 0.90", o.Boxes[0].Label)
	assert.Equal(t, safeColor, o.Boxes[1].Color)

	require.Len(t, o.Polylines, 1)
	assert.Equal(t, dangerColor, o.Polylines[0].Color)

	require.Len(t, o.Texts, 1)
	assert.Equal(t, "System: ARMED", o.Texts[0].Text)
}

func TestOverlaySkipsNilZone(t *testing.T) {
	o := NewOverlay()
	o.AddZone(nil, false)
	assert.Empty(t, o.Polylines)
}
