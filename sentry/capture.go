package sentry

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// VideoSource captures frames from a camera device or a video file through
// OpenCV.
type VideoSource struct {
	source any // device ID (int) or file path (string)
	cap    *gocv.VideoCapture
}

// NewDeviceSource captures from a camera device.
func NewDeviceSource(deviceID int) *VideoSource {
	return &VideoSource{source: deviceID}
}

// NewFileSource captures from a video file; end-of-file reads report stream
// end.
func NewFileSource(path string) *VideoSource {
	return &VideoSource{source: path}
}

// Open opens the underlying capture.
func (v *VideoSource) Open() error {
	cap, err := gocv.OpenVideoCapture(v.source)
	if err != nil {
		return errors.Wrapf(err, "open video source %v", v.source)
	}
	v.cap = cap
	return nil
}

// Read pulls the next frame into dst.
func (v *VideoSource) Read(dst *gocv.Mat) bool {
	if v.cap == nil {
		return false
	}
	return v.cap.Read(dst)
}

// Close releases the capture device.
func (v *VideoSource) Close() error {
	if v.cap == nil {
		return nil
	}
	cap := v.cap
	v.cap = nil
	return cap.Close()
}

// Window shows annotated frames in an OpenCV window.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a named display window.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Show displays the frame.
func (w *Window) Show(frame gocv.Mat) {
	w.win.IMShow(frame)
}

// PollKey waits up to 1ms for a key press; -1 when none.
func (w *Window) PollKey() int {
	return w.win.WaitKey(1)
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}
