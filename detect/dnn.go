package detect

import (
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// DNNDetector runs a YOLO-family ONNX model through the OpenCV DNN module.
type DNNDetector struct {
	cfg         Config
	net         gocv.Net
	outputNames []string
	initialized bool
	mu          sync.Mutex
	log         zerolog.Logger
}

// NewDNNDetector loads the model at cfg.ModelPath and prepares it for
// inference on the CPU.
func NewDNNDetector(cfg Config, log zerolog.Logger) (*DNNDetector, error) {
	d := &DNNDetector{
		cfg: cfg.withDefaults(),
		log: log.With().Str("component", "detector").Str("backend", "dnn").Logger(),
	}
	if err := d.initialize(); err != nil {
		return nil, errors.Wrap(err, "initialize dnn detector")
	}
	return d, nil
}

func (d *DNNDetector) initialize() error {
	info, err := os.Stat(d.cfg.ModelPath)
	if os.IsNotExist(err) {
		return errors.Errorf("model file not found: %s", d.cfg.ModelPath)
	}
	if err != nil {
		return errors.Wrap(err, "stat model file")
	}
	if info.Size() == 0 {
		return errors.Errorf("model file is empty: %s", d.cfg.ModelPath)
	}

	net := gocv.ReadNet(d.cfg.ModelPath, "")
	if net.Empty() {
		return errors.Errorf("load model %s (incompatible with OpenCV DNN?)", d.cfg.ModelPath)
	}
	d.net = net

	// CPU only; extend here for CUDA/OpenVINO targets.
	d.net.SetPreferableBackend(gocv.NetBackendOpenCV)
	d.net.SetPreferableTarget(gocv.NetTargetCPU)

	d.outputNames = d.net.GetLayerNames()
	if len(d.outputNames) == 0 {
		d.net.Close()
		return errors.New("model has no output layers")
	}

	d.initialized = true
	d.log.Info().
		Str("model", d.cfg.ModelPath).
		Int("input_w", d.cfg.InputShape.X).
		Int("input_h", d.cfg.InputShape.Y).
		Float32("confidence_floor", d.cfg.ConfidenceThreshold).
		Msg("detector initialized")
	return nil
}

// Detect runs inference on the frame and returns the filtered detections.
func (d *DNNDetector) Detect(frame gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return nil, errors.New("detector not initialized")
	}
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	blob := gocv.BlobFromImage(frame, 1.0/255.0, d.cfg.InputShape,
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	size := frame.Size()
	raw := d.postprocess(output, image.Pt(size[1], size[0]))
	dets := filter(raw, d.cfg.ConfidenceThreshold, d.cfg.AllowedClasses)
	return applyGreedyNMS(dets, d.cfg.NMSThreshold), nil
}

// postprocess decodes YOLO-style rows: cx, cy, w, h, objectness, then one
// score per class. Coordinates are normalized to the model input and scaled
// back to the frame.
func (d *DNNDetector) postprocess(output gocv.Mat, frameSize image.Point) []Detection {
	var detections []Detection

	rows := output.Rows()
	cols := output.Cols()

	for i := 0; i < rows; i++ {
		objectness := output.GetFloatAt(i, 4)
		if objectness < d.cfg.ConfidenceThreshold {
			continue
		}

		classID := 0
		maxScore := float32(0)
		for j := 5; j < cols; j++ {
			score := output.GetFloatAt(i, j)
			if score > maxScore {
				maxScore = score
				classID = j - 5
			}
		}

		score := objectness * maxScore

		centerX := output.GetFloatAt(i, 0)
		centerY := output.GetFloatAt(i, 1)
		width := output.GetFloatAt(i, 2)
		height := output.GetFloatAt(i, 3)

		box := clampBox(
			int((centerX-width/2)*float32(frameSize.X)),
			int((centerY-height/2)*float32(frameSize.Y)),
			int((centerX+width/2)*float32(frameSize.X)),
			int((centerY+height/2)*float32(frameSize.Y)),
			frameSize,
		)

		detections = append(detections, Detection{
			Box:     box,
			Score:   score,
			ClassID: classID,
		})
	}

	return detections
}

// Close releases the underlying network.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return nil
	}
	d.initialized = false
	return d.net.Close()
}
