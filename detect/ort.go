package detect

import (
	"image"
	"sync"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// ORT tensor names and shapes for YOLOv8-style exports.
const (
	ortInputName  = "images"
	ortOutputName = "output0"
	ortInputSide  = 640
	ortNumAnchors = 8400
	ortNumClasses = 80
)

// ORTDetector runs a YOLOv8-style ONNX model through onnxruntime. Preferred
// over the DNN backend when the onnxruntime shared library is available,
// since it supports hardware execution providers.
type ORTDetector struct {
	cfg     Config
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	mu      sync.Mutex
	log     zerolog.Logger
}

// NewORTDetector creates an onnxruntime session for the model at
// cfg.ModelPath. The onnxruntime environment is initialized on first use.
func NewORTDetector(cfg Config, log zerolog.Logger) (*ORTDetector, error) {
	cfg = cfg.withDefaults()

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "initialize onnxruntime environment")
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, ortInputSide, ortInputSide))
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 4+ortNumClasses, ortNumAnchors))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "create output tensor")
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{ortInputName}, []string{ortOutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "create onnxruntime session for %s", cfg.ModelPath)
	}

	d := &ORTDetector{
		cfg:     cfg,
		session: session,
		input:   input,
		output:  output,
		log:     log.With().Str("component", "detector").Str("backend", "ort").Logger(),
	}
	d.log.Info().Str("model", cfg.ModelPath).Msg("detector initialized")
	return d, nil
}

// Detect runs inference on the frame and returns the filtered detections.
func (d *ORTDetector) Detect(frame gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, errors.New("detector closed")
	}
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "convert frame")
	}
	if err := d.prepareInput(img); err != nil {
		return nil, err
	}

	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "run inference")
	}

	size := frame.Size()
	raw := d.postprocess(d.output.GetData(), image.Pt(size[1], size[0]))
	dets := filter(raw, d.cfg.ConfidenceThreshold, d.cfg.AllowedClasses)
	return applyGreedyNMS(dets, d.cfg.NMSThreshold), nil
}

// prepareInput resizes the frame to the model input and fills the tensor in
// planar RGB order, normalized to [0,1].
func (d *ORTDetector) prepareInput(img image.Image) error {
	data := d.input.GetData()
	channelSize := ortInputSide * ortInputSide
	if len(data) < channelSize*3 {
		return errors.Errorf("input tensor holds %d floats, needs %d",
			len(data), channelSize*3)
	}
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	img = resize.Resize(ortInputSide, ortInputSide, img, resize.Lanczos3)

	i := 0
	for y := 0; y < ortInputSide; y++ {
		for x := 0; x < ortInputSide; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}

// postprocess decodes the transposed YOLOv8 output: rows 0-3 are cx, cy, w, h
// in input pixels, rows 4.. are per-class scores, one column per anchor.
func (d *ORTDetector) postprocess(raw []float32, frameSize image.Point) []Detection {
	if len(raw) < (4+ortNumClasses)*ortNumAnchors {
		return nil
	}

	scaleX := float32(frameSize.X) / float32(ortInputSide)
	scaleY := float32(frameSize.Y) / float32(ortInputSide)

	var detections []Detection
	for a := 0; a < ortNumAnchors; a++ {
		classID := 0
		maxScore := float32(0)
		for c := 0; c < ortNumClasses; c++ {
			score := raw[(4+c)*ortNumAnchors+a]
			if d.cfg.LogitScores {
				score = sigmoid(score)
			}
			if score > maxScore {
				maxScore = score
				classID = c
			}
		}
		if maxScore < d.cfg.ConfidenceThreshold {
			continue
		}

		cx := raw[0*ortNumAnchors+a] * scaleX
		cy := raw[1*ortNumAnchors+a] * scaleY
		w := raw[2*ortNumAnchors+a] * scaleX
		h := raw[3*ortNumAnchors+a] * scaleY

		box := clampBox(
			int(cx-w/2), int(cy-h/2),
			int(cx+w/2), int(cy+h/2),
			frameSize,
		)

		detections = append(detections, Detection{
			Box:     box,
			Score:   maxScore,
			ClassID: classID,
		})
	}
	return detections
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + math32.Exp(-x))
}

// Close destroys the session and its tensors.
func (d *ORTDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	return nil
}
