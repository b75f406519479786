package ai

import (
	"errors"
	"fmt"
	"image"
	"os"

	"roadscan/internal/logger"
	"roadscan/internal/models"

	"gocv.io/x/gocv"
)

const (
	// NMSThreshold is the IoU above which overlapping boxes of one class are merged.
	NMSThreshold = 0.45
	// classOffset separates classes during NMS so boxes of different classes never suppress each other.
	classOffset = 4 * InputSize
)

// ErrNetworkNotLoaded is returned by Predict when the ONNX model failed to load.
var ErrNetworkNotLoaded = errors.New("detection network not initialized")

// Detector is a Model running a YOLOv8 ONNX export through OpenCV's DNN module.
// A Detector is not safe for concurrent use; give each worker its own.
type Detector struct {
	net       gocv.Net
	loaded    bool
	modelPath string
	logger    *logger.Logger
}

// NewDetector loads the network at modelPath. A model that cannot be loaded
// is logged and every later Predict fails with ErrNetworkNotLoaded.
func NewDetector(modelPath string, logger *logger.Logger) *Detector {
	detector := &Detector{
		modelPath: modelPath,
		logger:    logger,
	}

	if err := detector.initializeNet(); err != nil {
		detector.logger.Warning("Could not initialize detection network: %v", err)
		return detector
	}

	return detector
}

// initializeNet loads the ONNX network and selects the CPU target.
func (d *Detector) initializeNet() error {
	if _, err := os.Stat(d.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", d.modelPath)
	}

	net := gocv.ReadNetFromONNX(d.modelPath)
	if net.Empty() {
		net.Close()
		return fmt.Errorf("failed to load network from %s", d.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	d.net = net
	d.loaded = true
	d.logger.Info("Detection network initialized from %s", d.modelPath)
	return nil
}

// Loaded reports whether the network is ready.
func (d *Detector) Loaded() bool {
	return d.loaded
}

// Predict runs the network on a prepared input and returns the boxes that
// score at least threshold, after non-maximum suppression.
func (d *Detector) Predict(input gocv.Mat, threshold float64) ([]models.Candidate, error) {
	if !d.loaded {
		return nil, ErrNetworkNotLoaded
	}

	blob := gocv.BlobFromImage(input, 1.0/255.0, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// YOLOv8 output: [1, 4+classes, anchors], rows cx, cy, w, h, then one score per class.
	dims := output.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	candidates := decodeOutput(data, dims[1], dims[2], threshold)
	return suppress(candidates), nil
}

// Close releases the network.
func (d *Detector) Close() error {
	if !d.loaded {
		return nil
	}
	d.loaded = false
	return d.net.Close()
}

// decodeOutput keeps, per anchor, the best-scoring class when it reaches threshold.
func decodeOutput(data []float32, rows, anchors int, threshold float64) []models.Candidate {
	if len(data) < rows*anchors {
		return nil
	}

	var candidates []models.Candidate
	for i := 0; i < anchors; i++ {
		best, bestScore := -1, float32(0)
		for c := 4; c < rows; c++ {
			if s := data[c*anchors+i]; s > bestScore {
				best, bestScore = c-4, s
			}
		}
		if best < 0 || float64(bestScore) < threshold {
			continue
		}

		cx, cy := float64(data[i]), float64(data[anchors+i])
		w, h := float64(data[2*anchors+i]), float64(data[3*anchors+i])
		candidates = append(candidates, models.Candidate{
			ClassID: best,
			Score:   float64(bestScore),
			X1:      cx - w/2,
			Y1:      cy - h/2,
			X2:      cx + w/2,
			Y2:      cy + h/2,
		})
	}
	return candidates
}

// suppress applies per-class NMS and returns the survivors in descending score order.
func suppress(candidates []models.Candidate) []models.Candidate {
	if len(candidates) == 0 {
		return []models.Candidate{}
	}

	rects := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		off := c.ClassID * classOffset
		rects[i] = image.Rect(int(c.X1)+off, int(c.Y1)+off, int(c.X2)+off, int(c.Y2)+off)
		scores[i] = float32(c.Score)
	}

	indices := gocv.NMSBoxes(rects, scores, 0, NMSThreshold)

	kept := make([]models.Candidate, 0, len(indices))
	for _, idx := range indices {
		kept = append(kept, candidates[idx])
	}
	return kept
}
