package ai

import (
	"errors"
	"fmt"
	"image"
	"math"

	"roadscan/internal/apperr"
	"roadscan/internal/models"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when a frame carries no pixels.
var ErrEmptyFrame = errors.New("empty frame")

// Adapter turns an arbitrary-size frame into detections in that frame's
// coordinates using a Model that only understands InputSize x InputSize input.
type Adapter struct {
	model Model
}

// NewAdapter wraps model.
func NewAdapter(model Model) *Adapter {
	return &Adapter{model: model}
}

// Model returns the wrapped model.
func (a *Adapter) Model() Model {
	return a.model
}

// Infer runs detection on frame and returns boxes in frame coordinates.
// The frame is not modified.
func (a *Adapter) Infer(frame gocv.Mat, threshold float64) (models.Batch, error) {
	input, size, err := Prepare(frame)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	return a.Predict(input, size, threshold)
}

// Predict runs the model on an already prepared input and rescales the
// result to size, the dimensions of the frame input was made from.
func (a *Adapter) Predict(input gocv.Mat, size image.Point, threshold float64) (models.Batch, error) {
	candidates, err := a.model.Predict(input, threshold)
	if err != nil {
		return nil, apperr.Inference("predict", err)
	}

	batch := make(models.Batch, 0, len(candidates))
	for _, c := range candidates {
		batch = append(batch, models.Detection{
			ClassID: c.ClassID,
			Label:   Label(c.ClassID),
			Score:   c.Score,
			Box:     Rescale(c, size),
		})
	}
	return batch, nil
}

// Prepare resizes frame to the model input size with area interpolation.
// It returns the new Mat, owned by the caller, and the original frame size.
func Prepare(frame gocv.Mat) (gocv.Mat, image.Point, error) {
	if frame.Empty() {
		return gocv.Mat{}, image.Point{}, apperr.Input("prepare frame", ErrEmptyFrame)
	}

	size := image.Pt(frame.Cols(), frame.Rows())
	input := gocv.NewMat()
	if err := gocv.Resize(frame, &input, image.Pt(InputSize, InputSize), 0, 0, gocv.InterpolationArea); err != nil {
		input.Close()
		return gocv.Mat{}, image.Point{}, apperr.Inference("prepare frame", fmt.Errorf("resize: %w", err))
	}
	return input, size, nil
}

// Rescale converts a model-space candidate into a box in a frame of the
// given size. The box is ordered and clamped to the frame.
func Rescale(c models.Candidate, size image.Point) models.Box {
	sx := float64(size.X) / InputSize
	sy := float64(size.Y) / InputSize

	x1 := clamp(int(math.Round(c.X1*sx)), 0, size.X)
	y1 := clamp(int(math.Round(c.Y1*sy)), 0, size.Y)
	x2 := clamp(int(math.Round(c.X2*sx)), 0, size.X)
	y2 := clamp(int(math.Round(c.Y2*sy)), 0, size.Y)

	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return models.Box{x1, y1, x2, y2}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
