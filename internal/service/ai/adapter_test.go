package ai

import (
	"errors"
	"image"
	"testing"

	"roadscan/internal/apperr"
	"roadscan/internal/models"

	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"
)

func newFrame(w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 80, 120, 0), h, w, gocv.MatTypeCV8UC3)
}

func fixedModel(candidates ...models.Candidate) ModelFunc {
	return func(input gocv.Mat, threshold float64) ([]models.Candidate, error) {
		return candidates, nil
	}
}

func TestLabel(t *testing.T) {
	tests := map[int]string{
		0:  "Longitudinal Crack",
		1:  "Transverse Crack",
		2:  "Alligator Crack",
		3:  "Potholes",
		4:  "unknown_4",
		-1: "unknown_-1",
	}
	for id, want := range tests {
		if got := Label(id); got != want {
			t.Errorf("Label(%d) = %q, want %q", id, got, want)
		}
	}
}

func TestRescale_ScalesToFrame(t *testing.T) {
	c := models.Candidate{X1: 320, Y1: 320, X2: 640, Y2: 640}

	got := Rescale(c, image.Pt(1280, 720))
	want := models.Box{640, 360, 1280, 720}
	if got != want {
		t.Errorf("Rescale = %v, want %v", got, want)
	}
}

func TestRescale_StaysInsideFrame(t *testing.T) {
	sizes := []image.Point{{1920, 1080}, {640, 640}, {17, 931}, {1, 1}}
	candidates := []models.Candidate{
		{X1: -50, Y1: -20, X2: 700, Y2: 900},
		{X1: 600, Y1: 10, X2: 20, Y2: -5},
		{X1: 0, Y1: 0, X2: 640, Y2: 640},
		{X1: 639.6, Y1: 0.4, X2: 640.2, Y2: 1e9},
	}

	for _, size := range sizes {
		for _, c := range candidates {
			b := Rescale(c, size)
			if b[0] < 0 || b[1] < 0 || b[2] > size.X || b[3] > size.Y {
				t.Errorf("Rescale(%+v, %v) = %v escapes the frame", c, size, b)
			}
			if b[0] > b[2] || b[1] > b[3] {
				t.Errorf("Rescale(%+v, %v) = %v is not ordered", c, size, b)
			}
		}
	}
}

func TestAdapter_InferFeedsModelInputSize(t *testing.T) {
	var seen image.Point
	var seenThreshold float64
	model := ModelFunc(func(input gocv.Mat, threshold float64) ([]models.Candidate, error) {
		seen = image.Pt(input.Cols(), input.Rows())
		seenThreshold = threshold
		return []models.Candidate{{ClassID: 3, Score: 0.91, X1: 64, Y1: 64, X2: 128, Y2: 320}}, nil
	})

	frame := newFrame(1280, 960)
	defer frame.Close()

	batch, err := NewAdapter(model).Infer(frame, 0.25)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}

	if seen != image.Pt(InputSize, InputSize) {
		t.Errorf("Model saw %v, want %dx%d", seen, InputSize, InputSize)
	}
	if seenThreshold != 0.25 {
		t.Errorf("Model saw threshold %v, want 0.25", seenThreshold)
	}

	want := models.Batch{{ClassID: 3, Label: "Potholes", Score: 0.91, Box: models.Box{128, 96, 256, 480}}}
	if diff := cmp.Diff(want, batch); diff != "" {
		t.Errorf("Batch mismatch (-want +got):\n%s", diff)
	}
	if frame.Cols() != 1280 || frame.Rows() != 960 {
		t.Errorf("Frame was modified: %dx%d", frame.Cols(), frame.Rows())
	}
}

func TestAdapter_NoDetectionsIsEmptyBatch(t *testing.T) {
	frame := newFrame(100, 100)
	defer frame.Close()

	batch, err := NewAdapter(fixedModel()).Infer(frame, 0.5)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if batch == nil || len(batch) != 0 {
		t.Errorf("Expected empty non-nil batch, got %#v", batch)
	}
}

func TestAdapter_ModelErrorIsInferenceError(t *testing.T) {
	boom := errors.New("boom")
	model := ModelFunc(func(gocv.Mat, float64) ([]models.Candidate, error) { return nil, boom })

	frame := newFrame(10, 10)
	defer frame.Close()

	_, err := NewAdapter(model).Infer(frame, 0.5)
	if !apperr.Is(err, apperr.KindInference) {
		t.Errorf("Expected inference error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped model error, got %v", err)
	}
}

func TestAdapter_EmptyFrameIsInputError(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := NewAdapter(fixedModel()).Infer(empty, 0.5)
	if !apperr.Is(err, apperr.KindInput) {
		t.Errorf("Expected input error, got %v", err)
	}
}
