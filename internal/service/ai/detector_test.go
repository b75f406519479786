package ai

import (
	"path/filepath"
	"testing"

	"roadscan/internal/logger"
	"roadscan/internal/models"

	"github.com/google/go-cmp/cmp"
)

// output builds a [4+classes, anchors] row-major YOLO output.
func output(classes int, anchors [][]float32) []float32 {
	rows := 4 + classes
	data := make([]float32, rows*len(anchors))
	for i, a := range anchors {
		for r := 0; r < rows; r++ {
			data[r*len(anchors)+i] = a[r]
		}
	}
	return data
}

func TestDecodeOutput(t *testing.T) {
	data := output(4, [][]float32{
		{100, 100, 40, 20, 0.1, 0.2, 0.9, 0.3},
		{300, 300, 10, 10, 0.2, 0.1, 0.1, 0.3},
		{500, 50, 100, 60, 0.0, 0.6, 0.0, 0.0},
	})

	got := decodeOutput(data, 8, 3, 0.5)
	want := []models.Candidate{
		{ClassID: 2, Score: float64(float32(0.9)), X1: 80, Y1: 90, X2: 120, Y2: 110},
		{ClassID: 1, Score: float64(float32(0.6)), X1: 450, Y1: 20, X2: 550, Y2: 80},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decodeOutput mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeOutput_ShortData(t *testing.T) {
	if got := decodeOutput(make([]float32, 7), 8, 1, 0); got != nil {
		t.Errorf("Expected nil for short output, got %v", got)
	}
}

func TestSuppress_MergesOverlapsPerClass(t *testing.T) {
	candidates := []models.Candidate{
		{ClassID: 0, Score: 0.6, X1: 10, Y1: 10, X2: 110, Y2: 110},
		{ClassID: 0, Score: 0.9, X1: 12, Y1: 12, X2: 112, Y2: 112},
		{ClassID: 3, Score: 0.7, X1: 10, Y1: 10, X2: 110, Y2: 110},
		{ClassID: 0, Score: 0.8, X1: 400, Y1: 400, X2: 450, Y2: 450},
	}

	got := suppress(candidates)
	if len(got) != 3 {
		t.Fatalf("Expected 3 survivors, got %d: %+v", len(got), got)
	}
	for _, c := range got {
		if c.Score == 0.6 {
			t.Errorf("Lower-scoring overlap survived: %+v", c)
		}
	}
}

func TestDetector_MissingModel(t *testing.T) {
	d := NewDetector(filepath.Join(t.TempDir(), "missing.onnx"), logger.Discard())
	defer d.Close()

	if d.Loaded() {
		t.Fatal("Detector should not be loaded")
	}

	frame := newFrame(InputSize, InputSize)
	defer frame.Close()
	if _, err := d.Predict(frame, 0.5); err != ErrNetworkNotLoaded {
		t.Errorf("Expected ErrNetworkNotLoaded, got %v", err)
	}
}
