package ai

import (
	"errors"
	"image"
	"testing"

	"roadscan/internal/apperr"
	"roadscan/internal/models"

	"gocv.io/x/gocv"
)

func TestAnnotate_EncodeDecodeKeepsDimensions(t *testing.T) {
	frame := newFrame(640, 480)
	defer frame.Close()

	batch := models.Batch{
		{ClassID: 0, Label: "Longitudinal Crack", Score: 0.87, Box: models.Box{10, 5, 200, 300}},
		{ClassID: 3, Label: "Potholes", Score: 0.5, Box: models.Box{600, 470, 640, 480}},
	}
	if err := Annotate(&frame, batch); err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	data, err := EncodeJPEG(frame)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatalf("Output is not a JPEG")
	}

	decoded, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	defer decoded.Close()

	if decoded.Cols() != 640 || decoded.Rows() != 480 {
		t.Errorf("Decoded %dx%d, want 640x480", decoded.Cols(), decoded.Rows())
	}
}

func TestAnnotate_DrawsInPlace(t *testing.T) {
	frame := newFrame(64, 64)
	defer frame.Close()
	before := frame.Clone()
	defer before.Close()

	if err := Annotate(&frame, models.Batch{{Label: "Potholes", Score: 1, Box: models.Box{4, 4, 60, 60}}}); err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	diff := gocv.NewMat()
	defer diff.Close()
	if err := gocv.AbsDiff(frame, before, &diff); err != nil {
		t.Fatalf("AbsDiff failed: %v", err)
	}
	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray); err != nil {
		t.Fatalf("CvtColor failed: %v", err)
	}
	if gocv.CountNonZero(gray) == 0 {
		t.Error("Frame has no overlay")
	}
}

func TestLabelOrigin_StaysOnCanvas(t *testing.T) {
	canvas := image.Pt(320, 240)
	text := "Alligator Crack (0.99)"
	size := gocv.GetTextSize(text, labelFont, labelScale, labelThickness)

	boxes := []models.Box{{0, 0, 10, 10}, {310, 230, 320, 240}, {-5, 3, 2, 4}, {100, 100, 200, 200}}
	for _, box := range boxes {
		p := labelOrigin(text, box, canvas)
		if p.X < 0 || p.X+size.X > canvas.X {
			t.Errorf("Box %v: label x %d runs off canvas", box, p.X)
		}
		if p.Y-size.Y < 0 || p.Y >= canvas.Y {
			t.Errorf("Box %v: label y %d runs off canvas", box, p.Y)
		}
	}

	if p := labelOrigin(text, models.Box{100, 100, 200, 200}, canvas); p != image.Pt(100, 90) {
		t.Errorf("Expected label at (100, 90), got %v", p)
	}
}

func TestDecodeImage_Errors(t *testing.T) {
	if _, err := DecodeImage(nil); !errors.Is(err, ErrEmptyImage) || !apperr.Is(err, apperr.KindInput) {
		t.Errorf("Expected empty image input error, got %v", err)
	}
	if _, err := DecodeImage([]byte("definitely not a jpeg")); !errors.Is(err, ErrInvalidImage) || !apperr.Is(err, apperr.KindInput) {
		t.Errorf("Expected invalid image input error, got %v", err)
	}
}
