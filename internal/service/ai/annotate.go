package ai

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"roadscan/internal/apperr"
	"roadscan/internal/models"

	"gocv.io/x/gocv"
)

var (
	// ErrEmptyImage is returned when there are no image bytes to decode.
	ErrEmptyImage = errors.New("no image data")
	// ErrInvalidImage is returned when image bytes do not decode to pixels.
	ErrInvalidImage = errors.New("invalid image data")
)

var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

const (
	boxThickness   = 2
	labelFont      = gocv.FontHersheySimplex
	labelScale     = 0.5
	labelOffset    = 10
	labelThickness = 2
)

// Annotate draws every detection of batch onto frame in place. Only call it
// when the caller is the frame's sole consumer.
func Annotate(frame *gocv.Mat, batch models.Batch) error {
	if frame.Empty() {
		return apperr.Input("annotate", ErrEmptyFrame)
	}

	for _, det := range batch {
		if err := gocv.Rectangle(frame, det.Box.Rect(), boxColor, boxThickness); err != nil {
			return fmt.Errorf("failed to draw rectangle: %w", err)
		}

		text := fmt.Sprintf("%s (%.2f)", det.Label, det.Score)
		origin := labelOrigin(text, det.Box, image.Pt(frame.Cols(), frame.Rows()))
		if err := gocv.PutText(frame, text, origin, labelFont, labelScale, boxColor, labelThickness); err != nil {
			return fmt.Errorf("failed to draw text: %w", err)
		}
	}
	return nil
}

// labelOrigin places the label baseline 10px above the box top edge, moved
// as little as needed to keep the whole text on the canvas.
func labelOrigin(text string, box models.Box, canvas image.Point) image.Point {
	size := gocv.GetTextSize(text, labelFont, labelScale, labelThickness)

	x := clamp(box[0], 0, max(0, canvas.X-size.X))
	y := clamp(box[1]-labelOffset, min(size.Y, canvas.Y-1), max(0, canvas.Y-1))
	return image.Pt(x, y)
}

// EncodeJPEG encodes frame as a JPEG image.
func EncodeJPEG(frame gocv.Mat) ([]byte, error) {
	if frame.Empty() {
		return nil, apperr.Input("encode jpeg", ErrEmptyFrame)
	}

	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// DecodeImage decodes an encoded image (JPEG, PNG, ...) into a BGR frame owned
// by the caller.
func DecodeImage(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, apperr.Input("decode image", ErrEmptyImage)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, apperr.Input("decode image", fmt.Errorf("%w: %v", ErrInvalidImage, err))
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, apperr.Input("decode image", ErrInvalidImage)
	}
	return mat, nil
}
