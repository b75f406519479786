package models

import "image"

// Box is a bounding box as [x1, y1, x2, y2] in pixel coordinates of the original frame.
type Box [4]int

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b[0], b[1], b[2], b[3])
}

// Detection represents one labeled bounding box produced by the model.
type Detection struct {
	ClassID   int      `json:"class_id"`
	Label     string   `json:"label"`
	Score     float64  `json:"score"`
	Box       Box      `json:"box"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Batch holds all detections produced from one frame, in model order.
type Batch []Detection

// NonNil returns the batch or an empty batch, so it encodes as [] instead of null.
func (b Batch) NonNil() Batch {
	if b == nil {
		return Batch{}
	}
	return b
}

// Candidate is a raw model box in model-input (640x640) space.
type Candidate struct {
	ClassID int
	Score   float64
	X1      float64
	Y1      float64
	X2      float64
	Y2      float64
}

// StoredDetection is one row of the persisted detection history.
type StoredDetection struct {
	ID         int64   `json:"-"`
	Threshold  float64 `json:"threshold"`
	DamageType string  `json:"damage_type"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}
