package dto

import "roadscan/internal/models"

// DetectionResult is the response of a single-image detection request.
type DetectionResult struct {
	Detections models.Batch `json:"detections"`
}
