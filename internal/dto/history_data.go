// HistoryData is the response payload of the detection history endpoint.
package dto

import "roadscan/internal/models"

type HistoryData struct {
	Detections []models.StoredDetection `json:"detections"`
}
