package repository

import (
	"roadscan/internal/models"
)

// DetectionRepository defines the interface for the persisted detection history.
type DetectionRepository interface {
	// Create operations
	Insert(det *models.StoredDetection) (int64, error)
	InsertBatch(detections []models.StoredDetection) error

	// Read operations
	GetAll() ([]models.StoredDetection, error)
	Count() (int, error)
}
