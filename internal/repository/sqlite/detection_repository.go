package sqlite

import (
	"fmt"

	"roadscan/internal/models"
)

const insertDetection = `
	INSERT INTO detections (threshold, damage_type, latitude, longitude)
	VALUES (?, ?, ?, ?)
`

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// Insert appends one detection to the history.
func (r *DetectionRepository) Insert(det *models.StoredDetection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertDetection, det.Threshold, det.DamageType, det.Latitude, det.Longitude)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch appends multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []models.StoredDetection) error {
	if len(detections) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertDetection)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.Threshold, det.DamageType, det.Latitude, det.Longitude); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	return tx.Commit()
}

// GetAll returns every stored detection in insertion order.
func (r *DetectionRepository) GetAll() ([]models.StoredDetection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, threshold, damage_type, latitude, longitude
		FROM detections ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	detections := []models.StoredDetection{}
	for rows.Next() {
		var det models.StoredDetection
		if err := rows.Scan(&det.ID, &det.Threshold, &det.DamageType, &det.Latitude, &det.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detections: %w", err)
	}
	return detections, nil
}

// Count returns the number of stored detections.
func (r *DetectionRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM detections`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return count, nil
}
