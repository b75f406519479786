package handler

import (
	"net/http"

	"roadscan/internal/dto"
	"roadscan/internal/logger"
	"roadscan/internal/repository"
)

// HistoryHandler returns every stored detection.
func HistoryHandler(detectionRepo repository.DetectionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detections, err := detectionRepo.GetAll()
		if err != nil {
			logger.Error("Error querying detections from database: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		if err := writeJSON(w, http.StatusOK, dto.HistoryData{Detections: detections}); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
