package handler

import (
	"io"
	"net/http"

	"roadscan/internal/apperr"
	"roadscan/internal/config"
	"roadscan/internal/dto"
	"roadscan/internal/logger"
	"roadscan/internal/service"
	"roadscan/internal/service/ai"
)

// UploadFrameHandler runs detection on one uploaded image. Results with
// coordinates are added to the detection history.
func UploadFrameHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := cfg.FrameLimit()
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
		if err := r.ParseMultipartForm(limit); err != nil {
			writeError(w, http.StatusBadRequest, "No image file provided")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "No image file provided")
			return
		}
		defer file.Close()

		threshold, err := parseThreshold(r.FormValue("threshold"), cfg.DefaultThreshold)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		latitude, err := parseCoordinate("latitude", r.FormValue("latitude"), 90)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		longitude, err := parseCoordinate("longitude", r.FormValue("longitude"), 180)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "No image file provided")
			return
		}

		frame, err := ai.DecodeImage(data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid image data")
			return
		}
		defer frame.Close()

		batch, err := manager.GetInferer().Infer(r.Context(), frame, threshold)
		if err != nil {
			if apperr.Is(err, apperr.KindTransport) {
				return
			}
			logger.Error("Prediction failed for uploaded frame: %v", err)
			writeError(w, http.StatusInternalServerError, "Prediction error")
			return
		}

		batch = batch.NonNil()
		if latitude != nil && longitude != nil {
			for i := range batch {
				batch[i].Latitude = latitude
				batch[i].Longitude = longitude
			}
			manager.GetBufferService().Record(threshold, *latitude, *longitude, batch)
		}

		if err := writeJSON(w, http.StatusOK, dto.DetectionResult{Detections: batch}); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
