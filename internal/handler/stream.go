package handler

import (
	"net/http"

	"roadscan/internal/config"
	"roadscan/internal/logger"
	"roadscan/internal/service"
)

// VideoFeedHandler streams the camera as annotated MJPEG. The threshold is
// taken from ?conf= once, at stream start.
func VideoFeedHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threshold, err := parseThreshold(r.URL.Query().Get("conf"), cfg.DefaultThreshold)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		publisher := manager.GetPublisher()
		src, err := publisher.Open()
		if err != nil {
			logger.Error("Failed to open video source: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		logger.Info("Video feed started for %s (conf=%.2f)", r.RemoteAddr, threshold)
		if err := publisher.Run(r.Context(), src, w, threshold); err != nil {
			logger.Error("Video feed for %s ended: %v", r.RemoteAddr, err)
			return
		}
		logger.Info("Video feed for %s closed (%d batch(es) replaced unread so far)", r.RemoteAddr, publisher.State().Dropped())
	}
}

// DetectionsHandler returns the most recent detection batch, or [].
func DetectionsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		if err := writeJSON(w, http.StatusOK, manager.GetStreamState().Latest()); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
