package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"roadscan/internal/config"
	"roadscan/internal/logger"
)

// ShowLogsHandler serves <level>.log from the log directory as text/plain.
func ShowLogsHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, err := logger.FileName(r.PathValue("level"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		serveLogFile(w, r, cfg.LogDirectory, filename)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, "Log file not found: "+filename)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// RotateLogsHandler starts a fresh <level>.log, keeping the old one as a backup.
func RotateLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level := r.PathValue("level")
		if err := log.Rotate(level); err != nil {
			if errors.Is(err, logger.ErrUnknownLevel) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			log.Error("Failed to rotate %s log: %v", level, err)
			writeError(w, http.StatusInternalServerError, "Failed to rotate log")
			return
		}
		log.Info("Rotated %s log", level)
		w.WriteHeader(http.StatusNoContent)
	}
}
