package handler

import (
	"errors"
	"net/http"
	"os"

	"roadscan/internal/apperr"
	"roadscan/internal/config"
	"roadscan/internal/logger"
	"roadscan/internal/service"
)

const (
	// multipartMemory is how much of an upload is kept in memory before spilling to disk.
	multipartMemory = 32 << 20
	processedName   = "processed_video.mp4"
)

// ProcessVideoHandler runs detection over an uploaded video and returns the
// annotated result as video/mp4.
func ProcessVideoHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize<<20)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "Video file too large")
				return
			}
			writeError(w, http.StatusBadRequest, "No video file provided")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("video")
		if err != nil {
			writeError(w, http.StatusBadRequest, "No video file provided")
			return
		}
		defer file.Close()

		threshold, err := parseThreshold(r.FormValue("confidence_threshold"), cfg.DefaultThreshold)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		job, err := manager.GetTranscoder().NewJob()
		if err != nil {
			logger.Error("Failed to create transcode job: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer job.Close()

		if _, err := job.SaveInput(file); err != nil {
			logger.Error("Job %s: failed to save upload %s: %v", job.ID, header.Filename, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		logger.Info("Job %s: processing %s (%d bytes, conf=%.2f)", job.ID, header.Filename, header.Size, threshold)
		out, err := job.Run(r.Context(), threshold)
		if err != nil {
			if r.Context().Err() != nil || apperr.Is(err, apperr.KindTransport) {
				logger.Info("Job %s cancelled: %v", job.ID, err)
				return
			}
			logger.Error("Job %s failed: %v", job.ID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		f, err := os.Open(out)
		if err != nil {
			logger.Error("Job %s: %v", job.ID, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", `attachment; filename="`+processedName+`"`)
		http.ServeContent(w, r, processedName, stat.ModTime(), f)
	}
}
