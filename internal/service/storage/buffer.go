package storage

import (
	"context"
	"sync"
	"time"

	"roadscan/internal/config"
	"roadscan/internal/logger"
	"roadscan/internal/models"
	"roadscan/internal/repository"
)

// BufferService collects geotagged detections in memory and periodically
// flushes them into the detection history.
type BufferService struct {
	detections    []models.StoredDetection
	limit         int
	flushInterval time.Duration
	dropped       int
	mu            sync.Mutex
	logger        *logger.Logger
	detectionRepo repository.DetectionRepository
}

// NewBufferService creates a BufferService writing to detectionRepo.
func NewBufferService(config *config.Config, logger *logger.Logger, detectionRepo repository.DetectionRepository) *BufferService {
	limit := config.BufferLimit
	if limit <= 0 {
		limit = 1
	}
	interval := time.Duration(config.FlushInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	return &BufferService{
		detections:    make([]models.StoredDetection, 0, limit),
		limit:         limit,
		flushInterval: interval,
		logger:        logger,
		detectionRepo: detectionRepo,
	}
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if n := s.Pending(); n > 0 {
				s.logger.Info("Flushing %d pending detection(s) before shutdown", n)
			}
			s.Flush()
			return nil
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Record buffers one history row per detection in batch.
func (s *BufferService) Record(threshold, latitude, longitude float64, batch models.Batch) {
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for _, det := range batch {
		if len(s.detections) >= s.limit {
			dropped++
			continue
		}
		s.detections = append(s.detections, models.StoredDetection{
			Threshold:  threshold,
			DamageType: det.Label,
			Latitude:   latitude,
			Longitude:  longitude,
		})
	}

	if dropped > 0 {
		s.dropped += dropped
		s.logger.Warning("Detection buffer full (%d/%d), dropped %d detection(s)", len(s.detections), s.limit, dropped)
	}
}

// Pending returns the number of buffered rows.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.detections)
}

// Flush writes buffered rows to the repository. Rows stay buffered if the
// write fails and are retried on the next flush.
func (s *BufferService) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.detections) == 0 {
		return
	}

	if err := s.detectionRepo.InsertBatch(s.detections); err != nil {
		s.logger.Error("Error saving detections to database: %v", err)
		return
	}

	if s.dropped > 0 {
		s.logger.Warning("%d detection(s) were dropped since the last flush", s.dropped)
	}
	s.logger.Info("Flushed %d detection(s) to history", len(s.detections))
	s.detections = s.detections[:0]
	s.dropped = 0
}
