package service

import (
	"context"

	"roadscan/internal/config"
	"roadscan/internal/logger"
	"roadscan/internal/repository"
	"roadscan/internal/service/ai"
	"roadscan/internal/service/capture"
	"roadscan/internal/service/live"
	"roadscan/internal/service/storage"
	"roadscan/internal/service/stream"
	"roadscan/internal/service/transcode"
	"roadscan/internal/service/websocket"

	"golang.org/x/sync/errgroup"
)

// Manager wires the detection pipelines to their shared services.
type Manager struct {
	pool          *ai.Pool
	state         *stream.State
	mirror        *stream.Mirror
	publisher     *stream.Publisher
	hubService    *websocket.HubService
	bufferService *storage.BufferService
	liveHandler   *live.Handler
	transcoder    *transcode.Transcoder
	config        *config.Config
	logger        *logger.Logger
}

// LoadModels creates one YOLO detector per inference worker.
func LoadModels(cfg *config.Config, logger *logger.Logger) []ai.Model {
	workers := cfg.InferenceWorkers
	if workers < 1 {
		workers = 1
	}

	loaded := make([]ai.Model, 0, workers)
	failed := 0
	for i := 0; i < workers; i++ {
		detector := ai.NewDetector(cfg.ModelPath, logger)
		if !detector.Loaded() {
			failed++
		}
		loaded = append(loaded, detector)
	}
	if failed > 0 {
		logger.Error("%d of %d detector(s) failed to load, predictions on them will fail", failed, workers)
	}
	return loaded
}

// NewManager builds every service around the given models, one inference
// worker per model. open provides frames for the MJPEG stream.
func NewManager(cfg *config.Config, logger *logger.Logger, detectionRepo repository.DetectionRepository, models []ai.Model, open capture.Opener) *Manager {
	adapters := make([]*ai.Adapter, 0, len(models))
	for _, m := range models {
		adapters = append(adapters, ai.NewAdapter(m))
	}

	pool := ai.NewPool(adapters, logger)
	state := stream.NewState()
	mirror := stream.NewMirror()
	hub := websocket.NewHubService(logger)
	buffer := storage.NewBufferService(cfg, logger, detectionRepo)

	manager := &Manager{
		pool:          pool,
		state:         state,
		mirror:        mirror,
		publisher:     stream.NewPublisher(open, pool, state, mirror, hub, logger),
		hubService:    hub,
		bufferService: buffer,
		liveHandler:   live.NewHandler(pool, buffer, cfg.DefaultThreshold, cfg.FrameLimit(), logger),
		transcoder:    transcode.NewTranscoder(pool, cfg.OutputCodec, "", logger),
		config:        cfg,
		logger:        logger,
	}

	manager.logger.Info("Manager started with %d inference worker(s)", pool.Size())
	return manager
}

// Run runs the background services until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.hubService.Run(ctx) })
	g.Go(func() error { return m.bufferService.Run(ctx) })
	return g.Wait()
}

// Stop releases the inference workers and their models.
func (m *Manager) Stop() error {
	err := m.pool.Close()
	m.logger.Info("Manager stopped")
	return err
}

func (m *Manager) GetInferer() ai.Inferer {
	return m.pool
}
func (m *Manager) GetStreamState() *stream.State {
	return m.state
}
func (m *Manager) GetPublisher() *stream.Publisher {
	return m.publisher
}
func (m *Manager) GetMirror() *stream.Mirror {
	return m.mirror
}
func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.hubService
}
func (m *Manager) GetBufferService() *storage.BufferService {
	return m.bufferService
}
func (m *Manager) GetLiveHandler() *live.Handler {
	return m.liveHandler
}
func (m *Manager) GetTranscoder() *transcode.Transcoder {
	return m.transcoder
}
