package route

import (
	"net/http"
	"os"
	"path/filepath"

	"roadscan/internal/config"
	"roadscan/internal/handler"
	"roadscan/internal/logger"
	"roadscan/internal/middleware"
	"roadscan/internal/repository"
	"roadscan/internal/service"

	"github.com/rs/cors"
)

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers the viewer, stream, socket, history and log endpoints.
// Requests are logged, and CORS allows every origin.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger,
	detectionRepo repository.DetectionRepository) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	// MJPEG streams
	mux.HandleFunc("GET /video_feed", handler.VideoFeedHandler(manager, cfg, logger))
	mux.Handle("GET /video_feed/mirror", manager.GetMirror())
	mux.HandleFunc("GET /detections", handler.DetectionsHandler(manager, logger))

	// Sockets
	mux.HandleFunc("GET /ws", handler.LiveSocketHandler(manager, logger))
	mux.HandleFunc("GET /ws/detections", handler.ViewWebsocketHandler(manager, logger))

	// Uploads and history
	mux.HandleFunc("POST /process", handler.ProcessVideoHandler(manager, cfg, logger))
	mux.HandleFunc("POST /upload_frame/", handler.UploadFrameHandler(manager, cfg, logger))
	mux.HandleFunc("GET /detections/{$}", handler.HistoryHandler(detectionRepo, logger))

	// Log files
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(cfg))
	mux.HandleFunc("POST /logs/{level}/rotate", handler.RotateLogsHandler(logger))

	// Automatic HTML handler mapping, for example /about -> static/about.html
	mux.HandleFunc("GET /", dynamicHTMLHandler(cfg.StaticDirectory))

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(middleware.LoggingMiddleware(logger)(mux))
}
