package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             int
	CameraSource     string  // Device index ("0") or a file path / stream URL
	ModelPath        string  // YOLOv8 ONNX export
	InferenceWorkers int     // Number of inference workers, each with its own network
	DatabasePath     string  // SQLite file holding the detection history
	BufferLimit      int     // Max history rows waiting for a flush
	FlushInterval    int     // Seconds between history flushes
	MaxUploadSize    int64   // Max /process upload size in MB
	MaxFrameSize     int64   // Max size of one image (upload or socket message) in MB
	OutputCodec      string  // FourCC of transcoded videos
	DefaultThreshold float64 // Confidence threshold used when a request supplies none
	StaticDirectory  string
	LogDirectory     string
	LogMaxSize       int // Log file size in MB before rotation
}

// Load reads configuration from the environment, after loading a .env file if one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:             getEnvAsInt("PORT", 8000),
		CameraSource:     getEnv("CAMERA_SOURCE", "0"),
		ModelPath:        getEnv("MODEL_PATH", filepath.Join(".", "models", "YOLOv8_Small_RDD.onnx")),
		InferenceWorkers: getEnvAsInt("INFERENCE_WORKERS", 2),
		DatabasePath:     getEnv("DB_PATH", filepath.Join(".", "data", "detections.db")),
		BufferLimit:      getEnvAsInt("BUFFER_LIMIT", 500),
		FlushInterval:    getEnvAsInt("FLUSH_INTERVAL", 5),
		MaxUploadSize:    getEnvAsInt64("MAX_UPLOAD_MB", 512),
		MaxFrameSize:     getEnvAsInt64("MAX_FRAME_MB", 20),
		OutputCodec:      getEnv("OUTPUT_CODEC", "mp4v"),
		DefaultThreshold: getEnvAsFloat("DEFAULT_THRESHOLD", 0.5),
		StaticDirectory:  getEnv("STATIC_DIR", "static"),
		LogDirectory:     getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogMaxSize:       getEnvAsInt("LOG_MAX_SIZE_MB", 10),
	}
}

// FrameLimit returns MaxFrameSize in bytes, 20 MB when unset.
func (c *Config) FrameLimit() int64 {
	if c.MaxFrameSize <= 0 {
		return 20 << 20
	}
	return c.MaxFrameSize << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
