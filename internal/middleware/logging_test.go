package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"roadscan/internal/logger"
)

func TestLoggingMiddleware_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	handler := LoggingMiddleware(logger.NewWriterLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/process", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rr.Code)
	}
	out := buf.String()
	if !strings.Contains(out, "ERROR") || !strings.Contains(out, "POST /process -> 500") {
		t.Errorf("Unexpected log output: %q", out)
	}
}

func TestLoggingMiddleware_DefaultsToOK(t *testing.T) {
	var buf bytes.Buffer
	handler := LoggingMiddleware(logger.NewWriterLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/detections", nil))

	if !strings.Contains(buf.String(), "INFO") || !strings.Contains(buf.String(), "GET /detections -> 200") {
		t.Errorf("Unexpected log output: %q", buf.String())
	}
}

func TestLoggingMiddleware_PassesFlush(t *testing.T) {
	rr := httptest.NewRecorder()
	handler := LoggingMiddleware(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("part"))
		if err := http.NewResponseController(w).Flush(); err != nil {
			t.Errorf("Flush failed: %v", err)
		}
	}))

	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/video_feed", nil))

	if !rr.Flushed {
		t.Error("Expected the underlying writer to be flushed")
	}
}
