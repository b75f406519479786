package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"roadscan/internal/dto"
)

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// writeError replies {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message})
}

// parseThreshold parses a confidence threshold, using def when value is empty.
func parseThreshold(value string, def float64) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}

	threshold, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q", value)
	}
	if threshold < 0 || threshold > 1 {
		return 0, fmt.Errorf("threshold %v outside [0, 1]", threshold)
	}
	return threshold, nil
}

// parseCoordinate parses an optional coordinate within [-limit, limit].
func parseCoordinate(name, value string, limit float64) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v < -limit || v > limit {
		return nil, fmt.Errorf("invalid %s %q", name, value)
	}
	return &v, nil
}
