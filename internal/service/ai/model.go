package ai

import (
	"roadscan/internal/models"

	"gocv.io/x/gocv"
)

// InputSize is the square edge, in pixels, of the image fed to the model.
const InputSize = 640

// Model runs detection on a prepared InputSize x InputSize BGR image and
// returns candidates in that image's coordinates. Implementations need not be
// safe for concurrent use.
type Model interface {
	Predict(input gocv.Mat, threshold float64) ([]models.Candidate, error)
}

// ModelFunc adapts a plain function to the Model interface.
type ModelFunc func(input gocv.Mat, threshold float64) ([]models.Candidate, error)

// Predict calls f(input, threshold).
func (f ModelFunc) Predict(input gocv.Mat, threshold float64) ([]models.Candidate, error) {
	return f(input, threshold)
}
