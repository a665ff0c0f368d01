package embedding

import (
	"errors"
	"fmt"
	"math"
)

var ErrZeroVector = errors.New("embedding has zero magnitude")

// normalizeVector scales vec to unit length so 1 - cosine distance stays in [0,1]
// for the similarities we store.
func normalizeVector(vec []float32) ([]float32, error) {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 || math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return nil, ErrZeroVector
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized, nil
}

func checkDimension(vec []float32, want int) error {
	if want > 0 && len(vec) != want {
		return fmt.Errorf("embedding dimension %d, expected %d", len(vec), want)
	}
	return nil
}
