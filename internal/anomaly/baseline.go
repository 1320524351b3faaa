package anomaly

import (
	"errors"
	"math"
	"sync"
)

// ErrNotTrained is returned when Score is called before Train.
var ErrNotTrained = errors.New("anomaly model not trained")

// ErrDimensionMismatch is returned when a feature vector does not match the
// training dimensionality.
var ErrDimensionMismatch = errors.New("feature vector dimension mismatch")

// BaselineScorer is the built-in anomaly model: a per-feature z-score
// distance against the training mean, mapped so that ordinary points score
// near or above zero and outliers score negative.
type BaselineScorer struct {
	mu     sync.RWMutex
	means  []float64
	stddev []float64
}

// NewBaselineScorer creates an untrained scorer.
func NewBaselineScorer() *BaselineScorer {
	return &BaselineScorer{}
}

// IsTrained implements Scorer.IsTrained
func (s *BaselineScorer) IsTrained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.means) > 0
}

// Train implements Scorer.Train. Re-training replaces the previous fit.
func (s *BaselineScorer) Train(samples [][]float64) error {
	if len(samples) == 0 {
		return errors.New("no training samples")
	}

	dims := len(samples[0])
	means := make([]float64, dims)
	stddev := make([]float64, dims)

	count := 0
	for _, sample := range samples {
		if len(sample) != dims {
			continue
		}
		for i, v := range sample {
			means[i] += v
		}
		count++
	}
	if count == 0 {
		return errors.New("no usable training samples")
	}
	for i := range means {
		means[i] /= float64(count)
	}

	for _, sample := range samples {
		if len(sample) != dims {
			continue
		}
		for i, v := range sample {
			d := v - means[i]
			stddev[i] += d * d
		}
	}
	for i := range stddev {
		stddev[i] = math.Sqrt(stddev[i] / float64(count))
	}

	s.mu.Lock()
	s.means = means
	s.stddev = stddev
	s.mu.Unlock()

	return nil
}

// Score implements Scorer.Score. The score is 1 - avgZ/2 clamped to [-1, 1]:
// a point two deviations from the mean scores 0, four deviations scores -1.
func (s *BaselineScorer) Score(features []float64) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.means) == 0 {
		return 0, ErrNotTrained
	}
	if len(features) != len(s.means) {
		return 0, ErrDimensionMismatch
	}

	var total float64
	for i, v := range features {
		sd := s.stddev[i]
		if sd == 0 {
			sd = 1
		}
		total += math.Abs(v-s.means[i]) / sd
	}
	avgZ := total / float64(len(features))

	score := 1 - avgZ/2
	if score < -1 {
		score = -1
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}
