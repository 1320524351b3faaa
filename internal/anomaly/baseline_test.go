package anomaly

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func trainedScorer(t *testing.T) *BaselineScorer {
	t.Helper()
	scorer := NewBaselineScorer()
	samples := make([][]float64, 0, 200)
	for i := 0; i < 200; i++ {
		samples = append(samples, []float64{10 + float64(i%3), 100})
	}
	require.NoError(t, scorer.Train(samples))
	return scorer
}

func TestBaselineScorer_UntrainedErrors(t *testing.T) {
	scorer := NewBaselineScorer()
	assert.False(t, scorer.IsTrained())

	_, err := scorer.Score([]float64{1, 2})
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestBaselineScorer_DimensionMismatch(t *testing.T) {
	scorer := trainedScorer(t)

	_, err := scorer.Score([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBaselineScorer_NormalVsOutlier(t *testing.T) {
	scorer := trainedScorer(t)
	require.True(t, scorer.IsTrained())

	normal, err := scorer.Score([]float64{11, 100})
	require.NoError(t, err)
	assert.Greater(t, normal, 0.0)

	outlier, err := scorer.Score([]float64{500, 100})
	require.NoError(t, err)
	assert.Less(t, outlier, anomalyThreshold)
	assert.GreaterOrEqual(t, outlier, -1.0)
}

func TestBaselineScorer_EmptyTraining(t *testing.T) {
	scorer := NewBaselineScorer()
	assert.Error(t, scorer.Train(nil))
	assert.False(t, scorer.IsTrained())
}

func TestBaselineScorer_SkipsMismatchedSamples(t *testing.T) {
	scorer := NewBaselineScorer()
	err := scorer.Train([][]float64{
		{10, 100},
		{11, 100, 7},
		{12, 100},
	})
	require.NoError(t, err)

	_, err = scorer.Score([]float64{10, 100})
	assert.NoError(t, err)
}

type slowScorer struct {
	delay time.Duration
	score float64
	err   error
}

func (s *slowScorer) IsTrained() bool { return true }

func (s *slowScorer) Train([][]float64) error { return nil }

func (s *slowScorer) Score([]float64) (float64, error) {
	time.Sleep(s.delay)
	return s.score, s.err
}

func TestGate_SuppressesNormalBreach(t *testing.T) {
	gate := NewGate(&slowScorer{score: 0.8}, 0, zap.NewNop())

	decision := gate.Evaluate(context.Background(), []float64{1})
	assert.False(t, decision.ShouldFire)
	assert.InDelta(t, 0.8, decision.Confidence, 1e-9)
}

func TestGate_FiresOnAnomaly(t *testing.T) {
	gate := NewGate(&slowScorer{score: -0.6}, 0, zap.NewNop())

	decision := gate.Evaluate(context.Background(), []float64{1})
	assert.True(t, decision.ShouldFire)
	assert.InDelta(t, 0.6, decision.Confidence, 1e-9)
}

func TestGate_FailsOpenOnError(t *testing.T) {
	gate := NewGate(&slowScorer{err: errors.New("model offline")}, 0, zap.NewNop())

	decision := gate.Evaluate(context.Background(), []float64{1})
	assert.True(t, decision.ShouldFire)
	assert.Equal(t, 1.0, decision.Confidence)
}

func TestGate_FailsOpenOnTimeout(t *testing.T) {
	gate := NewGate(&slowScorer{delay: time.Second, score: 0.9}, 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	decision := gate.Evaluate(context.Background(), []float64{1})
	assert.True(t, decision.ShouldFire)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
