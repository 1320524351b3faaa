// Package anomaly holds the statistical gate that separates unusual alert
// breaches from known recurring ones. The model itself is opaque: anything
// satisfying Scorer can be plugged in.
package anomaly

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
)

// Scorer is the train/score contract of the anomaly model. More negative
// scores indicate stronger anomalies.
type Scorer interface {
	IsTrained() bool
	Score(features []float64) (float64, error)
	Train(samples [][]float64) error
}

const (
	// anomalyThreshold marks the score below which a breach counts as a
	// genuine anomaly worth firing.
	anomalyThreshold = -0.1

	// DefaultScoreTimeout bounds one Score call.
	DefaultScoreTimeout = 200 * time.Millisecond

	// MinTrainingSamples is the history size required before the gate is
	// consulted at all.
	MinTrainingSamples = 100
)

// Features builds the model feature vector for one alert under the given
// context. recentCount is the number of same-name occurrences in the last
// hour.
func Features(alert *model.Alert, octx model.OperationalContext, recentCount int) []float64 {
	ratio := 0.0
	if alert.Threshold > 0 {
		ratio = alert.MetricValue / alert.Threshold
	}
	return []float64{
		alert.MetricValue,
		alert.Threshold,
		ratio,
		float64(alert.Timestamp.Hour()),
		float64(alert.Timestamp.Weekday()),
		boolFeature(octx.DeploymentInProgress),
		boolFeature(octx.MaintenanceWindow),
		boolFeature(octx.PeakHours),
		float64(recentCount),
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Decision is the outcome of one gate evaluation.
type Decision struct {
	ShouldFire bool
	Score      float64
	Confidence float64
}

// Gate evaluates alerts against a Scorer with a bounded call and a fail-open
// default: on any scorer error or timeout the alert fires.
type Gate struct {
	logger  *zap.Logger
	scorer  Scorer
	timeout time.Duration
}

// NewGate creates a gate around scorer. A non-positive timeout selects
// DefaultScoreTimeout.
func NewGate(scorer Scorer, timeout time.Duration, logger *zap.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultScoreTimeout
	}
	return &Gate{
		logger:  logger.Named("anomaly-gate"),
		scorer:  scorer,
		timeout: timeout,
	}
}

// Ready reports whether the underlying model is trained.
func (g *Gate) Ready() bool {
	return g.scorer.IsTrained()
}

// Evaluate scores the feature vector and decides whether the alert should
// fire. A genuine anomaly fires; a normal, expected-magnitude breach is
// suppressed as a likely false positive. Correctness under uncertainty
// favors over-alerting: scorer errors and timeouts fire.
func (g *Gate) Evaluate(ctx context.Context, features []float64) Decision {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		score float64
		err   error
	}

	resultCh := make(chan result, 1)
	go func() {
		score, err := g.scorer.Score(features)
		resultCh <- result{score: score, err: err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			g.logger.Warn("Scorer failed, failing open", zap.Error(r.err))
			return Decision{ShouldFire: true, Confidence: 1}
		}
		confidence := r.score
		if confidence < 0 {
			confidence = -confidence
		}
		if confidence > 1 {
			confidence = 1
		}
		return Decision{
			ShouldFire: r.score < anomalyThreshold,
			Score:      r.score,
			Confidence: confidence,
		}
	case <-callCtx.Done():
		g.logger.Warn("Scorer timed out, failing open",
			zap.Duration("timeout", g.timeout))
		return Decision{ShouldFire: true, Confidence: 1}
	}
}
