package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/storage"
)

// Retrainer refits the anomaly model from stored feature vectors on a cron
// schedule and prunes old history.
type Retrainer struct {
	logger    *zap.Logger
	cron      *cron.Cron
	scorer    Scorer
	store     storage.HistoryStore
	maxSample int
	retention time.Duration
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// NewRetrainer creates a retrainer. maxSample bounds how many stored vectors
// one training pass reads; retention bounds how long history is kept.
func NewRetrainer(scorer Scorer, store storage.HistoryStore, maxSample int, retention time.Duration, logger *zap.Logger) *Retrainer {
	named := logger.Named("retrainer")
	cronOptions := []cron.Option{
		cron.WithChain(cron.Recover(&cronLogger{logger: named})),
	}

	return &Retrainer{
		logger:    named,
		cron:      cron.New(cronOptions...),
		scorer:    scorer,
		store:     store,
		maxSample: maxSample,
		retention: retention,
	}
}

// Start registers the training and cleanup schedules and starts the cron
// runner. trainSpec and cleanupSpec are standard cron expressions.
func (r *Retrainer) Start(ctx context.Context, trainSpec, cleanupSpec string) error {
	if _, err := r.cron.AddFunc(trainSpec, func() { r.Retrain(ctx) }); err != nil {
		return fmt.Errorf("invalid training schedule: %w", err)
	}
	if _, err := r.cron.AddFunc(cleanupSpec, func() { r.cleanup(ctx) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule: %w", err)
	}

	r.cron.Start()
	r.logger.Info("Retrainer started",
		zap.String("train_schedule", trainSpec),
		zap.String("cleanup_schedule", cleanupSpec))
	return nil
}

// Stop stops the cron runner and waits for running jobs.
func (r *Retrainer) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Retrain runs one training pass immediately. Passes with too few samples
// are skipped; the gate stays closed until the model has enough data.
func (r *Retrainer) Retrain(ctx context.Context) {
	samples, err := r.store.FeatureSamples(ctx, r.maxSample)
	if err != nil {
		r.logger.Error("Failed to load feature samples", zap.Error(err))
		return
	}

	if len(samples) < MinTrainingSamples {
		r.logger.Debug("Not enough samples to train",
			zap.Int("samples", len(samples)),
			zap.Int("required", MinTrainingSamples))
		return
	}

	if err := r.scorer.Train(samples); err != nil {
		r.logger.Error("Failed to train anomaly model", zap.Error(err))
		return
	}

	r.logger.Info("Anomaly model retrained", zap.Int("samples", len(samples)))
}

func (r *Retrainer) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-r.retention)
	if err := r.store.DeleteBefore(ctx, cutoff); err != nil {
		r.logger.Error("Failed to cleanup alert history", zap.Error(err))
	}
}
