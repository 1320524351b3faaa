package opscontext

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
)

// DefaultTimeout bounds the context-provider call. A provider outage must
// never delay or suppress alert processing.
const DefaultTimeout = 200 * time.Millisecond

// Safe wraps a Provider with a timeout and an all-flags-false fallback.
// From the caller's perspective it never fails.
type Safe struct {
	logger   *zap.Logger
	provider Provider
	timeout  time.Duration
}

// NewSafe wraps provider. A non-positive timeout selects DefaultTimeout.
func NewSafe(provider Provider, timeout time.Duration, logger *zap.Logger) *Safe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Safe{
		logger:   logger.Named("opscontext"),
		provider: provider,
		timeout:  timeout,
	}
}

// GetCurrentContext implements Provider. On provider failure or timeout it
// returns the zero-value context so no alert is auto-suppressed by an
// unreachable provider.
func (s *Safe) GetCurrentContext(ctx context.Context) (model.OperationalContext, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		snapshot model.OperationalContext
		err      error
	}

	resultCh := make(chan result, 1)
	go func() {
		snapshot, err := s.provider.GetCurrentContext(callCtx)
		resultCh <- result{snapshot: snapshot, err: err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			s.logger.Warn("Context provider failed, using all-false context", zap.Error(r.err))
			return model.OperationalContext{}, nil
		}
		return r.snapshot, nil
	case <-callCtx.Done():
		s.logger.Warn("Context provider timed out, using all-false context",
			zap.Duration("timeout", s.timeout))
		return model.OperationalContext{}, nil
	}
}
