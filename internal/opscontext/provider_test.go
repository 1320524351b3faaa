package opscontext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
)

func TestSnapshotProvider_TimeOfDayFlags(t *testing.T) {
	tests := []struct {
		name       string
		at         time.Time
		weekend    bool
		peak       bool
		childSleep bool
		school     bool
	}{
		{
			name:   "weekday school hours",
			at:     time.Date(2025, 3, 4, 10, 0, 0, 0, time.Local), // Tuesday
			school: true,
		},
		{
			name: "weekday evening peak",
			at:   time.Date(2025, 3, 4, 19, 0, 0, 0, time.Local),
			peak: true,
		},
		{
			name:       "late night",
			at:         time.Date(2025, 3, 4, 23, 0, 0, 0, time.Local),
			childSleep: true,
		},
		{
			name:       "early morning",
			at:         time.Date(2025, 3, 4, 5, 0, 0, 0, time.Local),
			childSleep: true,
		},
		{
			name:    "saturday noon",
			at:      time.Date(2025, 3, 8, 12, 0, 0, 0, time.Local),
			weekend: true,
		},
		{
			name:       "peak overlaps sleep at 21",
			at:         time.Date(2025, 3, 4, 21, 0, 0, 0, time.Local),
			peak:       true,
			childSleep: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewSnapshotProvider(model.OperationalContext{})
			provider.now = func() time.Time { return tt.at }

			octx, err := provider.GetCurrentContext(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.weekend, octx.WeekendMode)
			assert.Equal(t, tt.peak, octx.PeakHours)
			assert.Equal(t, tt.childSleep, octx.ChildSleepHours)
			assert.Equal(t, tt.school, octx.SchoolHours)
		})
	}
}

func TestSnapshotProvider_OperatorFlags(t *testing.T) {
	provider := NewSnapshotProvider(model.OperationalContext{TypicalErrorRate: 0.02})
	provider.SetDeploymentInProgress(true)
	provider.SetMaintenanceWindow(true)
	provider.SetLoadTestActive(true)

	octx, err := provider.GetCurrentContext(context.Background())
	require.NoError(t, err)
	assert.True(t, octx.DeploymentInProgress)
	assert.True(t, octx.MaintenanceWindow)
	assert.True(t, octx.LoadTestActive)
	assert.InDelta(t, 0.02, octx.TypicalErrorRate, 1e-9)

	provider.SetDeploymentInProgress(false)
	octx, err = provider.GetCurrentContext(context.Background())
	require.NoError(t, err)
	assert.False(t, octx.DeploymentInProgress)
}

type failingProvider struct {
	err   error
	delay time.Duration
}

func (p *failingProvider) GetCurrentContext(ctx context.Context) (model.OperationalContext, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return model.OperationalContext{}, p.err
	}
	return model.OperationalContext{DeploymentInProgress: true}, nil
}

func TestSafe_PassesThrough(t *testing.T) {
	safe := NewSafe(&failingProvider{}, 0, zap.NewNop())

	octx, err := safe.GetCurrentContext(context.Background())
	require.NoError(t, err)
	assert.True(t, octx.DeploymentInProgress)
}

func TestSafe_FallsBackOnError(t *testing.T) {
	safe := NewSafe(&failingProvider{err: errors.New("lookup failed")}, 0, zap.NewNop())

	octx, err := safe.GetCurrentContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OperationalContext{}, octx)
}

func TestSafe_FallsBackOnTimeout(t *testing.T) {
	safe := NewSafe(&failingProvider{delay: time.Second}, 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	octx, err := safe.GetCurrentContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OperationalContext{}, octx)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
