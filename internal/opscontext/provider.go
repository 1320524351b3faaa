// Package opscontext supplies the operational context consumed by the
// threshold adjuster and the anomaly feature vector: deployment, maintenance
// and load-test flags plus time-of-day classification.
package opscontext

import (
	"context"
	"sync"
	"time"

	"github.com/t77yq/alert-triage/internal/model"
)

// Provider supplies the current operational context. Implementations may
// block (remote lookups); callers are expected to wrap them with Safe.
type Provider interface {
	GetCurrentContext(ctx context.Context) (model.OperationalContext, error)
}

// SnapshotProvider holds operator-settable flags and derives time-of-day
// classification at read time.
type SnapshotProvider struct {
	mu        sync.RWMutex
	snapshot  model.OperationalContext
	now       func() time.Time
}

// NewSnapshotProvider creates a provider with the given baseline rates.
func NewSnapshotProvider(baseline model.OperationalContext) *SnapshotProvider {
	return &SnapshotProvider{
		snapshot: baseline,
		now:      time.Now,
	}
}

// SetDeploymentInProgress flips the deployment flag.
func (p *SnapshotProvider) SetDeploymentInProgress(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.DeploymentInProgress = active
}

// SetMaintenanceWindow flips the maintenance-window flag.
func (p *SnapshotProvider) SetMaintenanceWindow(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.MaintenanceWindow = active
}

// SetLoadTestActive flips the load-test flag.
func (p *SnapshotProvider) SetLoadTestActive(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.LoadTestActive = active
}

// GetCurrentContext implements Provider. Time-of-day flags are computed
// fresh on every call.
func (p *SnapshotProvider) GetCurrentContext(ctx context.Context) (model.OperationalContext, error) {
	p.mu.RLock()
	snapshot := p.snapshot
	p.mu.RUnlock()

	now := p.now()
	hour := now.Hour()
	weekday := now.Weekday()

	snapshot.WeekendMode = weekday == time.Saturday || weekday == time.Sunday
	snapshot.PeakHours = hour >= 18 && hour < 22
	snapshot.ChildSleepHours = hour >= 21 || hour < 7
	snapshot.SchoolHours = !snapshot.WeekendMode && hour >= 8 && hour < 15

	return snapshot, nil
}
