package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
)

func alertAt(id, name string, severity model.Severity, ts time.Time) *model.Alert {
	return &model.Alert{
		ID:        id,
		Name:      name,
		Severity:  severity,
		Timestamp: ts,
		State:     model.AlertStateNew,
	}
}

func TestCorrelate_RootCauseTieBreak(t *testing.T) {
	engine := NewEngine([]*model.CorrelationRule{
		{Name: "cluster", Patterns: []string{"db"}, MinMatches: 2},
	}, 0, zap.NewNop())

	t0 := time.Now()
	a := alertAt("a", "db_timeout", model.SeverityHigh, t0)
	b := alertAt("b", "db_pool_exhausted", model.SeverityCritical, t0)
	c := alertAt("c", "db_slow", model.SeverityLow, t0.Add(time.Second))

	engine.Correlate(c, []*model.Alert{a, b})

	// Same timestamp: lower severity value wins, so CRITICAL beats HIGH.
	assert.True(t, b.IsRootCauseCandidate)
	assert.False(t, a.IsRootCauseCandidate)
	assert.False(t, c.IsRootCauseCandidate)
	assert.Contains(t, a.CorrelatedAlertIDs, "b")
	assert.Contains(t, c.CorrelatedAlertIDs, "b")
	assert.Empty(t, b.CorrelatedAlertIDs)
}

func TestCorrelate_EarliestWins(t *testing.T) {
	engine := NewEngine([]*model.CorrelationRule{
		{Name: "cluster", Patterns: []string{"db"}, MinMatches: 2},
	}, 0, zap.NewNop())

	t0 := time.Now()
	early := alertAt("early", "db_timeout", model.SeverityLow, t0.Add(-time.Minute))
	late := alertAt("late", "db_pool", model.SeverityCritical, t0)

	engine.Correlate(late, []*model.Alert{early})

	assert.True(t, early.IsRootCauseCandidate)
	assert.Contains(t, late.CorrelatedAlertIDs, "early")
}

func TestCorrelate_MinMatchesNotReached(t *testing.T) {
	engine := NewEngine([]*model.CorrelationRule{
		{Name: "cluster", Patterns: []string{"db"}, MinMatches: 3},
	}, 0, zap.NewNop())

	t0 := time.Now()
	a := alertAt("a", "db_timeout", model.SeverityHigh, t0)
	b := alertAt("b", "db_pool", model.SeverityHigh, t0)

	engine.Correlate(b, []*model.Alert{a})

	assert.False(t, a.IsRootCauseCandidate)
	assert.False(t, b.IsRootCauseCandidate)
	assert.Empty(t, a.CorrelatedAlertIDs)
	assert.Empty(t, b.CorrelatedAlertIDs)
}

func TestCorrelate_WindowExcludesStaleAlerts(t *testing.T) {
	engine := NewEngine([]*model.CorrelationRule{
		{Name: "cluster", Patterns: []string{"db"}, MinMatches: 2},
	}, time.Minute, zap.NewNop())

	t0 := time.Now()
	stale := alertAt("stale", "db_timeout", model.SeverityHigh, t0.Add(-10*time.Minute))
	fresh := alertAt("fresh", "db_pool", model.SeverityHigh, t0)

	engine.Correlate(fresh, []*model.Alert{stale})

	assert.False(t, stale.IsRootCauseCandidate)
	assert.False(t, fresh.IsRootCauseCandidate)
}

func TestCorrelate_MultipleRulesKeepAllLinks(t *testing.T) {
	engine := NewEngine([]*model.CorrelationRule{
		{Name: "db", Patterns: []string{"database", "response_time"}, MinMatches: 2},
		{Name: "resources", Patterns: []string{"memory", "response_time"}, MinMatches: 2},
	}, 0, zap.NewNop())

	t0 := time.Now()
	db := alertAt("db", "database_down", model.SeverityCritical, t0.Add(-2*time.Second))
	memory := alertAt("mem", "high_memory_usage", model.SeverityHigh, t0.Add(-time.Second))
	slow := alertAt("slow", "slow_response_time", model.SeverityMedium, t0)

	engine.Correlate(slow, []*model.Alert{db, memory})

	// slow matched both rules and carries a link per cluster.
	require.Len(t, slow.CorrelatedAlertIDs, 2)
	assert.Contains(t, slow.CorrelatedAlertIDs, "db")
	assert.Contains(t, slow.CorrelatedAlertIDs, "mem")
	assert.True(t, db.IsRootCauseCandidate)
	assert.True(t, memory.IsRootCauseCandidate)
}

func TestCorrelate_NoDuplicateLinks(t *testing.T) {
	engine := NewEngine([]*model.CorrelationRule{
		{Name: "a", Patterns: []string{"db"}, MinMatches: 2},
		{Name: "b", Patterns: []string{"db"}, MinMatches: 2},
	}, 0, zap.NewNop())

	t0 := time.Now()
	root := alertAt("root", "db_down", model.SeverityCritical, t0.Add(-time.Second))
	child := alertAt("child", "db_slow", model.SeverityHigh, t0)

	engine.Correlate(child, []*model.Alert{root})

	assert.Equal(t, []string{"root"}, child.CorrelatedAlertIDs)
}
