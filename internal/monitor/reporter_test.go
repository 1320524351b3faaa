package monitor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/testutil"
)

type stubSource struct{}

func (stubSource) GetMetrics() Snapshot {
	return Snapshot{TotalAlerts: 7, FiredAlerts: 4, SuppressedAlerts: 3}
}

func TestReporter_PublishesReports(t *testing.T) {
	js, cleanup := testutil.StartJetStream(t)
	t.Cleanup(cleanup)

	reporter := NewReporter(js, stubSource{}, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, reporter.Start(context.Background()))
	t.Cleanup(reporter.Stop)

	reports := make(chan []byte, 4)
	sub, err := js.Subscribe("metrics.triage", func(msg *nats.Msg) {
		reports <- msg.Data
		msg.Ack()
	})
	require.NoError(t, err)
	t.Cleanup(func() { sub.Unsubscribe() })

	var data []byte
	select {
	case data = <-reports:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for metrics report")
	}

	var report struct {
		Timestamp time.Time `json:"timestamp"`
		Engine    Snapshot  `json:"engine"`
	}
	require.NoError(t, json.Unmarshal(data, &report))
	assert.False(t, report.Timestamp.IsZero())
	assert.Equal(t, int64(7), report.Engine.TotalAlerts)
	assert.Equal(t, int64(4), report.Engine.FiredAlerts)
}
