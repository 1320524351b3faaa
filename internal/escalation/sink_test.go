package escalation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/model"
)

type errorSink struct{ err error }

func (s *errorSink) Escalate(context.Context, *model.Alert) error { return s.err }

func TestMultiSink_DeliversToAll(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	multi := MultiSink{first, second}

	err := multi.Escalate(context.Background(), activeAlert("m-1", model.SeverityHigh))
	assert.NoError(t, err)
	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
}

func TestMultiSink_CollectsFailures(t *testing.T) {
	ok := &recordingSink{}
	broken := &errorSink{err: errors.New("smtp unreachable")}
	multi := MultiSink{broken, ok}

	err := multi.Escalate(context.Background(), activeAlert("m-2", model.SeverityHigh))
	assert.ErrorContains(t, err, "smtp unreachable")
	// The healthy sink still got the alert.
	assert.Equal(t, 1, ok.count())
}

func TestEmailSink_RequiresRecipients(t *testing.T) {
	sink := NewEmailSink(EmailConfig{Host: "localhost", Port: 25}, zap.NewNop())

	err := sink.Escalate(context.Background(), activeAlert("m-3", model.SeverityCritical))
	assert.Error(t, err)
}
