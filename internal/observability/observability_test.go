package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	prev := GlobalLogger
	SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetLogger(prev) })

	ctx := WithCorrelationID(context.Background(), "cid-1")
	l := NewRepoLogger("relationships")
	l.LogCreate(ctx, map[string]any{"id": 3})
	l.LogError(ctx, errors.New("boom"), "delete")

	out := buf.String()
	assert.Contains(t, out, `"table":"relationships"`)
	assert.Contains(t, out, `"operation":"create"`)
	assert.Contains(t, out, `"correlation_id":"cid-1"`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestGenerateCorrelationIDIsUnique(t *testing.T) {
	a, b := GenerateCorrelationID(), GenerateCorrelationID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestRecordDecision(t *testing.T) {
	before := testutil.ToFloat64(VisibilityDecisions.WithLabelValues("upload_test", "deny"))
	RecordDecision("upload_test", false)
	after := testutil.ToFloat64(VisibilityDecisions.WithLabelValues("upload_test", "deny"))
	assert.Equal(t, before+1, after)
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "courtside-test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	span, ctx := NewSpan(context.Background(), "test.op")
	assert.NotNil(t, ctx)
	span.End(errors.New("ignored by noop tracer"))
}
