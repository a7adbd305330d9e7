package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sasya-arogya/engine/pkg/observability"
)

// newTestObs builds a provider whose instruments report into a manual
// reader, so tests can assert on recorded values.
func newTestObs(t *testing.T) (*observability.Provider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	obs := &observability.Provider{Meter: meter}
	var err error
	obs.ToolCalls, err = meter.Int64Counter("workflow.tool.calls")
	require.NoError(t, err)
	obs.ToolErrors, err = meter.Int64Counter("workflow.tool.errors")
	require.NoError(t, err)
	obs.OutOfScopeCount, err = meter.Int64Counter("workflow.out_of_scope")
	require.NoError(t, err)
	return obs, reader
}

func counterValue(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestToolCallCountersRecorded(t *testing.T) {
	obs, reader := newTestObs(t)
	deps := newTestDeps(t, testServices{classifier: classifierStub("wheat_rust", 0.8)})
	deps.Obs = obs
	n := NewClassifying(deps)

	s := newTurnState("check my plant")
	s.UserImage = "base64-image"
	require.NoError(t, n.Execute(context.Background(), s))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(1), counterValue(rm, "workflow.tool.calls"))
	assert.Zero(t, counterValue(rm, "workflow.tool.errors"))
}

func TestToolErrorCounterRecordedOnFailure(t *testing.T) {
	obs, reader := newTestObs(t)
	// A nil handler points the classifier at a closed server.
	deps := newTestDeps(t, testServices{})
	deps.Obs = obs
	n := NewClassifying(deps)

	s := newTurnState("check my plant")
	s.UserImage = "base64-image"
	require.NoError(t, n.Execute(context.Background(), s))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(1), counterValue(rm, "workflow.tool.calls"))
	assert.Equal(t, int64(1), counterValue(rm, "workflow.tool.errors"))
}
