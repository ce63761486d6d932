package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayMetrics(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	depth := func(ctx context.Context) (int, int, error) { return 3, 1, nil }

	rm, err := NewReplayMetrics(provider.MeterProvider(), "test_app", depth)
	require.NoError(t, err)

	ctx := context.Background()
	rm.RecordReplay(ctx, "COLLECT", "succeeded")
	rm.RecordReplay(ctx, "COLLECT", "succeeded")
	rm.RecordReplay(ctx, "WRITE_OFF", "rejected")

	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	output := w.Body.String()

	assert.Regexp(t, `test_app_replay_attempts_total\{[^}]*operation_type="COLLECT"[^}]*outcome="succeeded"[^}]*\} 2`, output)
	assert.Regexp(t, `test_app_replay_attempts_total\{[^}]*operation_type="WRITE_OFF"[^}]*outcome="rejected"[^}]*\} 1`, output)
	assert.Regexp(t, `test_app_queue_depth\{[^}]*state="pending"[^}]*\} 3`, output)
	assert.Regexp(t, `test_app_queue_depth\{[^}]*state="dead_lettered"[^}]*\} 1`, output)
}

func TestNewNoOpReplayMetrics(t *testing.T) {
	rm := NewNoOpReplayMetrics()
	assert.IsType(t, &NoOpReplayMetrics{}, rm)
	rm.RecordReplay(context.Background(), "CREATE", "succeeded")
}
