package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/natal-cli/internal/config"
)

func snapshot(total, failed, degraded int) *MetricsSnapshot {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := &MetricsSnapshot{
		ChartsTotal:    total,
		ChartsFailed:   failed,
		ChartsDegraded: degraded,
		LayerFailures:  map[string]int{},
		WindowStart:    start,
		CollectedAt:    start.Add(5 * time.Minute),
	}
	if completed := total - failed; completed > 0 {
		snap.DegradedRate = float64(degraded) / float64(completed)
	}
	return snap
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		DegradedRateThreshold: 0.25,
		MinCharts:             20,
	})

	alerts := a.Evaluate(snapshot(100, 0, 10))
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_DegradedRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		DegradedRateThreshold: 0.25,
		MinCharts:             20,
	})

	snap := snapshot(40, 0, 16)
	snap.LayerFailures["vsop87"] = 16

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDegradedRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Contains(t, alerts[0].Message, "5m0s")
}

func TestAlerter_Evaluate_ChartFailures(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		DegradedRateThreshold: 0.25,
	})

	alerts := a.Evaluate(snapshot(10, 2, 0))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertChartFailures, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "2 of 10")
}

func TestAlerter_Evaluate_SyntheticFallback(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := snapshot(5, 0, 0)
	snap.LayerFailures["analytic"] = 3

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSyntheticFallback, alerts[0].Type)
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		DegradedRateThreshold: 0.10,
	})

	snap := snapshot(20, 4, 8)
	snap.LayerFailures["analytic"] = 1

	alerts := a.Evaluate(snap)
	assert.Len(t, alerts, 3)

	types := make(map[AlertType]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	assert.True(t, types[AlertDegradedRate])
	assert.True(t, types[AlertChartFailures])
	assert.True(t, types[AlertSyntheticFallback])
}

func TestAlerter_Evaluate_MinimumChartsRequired(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		DegradedRateThreshold: 0.10,
		MinCharts:             20,
	})

	// Only 3 charts, below the minimum.
	alerts := a.Evaluate(snapshot(3, 1, 2))
	assert.Empty(t, alerts)

	assert.Empty(t, a.Evaluate(snapshot(0, 0, 0)))
}

func TestAlerter_Evaluate_ZeroThresholdDisablesRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{DegradedRateThreshold: 0})

	alerts := a.Evaluate(snapshot(50, 0, 50))
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var d Digest
		err := json.NewDecoder(r.Body).Decode(&d)
		require.NoError(t, err)
		assert.Equal(t, "natal", d.Service)
		assert.Len(t, d.Alerts, 2)
		assert.Equal(t, "[high] test alert 1; [medium] test alert 2", d.Text)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertDegradedRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertChartFailures, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(1), received.Load(), "one digest per check")
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "",
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertDegradedRate, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "http://example.com",
	})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertDegradedRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}
