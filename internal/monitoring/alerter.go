package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/natal-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertDegradedRate      AlertType = "ephemeris_degraded_rate"
	AlertChartFailures     AlertType = "chart_failures"
	AlertSyntheticFallback AlertType = "synthetic_fallback"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Nothing is evaluated until the window holds at least MinCharts charts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	if snap.ChartsTotal == 0 || snap.ChartsTotal < a.cfg.MinCharts {
		return alerts
	}
	now := time.Now().UTC()
	window := snap.CollectedAt.Sub(snap.WindowStart).Round(time.Second)

	if a.cfg.DegradedRateThreshold > 0 && snap.DegradedRate > a.cfg.DegradedRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDegradedRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Ephemeris degraded rate %.1f%% exceeds threshold %.1f%% (%d of %d charts in last %s)",
				snap.DegradedRate*100, a.cfg.DegradedRateThreshold*100,
				snap.ChartsDegraded, snap.ChartsTotal-snap.ChartsFailed, window,
			),
			Details: map[string]any{
				"degraded_rate":  snap.DegradedRate,
				"threshold":      a.cfg.DegradedRateThreshold,
				"degraded":       snap.ChartsDegraded,
				"layer_failures": snap.LayerFailures,
			},
			Timestamp: now,
		})
	}

	if snap.ChartsFailed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertChartFailures,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d of %d chart request(s) failed in last %s",
				snap.ChartsFailed, snap.ChartsTotal, window,
			),
			Details: map[string]any{
				"failed": snap.ChartsFailed,
				"total":  snap.ChartsTotal,
			},
			Timestamp: now,
		})
	}

	// Every real layer failed at least once when synthetic served a chart.
	if n := snap.LayerFailures["analytic"]; n > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertSyntheticFallback,
			Severity: "high",
			Message: fmt.Sprintf(
				"Analytic ephemeris failed %d time(s) in last %s; charts fell back to synthetic positions",
				n, window,
			),
			Details: map[string]any{
				"analytic_failures": n,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// Digest is the webhook payload: every alert raised by one check. Text is a
// one-line summary so chat webhooks that only read "text" still show
// something useful.
type Digest struct {
	Service string  `json:"service"`
	Text    string  `json:"text"`
	Alerts  []Alert `json:"alerts"`
}

func newDigest(alerts []Alert) Digest {
	msgs := make([]string, len(alerts))
	for i, al := range alerts {
		msgs[i] = fmt.Sprintf("[%s] %s", al.Severity, al.Message)
	}
	return Digest{
		Service: "natal",
		Text:    strings.Join(msgs, "; "),
		Alerts:  alerts,
	}
}

// SendAlerts posts the alerts to the configured webhook as a single digest.
// Returns the number of alerts delivered, which is all or none.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	types := make([]string, len(alerts))
	for i, al := range alerts {
		types[i] = string(al.Type)
	}
	if err := a.post(ctx, newDigest(alerts)); err != nil {
		zap.L().Error("monitoring: failed to send alerts",
			zap.Strings("types", types),
			zap.Error(err),
		)
		return 0
	}
	zap.L().Info("monitoring: alerts sent", zap.Strings("types", types))
	return len(alerts)
}

func (a *Alerter) post(ctx context.Context, d Digest) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal digest")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
