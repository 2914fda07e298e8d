// Package monitoring sends webhook alerts for failed and degraded runs.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertPipelineFailure     AlertType = "pipeline_failure"
	AlertPipelineFailureRate AlertType = "pipeline_failure_rate"
	AlertEnrichmentErrorRate AlertType = "enrichment_error_rate"
	AlertStaleSnapshot       AlertType = "stale_snapshot"
)

// Config holds alerting thresholds and the webhook destination.
type Config struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	// FailureRateThreshold is the share of failed runs in the lookback window
	// above which an alert fires.
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	// EnrichmentErrorThreshold is the share of rows with an enrichment error
	// in the latest run above which an alert fires.
	EnrichmentErrorThreshold float64 `yaml:"enrichment_error_threshold" mapstructure:"enrichment_error_threshold"`
	StaleAfterHours          int     `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	LookbackWindowHours      int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs        int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	// RepeatAfterHours holds back a threshold alert of the same type until
	// this long after it was last sent. Zero sends on every check.
	RepeatAfterHours int `yaml:"repeat_after_hours" mapstructure:"repeat_after_hours"`
}

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// PipelineFailure builds the alert sent when a run aborts.
func PipelineFailure(runID, phase, message string) Alert {
	return Alert{
		Type:     AlertPipelineFailure,
		Severity: "high",
		Message:  fmt.Sprintf("GMB pipeline failed in phase %s: %s", phase, message),
		Details: map[string]any{
			"run_id": runID,
			"phase":  phase,
		},
		Timestamp: time.Now().UTC(),
	}
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook.
type Alerter struct {
	cfg    Config
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg Config) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook is configured.
func (a *Alerter) Enabled() bool {
	return a != nil && a.cfg.WebhookURL != ""
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.RunsComplete + snap.RunsFailed
	if finished >= 3 && a.cfg.FailureRateThreshold > 0 && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPipelineFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Pipeline failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.FailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RunsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.LatestStores > 0 && a.cfg.EnrichmentErrorThreshold > 0 && snap.LatestErrorRate > a.cfg.EnrichmentErrorThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertEnrichmentErrorRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d of %d stores failed enrichment in the %s snapshot (%.1f%%)",
				snap.LatestErrors, snap.LatestStores, snap.LatestSnapshotDate, snap.LatestErrorRate*100,
			),
			Details: map[string]any{
				"snapshot_date": snap.LatestSnapshotDate,
				"errors":        snap.LatestErrors,
				"stores":        snap.LatestStores,
				"threshold":     a.cfg.EnrichmentErrorThreshold,
			},
			Timestamp: now,
		})
	}

	if a.cfg.StaleAfterHours > 0 {
		limit := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		if snap.LastSuccessAt.IsZero() || snap.CollectedAt.Sub(snap.LastSuccessAt) > limit {
			last := "never"
			if !snap.LastSuccessAt.IsZero() {
				last = snap.LastSuccessAt.Format(time.RFC3339)
			}
			alerts = append(alerts, Alert{
				Type:     AlertStaleSnapshot,
				Severity: "high",
				Message:  fmt.Sprintf("No successful GMB snapshot in the last %dh (last success: %s)", a.cfg.StaleAfterHours, last),
				Details: map[string]any{
					"last_success_at":   last,
					"stale_after_hours": a.cfg.StaleAfterHours,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// Send delivers one alert. It is a no-op when no webhook is configured.
func (a *Alerter) Send(ctx context.Context, alert Alert) error {
	if !a.Enabled() {
		return nil
	}
	if err := a.sendWebhook(ctx, alert); err != nil {
		return err
	}
	zap.L().Info("monitoring: alert sent",
		zap.String("type", string(alert.Type)),
		zap.String("severity", alert.Severity),
	)
	return nil
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
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
