package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(Config{FailureRateThreshold: 0.5, EnrichmentErrorThreshold: 0.2, StaleAfterHours: 36})
	now := time.Now().UTC()

	alerts := a.Evaluate(&MetricsSnapshot{
		RunsComplete:    5,
		RunsFailed:      1,
		FailRate:        1.0 / 6,
		LatestStores:    100,
		LatestErrors:    3,
		LatestErrorRate: 0.03,
		LastSuccessAt:   now.Add(-2 * time.Hour),
		CollectedAt:     now,
		LookbackHours:   168,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(Config{FailureRateThreshold: 0.25})

	alerts := a.Evaluate(&MetricsSnapshot{
		RunsComplete:  2,
		RunsFailed:    2,
		FailRate:      0.5,
		LookbackHours: 24,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertPipelineFailureRate, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "50.0%")
}

func TestAlerter_Evaluate_FailureRateNeedsEnoughRuns(t *testing.T) {
	a := NewAlerter(Config{FailureRateThreshold: 0.25})

	alerts := a.Evaluate(&MetricsSnapshot{RunsFailed: 1, FailRate: 1})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_EnrichmentErrors(t *testing.T) {
	a := NewAlerter(Config{EnrichmentErrorThreshold: 0.1})

	alerts := a.Evaluate(&MetricsSnapshot{
		LatestSnapshotDate: "2025-01-31",
		LatestStores:       40,
		LatestErrors:       8,
		LatestErrorRate:    0.2,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertEnrichmentErrorRate, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "8 of 40")
}

func TestAlerter_Evaluate_Stale(t *testing.T) {
	a := NewAlerter(Config{StaleAfterHours: 24})
	now := time.Now().UTC()

	alerts := a.Evaluate(&MetricsSnapshot{CollectedAt: now, LastSuccessAt: now.Add(-48 * time.Hour)})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleSnapshot, alerts[0].Type)

	alerts = a.Evaluate(&MetricsSnapshot{CollectedAt: now})
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Message, "never")
}

func TestPipelineFailure(t *testing.T) {
	alert := PipelineFailure("run-1", "input", "spreadsheet not found")
	assert.Equal(t, AlertPipelineFailure, alert.Type)
	assert.Equal(t, "high", alert.Severity)
	assert.Contains(t, alert.Message, "input")
	assert.Contains(t, alert.Message, "spreadsheet not found")
	assert.Equal(t, "run-1", alert.Details["run_id"])
}

func TestAlerter_Send(t *testing.T) {
	var received Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(Config{WebhookURL: srv.URL})
	require.NoError(t, a.Send(context.Background(), PipelineFailure("r", "enrich", "boom")))
	assert.Equal(t, AlertPipelineFailure, received.Type)
}

func TestAlerter_Send_NoWebhook(t *testing.T) {
	a := NewAlerter(Config{})
	assert.False(t, a.Enabled())
	assert.NoError(t, a.Send(context.Background(), PipelineFailure("r", "p", "m")))

	var nilAlerter *Alerter
	assert.NoError(t, nilAlerter.Send(context.Background(), Alert{}))
}
