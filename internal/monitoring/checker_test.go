package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
)

func TestChecker_Check_SendsStaleAlert(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := Config{WebhookURL: srv.URL, StaleAfterHours: 24, LookbackWindowHours: 24}
	old := model.Run{Status: model.RunStatusComplete, CreatedAt: time.Now().Add(-72 * time.Hour), UpdatedAt: time.Now().Add(-72 * time.Hour)}
	checker := NewChecker(NewCollector(fakeRuns{runs: []model.Run{old}}), NewAlerter(cfg), cfg)

	sent := checker.Check(context.Background(), zap.NewNop())
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), hits.Load())
}

func TestChecker_Run_StopsOnCancel(t *testing.T) {
	cfg := Config{CheckIntervalSecs: 3600}
	checker := NewChecker(NewCollector(fakeRuns{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checker did not stop")
	}
}

func staleHistory() fakeRuns {
	old := time.Now().Add(-72 * time.Hour)
	return fakeRuns{runs: []model.Run{{Status: model.RunStatusComplete, SnapshotDate: "2025-01-01", CreatedAt: old, UpdatedAt: old}}}
}

func TestChecker_Check_HoldsBackRepeats(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := Config{WebhookURL: srv.URL, StaleAfterHours: 24, LookbackWindowHours: 24, RepeatAfterHours: 24}
	checker := NewChecker(NewCollector(staleHistory()), NewAlerter(cfg), cfg)
	now := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	checker.now = func() time.Time { return now }

	assert.Equal(t, 1, checker.Check(context.Background(), zap.NewNop()))
	assert.Equal(t, 0, checker.Check(context.Background(), zap.NewNop()))

	now = now.Add(25 * time.Hour)
	assert.Equal(t, 1, checker.Check(context.Background(), zap.NewNop()))
	assert.Equal(t, int32(2), hits.Load())
}

func TestChecker_Check_RetriesFailedSend(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := Config{WebhookURL: srv.URL, StaleAfterHours: 24, LookbackWindowHours: 24, RepeatAfterHours: 24}
	checker := NewChecker(NewCollector(staleHistory()), NewAlerter(cfg), cfg)

	assert.Equal(t, 0, checker.Check(context.Background(), zap.NewNop()))
	assert.Equal(t, 1, checker.Check(context.Background(), zap.NewNop()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestChecker_Check_CollectError(t *testing.T) {
	cfg := Config{WebhookURL: "http://unused", StaleAfterHours: 24}
	checker := NewChecker(NewCollector(fakeRuns{err: errors.New("db down")}), NewAlerter(cfg), cfg)

	assert.Equal(t, 0, checker.Check(context.Background(), zap.NewNop()))
}

func TestChecker_Run_ChecksAtStartup(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := Config{WebhookURL: srv.URL, StaleAfterHours: 24, LookbackWindowHours: 24, CheckIntervalSecs: 3600}
	checker := NewChecker(NewCollector(staleHistory()), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return hits.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
