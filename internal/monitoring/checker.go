package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Checker watches run history from inside the serve process. Each alert
// type is sent at most once per RepeatAfterHours.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       Config
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[AlertType]time.Time
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg Config) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		now:       time.Now,
		lastSent:  make(map[AlertType]time.Time),
	}
}

// Run checks once immediately, then on every tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("monitoring: watching snapshot history",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
		zap.Int("stale_after_hours", c.cfg.StaleAfterHours),
	)

	c.Check(ctx, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, log)
		}
	}
}

// Check evaluates history once and sends the triggered alerts that are not
// being held back. It returns the number sent.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) int {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect run history", zap.Error(err))
		return 0
	}

	due := c.due(c.alerter.Evaluate(snap))
	if len(due) == 0 {
		log.Debug("monitoring: nothing to report",
			zap.Int("runs", snap.RunsTotal),
			zap.String("latest_snapshot", snap.LatestSnapshotDate),
		)
		return 0
	}

	sent := 0
	for _, alert := range due {
		if err := c.alerter.Send(ctx, alert); err != nil {
			log.Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		c.markSent(alert.Type)
		sent++
	}
	log.Info("monitoring: alerts sent",
		zap.Int("due", len(due)),
		zap.Int("sent", sent),
	)
	return sent
}

func (c *Checker) due(alerts []Alert) []Alert {
	if c.cfg.RepeatAfterHours <= 0 {
		return alerts
	}
	hold := time.Duration(c.cfg.RepeatAfterHours) * time.Hour
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	out := alerts[:0:0]
	for _, a := range alerts {
		if last, ok := c.lastSent[a.Type]; ok && now.Sub(last) < hold {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (c *Checker) markSent(t AlertType) {
	c.mu.Lock()
	c.lastSent[t] = c.now()
	c.mu.Unlock()
}
