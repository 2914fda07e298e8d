// Package pipeline runs one GMB snapshot end to end: credentials, input
// sheet, place lookups, merge, KPI aggregation, and output worksheets.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wakefit-analytics/gmb-pipeline/internal/enrich"
	"github.com/wakefit-analytics/gmb-pipeline/internal/kpi"
	"github.com/wakefit-analytics/gmb-pipeline/internal/merge"
	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
	"github.com/wakefit-analytics/gmb-pipeline/internal/monitoring"
	"github.com/wakefit-analytics/gmb-pipeline/internal/output"
	"github.com/wakefit-analytics/gmb-pipeline/internal/secrets"
	"github.com/wakefit-analytics/gmb-pipeline/internal/store"
	"github.com/wakefit-analytics/gmb-pipeline/internal/tabular"
)

// Phase names, in execution order.
const (
	PhaseCredentials = "credentials"
	PhaseInput       = "input"
	PhaseEnrich      = "enrich"
	PhaseMerge       = "merge"
	PhaseKPI         = "kpi"
	PhaseOutput      = "output"
	PhaseArchive     = "archive"
)

// Settings is everything a run needs that does not come from a dependency.
type Settings struct {
	Secrets        secrets.Names
	InputWorkbook  string
	InputWorksheet string
	Columns        tabular.Columns
	Output         output.Settings
	Enrich         enrich.Options
	Segments       []kpi.Segment
}

// TabularFactory opens the spreadsheet backend with the resolved credentials.
type TabularFactory func(ctx context.Context, creds *secrets.Credentials) (tabular.Store, error)

// OracleFactory builds the place-details client with the resolved credentials.
type OracleFactory func(creds *secrets.Credentials) (enrich.Oracle, error)

// Archiver keeps a copy of each snapshot.
type Archiver interface {
	Save(snapshot model.Snapshot) ([]string, error)
}

// Alerter notifies operators of failed runs.
type Alerter interface {
	Send(ctx context.Context, alert monitoring.Alert) error
}

// Deps are the collaborators of a run. Store, Archiver and Alerter are
// optional.
type Deps struct {
	Secrets  secrets.Resolver
	Tabular  TabularFactory
	Oracle   OracleFactory
	Store    store.Store
	Archiver Archiver
	Alerter  Alerter
	Now      func() time.Time
}

// Pipeline executes snapshot runs.
type Pipeline struct {
	settings Settings
	deps     Deps
}

// New creates a Pipeline.
func New(settings Settings, deps Deps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if len(settings.Segments) == 0 {
		settings.Segments = kpi.DefaultSegments()
	}
	return &Pipeline{settings: settings, deps: deps}
}

// run carries the state of a single execution.
type run struct {
	p      *Pipeline
	id     string
	log    *zap.Logger
	result model.RunResult
}

// Run executes the pipeline once. On success the snapshot and run counters
// are returned; on any fatal problem the error is a *Failure.
func (p *Pipeline) Run(ctx context.Context) (outcome *model.RunOutcome, err error) {
	now := p.deps.Now()
	date := now.Format(model.SnapshotDateLayout)
	r := &run{p: p, log: zap.L().With(zap.String("snapshot_date", date))}

	if p.deps.Store != nil {
		rec, createErr := p.deps.Store.CreateRun(ctx, date)
		if createErr != nil {
			r.log.Warn("pipeline: failed to record run, continuing without history", zap.Error(createErr))
		} else {
			r.id = rec.ID
			r.log = r.log.With(zap.String("run_id", r.id))
		}
	}
	r.log.Info("pipeline: starting snapshot run")

	phase := PhaseCredentials
	defer func() {
		if v := recover(); v != nil {
			outcome, err = nil, r.fail(ctx, panicFailure(phase, v))
		}
	}()

	// Credentials
	var creds *secrets.Credentials
	if f := r.phase(ctx, phase, func() (map[string]any, *Failure) {
		c, err := secrets.LoadCredentials(ctx, p.deps.Secrets, p.settings.Secrets)
		if err != nil {
			return nil, newFailure(KindCredentials, PhaseCredentials, err)
		}
		creds = c
		return nil, nil
	}); f != nil {
		return nil, r.fail(ctx, f)
	}

	// Input
	phase = PhaseInput
	var tab tabular.Store
	var stores []model.StoreInput
	if f := r.phase(ctx, phase, func() (map[string]any, *Failure) {
		var err error
		tab, err = p.deps.Tabular(ctx, creds)
		if err != nil {
			return nil, newFailure(KindCredentials, PhaseInput, eris.Wrap(err, "pipeline: open spreadsheet backend"))
		}
		stores, err = p.loadStores(ctx, tab)
		if err != nil {
			return nil, newFailure(KindInput, PhaseInput, err)
		}
		return map[string]any{"stores": len(stores)}, nil
	}); f != nil {
		return nil, r.fail(ctx, f)
	}
	r.result.Stores = len(stores)

	// Enrich
	phase = PhaseEnrich
	var results []model.EnrichmentResult
	if f := r.phase(ctx, phase, func() (map[string]any, *Failure) {
		oracle, err := p.deps.Oracle(creds)
		if err != nil {
			return nil, newFailure(KindEnrichment, PhaseEnrich, eris.Wrap(err, "pipeline: create places client"))
		}
		urls := make([]string, 0, len(stores))
		for _, s := range stores {
			if s.URL != "" {
				urls = append(urls, s.URL)
			}
		}
		results = enrich.New(oracle, p.settings.Enrich).Fetch(ctx, urls)
		ok, failed := enrich.Count(results)
		r.result.Enriched, r.result.EnrichmentErrors = ok, failed
		return map[string]any{"lookups": len(urls), "ok": ok, "errors": failed}, nil
	}); f != nil {
		return nil, r.fail(ctx, f)
	}

	// Merge
	phase = PhaseMerge
	var merged []model.MergedRecord
	r.phase(ctx, phase, func() (map[string]any, *Failure) {
		merged = merge.Merge(stores, results)
		for _, m := range merged {
			if m.Closed() {
				r.result.Closed++
			}
		}
		return map[string]any{"records": len(merged), "closed": r.result.Closed}, nil
	})

	// KPI
	phase = PhaseKPI
	var kpis []model.KPIRow
	r.phase(ctx, phase, func() (map[string]any, *Failure) {
		kpis = kpi.Aggregate(kpi.FilterOpen(merged), p.settings.Segments, date)
		r.result.Segments = len(kpis)
		if r.id != "" {
			if err := p.deps.Store.SaveKPIs(ctx, r.id, kpis); err != nil {
				r.log.Warn("pipeline: failed to record kpi history", zap.Error(err))
			}
		}
		return map[string]any{"segments": len(kpis)}, nil
	})

	snapshot := output.BuildSnapshot(now, merged, kpis)
	r.log.Info("pipeline: snapshot built", zap.Reflect("snapshot", snapshot))

	// Output
	phase = PhaseOutput
	if f := r.phase(ctx, phase, func() (map[string]any, *Failure) {
		names, err := output.NewWriter(tab, p.settings.Output).Write(ctx, snapshot)
		r.result.Worksheets = names
		if err != nil {
			return nil, newFailure(KindOutput, PhaseOutput, err)
		}
		return map[string]any{"worksheets": names}, nil
	}); f != nil {
		return nil, r.fail(ctx, f)
	}

	// Archive failures do not fail the run; the sheets are already written.
	phase = PhaseArchive
	if p.deps.Archiver == nil {
		r.skip(ctx, phase)
	} else {
		r.phase(ctx, phase, func() (map[string]any, *Failure) {
			paths, err := p.deps.Archiver.Save(snapshot)
			r.result.Archive = paths
			if err != nil {
				return nil, newFailure(KindOutput, PhaseArchive, err)
			}
			return map[string]any{"files": len(paths)}, nil
		})
	}

	if r.id != "" {
		if err := p.deps.Store.CompleteRun(ctx, r.id, &r.result); err != nil {
			r.log.Warn("pipeline: failed to record run completion", zap.Error(err))
		}
	}
	r.log.Info("pipeline: snapshot run complete",
		zap.Int("stores", r.result.Stores),
		zap.Int("enriched", r.result.Enriched),
		zap.Int("enrichment_errors", r.result.EnrichmentErrors),
		zap.Int("closed", r.result.Closed),
		zap.Strings("worksheets", r.result.Worksheets),
	)

	return &model.RunOutcome{RunID: r.id, Snapshot: snapshot, Result: r.result}, nil
}

func (p *Pipeline) loadStores(ctx context.Context, tab tabular.Store) ([]model.StoreInput, error) {
	wb, err := tab.Open(ctx, p.settings.InputWorkbook)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open input workbook %q", p.settings.InputWorkbook)
	}
	ws, err := wb.Worksheet(ctx, p.settings.InputWorksheet)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: input worksheet %q", p.settings.InputWorksheet)
	}
	records, err := ws.Records(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read input")
	}
	return tabular.LoadStores(records, p.settings.Columns)
}

// phase runs fn, logs its outcome and records it in run history.
func (r *run) phase(ctx context.Context, name string, fn func() (map[string]any, *Failure)) *Failure {
	var rec *model.RunPhase
	if r.id != "" {
		var err error
		rec, err = r.p.deps.Store.CreatePhase(ctx, r.id, name)
		if err != nil {
			r.log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(err))
		}
	}

	start := time.Now()
	meta, f := fn()
	pr := model.PhaseResult{
		Name:     name,
		Status:   model.PhaseStatusComplete,
		Duration: time.Since(start).Milliseconds(),
		Metadata: meta,
	}
	if f != nil {
		pr.Status = model.PhaseStatusFailed
		pr.Error = f.Message
		r.log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.String("kind", string(f.Kind)),
			zap.Int64("duration_ms", pr.Duration),
			zap.Error(f.Err),
		)
	} else {
		r.log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", pr.Duration),
		)
	}

	r.finishPhase(ctx, rec, pr)
	return f
}

func (r *run) skip(ctx context.Context, name string) {
	r.log.Debug("pipeline: phase skipped", zap.String("phase", name))
	var rec *model.RunPhase
	if r.id != "" {
		rec, _ = r.p.deps.Store.CreatePhase(ctx, r.id, name)
	}
	r.finishPhase(ctx, rec, model.PhaseResult{Name: name, Status: model.PhaseStatusSkipped})
}

func (r *run) finishPhase(ctx context.Context, rec *model.RunPhase, pr model.PhaseResult) {
	if rec != nil {
		if err := r.p.deps.Store.CompletePhase(ctx, rec.ID, &pr); err != nil {
			r.log.Warn("pipeline: failed to complete phase", zap.String("phase", pr.Name), zap.Error(err))
		}
	}
	r.result.Phases = append(r.result.Phases, pr)
}

// fail records the failure and sends an alert. Neither step can mask f.
func (r *run) fail(ctx context.Context, f *Failure) *Failure {
	r.log.Error("pipeline: run failed",
		zap.String("phase", f.Phase),
		zap.String("kind", string(f.Kind)),
		zap.String("error", f.Message),
		zap.Stack("stack"),
	)
	if r.id != "" {
		if err := r.p.deps.Store.FailRun(ctx, r.id, f.Message); err != nil {
			r.log.Warn("pipeline: failed to record run failure", zap.Error(err))
		}
	}
	if r.p.deps.Alerter != nil {
		if err := r.p.deps.Alerter.Send(ctx, monitoring.PipelineFailure(r.id, f.Phase, f.Message)); err != nil {
			r.log.Warn("pipeline: failed to send failure alert", zap.Error(err))
		}
	}
	return f
}
