package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wakefit-analytics/gmb-pipeline/internal/archive"
	"github.com/wakefit-analytics/gmb-pipeline/internal/config"
	"github.com/wakefit-analytics/gmb-pipeline/internal/enrich"
	"github.com/wakefit-analytics/gmb-pipeline/internal/monitoring"
	"github.com/wakefit-analytics/gmb-pipeline/internal/pipeline"
	"github.com/wakefit-analytics/gmb-pipeline/internal/secrets"
	"github.com/wakefit-analytics/gmb-pipeline/internal/store"
	"github.com/wakefit-analytics/gmb-pipeline/internal/tabular"
	"github.com/wakefit-analytics/gmb-pipeline/pkg/google"
)

// pipelineEnv holds the pipeline and the resources the run and serve
// commands share.
type pipelineEnv struct {
	Store    store.Store // may be nil
	Secrets  secrets.Overlay
	Alerter  *monitoring.Alerter
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
	_ = pe.Secrets.Close()
}

// initPipeline validates config for mode and builds the Pipeline. Callers
// should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	settings, err := cfg.PipelineSettings()
	if err != nil {
		return nil, err
	}

	resolver, err := initResolver(ctx)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		_ = resolver.Close()
		return nil, err
	}

	env := &pipelineEnv{
		Store:   st,
		Secrets: resolver,
		Alerter: monitoring.NewAlerter(cfg.Monitoring),
	}

	deps := pipeline.Deps{
		Secrets: resolver,
		Tabular: tabularFactory(cfg.Tabular),
		Oracle:  oracleFactory(cfg.Places),
		Store:   st,
		Alerter: env.Alerter,
	}
	if cfg.Archive.Dir != "" {
		deps.Archiver = archive.New(cfg.Archive.Dir, cfg.Archive.Formats)
	}

	env.Pipeline = pipeline.New(settings, deps)
	return env, nil
}

// initResolver layers locally configured secrets over Secret Manager. With
// no project the local values are the only source. Close the result when done.
func initResolver(ctx context.Context) (secrets.Overlay, error) {
	overrides, err := cfg.Secrets.Overrides()
	if err != nil {
		return secrets.Overlay{}, err
	}

	var base secrets.Resolver
	if cfg.Project.ID != "" {
		gcp, err := secrets.NewGCPResolver(ctx, cfg.Project.ID)
		if err != nil {
			return secrets.Overlay{}, eris.Wrap(err, "init secret manager")
		}
		base = gcp
	}
	return secrets.Overlay{Overrides: overrides, Base: base}, nil
}

// initStore opens the run-history store. The "none" driver returns nil.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// tabularFactory returns the spreadsheet backend selected by config.
func tabularFactory(tc config.TabularConfig) pipeline.TabularFactory {
	return func(ctx context.Context, creds *secrets.Credentials) (tabular.Store, error) {
		switch tc.Driver {
		case "xlsx":
			zap.L().Debug("using local xlsx workbooks", zap.String("dir", tc.XLSXDir))
			return tabular.NewXLSXStore(tc.XLSXDir, tc.CreateMissing), nil
		case "sheets", "":
			return tabular.NewSheetsStoreFromJSON(ctx, creds.ServiceAccountJSON)
		default:
			return nil, eris.Errorf("unsupported tabular driver: %s", tc.Driver)
		}
	}
}

// oracleFactory returns a places client keyed with the resolved API key.
func oracleFactory(pc config.PlacesConfig) pipeline.OracleFactory {
	return func(creds *secrets.Credentials) (enrich.Oracle, error) {
		return newPlacesClient(pc, creds.PlacesAPIKey), nil
	}
}

func newPlacesClient(pc config.PlacesConfig, apiKey string) google.Client {
	var opts []google.Option
	if pc.MapsBaseURL != "" {
		opts = append(opts, google.WithMapsBaseURL(pc.MapsBaseURL))
	}
	if pc.BaseURL != "" {
		opts = append(opts, google.WithBaseURL(pc.BaseURL))
	}
	return google.NewClient(apiKey, opts...)
}
