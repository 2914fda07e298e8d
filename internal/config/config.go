package config

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wakefit-analytics/gmb-pipeline/internal/enrich"
	"github.com/wakefit-analytics/gmb-pipeline/internal/kpi"
	"github.com/wakefit-analytics/gmb-pipeline/internal/monitoring"
	"github.com/wakefit-analytics/gmb-pipeline/internal/output"
	"github.com/wakefit-analytics/gmb-pipeline/internal/pipeline"
	"github.com/wakefit-analytics/gmb-pipeline/internal/secrets"
	"github.com/wakefit-analytics/gmb-pipeline/internal/store"
	"github.com/wakefit-analytics/gmb-pipeline/internal/tabular"
)

// Command modes accepted by Validate.
const (
	ModeRun    = "run"
	ModeServe  = "serve"
	ModeLookup = "lookup"
)

// Config holds the full application configuration.
type Config struct {
	Project    ProjectConfig     `yaml:"project" mapstructure:"project"`
	Secrets    SecretsConfig     `yaml:"secrets" mapstructure:"secrets"`
	Input      InputConfig       `yaml:"input" mapstructure:"input"`
	Output     output.Settings   `yaml:"output" mapstructure:"output"`
	Tabular    TabularConfig     `yaml:"tabular" mapstructure:"tabular"`
	Places     PlacesConfig      `yaml:"places" mapstructure:"places"`
	Segments   []kpi.Definition  `yaml:"segments" mapstructure:"segments"`
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	Archive    ArchiveConfig     `yaml:"archive" mapstructure:"archive"`
	Monitoring monitoring.Config `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
}

// ProjectConfig identifies the cloud project that owns the secrets.
type ProjectConfig struct {
	ID string `yaml:"id" mapstructure:"id"`
}

// SecretsConfig names the secrets to resolve. The literal values, when set,
// replace the secret store lookups (local runs).
type SecretsConfig struct {
	PlacesAPIKeyName   string `yaml:"places_api_key_name" mapstructure:"places_api_key_name"`
	ServiceAccountName string `yaml:"service_account_name" mapstructure:"service_account_name"`
	PlacesAPIKey       string `yaml:"places_api_key" mapstructure:"places_api_key"`
	ServiceAccountJSON string `yaml:"service_account_json" mapstructure:"service_account_json"`
	ServiceAccountFile string `yaml:"service_account_file" mapstructure:"service_account_file"`
}

// Names returns the secret identifiers.
func (s SecretsConfig) Names() secrets.Names {
	return secrets.Names{PlacesAPIKey: s.PlacesAPIKeyName, ServiceAccount: s.ServiceAccountName}
}

// Overrides returns the literal secret values keyed by secret name.
func (s SecretsConfig) Overrides() (map[string]string, error) {
	sa := s.ServiceAccountJSON
	if sa == "" && s.ServiceAccountFile != "" {
		b, err := os.ReadFile(s.ServiceAccountFile)
		if err != nil {
			return nil, eris.Wrapf(err, "config: read service account file %s", s.ServiceAccountFile)
		}
		sa = string(b)
	}
	return map[string]string{
		s.PlacesAPIKeyName:   s.PlacesAPIKey,
		s.ServiceAccountName: sa,
	}, nil
}

// local reports whether both credentials are supplied without a secret store.
func (s SecretsConfig) local() bool {
	return s.PlacesAPIKey != "" && (s.ServiceAccountJSON != "" || s.ServiceAccountFile != "")
}

// InputConfig locates the store list.
type InputConfig struct {
	Workbook  string          `yaml:"workbook" mapstructure:"workbook"`
	Worksheet string          `yaml:"worksheet" mapstructure:"worksheet"`
	Columns   tabular.Columns `yaml:"columns" mapstructure:"columns"`
}

// TabularConfig selects the spreadsheet backend.
type TabularConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	XLSXDir       string `yaml:"xlsx_dir" mapstructure:"xlsx_dir"`
	CreateMissing bool   `yaml:"create_missing" mapstructure:"create_missing"`
}

// PlacesConfig tunes the place-details lookups.
type PlacesConfig struct {
	MapsBaseURL   string  `yaml:"maps_base_url" mapstructure:"maps_base_url"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Concurrency   int     `yaml:"concurrency" mapstructure:"concurrency"`
	RetryAttempts int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// EnrichOptions converts the config into fetcher options.
func (p PlacesConfig) EnrichOptions() enrich.Options {
	return enrich.Options{
		Concurrency:   p.Concurrency,
		RatePerSecond: p.RatePerSecond,
		Timeout:       time.Duration(p.TimeoutSecs) * time.Second,
		RetryAttempts: p.RetryAttempts,
	}
}

// StoreConfig configures the run-history backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string           `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ArchiveConfig configures the local snapshot archive. An empty Dir
// disables archiving.
type ArchiveConfig struct {
	Dir     string   `yaml:"dir" mapstructure:"dir"`
	Formats []string `yaml:"formats" mapstructure:"formats"`
}

// ServerConfig configures the HTTP trigger.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GMB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("project.id", "GMB_PROJECT_ID", "GCP_PROJECT_ID"); err != nil {
		return nil, eris.Wrap(err, "config: bind project id")
	}
	if err := v.BindEnv("server.port", "GMB_SERVER_PORT", "PORT"); err != nil {
		return nil, eris.Wrap(err, "config: bind server port")
	}

	// Defaults
	names := secrets.DefaultNames()
	cols := tabular.DefaultColumns()
	out := output.DefaultSettings()
	v.SetDefault("secrets.places_api_key_name", names.PlacesAPIKey)
	v.SetDefault("secrets.service_account_name", names.ServiceAccount)
	v.SetDefault("input.workbook", "Wakefit_GMB_Pipeline_Input")
	v.SetDefault("input.worksheet", "store_data")
	v.SetDefault("input.columns.url", cols.URL)
	v.SetDefault("input.columns.experience_center", cols.ExperienceCenter)
	v.SetDefault("input.columns.region", cols.Region)
	v.SetDefault("output.workbook", out.Workbook)
	v.SetDefault("output.store_prefix", out.StorePrefix)
	v.SetDefault("output.kpi_prefix", out.KPIPrefix)
	v.SetDefault("output.store_rows", out.StoreRows)
	v.SetDefault("output.store_cols", out.StoreCols)
	v.SetDefault("output.kpi_rows", out.KPIRows)
	v.SetDefault("output.kpi_cols", out.KPICols)
	v.SetDefault("tabular.driver", "sheets")
	v.SetDefault("tabular.xlsx_dir", "./data")
	v.SetDefault("places.maps_base_url", "https://maps.googleapis.com/maps/api")
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.timeout_secs", 10)
	v.SetDefault("places.rate_per_second", 0)
	v.SetDefault("places.concurrency", 1)
	v.SetDefault("places.retry_attempts", 1)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.sqlite_path", "gmb-runs.db")
	v.SetDefault("archive.formats", []string{"json"})
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.enrichment_error_threshold", 0.2)
	v.SetDefault("monitoring.stale_after_hours", 36)
	v.SetDefault("monitoring.lookback_window_hours", 168)
	v.SetDefault("monitoring.check_interval_secs", 3600)
	v.SetDefault("monitoring.repeat_after_hours", 24)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys required by the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(msg string) { problems = append(problems, msg) }

	switch mode {
	case ModeRun, ModeServe:
		if c.Project.ID == "" && !c.Secrets.local() {
			add("project.id (GCP_PROJECT_ID) is required unless secrets.places_api_key and a service account are set")
		}
		if c.Input.Workbook == "" || c.Input.Worksheet == "" {
			add("input.workbook and input.worksheet are required")
		}
		if c.Input.Columns.URL == "" {
			add("input.columns.url is required")
		}
		if c.Output.Workbook == "" {
			add("output.workbook is required")
		}
		switch c.Tabular.Driver {
		case "sheets":
		case "xlsx":
			if c.Tabular.XLSXDir == "" {
				add("tabular.xlsx_dir is required for the xlsx driver")
			}
		default:
			add("tabular.driver must be sheets or xlsx, got " + c.Tabular.Driver)
		}
		switch c.Store.Driver {
		case "none", "":
		case "sqlite":
			if c.Store.SQLitePath == "" {
				add("store.sqlite_path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				add("store.database_url is required for the postgres driver")
			}
		default:
			add("store.driver must be none, sqlite or postgres, got " + c.Store.Driver)
		}
		if _, err := kpi.FromDefinitions(c.Segments); err != nil {
			add(err.Error())
		}
		if mode == ModeServe && c.Server.Port <= 0 {
			add("server.port must be > 0")
		}
	case ModeLookup:
		if c.Project.ID == "" && c.Secrets.PlacesAPIKey == "" {
			add("project.id or secrets.places_api_key is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Places.TimeoutSecs <= 0 {
		add("places.timeout_secs must be positive")
	}
	if c.Places.Concurrency < 1 {
		add("places.concurrency must be at least 1")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// PipelineSettings assembles the settings of a snapshot run.
func (c *Config) PipelineSettings() (pipeline.Settings, error) {
	segments, err := kpi.FromDefinitions(c.Segments)
	if err != nil {
		return pipeline.Settings{}, eris.Wrap(err, "config: segments")
	}
	return pipeline.Settings{
		Secrets:        c.Secrets.Names(),
		InputWorkbook:  c.Input.Workbook,
		InputWorksheet: c.Input.Worksheet,
		Columns:        c.Input.Columns,
		Output:         c.Output,
		Enrich:         c.Places.EnrichOptions(),
		Segments:       segments,
	}, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
