package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LCC        LCCConfig        `yaml:"lcc" mapstructure:"lcc"`
	Run        RunConfig        `yaml:"run" mapstructure:"run"`
	Tabulation TabulationConfig `yaml:"tabulation" mapstructure:"tabulation"`
	Units      UnitsConfig      `yaml:"units" mapstructure:"units"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Postgres   PostgresConfig   `yaml:"postgres" mapstructure:"postgres"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	History    HistoryConfig    `yaml:"history" mapstructure:"history"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// LCCConfig configures classification loading. EmptyClasses is "keep" or
// "drop" and has no default.
type LCCConfig struct {
	Path         string `yaml:"path" mapstructure:"path"`
	EmptyClasses string `yaml:"empty_classes" mapstructure:"empty_classes"`
}

// RunConfig configures metric runs.
type RunConfig struct {
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	MaxFieldLength   int     `yaml:"max_field_length" mapstructure:"max_field_length"`
	OverlapTolerance float64 `yaml:"overlap_tolerance" mapstructure:"overlap_tolerance"`
	AddAreaFields    bool    `yaml:"add_area_fields" mapstructure:"add_area_fields"`
}

// TabulationConfig describes zonal tabulation tables.
type TabulationConfig struct {
	UnitField   string  `yaml:"unit_field" mapstructure:"unit_field"`
	ValuePrefix string  `yaml:"value_prefix" mapstructure:"value_prefix"`
	ValueField  string  `yaml:"value_field" mapstructure:"value_field"`
	AreaField   string  `yaml:"area_field" mapstructure:"area_field"`
	Scale       float64 `yaml:"scale" mapstructure:"scale"`
	Sheet       string  `yaml:"sheet" mapstructure:"sheet"`
}

// UnitsConfig describes reporting unit sources.
type UnitsConfig struct {
	IDField   string  `yaml:"id_field" mapstructure:"id_field"`
	AreaField string  `yaml:"area_field" mapstructure:"area_field"`
	AreaScale float64 `yaml:"area_scale" mapstructure:"area_scale"`
	SRID      int     `yaml:"srid" mapstructure:"srid"`
}

// OutputConfig configures the output table.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	Path   string `yaml:"path" mapstructure:"path"`
	Table  string `yaml:"table" mapstructure:"table"`
	Upsert bool   `yaml:"upsert" mapstructure:"upsert"`
}

// PostgresConfig configures the PostgreSQL output target.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FetchConfig configures downloads of remote inputs.
type FetchConfig struct {
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// HistoryConfig configures the run history store. An empty Driver disables
// it; "postgres" reuses the postgres section.
type HistoryConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional config.yaml in the working
// directory and the environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path and the environment. An empty path
// falls back to an optional config.yaml in the working directory; an explicit
// path must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("ATTILA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("run.concurrency", 4)
	v.SetDefault("run.max_field_length", 10)
	v.SetDefault("run.overlap_tolerance", 5.0)
	v.SetDefault("run.add_area_fields", false)
	v.SetDefault("tabulation.value_prefix", "VALUE_")
	v.SetDefault("tabulation.scale", 1.0)
	v.SetDefault("units.area_scale", 1.0)
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.table", "metrics")
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("postgres.min_conns", 1)
	v.SetDefault("fetch.user_agent", "attila-metrics/1.0")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("history.path", "attila-runs.db")

	// Keys without a default are only picked up from the environment when bound.
	for _, key := range []string{"lcc.path", "lcc.empty_classes", "postgres.database_url", "units.id_field", "tabulation.unit_field", "history.driver"} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are "run",
// "postgres", "serve" and "history".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run":
	case "postgres":
		if c.Postgres.DatabaseURL == "" {
			errs = append(errs, "postgres.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "history":
		if c.History.Driver == "" {
			errs = append(errs, "history.driver is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Run.Concurrency < 1 || c.Run.Concurrency > 64 {
		errs = append(errs, "run.concurrency must be between 1 and 64")
	}
	if c.Run.MaxFieldLength < 0 {
		errs = append(errs, "run.max_field_length must be >= 0")
	}
	if c.Run.OverlapTolerance < 0 {
		errs = append(errs, "run.overlap_tolerance must be >= 0")
	}
	switch strings.ToLower(c.LCC.EmptyClasses) {
	case "", "keep", "drop":
	default:
		errs = append(errs, fmt.Sprintf("lcc.empty_classes must be keep or drop, got %q", c.LCC.EmptyClasses))
	}

	switch c.History.Driver {
	case "", "sqlite":
	case "postgres":
		if c.Postgres.DatabaseURL == "" {
			errs = append(errs, "postgres.database_url is required for the postgres history driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("history.driver must be sqlite or postgres, got %q", c.History.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
