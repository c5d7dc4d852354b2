// Package config loads StrIEM's configuration from YAML/TOML/JSON with
// environment overrides prefixed STRIEM_ (spec.md §6). It keeps the
// teacher's nested-struct shape (config/config.go in the teacher repo) but
// replaces the hand-rolled yaml.Unmarshal call with viper, which gives the
// STRIEM_ environment override behavior for free.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"striem/internal/errs"
)

// Config is the root configuration.
type Config struct {
	Detections    string              `mapstructure:"detections"`
	Input         InputConfig         `mapstructure:"input"`
	Output        OutputConfig        `mapstructure:"output"`
	Storage       StorageConfig       `mapstructure:"storage"`
	API           APIConfig           `mapstructure:"api"`
	Remaps        string              `mapstructure:"remaps"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Detection     DetectionConfig     `mapstructure:"detection"`
	Actions       ActionsConfig       `mapstructure:"actions"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Registry      RegistryConfig      `mapstructure:"registry"`
}

// InputConfig describes the upstream collector.
type InputConfig struct {
	Vector VectorInputConfig `mapstructure:"vector"`
}

// VectorInputConfig is the gRPC ingest listener address (spec.md §4.1/§6).
type VectorInputConfig struct {
	Address string `mapstructure:"address"`
}

// OutputConfig describes the optional upstream collector webhook.
type OutputConfig struct {
	Vector VectorOutputConfig `mapstructure:"vector"`
}

// VectorOutputConfig is the optional outbound webhook for findings.
type VectorOutputConfig struct {
	URL string `mapstructure:"url"`
}

// StorageConfig controls the Parquet writer pool.
type StorageConfig struct {
	Schema        string        `mapstructure:"schema"`
	Path          string        `mapstructure:"path"`
	MaxRows       int           `mapstructure:"max_rows"`
	MaxBytes      int64         `mapstructure:"max_bytes"`
	MaxAge        time.Duration `mapstructure:"max_age"`
	DateGrain     string        `mapstructure:"date_grain"`
	QueueCapacity int           `mapstructure:"queue_capacity"`
	DeadLetter    string        `mapstructure:"dead_letter"`
}

// RegistryConfig controls where the rule and source registries persist
// their entries (spec.md §4.5).
type RegistryConfig struct {
	RulesDir   string `mapstructure:"rules_dir"`
	SourcesDir string `mapstructure:"sources_dir"`
	RemapsRoot string `mapstructure:"remaps_root"`
}

// APIConfig describes the external management API's address, data
// directory, and UI path. This core does not implement the API itself
// (spec.md §1) but owns the config surface it reads these from.
type APIConfig struct {
	Address string `mapstructure:"address"`
	DataDir string `mapstructure:"data_dir"`
	UIPath  string `mapstructure:"ui_path"`
}

// IngestConfig controls gRPC admission policy (spec.md §4.1).
type IngestConfig struct {
	AdmissionDeadline time.Duration `mapstructure:"admission_deadline"`
	DrainDeadline     time.Duration `mapstructure:"drain_deadline"`
	QueueCapacity     int           `mapstructure:"queue_capacity"`
}

// DetectionConfig controls the detection engine.
type DetectionConfig struct {
	YieldEvery   int           `mapstructure:"yield_every"`
	DedupeWindow time.Duration `mapstructure:"dedupe_window"`
}

// ActionsConfig controls optional finding fan-out sinks.
type ActionsConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// WebhookConfig is the outbound HTTP sink for findings (spec.md §6).
type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Headers map[string]string `mapstructure:"headers"`
}

// RedisConfig is the optional Redis pub/sub sink for the external MCP
// action executor.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// ObservabilityConfig controls the ambient metrics/health listener,
// distinct from the external management API's address.
type ObservabilityConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig controls the teacher-style logger.
type LoggingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// Load reads configuration from path (YAML/TOML/JSON, inferred from
// extension) and overlays environment variables prefixed STRIEM_, with
// nested keys addressed via double underscore, e.g.
// STRIEM_STORAGE__MAX_ROWS.
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &errs.ConfigError{Field: "file", Err: fmt.Errorf("read %s: %w", path, err)}
		}
	}

	v.SetEnvPrefix("STRIEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &errs.ConfigError{Field: "unmarshal", Err: err}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("input.vector.address", "0.0.0.0:9000")
	v.SetDefault("ingest.admission_deadline", 5*time.Second)
	v.SetDefault("ingest.drain_deadline", 30*time.Second)
	v.SetDefault("ingest.queue_capacity", 4096)

	v.SetDefault("storage.path", "output/storage")
	v.SetDefault("storage.max_rows", 100000)
	v.SetDefault("storage.max_bytes", int64(128*1024*1024))
	v.SetDefault("storage.max_age", 5*time.Minute)
	v.SetDefault("storage.date_grain", "day")
	v.SetDefault("storage.queue_capacity", 256)

	v.SetDefault("detection.yield_every", 1024)

	v.SetDefault("registry.rules_dir", "output/rules")
	v.SetDefault("registry.sources_dir", "output/sources")
	v.SetDefault("registry.remaps_root", "remaps")

	v.SetDefault("observability.address", "127.0.0.1:9464")

	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Input.Vector.Address) == "" {
		return &errs.ConfigError{Field: "input.vector.address", Err: fmt.Errorf("must not be empty")}
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return &errs.ConfigError{Field: "storage.path", Err: fmt.Errorf("must not be empty")}
	}
	if cfg.Storage.MaxRows <= 0 {
		return &errs.ConfigError{Field: "storage.max_rows", Err: fmt.Errorf("must be positive")}
	}
	return nil
}
