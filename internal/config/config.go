// Package config loads process configuration from a file and CORGI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/corgi-recs/corgi/internal/injection"
	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/placement"
	"github.com/corgi-recs/corgi/internal/signals"
	"github.com/corgi-recs/corgi/internal/telemetry"
	"github.com/corgi-recs/corgi/internal/validation"
)

// EnvPrefix namespaces environment overrides, e.g. CORGI_SERVER_PORT
const EnvPrefix = "CORGI"

// Config is the complete process configuration
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Upstream        UpstreamConfig        `mapstructure:"upstream"`
	Privacy         PrivacyConfig         `mapstructure:"privacy"`
	Signals         SignalsConfig         `mapstructure:"signals"`
	Injection       InjectionConfig       `mapstructure:"injection"`
	Candidates      CandidatesConfig      `mapstructure:"candidates"`
	Recommendations RecommendationsConfig `mapstructure:"recommendations"`
	Metrics         MetricsConfig         `mapstructure:"metrics"`
	Alerts          AlertsConfig          `mapstructure:"alerts"`
	Telemetry       TelemetryConfig       `mapstructure:"telemetry"`
	Logging         LoggingConfig         `mapstructure:"logging"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// RequiredServices must answer at startup or the server exits
	RequiredServices []string `mapstructure:"required_services"`
}

// Addr is the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects and configures the SQL backend
type DatabaseConfig struct {
	Type         string `mapstructure:"type"` // sqlite or postgres
	SQLitePath   string `mapstructure:"sqlite_path"`
	PostgresDSN  string `mapstructure:"postgres_dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// RedisConfig configures the optional snapshot cache
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// UpstreamConfig points at the Mastodon instance
type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PrivacyConfig holds the privacy gate defaults
type PrivacyConfig struct {
	DefaultLevel string        `mapstructure:"default_level"`
	Salt         string        `mapstructure:"salt"` // key for user id pseudonyms
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// SignalsConfig mirrors signals.Config in file form
type SignalsConfig struct {
	Weights          map[string]float64 `mapstructure:"weights"`
	MinInteractions  int64              `mapstructure:"min_interactions"`
	MinDistinctTags  int                `mapstructure:"min_distinct_tags"`
	RequiredActions  []string           `mapstructure:"required_actions"`
	ReentryAfter     time.Duration      `mapstructure:"reentry_after"`
	RandomRatio      float64            `mapstructure:"random_ratio"`
	WeightedRatio    float64            `mapstructure:"weighted_ratio"`
	MinWeightedRatio float64            `mapstructure:"min_weighted_ratio"`
	MaxWeightedRatio float64            `mapstructure:"max_weighted_ratio"`
	EvolutionRate    float64            `mapstructure:"evolution_rate"`
	CacheTTL         time.Duration      `mapstructure:"cache_ttl"`
}

// InjectionConfig mirrors injection.Config in file form
type InjectionConfig struct {
	DefaultLimit         int           `mapstructure:"default_limit"`
	MaxLimit             int           `mapstructure:"max_limit"`
	MaxInjections        int           `mapstructure:"max_injections"`
	ShuffleInjected      bool          `mapstructure:"shuffle_injected"`
	ColdStartStrategy    string        `mapstructure:"cold_start_strategy"`
	NewUserStrategy      string        `mapstructure:"new_user_strategy"`
	PersonalizedStrategy string        `mapstructure:"personalized_strategy"`
	AfterN               int           `mapstructure:"after_n"`
	TagMatchMinGap       time.Duration `mapstructure:"tag_match_min_gap"`
	TagMatchOverfetch    int           `mapstructure:"tag_match_overfetch"`
	UpstreamTimeout      time.Duration `mapstructure:"upstream_timeout"`
	CandidateTimeout     time.Duration `mapstructure:"candidate_timeout"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
}

// CandidatesConfig configures the candidate sources
type CandidatesConfig struct {
	PoolPath  string  `mapstructure:"pool_path"`
	ScanLimit int     `mapstructure:"scan_limit"`
	MinScore  float64 `mapstructure:"min_score"`
}

// RecommendationsConfig enables the Gorse-backed personalized source
type RecommendationsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	GorseURL string        `mapstructure:"gorse_url"`
	APIKey   string        `mapstructure:"gorse_api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig configures the injection event sink
type MetricsConfig struct {
	PersistEvents bool `mapstructure:"persist_events"`
	BufferSize    int  `mapstructure:"buffer_size"`
}

// AlertsConfig configures injection health alerting
type AlertsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// TelemetryConfig configures tracing
type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// LoggingConfig configures the global logger
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from path, or from defaults and the environment when path is empty.
// CORGI_* variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("corgi")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so environment overrides apply to all of them
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.required_services", []string{"database"})

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite_path", "corgi.db")
	v.SetDefault("database.postgres_dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("upstream.base_url", "https://mastodon.social")
	v.SetDefault("upstream.timeout", "3s")

	v.SetDefault("privacy.default_level", string(models.PrivacyLimited))
	v.SetDefault("privacy.salt", "")
	v.SetDefault("privacy.cache_ttl", "1m")

	sig := signals.DefaultConfig()
	weights := make(map[string]float64, len(sig.Weights))
	for action, w := range sig.Weights {
		weights[string(action)] = w
	}
	required := make([]string, 0, len(sig.RequiredActions))
	for _, a := range sig.RequiredActions {
		required = append(required, string(a))
	}
	v.SetDefault("signals.weights", weights)
	v.SetDefault("signals.min_interactions", sig.MinInteractions)
	v.SetDefault("signals.min_distinct_tags", sig.MinDistinctTags)
	v.SetDefault("signals.required_actions", required)
	v.SetDefault("signals.reentry_after", sig.ReentryAfter)
	v.SetDefault("signals.random_ratio", sig.RandomRatio)
	v.SetDefault("signals.weighted_ratio", sig.WeightedRatio)
	v.SetDefault("signals.min_weighted_ratio", sig.MinWeightedRatio)
	v.SetDefault("signals.max_weighted_ratio", sig.MaxWeightedRatio)
	v.SetDefault("signals.evolution_rate", sig.EvolutionRate)
	v.SetDefault("signals.cache_ttl", sig.CacheTTL)

	inj := injection.DefaultConfig()
	v.SetDefault("injection.default_limit", inj.DefaultLimit)
	v.SetDefault("injection.max_limit", inj.MaxLimit)
	v.SetDefault("injection.max_injections", inj.MaxInjections)
	v.SetDefault("injection.shuffle_injected", inj.ShuffleInjected)
	v.SetDefault("injection.cold_start_strategy", string(inj.ColdStartStrategy))
	v.SetDefault("injection.new_user_strategy", string(inj.NewUserStrategy))
	v.SetDefault("injection.personalized_strategy", string(inj.PersonalizedStrategy))
	v.SetDefault("injection.after_n", inj.Params.N)
	v.SetDefault("injection.tag_match_min_gap", inj.Params.MinGap)
	v.SetDefault("injection.tag_match_overfetch", inj.TagMatchOverfetch)
	v.SetDefault("injection.upstream_timeout", inj.UpstreamTimeout)
	v.SetDefault("injection.candidate_timeout", inj.CandidateTimeout)
	v.SetDefault("injection.request_timeout", inj.RequestTimeout)

	v.SetDefault("candidates.pool_path", "config/cold_start_pool.json")
	v.SetDefault("candidates.scan_limit", 500)
	v.SetDefault("candidates.min_score", 0.0)

	v.SetDefault("recommendations.enabled", false)
	v.SetDefault("recommendations.gorse_url", "http://localhost:8088")
	v.SetDefault("recommendations.gorse_api_key", "")
	v.SetDefault("recommendations.timeout", "2s")

	v.SetDefault("metrics.persist_events", true)
	v.SetDefault("metrics.buffer_size", 1024)

	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.interval", "1m")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "corgi")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "corgi.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 7)
}

// Validate checks the configuration as a whole
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required when type is 'sqlite'")
		}
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("database.postgres_dsn is required when type is 'postgres'")
		}
	default:
		return fmt.Errorf("database.type must be 'sqlite' or 'postgres', got '%s'", c.Database.Type)
	}

	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if _, err := models.ParsePrivacyLevel(c.Privacy.DefaultLevel); err != nil {
		return fmt.Errorf("privacy.default_level: %w", err)
	}
	if c.Server.Environment == "production" && c.Privacy.Salt == "" {
		return fmt.Errorf("privacy.salt is required in production")
	}

	sig, err := c.SignalsConfig()
	if err != nil {
		return err
	}
	if err := sig.Validate(); err != nil {
		return err
	}
	if err := c.InjectionConfig().Validate(); err != nil {
		return err
	}

	if c.Recommendations.Enabled && c.Recommendations.GorseURL == "" {
		return fmt.Errorf("recommendations.gorse_url is required when recommendations are enabled")
	}
	if unknown := validation.Unknown(c.Server.RequiredServices); len(unknown) > 0 {
		return fmt.Errorf("server.required_services: unknown services %v", unknown)
	}
	if c.Alerts.Enabled && c.Alerts.Interval <= 0 {
		return fmt.Errorf("alerts.interval must be positive when alerts are enabled")
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry.sampling_rate must be between 0 and 1, got %v", c.Telemetry.SamplingRate)
	}
	return nil
}

// SignalsConfig converts the file form into signals.Config
func (c *Config) SignalsConfig() (signals.Config, error) {
	s := c.Signals
	weights := make(map[models.ActionType]float64, len(s.Weights))
	for name, w := range s.Weights {
		action, err := models.ParseActionType(name)
		if err != nil {
			return signals.Config{}, fmt.Errorf("signals.weights: %w", err)
		}
		weights[action] = w
	}
	required := make([]models.ActionType, 0, len(s.RequiredActions))
	for _, name := range s.RequiredActions {
		action, err := models.ParseActionType(name)
		if err != nil {
			return signals.Config{}, fmt.Errorf("signals.required_actions: %w", err)
		}
		required = append(required, action)
	}
	return signals.Config{
		Weights:          weights,
		MinInteractions:  s.MinInteractions,
		MinDistinctTags:  s.MinDistinctTags,
		RequiredActions:  required,
		ReentryAfter:     s.ReentryAfter,
		RandomRatio:      s.RandomRatio,
		WeightedRatio:    s.WeightedRatio,
		MinWeightedRatio: s.MinWeightedRatio,
		MaxWeightedRatio: s.MaxWeightedRatio,
		EvolutionRate:    s.EvolutionRate,
		CacheTTL:         s.CacheTTL,
	}, nil
}

// InjectionConfig converts the file form into injection.Config
func (c *Config) InjectionConfig() injection.Config {
	i := c.Injection
	return injection.Config{
		DefaultLimit:         i.DefaultLimit,
		MaxLimit:             i.MaxLimit,
		MaxInjections:        i.MaxInjections,
		ShuffleInjected:      i.ShuffleInjected,
		ColdStartStrategy:    placement.Kind(i.ColdStartStrategy),
		NewUserStrategy:      placement.Kind(i.NewUserStrategy),
		PersonalizedStrategy: placement.Kind(i.PersonalizedStrategy),
		Params:               placement.Params{N: i.AfterN, MinGap: i.TagMatchMinGap},
		TagMatchOverfetch:    i.TagMatchOverfetch,
		UpstreamTimeout:      i.UpstreamTimeout,
		CandidateTimeout:     i.CandidateTimeout,
		RequestTimeout:       i.RequestTimeout,
	}
}

// TelemetryConfig converts the file form into telemetry.Config
func (c *Config) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		ServiceName:  c.Telemetry.ServiceName,
		Environment:  c.Server.Environment,
		OTLPEndpoint: c.Telemetry.OTLPEndpoint,
		Enabled:      c.Telemetry.Enabled,
		SamplingRate: c.Telemetry.SamplingRate,
	}
}

// LoggerOptions converts the file form into logger.Options
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Logging.Level,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}
