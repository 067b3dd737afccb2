package config

import (
	"fmt"
	"strings"

	"github.com/betracehq/traceguard/pkg/models"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Exporter ExporterConfig `mapstructure:"exporter"`
}

// EngineConfig governs the concurrent rule engine's worker pool and
// ingestion queue.
type EngineConfig struct {
	Workers          int `mapstructure:"workers"`            // evaluation goroutines
	QueueCapacity    int `mapstructure:"queue_capacity"`      // bounded span ingestion queue
	MaxRules         int `mapstructure:"max_rules"`           // not read; the engine's rule table is capped by the rules.MaxRules constant
	QuarantineErrors int `mapstructure:"quarantine_errors"`   // consecutive eval errors before a rule is quarantined
	QuarantineWindow int `mapstructure:"quarantine_window_s"` // not read; quarantine counts consecutive errors with no time window
	IngestBlockMS    int `mapstructure:"ingest_block_ms"`     // how long Submit blocks against a full queue before dropping the span
}

// StorageConfig contains storage limits and persistence settings.
type StorageConfig struct {
	MaxViolations   int    `mapstructure:"max_violations"` // not read; the in-memory violation store has no size cap
	DataDir         string `mapstructure:"data_dir"`       // disk rule store location
	SignatureKey    string `mapstructure:"signature_key"`  // HMAC key for violation signing; empty disables signing
}

// LimitsConfig contains application-level limits enforced before data
// reaches the rule engine or trace accumulator (defense in depth, since
// the participle parser itself enforces none).
type LimitsConfig struct {
	Spans SpanLimits  `mapstructure:"spans"`
	Rules RuleLimits  `mapstructure:"rules"`
	Trace TraceLimits `mapstructure:"trace"`
}

// SpanLimits for span ingestion. ToModel converts to the pkg/models
// validation type that Span.Validate actually consumes.
type SpanLimits struct {
	MaxBatchSize            int `mapstructure:"max_batch_size"`             // Spans per batch request
	MaxAttributesPerSpan    int `mapstructure:"max_attributes_per_span"`    // Attributes per span
	MaxAttributeKeyLength   int `mapstructure:"max_attribute_key_length"`   // Bytes
	MaxAttributeValueLength int `mapstructure:"max_attribute_value_length"` // Bytes
}

// ToModel converts to the validation-layer type.
func (l SpanLimits) ToModel() models.SpanLimits {
	return models.SpanLimits{
		MaxAttributesPerSpan:    l.MaxAttributesPerSpan,
		MaxAttributeKeyLength:   l.MaxAttributeKeyLength,
		MaxAttributeValueLength: l.MaxAttributeValueLength,
	}
}

// RuleLimits for rule management. ToModel converts to the pkg/models
// validation type that Rule.Validate actually consumes.
type RuleLimits struct {
	MaxExpressionLength  int `mapstructure:"max_expression_length"`  // Bytes (participle has no limit)
	MaxDescriptionLength int `mapstructure:"max_description_length"` // Bytes
	MaxNameLength        int `mapstructure:"max_name_length"`        // Bytes
	MaxRulesPerImport    int `mapstructure:"max_rules_per_import"`   // Rules per YAML import
}

// ToModel converts to the validation-layer type.
func (l RuleLimits) ToModel() models.RuleLimits {
	return models.RuleLimits{
		MaxExpressionLength:  l.MaxExpressionLength,
		MaxDescriptionLength: l.MaxDescriptionLength,
		MaxNameLength:        l.MaxNameLength,
	}
}

// TraceLimits for trace accumulation and evaluation.
type TraceLimits struct {
	MaxSpansPerTrace  int `mapstructure:"max_spans_per_trace"` // per-trace cap; spans past it are rejected and marked evicted
	MaxActiveTraces   int `mapstructure:"max_active_traces"`   // global cap on in-flight traces; oldest is LRU-evicted past it
	EvaluationTimeout int `mapstructure:"evaluation_timeout"`  // milliseconds
	IdleTimeout       int `mapstructure:"idle_timeout_s"`      // seconds a trace may sit with no new spans before it is flushed
}

// ExporterConfig governs the bounded violation exporter.
type ExporterConfig struct {
	BufferCapacity int `mapstructure:"buffer_capacity"`
	FlushInterval  int `mapstructure:"flush_interval_ms"`
}

// Load reads configuration from file and environment variables.
// Priority: env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override everything.
	// TRACEGUARD_ENGINE_WORKERS, TRACEGUARD_LIMITS_RULES_MAX_NAME_LENGTH, etc.
	v.SetEnvPrefix("TRACEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.workers", 8)
	v.SetDefault("engine.queue_capacity", 10000)
	v.SetDefault("engine.max_rules", 100000)
	v.SetDefault("engine.quarantine_errors", 5)
	v.SetDefault("engine.quarantine_window_s", 60)
	v.SetDefault("engine.ingest_block_ms", 10)

	v.SetDefault("storage.max_violations", 1000000) // ~500MB
	v.SetDefault("storage.data_dir", "./data/rules")
	v.SetDefault("storage.signature_key", "")

	v.SetDefault("limits.spans.max_batch_size", 1000)
	v.SetDefault("limits.spans.max_attributes_per_span", 128)
	v.SetDefault("limits.spans.max_attribute_key_length", 256)
	v.SetDefault("limits.spans.max_attribute_value_length", 4096)

	v.SetDefault("limits.rules.max_expression_length", 65536) // 64KiB
	v.SetDefault("limits.rules.max_description_length", 4096)
	v.SetDefault("limits.rules.max_name_length", 256)
	v.SetDefault("limits.rules.max_rules_per_import", 1000)

	v.SetDefault("limits.trace.max_spans_per_trace", 10000)
	v.SetDefault("limits.trace.max_active_traces", 50000)
	v.SetDefault("limits.trace.evaluation_timeout", 100)
	v.SetDefault("limits.trace.idle_timeout_s", 30)

	v.SetDefault("exporter.buffer_capacity", 10000)
	v.SetDefault("exporter.flush_interval_ms", 1000)
}
