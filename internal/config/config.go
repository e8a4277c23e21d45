// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/rigrun-cascade/internal/cascade"
	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/quality"
	"github.com/jeranaias/rigrun-cascade/internal/router"
	"github.com/jeranaias/rigrun-cascade/internal/util"
)

// EnvPrefix prefixes every environment override, e.g.
// RIGRUN_CASCADE_OPENROUTER_KEY.
const EnvPrefix = "RIGRUN_CASCADE"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete router configuration.
type Config struct {
	Routing   RoutingConfig       `toml:"routing" json:"routing" yaml:"routing"`
	Quality   QualityConfig       `toml:"quality" json:"quality" yaml:"quality"`
	Tools     ToolsConfig         `toml:"tools" json:"tools" yaml:"tools"`
	Models    []model.ModelConfig `toml:"models" json:"models" yaml:"models"`
	Providers ProvidersConfig     `toml:"providers" json:"providers" yaml:"providers"`
	Logging   LoggingConfig       `toml:"logging" json:"logging" yaml:"logging"`
	Metrics   MetricsConfig       `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// RoutingConfig controls the strategy decision.
type RoutingConfig struct {
	// CascadeEnabled turns draft attempts on or off globally
	CascadeEnabled bool `toml:"cascade_enabled" json:"cascade_enabled" yaml:"cascade_enabled"`

	// CascadeComplexities lists the complexity levels that try a draft first
	CascadeComplexities []string `toml:"cascade_complexities" json:"cascade_complexities" yaml:"cascade_complexities"`

	// EscalateOnInvalidRequest escalates draft failures caused by a malformed
	// request instead of failing at the draft stage
	EscalateOnInvalidRequest bool `toml:"escalate_on_invalid_request" json:"escalate_on_invalid_request" yaml:"escalate_on_invalid_request"`
}

// QualityConfig selects a quality preset. Non-zero fields override it.
type QualityConfig struct {
	Preset        string  `toml:"preset" json:"preset" yaml:"preset"`
	MinConfidence float64 `toml:"min_confidence,omitempty" json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
	MinWordCount  int     `toml:"min_word_count,omitempty" json:"min_word_count,omitempty" yaml:"min_word_count,omitempty"`
	StrictMode    bool    `toml:"strict_mode,omitempty" json:"strict_mode,omitempty" yaml:"strict_mode,omitempty"`
}

// ToolsConfig controls tool-call validation.
type ToolsConfig struct {
	// FixedThreshold replaces the adaptive thresholds when set
	FixedThreshold *float64 `toml:"fixed_threshold,omitempty" json:"fixed_threshold,omitempty" yaml:"fixed_threshold,omitempty"`

	// SchemaFile is an optional JSON or YAML file of tool schemas
	SchemaFile string `toml:"schema_file,omitempty" json:"schema_file,omitempty" yaml:"schema_file,omitempty"`
}

// ProvidersConfig holds per-provider connection settings.
type ProvidersConfig struct {
	OpenRouter CloudConfig  `toml:"openrouter" json:"openrouter" yaml:"openrouter"`
	OpenAI     CloudConfig  `toml:"openai" json:"openai" yaml:"openai"`
	Ollama     OllamaConfig `toml:"ollama" json:"ollama" yaml:"ollama"`
}

// CloudConfig configures an OpenAI-compatible endpoint.
type CloudConfig struct {
	APIKey            string  `toml:"api_key" json:"api_key" yaml:"api_key"`
	BaseURL           string  `toml:"base_url" json:"base_url" yaml:"base_url"`
	TimeoutSecs       int     `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
	MaxRetries        int     `toml:"max_retries" json:"max_retries" yaml:"max_retries"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second"`
	SiteURL           string  `toml:"site_url,omitempty" json:"site_url,omitempty" yaml:"site_url,omitempty"`
	SiteName          string  `toml:"site_name,omitempty" json:"site_name,omitempty" yaml:"site_name,omitempty"`
}

// OllamaConfig configures the local Ollama server.
type OllamaConfig struct {
	BaseURL           string  `toml:"base_url" json:"base_url" yaml:"base_url"`
	TimeoutSecs       int     `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second"`
}

// LoggingConfig selects the zap logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level" json:"level" yaml:"level"`
	// Env is "production" (JSON) or "development" (console)
	Env string `toml:"env" json:"env" yaml:"env"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Namespace string `toml:"namespace" json:"namespace" yaml:"namespace"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values: a local Ollama
// draft model and an OpenRouter verifier.
func Default() *Config {
	return &Config{
		Routing: RoutingConfig{
			CascadeEnabled:      true,
			CascadeComplexities: complexityNames(router.DefaultCascadeComplexities),
		},
		Quality: QualityConfig{Preset: quality.PresetCascade},
		Models: []model.ModelConfig{
			{Name: "qwen2.5-coder:7b", Provider: model.ProviderOllama, SupportsTools: true},
			{Name: "anthropic/claude-3.5-sonnet", Provider: model.ProviderOpenRouter, InputCostPer1K: 0.003, OutputCostPer1K: 0.015, SupportsTools: true},
		},
		Providers: ProvidersConfig{
			OpenRouter: CloudConfig{BaseURL: "https://openrouter.ai/api/v1/", TimeoutSecs: 60, MaxRetries: 2},
			OpenAI:     CloudConfig{BaseURL: "https://api.openai.com/v1/", TimeoutSecs: 60, MaxRetries: 2},
			Ollama:     OllamaConfig{BaseURL: "http://127.0.0.1:11434", TimeoutSecs: 120},
		},
		Logging: LoggingConfig{Level: "info", Env: "production"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "rigrun_cascade"},
	}
}

func complexityNames(levels []router.QueryComplexity) []string {
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = l.String()
	}
	return names
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigrun-cascade"), nil
}

// DefaultPath returns the first existing config file in ConfigDir, trying
// config.toml, config.yaml, config.yml and config.json. It returns "" when
// none exists.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	for _, name := range []string{"config.toml", "config.yaml", "config.yml", "config.json"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// format is a config file encoding, chosen by extension.
type format int

const (
	formatTOML format = iota
	formatJSON
	formatYAML
)

func formatFor(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML, nil
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return 0, fmt.Errorf("unsupported config format %q (want .toml, .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// Load reads the config at path on top of the defaults, applies environment
// overrides, fills gaps and validates. An empty path uses DefaultPath, and
// defaults alone when no file exists.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if path != "" {
		if err := decodeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// decodeFile decodes path into cfg. Keys absent from the file keep the
// values already in cfg.
func decodeFile(cfg *Config, path string) error {
	f, err := formatFor(path)
	if err != nil {
		return err
	}
	// SECURITY: Check and fix file permissions; not fatal where unsupported
	_ = ensureSecurePermissions(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(cfg, data, f)
}

// decode decodes data in the given format into cfg. Decoders reuse slice
// backing arrays, so the model list is cleared first and restored when the
// file does not set one.
func decode(cfg *Config, data []byte, f format) error {
	models := cfg.Models
	cfg.Models = nil
	defer func() {
		if len(cfg.Models) == 0 {
			cfg.Models = models
		}
	}()

	switch f {
	case formatJSON:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON config: %w", err)
		}
	case formatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML config: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to decode TOML config: %w", err)
		}
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if len(cfg.Routing.CascadeComplexities) == 0 {
		cfg.Routing.CascadeComplexities = defaults.Routing.CascadeComplexities
	}
	if cfg.Quality.Preset == "" {
		cfg.Quality.Preset = defaults.Quality.Preset
	}

	fillCloud(&cfg.Providers.OpenRouter, defaults.Providers.OpenRouter)
	fillCloud(&cfg.Providers.OpenAI, defaults.Providers.OpenAI)
	if cfg.Providers.Ollama.BaseURL == "" {
		cfg.Providers.Ollama.BaseURL = defaults.Providers.Ollama.BaseURL
	}
	if cfg.Providers.Ollama.TimeoutSecs == 0 {
		cfg.Providers.Ollama.TimeoutSecs = defaults.Providers.Ollama.TimeoutSecs
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Env == "" {
		cfg.Logging.Env = defaults.Logging.Env
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = defaults.Metrics.Namespace
	}
}

func fillCloud(c *CloudConfig, def CloudConfig) {
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = def.TimeoutSecs
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// envOverrides are read with envconfig under EnvPrefix. Pointer fields stay
// nil when the variable is unset.
type envOverrides struct {
	OpenRouterKey            string `envconfig:"OPENROUTER_KEY"`
	OpenAIKey                string `envconfig:"OPENAI_KEY"`
	OllamaURL                string `envconfig:"OLLAMA_URL"`
	CascadeEnabled           *bool  `envconfig:"CASCADE_ENABLED"`
	EscalateOnInvalidRequest *bool  `envconfig:"ESCALATE_ON_INVALID_REQUEST"`
	QualityPreset            string `envconfig:"QUALITY_PRESET"`
	LogLevel                 string `envconfig:"LOG_LEVEL"`
	LogEnv                   string `envconfig:"LOG_ENV"`
	MetricsEnabled           *bool  `envconfig:"METRICS_ENABLED"`
}

// ApplyEnvOverrides applies RIGRUN_CASCADE_* variables on top of c.
func (c *Config) ApplyEnvOverrides() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to process environment overrides: %w", err)
	}

	if env.OpenRouterKey != "" {
		c.Providers.OpenRouter.APIKey = env.OpenRouterKey
	}
	if env.OpenAIKey != "" {
		c.Providers.OpenAI.APIKey = env.OpenAIKey
	}
	if env.OllamaURL != "" {
		c.Providers.Ollama.BaseURL = env.OllamaURL
	}
	if env.CascadeEnabled != nil {
		c.Routing.CascadeEnabled = *env.CascadeEnabled
	}
	if env.EscalateOnInvalidRequest != nil {
		c.Routing.EscalateOnInvalidRequest = *env.EscalateOnInvalidRequest
	}
	if env.QualityPreset != "" {
		c.Quality.Preset = env.QualityPreset
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.LogEnv != "" {
		c.Logging.Env = env.LogEnv
	}
	if env.MetricsEnabled != nil {
		c.Metrics.Enabled = *env.MetricsEnabled
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path in the format its extension names.
// SECURITY: Files are written 0600 (owner read/write only).
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func Save(cfg *Config, path string) error {
	data, err := Encode(cfg, path)
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders cfg in the format the path extension names.
func Encode(cfg *Config, path string) ([]byte, error) {
	f, err := formatFor(path)
	if err != nil {
		return nil, err
	}

	switch f {
	case formatJSON:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return data, nil
	case formatYAML:
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return data, nil
	default:
		var buf bytes.Buffer
		buf.WriteString("# rigrun-cascade configuration file\n")
		buf.WriteString("# Generated by rigrun-cascade - edit with care\n\n")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var knownProviders = map[string]bool{
	model.ProviderOpenRouter: true,
	model.ProviderOpenAI:     true,
	model.ProviderOllama:     true,
}

// Validate checks the configuration and returns ValidationErrors listing
// every problem, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Routing
	for _, name := range c.Routing.CascadeComplexities {
		if _, ok := router.ParseComplexity(name); !ok {
			add("routing.cascade_complexities", "unknown complexity %q", name)
		}
	}

	// Quality
	if c.Quality.Preset != "" {
		if _, ok := quality.LookupPreset(c.Quality.Preset); !ok {
			add("quality.preset", "unknown preset %q, must be one of: %s", c.Quality.Preset, strings.Join(quality.PresetNames(), ", "))
		}
	}
	if c.Quality.MinConfidence < 0 || c.Quality.MinConfidence > 1 {
		add("quality.min_confidence", "must be between 0 and 1, got %v", c.Quality.MinConfidence)
	}
	if c.Quality.MinWordCount < 0 {
		add("quality.min_word_count", "must not be negative, got %d", c.Quality.MinWordCount)
	}

	// Tools
	if t := c.Tools.FixedThreshold; t != nil && (*t < 0 || *t > 1) {
		add("tools.fixed_threshold", "must be between 0 and 1, got %v", *t)
	}

	// Models
	if len(c.Models) == 0 {
		add("models", "at least one model is required")
	}
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		field := fmt.Sprintf("models[%d]", i)
		if err := m.Validate(); err != nil {
			add(field, "%v", err)
			continue
		}
		if !knownProviders[m.Provider] {
			add(field+".provider", "unknown provider %q", m.Provider)
		}
		if seen[m.Name] {
			add(field+".name", "duplicate model %q", m.Name)
		}
		seen[m.Name] = true
		if m.BaseURL != "" {
			validateURL(&errs, field+".base_url", m.BaseURL)
		}
	}

	// Providers
	for name, p := range map[string]CloudConfig{"openrouter": c.Providers.OpenRouter, "openai": c.Providers.OpenAI} {
		field := "providers." + name
		validateURL(&errs, field+".base_url", p.BaseURL)
		if p.TimeoutSecs < 0 {
			add(field+".timeout_secs", "must not be negative")
		}
		if p.MaxRetries < 0 || p.MaxRetries > 10 {
			add(field+".max_retries", "must be between 0 and 10, got %d", p.MaxRetries)
		}
		if p.RequestsPerSecond < 0 {
			add(field+".requests_per_second", "must not be negative")
		}
	}
	validateURL(&errs, "providers.ollama.base_url", c.Providers.Ollama.BaseURL)
	if c.Providers.Ollama.TimeoutSecs < 0 {
		add("providers.ollama.timeout_secs", "must not be negative")
	}

	// Logging
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		add("logging.level", "invalid level %q", c.Logging.Level)
	}
	if env := strings.ToLower(c.Logging.Env); env != "production" && env != "development" {
		add("logging.env", "invalid env %q, must be production or development", c.Logging.Env)
	}

	// Metrics
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		add("metrics.namespace", "required when metrics are enabled")
	}

	if len(errs) > 0 {
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return errs
	}
	return nil
}

func validateURL(errs *ValidationErrors, field, raw string) {
	if raw == "" {
		*errs = append(*errs, ValidationError{Field: field, Message: "required"})
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		*errs = append(*errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid URL %q", raw)})
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

// QualityThresholds resolves the preset and applies explicit overrides.
func (c *Config) QualityThresholds() quality.Config {
	q := quality.Preset(c.Quality.Preset)
	if c.Quality.MinConfidence > 0 {
		q.MinConfidence = c.Quality.MinConfidence
	}
	if c.Quality.MinWordCount > 0 {
		q.MinWordCount = c.Quality.MinWordCount
	}
	if c.Quality.StrictMode {
		q.StrictMode = true
	}
	return q
}

// CascadeConfig builds the engine configuration. Call Validate first;
// unknown complexity names are skipped.
func (c *Config) CascadeConfig() cascade.Config {
	levels := make([]router.QueryComplexity, 0, len(c.Routing.CascadeComplexities))
	for _, name := range c.Routing.CascadeComplexities {
		if level, ok := router.ParseComplexity(name); ok {
			levels = append(levels, level)
		}
	}
	return cascade.Config{
		Routing: router.PreRouterConfig{
			CascadeEnabled:      c.Routing.CascadeEnabled,
			CascadeComplexities: levels,
		},
		Quality:                  c.QualityThresholds(),
		ToolThreshold:            c.Tools.FixedThreshold,
		EscalateOnInvalidRequest: c.Routing.EscalateOnInvalidRequest,
	}
}

// ModelConfigs returns the configured models with reference pricing filled
// in, in configured order.
func (c *Config) ModelConfigs() []model.ModelConfig {
	out := make([]model.ModelConfig, len(c.Models))
	for i, m := range c.Models {
		out[i] = m.WithDefaults()
	}
	return out
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Routing.CascadeComplexities = append([]string(nil), c.Routing.CascadeComplexities...)
	clone.Models = make([]model.ModelConfig, len(c.Models))
	for i, m := range c.Models {
		if m.ToolQuality != nil {
			q := *m.ToolQuality
			m.ToolQuality = &q
		}
		clone.Models[i] = m
	}
	if c.Tools.FixedThreshold != nil {
		t := *c.Tools.FixedThreshold
		clone.Tools.FixedThreshold = &t
	}
	return &clone
}

// String returns the config as JSON with secrets redacted.
// SECURITY: API keys must never reach logs or error output.
func (c *Config) String() string {
	safe := c.Clone()
	redact := func(s *string) {
		if *s != "" {
			*s = "[REDACTED]"
		}
	}
	redact(&safe.Providers.OpenRouter.APIKey)
	redact(&safe.Providers.OpenAI.APIKey)
	for i := range safe.Models {
		redact(&safe.Models[i].APIKey)
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
