// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/quality"
	"github.com/jeranaias/rigrun-cascade/internal/router"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Routing.CascadeEnabled)
	assert.Equal(t, []string{"trivial", "simple", "moderate"}, cfg.Routing.CascadeComplexities)
	assert.Equal(t, quality.PresetCascade, cfg.Quality.Preset)
	require.Len(t, cfg.Models, 2)
	assert.Equal(t, model.ProviderOllama, cfg.Models[0].Provider)
	assert.Equal(t, model.ProviderOpenRouter, cfg.Models[1].Provider)
}

const tomlConfig = `
[routing]
cascade_complexities = ["TRIVIAL", "SIMPLE"]

[quality]
preset = "strict"

[[models]]
name = "draft-model"
provider = "openai"
input_cost_per_1k = 0.0001
output_cost_per_1k = 0.0002

[[models]]
name = "verifier-model"
provider = "openrouter"
input_cost_per_1k = 0.003
output_cost_per_1k = 0.015
supports_tools = true

[providers.openai]
api_key = "sk-test"
`

const jsonConfig = `{
  "routing": {"cascade_complexities": ["TRIVIAL", "SIMPLE"]},
  "quality": {"preset": "strict"},
  "models": [
    {"name": "draft-model", "provider": "openai", "input_cost_per_1k": 0.0001, "output_cost_per_1k": 0.0002},
    {"name": "verifier-model", "provider": "openrouter", "input_cost_per_1k": 0.003, "output_cost_per_1k": 0.015, "supports_tools": true}
  ],
  "providers": {"openai": {"api_key": "sk-test"}}
}`

const yamlConfig = `
routing:
  cascade_complexities: [TRIVIAL, SIMPLE]
quality:
  preset: strict
models:
  - name: draft-model
    provider: openai
    input_cost_per_1k: 0.0001
    output_cost_per_1k: 0.0002
  - name: verifier-model
    provider: openrouter
    input_cost_per_1k: 0.003
    output_cost_per_1k: 0.015
    supports_tools: true
providers:
  openai:
    api_key: sk-test
`

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "cascade.toml", tomlConfig},
		{"json", "cascade.json", jsonConfig},
		{"yaml", "cascade.yaml", yamlConfig},
		{"yml", "cascade.yml", yamlConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, []string{"TRIVIAL", "SIMPLE"}, cfg.Routing.CascadeComplexities)
			assert.Equal(t, quality.PresetStrict, cfg.Quality.Preset)
			assert.Equal(t, "sk-test", cfg.Providers.OpenAI.APIKey)

			require.Len(t, cfg.Models, 2)
			assert.Equal(t, "draft-model", cfg.Models[0].Name)
			assert.False(t, cfg.Models[0].SupportsTools, "default model fields must not leak into file models")
			assert.Equal(t, 0.015, cfg.Models[1].OutputCostPer1K)
			assert.True(t, cfg.Models[1].SupportsTools)

			// Omitted keys keep defaults
			assert.True(t, cfg.Routing.CascadeEnabled)
			assert.Equal(t, "https://openrouter.ai/api/v1/", cfg.Providers.OpenRouter.BaseURL)
			assert.Equal(t, 60, cfg.Providers.OpenAI.TimeoutSecs)
			assert.Equal(t, "info", cfg.Logging.Level)
		})
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", os.Getenv("HOME"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Models, cfg.Models)
}

func TestLoad_DefaultPathDiscovery(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	dir := filepath.Join(home, ".rigrun-cascade")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlConfig), 0600))

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "draft-model", cfg.Models[0].Name)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unsupported extension", "cascade.ini", "x=1", "unsupported config format"},
		{"malformed toml", "cascade.toml", "[routing", "failed to decode TOML"},
		{"malformed json", "cascade.json", "{", "failed to decode JSON"},
		{"invalid values", "cascade.toml", "[quality]\npreset = \"lenient\"\n", "quality.preset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})
}

func TestLoad_FixesPermissions(t *testing.T) {
	if os.PathSeparator == '\\' {
		t.Skip("permission bits are not enforced on windows")
	}
	path := writeFile(t, "cascade.toml", tomlConfig)
	require.NoError(t, os.Chmod(path, 0644))

	_, err := Load(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RIGRUN_CASCADE_OPENROUTER_KEY", "sk-or-env")
	t.Setenv("RIGRUN_CASCADE_OLLAMA_URL", "http://gpu-box:11434")
	t.Setenv("RIGRUN_CASCADE_CASCADE_ENABLED", "false")
	t.Setenv("RIGRUN_CASCADE_ESCALATE_ON_INVALID_REQUEST", "true")
	t.Setenv("RIGRUN_CASCADE_QUALITY_PRESET", "production")
	t.Setenv("RIGRUN_CASCADE_LOG_LEVEL", "debug")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides())

	assert.Equal(t, "sk-or-env", cfg.Providers.OpenRouter.APIKey)
	assert.Equal(t, "http://gpu-box:11434", cfg.Providers.Ollama.BaseURL)
	assert.False(t, cfg.Routing.CascadeEnabled)
	assert.True(t, cfg.Routing.EscalateOnInvalidRequest)
	assert.Equal(t, quality.PresetProduction, cfg.Quality.Preset)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset booleans leave the config alone
	assert.True(t, cfg.Metrics.Enabled)
}

func TestApplyEnvOverrides_InvalidBool(t *testing.T) {
	t.Setenv("RIGRUN_CASCADE_CASCADE_ENABLED", "sometimes")

	err := Default().ApplyEnvOverrides()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	threshold := 1.5

	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"valid default", func(*Config) {}, nil},
		{"unknown complexity", func(c *Config) {
			c.Routing.CascadeComplexities = []string{"simple", "impossible"}
		}, []string{"routing.cascade_complexities"}},
		{"unknown preset", func(c *Config) { c.Quality.Preset = "lenient" }, []string{"quality.preset"}},
		{"confidence out of range", func(c *Config) { c.Quality.MinConfidence = 1.2 }, []string{"quality.min_confidence"}},
		{"negative word count", func(c *Config) { c.Quality.MinWordCount = -1 }, []string{"quality.min_word_count"}},
		{"tool threshold out of range", func(c *Config) { c.Tools.FixedThreshold = &threshold }, []string{"tools.fixed_threshold"}},
		{"no models", func(c *Config) { c.Models = nil }, []string{"models"}},
		{"duplicate model", func(c *Config) {
			c.Models = append(c.Models, c.Models[0])
		}, []string{"models[2].name"}},
		{"unknown provider", func(c *Config) { c.Models[0].Provider = "bedrock" }, []string{"models[0].provider"}},
		{"bad provider url", func(c *Config) {
			c.Providers.OpenAI.BaseURL = "ftp://example.com"
		}, []string{"providers.openai.base_url"}},
		{"too many retries", func(c *Config) { c.Providers.OpenRouter.MaxRetries = 50 }, []string{"providers.openrouter.max_retries"}},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, []string{"logging.level"}},
		{"bad log env", func(c *Config) { c.Logging.Env = "staging" }, []string{"logging.env"}},
		{"multiple problems sorted", func(c *Config) {
			c.Logging.Level = "loud"
			c.Quality.Preset = "lenient"
		}, []string{"logging.level", "quality.preset"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			got := make([]string, len(verrs))
			for i, e := range verrs {
				got[i] = e.Field
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"cascade.toml", "cascade.json", "cascade.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := Default()
			cfg.Quality.Preset = quality.PresetProduction
			cfg.Routing.EscalateOnInvalidRequest = true
			require.NoError(t, Save(cfg, path))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestEncode_TOMLHeader(t *testing.T) {
	data, err := Encode(Default(), "cascade.toml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# rigrun-cascade configuration file"))
}

func TestConfig_CascadeConfig(t *testing.T) {
	threshold := 0.8
	cfg := Default()
	cfg.Routing.CascadeComplexities = []string{"trivial", "SIMPLE"}
	cfg.Routing.EscalateOnInvalidRequest = true
	cfg.Quality.Preset = quality.PresetProduction
	cfg.Quality.MinWordCount = 25
	cfg.Tools.FixedThreshold = &threshold

	ec := cfg.CascadeConfig()

	assert.True(t, ec.Routing.CascadeEnabled)
	assert.Equal(t, []router.QueryComplexity{router.ComplexityTrivial, router.ComplexitySimple}, ec.Routing.CascadeComplexities)
	assert.Equal(t, 0.70, ec.Quality.MinConfidence)
	assert.Equal(t, 25, ec.Quality.MinWordCount)
	assert.True(t, ec.EscalateOnInvalidRequest)
	require.NotNil(t, ec.ToolThreshold)
	assert.Equal(t, 0.8, *ec.ToolThreshold)
}

func TestConfig_ModelConfigsFillsReferencePricing(t *testing.T) {
	cfg := Default()
	cfg.Models = []model.ModelConfig{{Name: "gpt-4o-mini", Provider: model.ProviderOpenAI}}

	models := cfg.ModelConfigs()
	require.Len(t, models, 1)
	assert.Greater(t, models[0].InputCostPer1K, 0.0)
	assert.Zero(t, cfg.Models[0].InputCostPer1K, "configured models are not mutated")
}

func TestConfig_Clone(t *testing.T) {
	q := 0.9
	cfg := Default()
	cfg.Models[0].ToolQuality = &q

	clone := cfg.Clone()
	clone.Models[0].Name = "changed"
	*clone.Models[0].ToolQuality = 0.1
	clone.Routing.CascadeComplexities[0] = "EXPERT"

	assert.Equal(t, "qwen2.5-coder:7b", cfg.Models[0].Name)
	assert.Equal(t, 0.9, *cfg.Models[0].ToolQuality)
	assert.Equal(t, "trivial", cfg.Routing.CascadeComplexities[0])
}

func TestConfig_StringRedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Providers.OpenRouter.APIKey = "sk-or-secret"
	cfg.Providers.OpenAI.APIKey = "sk-secret"

	out := cfg.String()
	assert.NotContains(t, out, "sk-or-secret")
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "[REDACTED]")
	assert.Equal(t, "sk-secret", cfg.Providers.OpenAI.APIKey)
}
