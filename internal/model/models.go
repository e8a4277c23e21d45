// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MODEL CONFIG
// =============================================================================

// Provider identifiers understood by the provider registry.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderOllama     = "ollama"
)

// ModelConfig describes one candidate model. It is immutable once loaded and
// owned by the caller's configuration.
type ModelConfig struct {
	// Name is the model identifier used in API calls
	Name string `json:"name" toml:"name" yaml:"name"`

	// Provider selects the client that serves this model
	Provider string `json:"provider" toml:"provider" yaml:"provider"`

	// InputCostPer1K is the USD cost per 1000 prompt tokens (0 for local models)
	InputCostPer1K float64 `json:"input_cost_per_1k" toml:"input_cost_per_1k" yaml:"input_cost_per_1k"`

	// OutputCostPer1K is the USD cost per 1000 completion tokens
	OutputCostPer1K float64 `json:"output_cost_per_1k" toml:"output_cost_per_1k" yaml:"output_cost_per_1k"`

	// SupportsTools reports native function calling
	SupportsTools bool `json:"supports_tools" toml:"supports_tools" yaml:"supports_tools"`

	// ToolQuality is an optional 0..1 score of how reliably the model forms
	// tool calls. Nil means unknown.
	ToolQuality *float64 `json:"tool_quality,omitempty" toml:"tool_quality,omitempty" yaml:"tool_quality,omitempty"`

	// APIKey and BaseURL are opaque credentials handed to the provider client
	APIKey  string `json:"-" toml:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" toml:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// Usage is the token accounting of one model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

var thousand = decimal.NewFromInt(1000)

// Cost returns the exact USD cost of a call with the given usage.
func (m ModelConfig) Cost(u Usage) decimal.Decimal {
	in := decimal.NewFromInt(int64(u.InputTokens)).Mul(decimal.NewFromFloat(m.InputCostPer1K)).Div(thousand)
	out := decimal.NewFromInt(int64(u.OutputTokens)).Mul(decimal.NewFromFloat(m.OutputCostPer1K)).Div(thousand)
	return in.Add(out)
}

// CostUSD returns Cost as a float64 for result fields.
func (m ModelConfig) CostUSD(u Usage) float64 {
	return m.Cost(u).InexactFloat64()
}

// BlendedCostPer1K averages input and output pricing. Used to compare models
// against a cost ceiling.
func (m ModelConfig) BlendedCostPer1K() float64 {
	return (m.InputCostPer1K + m.OutputCostPer1K) / 2
}

// IsLocal returns true if the model runs on a free local provider.
func (m ModelConfig) IsLocal() bool {
	return m.Provider == ProviderOllama
}

// ToolQualityOr returns the tool quality score, or def when unknown.
func (m ModelConfig) ToolQualityOr(def float64) float64 {
	if m.ToolQuality == nil {
		return def
	}
	return *m.ToolQuality
}

// Validate checks the fields every model needs.
func (m ModelConfig) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("model name is required")
	}
	if m.Provider == "" {
		return fmt.Errorf("model %s: provider is required", m.Name)
	}
	if m.InputCostPer1K < 0 || m.OutputCostPer1K < 0 {
		return fmt.Errorf("model %s: costs must be non-negative", m.Name)
	}
	if m.ToolQuality != nil && (*m.ToolQuality < 0 || *m.ToolQuality > 1) {
		return fmt.Errorf("model %s: tool_quality must be between 0 and 1", m.Name)
	}
	return nil
}

// String returns "provider/name".
func (m ModelConfig) String() string {
	return m.Provider + "/" + m.Name
}

// Names returns the names of the given models in order.
func Names(models []ModelConfig) []string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names
}

// =============================================================================
// REFERENCE PRICING
// =============================================================================

// Reference is a known model's published pricing and tool support. It is used
// to fill gaps in configured models, never to override explicit values.
type Reference struct {
	InputCostPer1K  float64
	OutputCostPer1K float64
	SupportsTools   bool
}

// References is the table of known models keyed by API identifier.
// Pricing in USD per 1K tokens.
var References = map[string]Reference{
	// Anthropic via OpenRouter
	"anthropic/claude-3-haiku":    {0.00025, 0.00125, true},
	"anthropic/claude-3.5-sonnet": {0.003, 0.015, true},
	"anthropic/claude-3-opus":     {0.015, 0.075, true},

	// OpenAI
	"gpt-4o":             {0.0025, 0.01, true},
	"gpt-4o-mini":        {0.00015, 0.0006, true},
	"openai/gpt-4o":      {0.0025, 0.01, true},
	"openai/gpt-4o-mini": {0.00015, 0.0006, true},

	// Local Ollama models are free
	"llama3":        {0, 0, false},
	"llama3.1":      {0, 0, true},
	"qwen2.5":       {0, 0, true},
	"qwen2.5-coder": {0, 0, true},
	"mistral":       {0, 0, true},
	"phi3":          {0, 0, false},
}

// LookupReference finds a reference entry by exact name, then by the base
// name before any ":size" tag.
func LookupReference(name string) (Reference, bool) {
	lower := strings.ToLower(name)
	if ref, ok := References[lower]; ok {
		return ref, true
	}
	if i := strings.Index(lower, ":"); i > 0 {
		ref, ok := References[lower[:i]]
		return ref, ok
	}
	return Reference{}, false
}

// WithDefaults fills zero pricing and a nil tool quality from the reference
// tables. Explicit values are kept.
func (m ModelConfig) WithDefaults() ModelConfig {
	if ref, ok := LookupReference(m.Name); ok {
		if m.InputCostPer1K == 0 && m.OutputCostPer1K == 0 {
			m.InputCostPer1K = ref.InputCostPer1K
			m.OutputCostPer1K = ref.OutputCostPer1K
		}
		if !m.SupportsTools {
			m.SupportsTools = ref.SupportsTools
		}
	}
	if m.ToolQuality == nil && m.SupportsTools && m.IsLocal() {
		if level := ToolSupportFor(m.Name); level != ToolSupportNone {
			q := level.Quality()
			m.ToolQuality = &q
		}
	}
	return m
}

// ReferenceNames returns the known model identifiers, sorted.
func ReferenceNames() []string {
	names := make([]string, 0, len(References))
	for name := range References {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
