// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// PRICING TESTS
// =============================================================================

func TestModelConfig_Cost(t *testing.T) {
	m := ModelConfig{Name: "x", Provider: ProviderOpenAI, InputCostPer1K: 0.003, OutputCostPer1K: 0.015}

	tests := []struct {
		name  string
		usage Usage
		want  string
	}{
		{"zero", Usage{}, "0"},
		{"input only", Usage{InputTokens: 1000}, "0.003"},
		{"both", Usage{InputTokens: 2000, OutputTokens: 500}, "0.0135"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Cost(tc.usage)
			want := decimal.RequireFromString(tc.want)
			if !got.Equal(want) {
				t.Errorf("Cost(%+v) = %s, want %s", tc.usage, got, want)
			}
		})
	}
}

func TestModelConfig_CostSumsExactly(t *testing.T) {
	m := ModelConfig{InputCostPer1K: 0.0001, OutputCostPer1K: 0.0001}
	total := decimal.Zero
	for i := 0; i < 1000; i++ {
		total = total.Add(m.Cost(Usage{InputTokens: 1, OutputTokens: 2}))
	}
	assert.True(t, total.Equal(decimal.RequireFromString("0.0003")), "got %s", total)
}

func TestModelConfig_Validate(t *testing.T) {
	bad := 1.5
	tests := []struct {
		name    string
		model   ModelConfig
		wantErr bool
	}{
		{"valid", ModelConfig{Name: "a", Provider: ProviderOllama}, false},
		{"missing name", ModelConfig{Provider: ProviderOllama}, true},
		{"missing provider", ModelConfig{Name: "a"}, true},
		{"negative cost", ModelConfig{Name: "a", Provider: ProviderOpenAI, InputCostPer1K: -1}, true},
		{"tool quality out of range", ModelConfig{Name: "a", Provider: ProviderOpenAI, ToolQuality: &bad}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.model.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

// =============================================================================
// REFERENCE TESTS
// =============================================================================

func TestWithDefaults(t *testing.T) {
	filled := ModelConfig{Name: "gpt-4o-mini", Provider: ProviderOpenAI}.WithDefaults()
	assert.Equal(t, 0.00015, filled.InputCostPer1K)
	assert.Equal(t, 0.0006, filled.OutputCostPer1K)
	assert.True(t, filled.SupportsTools)

	explicit := ModelConfig{Name: "gpt-4o-mini", Provider: ProviderOpenAI, InputCostPer1K: 1}.WithDefaults()
	assert.Equal(t, 1.0, explicit.InputCostPer1K, "explicit pricing must be kept")

	local := ModelConfig{Name: "qwen2.5:7b", Provider: ProviderOllama}.WithDefaults()
	assert.True(t, local.SupportsTools)
	if assert.NotNil(t, local.ToolQuality) {
		assert.Equal(t, 0.9, *local.ToolQuality)
	}

	unknown := ModelConfig{Name: "mystery", Provider: ProviderOpenRouter}.WithDefaults()
	assert.False(t, unknown.SupportsTools)
	assert.Nil(t, unknown.ToolQuality)
}

func TestToolSupportFor(t *testing.T) {
	tests := []struct {
		name string
		want ToolSupportLevel
	}{
		{"llama3.1", ToolSupportExcellent},
		{"qwen2.5-coder:14b", ToolSupportExcellent},
		{"MIXTRAL:8x7b", ToolSupportGood},
		{"smollm2:135m", ToolSupportBasic},
		{"phi3", ToolSupportNone},
	}
	for _, tc := range tests {
		if got := ToolSupportFor(tc.name); got != tc.want {
			t.Errorf("ToolSupportFor(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLastUserContent(t *testing.T) {
	msgs := []Message{
		NewSystemMessage("be brief"),
		NewUserMessage("first"),
		NewAssistantMessage("answer"),
		NewUserMessage("second"),
	}
	assert.Equal(t, "second", LastUserContent(msgs))
	assert.Equal(t, "", LastUserContent(nil))
	assert.Equal(t, "be brief\nfirst\nanswer\nsecond", PromptText(msgs))
}
