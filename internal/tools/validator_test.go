// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/rigrun-cascade/internal/router"
)

func weatherCatalog() Catalog {
	return NewCatalog([]ToolSchema{{
		Name:        "get_weather",
		Description: "Current weather for a city",
		Parameters: &Parameters{
			Type: "object",
			Properties: map[string]Property{
				"location": {Type: "string", Description: "City name"},
				"unit":     {Type: "string", Description: "celsius or fahrenheit"},
			},
			Required: []string{"location"},
		},
	}})
}

func complexityPtr(c router.QueryComplexity) *router.QueryComplexity { return &c }

// TestWeightsSumToOne verifies the check weights sum to exactly 1.0.
func TestWeightsSumToOne(t *testing.T) {
	w := Weights()
	sum := w.JSONValid + w.SchemaValid + w.ToolExists + w.RequiredFields + w.ParametersSensible
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Equal(t, weightTotal, weightJSONValid+weightSchemaValid+weightToolExists+weightRequiredFields+weightParametersSensible)
}

// TestValidCallScoresOne checks a well-formed call at every threshold.
func TestValidCallScoresOne(t *testing.T) {
	v := NewToolCallValidator()
	call := map[string]any{"name": "get_weather", "arguments": map[string]any{"location": "Paris"}}

	levels := append([]*router.QueryComplexity{nil}, complexityPtr(router.ComplexityTrivial),
		complexityPtr(router.ComplexitySimple), complexityPtr(router.ComplexityModerate),
		complexityPtr(router.ComplexityHard), complexityPtr(router.ComplexityExpert))
	for _, c := range levels {
		got := v.Validate([]any{call}, weatherCatalog(), c)
		if got.OverallScore != 1.0 || !got.IsValid {
			t.Errorf("complexity %v: score %v valid %v issues %v", c, got.OverallScore, got.IsValid, got.Issues)
		}
	}
}

// TestUndeclaredToolScoresSixty checks the undeclared-tool score.
func TestUndeclaredToolScoresSixty(t *testing.T) {
	v := NewToolCallValidator()
	call := map[string]any{"name": "get_stock_price", "arguments": map[string]any{"location": "Paris"}}

	for _, c := range []*router.QueryComplexity{
		nil,
		complexityPtr(router.ComplexityTrivial),
		complexityPtr(router.ComplexitySimple),
		complexityPtr(router.ComplexityModerate),
	} {
		got := v.Validate([]any{call}, weatherCatalog(), c)
		assert.False(t, got.ToolExists)
		assert.Equal(t, 0.60, got.OverallScore)
		assert.False(t, got.IsValid, "threshold %v", got.ThresholdUsed)
	}
}

// TestValidatorChecks tests each check in isolation.
func TestValidatorChecks(t *testing.T) {
	tests := []struct {
		name     string
		call     any
		catalog  Catalog
		json     bool
		schema   bool
		exists   bool
		required bool
		sensible bool
	}{
		{
			name: "not an object", call: []any{"x"}, catalog: weatherCatalog(),
		},
		{
			name: "nil", call: nil, catalog: weatherCatalog(),
		},
		{
			name:    "nested openai shape with string args",
			call:    map[string]any{"function": map[string]any{"name": "get_weather", "arguments": `{"location":"Oslo"}`}},
			catalog: weatherCatalog(),
			json:    true, schema: true, exists: true, required: true, sensible: true,
		},
		{
			name:    "args alias",
			call:    map[string]any{"name": "get_weather", "args": map[string]any{"location": "Oslo"}},
			catalog: weatherCatalog(),
			json:    true, schema: true, exists: true, required: true, sensible: true,
		},
		{
			name:    "parameters alias",
			call:    map[string]any{"name": "get_weather", "parameters": map[string]any{"location": "Oslo"}},
			catalog: weatherCatalog(),
			json:    true, schema: true, exists: true, required: true, sensible: true,
		},
		{
			name:    "missing required field",
			call:    map[string]any{"name": "get_weather", "arguments": map[string]any{"unit": "celsius"}},
			catalog: weatherCatalog(),
			json:    true, schema: true, exists: true, required: false, sensible: true,
		},
		{
			name:    "malformed string args",
			call:    map[string]any{"name": "get_weather", "arguments": `{"location": "Oslo"`},
			catalog: weatherCatalog(),
			json:    true, schema: true, exists: true, required: false, sensible: false,
		},
		{
			name:    "array args",
			call:    map[string]any{"name": "get_weather", "arguments": []any{"Oslo"}},
			catalog: weatherCatalog(),
			json:    true, schema: true, exists: true, required: false, sensible: false,
		},
		{
			name:    "missing arguments",
			call:    map[string]any{"name": "get_weather"},
			catalog: weatherCatalog(),
			json:    true, schema: false, exists: true, required: false, sensible: false,
		},
		{
			name:    "missing name",
			call:    map[string]any{"arguments": map[string]any{"location": "Oslo"}},
			catalog: weatherCatalog(),
			json:    true, schema: false, exists: false, required: false, sensible: true,
		},
		{
			name:    "no catalog",
			call:    map[string]any{"name": "anything", "arguments": map[string]any{}},
			catalog: nil,
			json:    true, schema: true, exists: true, required: true, sensible: true,
		},
	}

	v := NewToolCallValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate([]any{tt.call}, tt.catalog, nil)
			assert.Equal(t, tt.json, got.JSONValid, "json")
			assert.Equal(t, tt.schema, got.SchemaValid, "schema")
			assert.Equal(t, tt.exists, got.ToolExists, "exists")
			assert.Equal(t, tt.required, got.RequiredFieldsPresent, "required")
			assert.Equal(t, tt.sensible, got.ParametersSensible, "sensible")
			if got.OverallScore < 1.0 {
				assert.NotEmpty(t, got.Issues)
			}
		})
	}
}

// TestOverallScoreIsWeightedSum checks every combination of check outcomes
// against the weighted sum.
func TestOverallScoreIsWeightedSum(t *testing.T) {
	w := Weights()
	v := NewToolCallValidator()
	catalog := weatherCatalog()

	// Build calls whose outcomes cover distinct check patterns, then confirm
	// each score equals the sum of the weights of its passing checks.
	calls := []any{
		nil,
		map[string]any{"name": "get_weather"},
		map[string]any{"name": "nope", "arguments": "not json"},
		map[string]any{"arguments": map[string]any{}},
		map[string]any{"name": "get_weather", "arguments": map[string]any{}},
		map[string]any{"name": "get_weather", "arguments": map[string]any{"location": "x"}},
		map[string]any{"name": "nope", "arguments": map[string]any{"location": "x"}},
	}
	for i, call := range calls {
		got := v.Validate([]any{call}, catalog, nil)
		points := 0
		for _, c := range []struct {
			ok bool
			w  int
		}{
			{got.JSONValid, weightJSONValid},
			{got.SchemaValid, weightSchemaValid},
			{got.ToolExists, weightToolExists},
			{got.RequiredFieldsPresent, weightRequiredFields},
			{got.ParametersSensible, weightParametersSensible},
		} {
			if c.ok {
				points += c.w
			}
		}
		if got.OverallScore != float64(points)/weightTotal {
			t.Errorf("call %d: score %v, weighted sum %v", i, got.OverallScore, float64(points)/weightTotal)
		}
		approx := 0.0
		if got.JSONValid {
			approx += w.JSONValid
		}
		if got.SchemaValid {
			approx += w.SchemaValid
		}
		if got.ToolExists {
			approx += w.ToolExists
		}
		if got.RequiredFieldsPresent {
			approx += w.RequiredFields
		}
		if got.ParametersSensible {
			approx += w.ParametersSensible
		}
		assert.InDelta(t, approx, got.OverallScore, 1e-12)
	}
}

// TestBatchRequiresEveryCall verifies one bad call fails the batch check.
func TestBatchRequiresEveryCall(t *testing.T) {
	v := NewToolCallValidator()
	good := map[string]any{"name": "get_weather", "arguments": map[string]any{"location": "Paris"}}
	bad := map[string]any{"name": "get_weather", "arguments": map[string]any{}}

	got := v.Validate([]any{good, bad}, weatherCatalog(), nil)
	assert.True(t, got.JSONValid)
	assert.False(t, got.RequiredFieldsPresent)
	assert.Equal(t, 0.80, got.OverallScore)
	assert.Contains(t, got.Issues[0], "call 1")
}

// TestEmptyBatch verifies an empty batch fails with an issue.
func TestEmptyBatch(t *testing.T) {
	got := NewToolCallValidator().Validate(nil, weatherCatalog(), nil)
	assert.Zero(t, got.OverallScore)
	assert.False(t, got.IsValid)
	assert.NotEmpty(t, got.Issues)
}

// TestThresholds tests adaptive and fixed thresholds.
func TestThresholds(t *testing.T) {
	v := NewToolCallValidator()
	tests := []struct {
		complexity *router.QueryComplexity
		want       float64
	}{
		{complexityPtr(router.ComplexityTrivial), 0.70},
		{complexityPtr(router.ComplexitySimple), 0.75},
		{complexityPtr(router.ComplexityModerate), 0.85},
		{nil, 0.80},
	}
	for _, tt := range tests {
		got, adaptive := v.Threshold(tt.complexity)
		if got != tt.want || !adaptive {
			t.Errorf("Threshold(%v) = %v, %v", tt.complexity, got, adaptive)
		}
	}

	fixed := NewToolCallValidator(WithFixedThreshold(0.5))
	got, adaptive := fixed.Threshold(complexityPtr(router.ComplexityExpert))
	assert.Equal(t, 0.5, got)
	assert.False(t, adaptive)

	score := fixed.Validate([]any{map[string]any{"name": "x", "arguments": map[string]any{}}}, weatherCatalog(), nil)
	assert.Equal(t, 0.60, score.OverallScore)
	assert.True(t, score.IsValid)
	assert.False(t, score.AdaptiveThreshold)
}

// TestValidateCalls verifies normalized calls go through the same checks.
func TestValidateCalls(t *testing.T) {
	v := NewToolCallValidator()
	calls := []ToolCall{NewCall(FormatOpenAI, "call_1", "get_weather", `{"location":"Paris"}`)}
	got := v.ValidateCalls(calls, weatherCatalog(), complexityPtr(router.ComplexityTrivial))
	assert.Equal(t, 1.0, got.OverallScore)
	assert.Equal(t, "trivial", got.ComplexityLevel)

	broken := []ToolCall{NewCall(FormatOpenAI, "call_2", "get_weather", `{"location":`)}
	got = v.ValidateCalls(broken, weatherCatalog(), nil)
	assert.False(t, got.RequiredFieldsPresent)
	assert.False(t, got.ParametersSensible)
}
