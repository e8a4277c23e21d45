// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"fmt"

	"github.com/jeranaias/rigrun-cascade/internal/router"
)

// =============================================================================
// WEIGHTS AND THRESHOLDS
// =============================================================================

// Check weights in basis points. Integer arithmetic keeps the overall score
// an exact weighted sum: 100 points is a score of 1.0.
const (
	weightJSONValid          = 25
	weightSchemaValid        = 20
	weightToolExists         = 20
	weightRequiredFields     = 20
	weightParametersSensible = 15
	weightTotal              = 100
)

// CheckWeights are the check weights as fractions of 1.0.
type CheckWeights struct {
	JSONValid          float64
	SchemaValid        float64
	ToolExists         float64
	RequiredFields     float64
	ParametersSensible float64
}

// Weights returns the fixed check weights.
func Weights() CheckWeights {
	return CheckWeights{
		JSONValid:          float64(weightJSONValid) / weightTotal,
		SchemaValid:        float64(weightSchemaValid) / weightTotal,
		ToolExists:         float64(weightToolExists) / weightTotal,
		RequiredFields:     float64(weightRequiredFields) / weightTotal,
		ParametersSensible: float64(weightParametersSensible) / weightTotal,
	}
}

// AdaptiveThresholds is the acceptance bar per complexity. Harder tasks get a
// higher bar since small models mis-form tool calls more often there.
var AdaptiveThresholds = map[router.QueryComplexity]float64{
	router.ComplexityTrivial:  0.70,
	router.ComplexitySimple:   0.75,
	router.ComplexityModerate: 0.85,
	router.ComplexityHard:     0.90,
	router.ComplexityExpert:   0.95,
}

// UnknownComplexityThreshold applies when no complexity is known.
const UnknownComplexityThreshold = 0.80

// argumentKeys are the accepted names for the arguments payload.
var argumentKeys = []string{"arguments", "args", "parameters"}

// =============================================================================
// TOOL QUALITY SCORE
// =============================================================================

// ToolQualityScore is the verdict on one batch of proposed tool calls.
type ToolQualityScore struct {
	OverallScore  float64 `json:"overall_score"`
	ThresholdUsed float64 `json:"threshold_used"`
	IsValid       bool    `json:"is_valid"`

	JSONValid             bool `json:"json_valid"`
	SchemaValid           bool `json:"schema_valid"`
	ToolExists            bool `json:"tool_exists"`
	RequiredFieldsPresent bool `json:"required_fields_present"`
	ParametersSensible    bool `json:"parameters_sensible"`

	Issues            []string `json:"issues,omitempty"`
	ComplexityLevel   string   `json:"complexity_level"`
	AdaptiveThreshold bool     `json:"adaptive_threshold"`
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ToolCallValidator scores tool calls against declared schemas.
// It holds no mutable state and is safe for concurrent use.
type ToolCallValidator struct {
	fixedThreshold *float64
}

// ValidatorOption configures a ToolCallValidator.
type ValidatorOption func(*ToolCallValidator)

// WithFixedThreshold disables adaptive thresholds.
func WithFixedThreshold(threshold float64) ValidatorOption {
	return func(v *ToolCallValidator) { v.fixedThreshold = &threshold }
}

// NewToolCallValidator creates a validator using adaptive thresholds unless
// configured otherwise.
func NewToolCallValidator(opts ...ValidatorOption) *ToolCallValidator {
	v := &ToolCallValidator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Threshold returns the acceptance bar for a complexity, nil meaning unknown.
func (v *ToolCallValidator) Threshold(complexity *router.QueryComplexity) (float64, bool) {
	if v.fixedThreshold != nil {
		return *v.fixedThreshold, false
	}
	if complexity != nil {
		if t, ok := AdaptiveThresholds[*complexity]; ok {
			return t, true
		}
	}
	return UnknownComplexityThreshold, true
}

// ValidateCalls scores normalized tool calls.
func (v *ToolCallValidator) ValidateCalls(calls []ToolCall, catalog Catalog, complexity *router.QueryComplexity) ToolQualityScore {
	raws := make([]any, len(calls))
	for i, c := range calls {
		raws[i] = c.ToRaw()
	}
	return v.Validate(raws, catalog, complexity)
}

// Validate scores raw decoded JSON tool calls. A check passes for the batch
// only if it passes for every call. An empty catalog skips the existence check.
func (v *ToolCallValidator) Validate(calls []any, catalog Catalog, complexity *router.QueryComplexity) ToolQualityScore {
	threshold, adaptive := v.Threshold(complexity)
	score := ToolQualityScore{
		ThresholdUsed:     threshold,
		ComplexityLevel:   "unknown",
		AdaptiveThreshold: adaptive,
	}
	if complexity != nil {
		score.ComplexityLevel = complexity.String()
	}

	if len(calls) == 0 {
		score.Issues = append(score.Issues, "no tool calls to validate")
		return score
	}

	score.JSONValid = true
	score.SchemaValid = true
	score.ToolExists = true
	score.RequiredFieldsPresent = true
	score.ParametersSensible = true

	for i, call := range calls {
		c := checkCall(call, catalog)
		for _, issue := range c.issues {
			score.Issues = append(score.Issues, fmt.Sprintf("call %d: %s", i, issue))
		}
		score.JSONValid = score.JSONValid && c.jsonValid
		score.SchemaValid = score.SchemaValid && c.schemaValid
		score.ToolExists = score.ToolExists && c.toolExists
		score.RequiredFieldsPresent = score.RequiredFieldsPresent && c.requiredFields
		score.ParametersSensible = score.ParametersSensible && c.parametersSensible
	}

	points := 0
	if score.JSONValid {
		points += weightJSONValid
	}
	if score.SchemaValid {
		points += weightSchemaValid
	}
	if score.ToolExists {
		points += weightToolExists
	}
	if score.RequiredFieldsPresent {
		points += weightRequiredFields
	}
	if score.ParametersSensible {
		points += weightParametersSensible
	}
	score.OverallScore = float64(points) / weightTotal
	score.IsValid = score.OverallScore >= threshold
	return score
}

// callChecks are the per-call results before batch aggregation.
type callChecks struct {
	jsonValid          bool
	schemaValid        bool
	toolExists         bool
	requiredFields     bool
	parametersSensible bool
	issues             []string
}

func checkCall(call any, catalog Catalog) callChecks {
	var c callChecks

	obj, ok := call.(map[string]any)
	if !ok || obj == nil {
		c.issues = append(c.issues, fmt.Sprintf("not a JSON object (%T)", call))
		return c
	}
	c.jsonValid = true

	name := callName(obj)
	argsVal, hasArgs := callArguments(obj)
	c.schemaValid = name != "" && hasArgs
	if name == "" {
		c.issues = append(c.issues, "missing tool name")
	}
	if !hasArgs {
		c.issues = append(c.issues, "missing arguments")
	}

	schema, declared := catalog[name]
	c.toolExists = len(catalog) == 0 || declared
	if !c.toolExists {
		c.issues = append(c.issues, fmt.Sprintf("tool %q is not declared", name))
	}

	args, _, err := parseArguments(argsVal)
	if err != nil {
		c.issues = append(c.issues, err.Error())
	}
	c.parametersSensible = hasArgs && err == nil && args != nil
	if hasArgs && err == nil && args == nil {
		c.issues = append(c.issues, "arguments are null")
	}

	switch {
	case err != nil:
		c.requiredFields = false
	case len(catalog) == 0:
		c.requiredFields = true
	case !declared:
		c.requiredFields = false
	default:
		c.requiredFields = true
		for _, field := range schema.RequiredFields() {
			if _, present := args[field]; !present {
				c.requiredFields = false
				c.issues = append(c.issues, fmt.Sprintf("missing required field %q", field))
			}
		}
	}
	return c
}

// callName finds the tool name directly on the call or nested under "function".
func callName(obj map[string]any) string {
	if name, ok := obj["name"].(string); ok && name != "" {
		return name
	}
	if fn, ok := obj["function"].(map[string]any); ok {
		if name, ok := fn["name"].(string); ok {
			return name
		}
	}
	return ""
}

// callArguments finds the arguments under any accepted alias, directly or
// nested under "function".
func callArguments(obj map[string]any) (any, bool) {
	for _, key := range argumentKeys {
		if v, ok := obj[key]; ok {
			return v, true
		}
	}
	if fn, ok := obj["function"].(map[string]any); ok {
		for _, key := range argumentKeys {
			if v, ok := fn[key]; ok {
				return v, true
			}
		}
	}
	return nil, false
}
