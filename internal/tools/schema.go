// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"encoding/json"
	"fmt"
	"sort"
)

// =============================================================================
// TOOL SCHEMA
// =============================================================================

// ToolSchema declares one callable tool in the OpenAI function-definition
// shape. Names must be unique within a request.
type ToolSchema struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  *Parameters `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Parameters is the JSON Schema object describing a tool's arguments.
type Parameters struct {
	Type       string              `json:"type" yaml:"type"`
	Properties map[string]Property `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required   []string            `json:"required,omitempty" yaml:"required,omitempty"`
}

// Property describes one argument.
type Property struct {
	Type        string    `json:"type,omitempty" yaml:"type,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty" yaml:"enum,omitempty"`
	Items       *Property `json:"items,omitempty" yaml:"items,omitempty"`
}

// RequiredFields returns the required argument names, or nil.
func (s ToolSchema) RequiredFields() []string {
	if s.Parameters == nil {
		return nil
	}
	return s.Parameters.Required
}

// ParametersMap renders the parameters as a generic JSON object, the form
// provider SDKs expect.
func (s ToolSchema) ParametersMap() map[string]any {
	if s.Parameters == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	raw, err := json.Marshal(s.Parameters)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out
}

// Catalog indexes tool schemas by name.
type Catalog map[string]ToolSchema

// NewCatalog builds a catalog. Later duplicates overwrite earlier ones; run
// ValidateToolSchemas first to reject duplicates.
func NewCatalog(schemas []ToolSchema) Catalog {
	c := make(Catalog, len(schemas))
	for _, s := range schemas {
		c[s.Name] = s
	}
	return c
}

// =============================================================================
// SCHEMA VALIDATION
// =============================================================================

// Severity classifies validation issues.
type Severity int

const (
	SeverityError   Severity = iota // Blocks the request
	SeverityWarning                 // Reported but doesn't block
)

// String returns the severity label.
func (s Severity) String() string {
	if s == SeverityWarning {
		return "WARN"
	}
	return "ERROR"
}

// Issue represents a single schema problem.
type Issue struct {
	Severity Severity `json:"severity"`
	Tool     string   `json:"tool"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s: %s", i.Severity, i.Tool, i.Field, i.Message)
}

// ValidationResult holds all schema issues.
type ValidationResult struct {
	Issues []Issue `json:"issues"`
}

// HasErrors returns true if there are any blocking errors.
func (r *ValidationResult) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (r *ValidationResult) Errors() []Issue {
	var errs []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			errs = append(errs, i)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (r *ValidationResult) Warnings() []Issue {
	var warns []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityWarning {
			warns = append(warns, i)
		}
	}
	return warns
}

// ErrorStrings renders the error issues for a ConfigurationError.
func (r *ValidationResult) ErrorStrings() []string {
	errs := r.Errors()
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.String()
	}
	return out
}

// ValidateToolSchemas checks every schema. Missing names, parameters,
// type=object or properties, and duplicate names are errors; missing
// descriptions and thin property definitions are warnings.
func ValidateToolSchemas(schemas []ToolSchema) *ValidationResult {
	r := &ValidationResult{}
	seen := make(map[string]int, len(schemas))

	for idx, s := range schemas {
		label := s.Name
		if label == "" {
			label = fmt.Sprintf("tools[%d]", idx)
			r.Issues = append(r.Issues, Issue{SeverityError, label, "name", "required field is empty"})
		} else if first, dup := seen[s.Name]; dup {
			r.Issues = append(r.Issues, Issue{SeverityError, label, "name",
				fmt.Sprintf("duplicate tool name (first declared at tools[%d])", first)})
		} else {
			seen[s.Name] = idx
		}

		if s.Description == "" {
			r.Issues = append(r.Issues, Issue{SeverityWarning, label, "description", "missing description"})
		}

		if s.Parameters == nil {
			r.Issues = append(r.Issues, Issue{SeverityError, label, "parameters", "required field is missing"})
			continue
		}
		if s.Parameters.Type != "object" {
			r.Issues = append(r.Issues, Issue{SeverityError, label, "parameters.type",
				fmt.Sprintf("must be \"object\", got %q", s.Parameters.Type)})
		}
		if s.Parameters.Properties == nil {
			r.Issues = append(r.Issues, Issue{SeverityError, label, "parameters.properties", "required field is missing"})
			continue
		}
		if len(s.Parameters.Properties) == 0 {
			r.Issues = append(r.Issues, Issue{SeverityWarning, label, "parameters.properties", "no properties declared"})
		}

		names := make([]string, 0, len(s.Parameters.Properties))
		for name := range s.Parameters.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := s.Parameters.Properties[name]
			if p.Type == "" {
				r.Issues = append(r.Issues, Issue{SeverityWarning, label, "parameters.properties." + name, "missing type"})
			}
			if p.Description == "" {
				r.Issues = append(r.Issues, Issue{SeverityWarning, label, "parameters.properties." + name, "missing description"})
			}
		}

		for _, req := range s.Parameters.Required {
			if _, ok := s.Parameters.Properties[req]; !ok {
				r.Issues = append(r.Issues, Issue{SeverityError, label, "parameters.required",
					fmt.Sprintf("required field %q is not a declared property", req)})
			}
		}
	}
	return r
}
