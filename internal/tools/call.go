// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// UNIVERSAL TOOL CALL
// =============================================================================

// Format tags the provider shape a tool call was decoded from.
type Format string

const (
	FormatUniversal Format = "universal"
	FormatOpenAI    Format = "openai"
	FormatAnthropic Format = "anthropic"
	FormatOllama    Format = "ollama"
)

// ToolCall is a tool invocation proposed by a model, in provider-neutral form.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Format    Format         `json:"format"`

	// RawArguments keeps string-encoded arguments that failed to parse, so the
	// validator can still see and reject them.
	RawArguments string `json:"-"`
}

// ToRaw renders the call as the generic JSON object the validator checks.
func (c ToolCall) ToRaw() map[string]any {
	raw := map[string]any{"name": c.Name}
	if c.ID != "" {
		raw["id"] = c.ID
	}
	switch {
	case c.Arguments != nil:
		raw["arguments"] = c.Arguments
	case c.RawArguments != "":
		raw["arguments"] = c.RawArguments
	}
	return raw
}

// GetString returns a string argument or the default.
func (c ToolCall) GetString(name, defaultVal string) string {
	if v, ok := c.Arguments[name].(string); ok {
		return v
	}
	return defaultVal
}

// ToolResult is the outcome of executing a tool call, sent back to the model.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// parseArguments accepts an object or a JSON string holding an object.
func parseArguments(v any) (map[string]any, string, error) {
	switch args := v.(type) {
	case nil:
		return nil, "", nil
	case map[string]any:
		return args, "", nil
	case string:
		if args == "" {
			return map[string]any{}, "", nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(args), &out); err != nil {
			return nil, args, fmt.Errorf("arguments are not a JSON object: %w", err)
		}
		return out, "", nil
	default:
		return nil, "", fmt.Errorf("arguments have unsupported type %T", v)
	}
}
