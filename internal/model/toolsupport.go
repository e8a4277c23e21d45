// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
)

// =============================================================================
// TOOL SUPPORT LEVELS
// =============================================================================
// Based on Ollama's tool-calling model list:
// https://ollama.com/search?c=tools
//
// Models are listed by their base name (without size/quantization suffix).

// ToolSupportLevel indicates how well a model supports tool calling.
type ToolSupportLevel int

const (
	// ToolSupportNone - Model does not support tool calling
	ToolSupportNone ToolSupportLevel = iota

	// ToolSupportBasic - Model supports basic tool calling but may have issues
	ToolSupportBasic

	// ToolSupportGood - Model has reliable tool calling support
	ToolSupportGood

	// ToolSupportExcellent - Model is optimized for tool/function calling
	ToolSupportExcellent
)

// String returns the string representation of a tool support level.
func (t ToolSupportLevel) String() string {
	switch t {
	case ToolSupportNone:
		return "None"
	case ToolSupportBasic:
		return "Basic"
	case ToolSupportGood:
		return "Good"
	case ToolSupportExcellent:
		return "Excellent"
	default:
		return "Unknown"
	}
}

// Quality maps a support level onto the 0..1 tool quality scale used for
// ranking models.
func (t ToolSupportLevel) Quality() float64 {
	switch t {
	case ToolSupportBasic:
		return 0.5
	case ToolSupportGood:
		return 0.75
	case ToolSupportExcellent:
		return 0.9
	default:
		return 0
	}
}

// toolSupportedFamilies maps local model families to their support level.
var toolSupportedFamilies = map[string]ToolSupportLevel{
	"llama3.1":          ToolSupportExcellent,
	"llama3.2":          ToolSupportExcellent,
	"llama3.3":          ToolSupportExcellent,
	"qwen2":             ToolSupportGood,
	"qwen2.5":           ToolSupportExcellent,
	"qwen2.5-coder":     ToolSupportExcellent,
	"qwen3":             ToolSupportExcellent,
	"mistral":           ToolSupportGood,
	"mistral-nemo":      ToolSupportExcellent,
	"mixtral":           ToolSupportGood,
	"command-r":         ToolSupportExcellent,
	"firefunction-v2":   ToolSupportExcellent,
	"granite3.2":        ToolSupportGood,
	"deepseek-r1":       ToolSupportGood,
	"deepseek-coder-v2": ToolSupportGood,
	"smollm2":           ToolSupportBasic,
}

// ToolSupportFor returns the support level of a local model. Size and
// quantization suffixes ("qwen2.5:7b-instruct-q4") are ignored.
func ToolSupportFor(name string) ToolSupportLevel {
	base := strings.ToLower(name)
	if i := strings.Index(base, ":"); i > 0 {
		base = base[:i]
	}
	if level, ok := toolSupportedFamilies[base]; ok {
		return level
	}
	return ToolSupportNone
}
