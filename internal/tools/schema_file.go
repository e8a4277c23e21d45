// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// wrappedSchema accepts both the bare function definition and the
// {"type":"function","function":{...}} wrapper used by chat APIs.
type wrappedSchema struct {
	ToolSchema `yaml:",inline"`
	Type       string      `json:"type,omitempty" yaml:"type,omitempty"`
	Function   *ToolSchema `json:"function,omitempty" yaml:"function,omitempty"`
}

func (w wrappedSchema) unwrap() ToolSchema {
	if w.Function != nil {
		return *w.Function
	}
	return w.ToolSchema
}

// ParseToolSchemas decodes a JSON or YAML list of tool schemas.
func ParseToolSchemas(data []byte, format string) ([]ToolSchema, error) {
	var wrapped []wrappedSchema
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("parse yaml tool schemas: %w", err)
		}
	case "json", "":
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("parse json tool schemas: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported tool schema format %q", format)
	}

	schemas := make([]ToolSchema, len(wrapped))
	for i, w := range wrapped {
		schemas[i] = w.unwrap()
	}
	return schemas, nil
}

// LoadToolSchemas reads a schema file, picking the format from its extension.
func LoadToolSchemas(path string) ([]ToolSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool schemas: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return ParseToolSchemas(data, format)
}
