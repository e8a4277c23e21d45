// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package quality

import (
	"sort"
	"strings"
)

// Config holds the acceptance thresholds. The scoring algorithm does not
// depend on it.
type Config struct {
	// MinConfidence is the lowest score that passes.
	MinConfidence float64 `json:"min_confidence" toml:"min_confidence" yaml:"min_confidence"`
	// MinWordCount is the shortest acceptable answer in words.
	MinWordCount int `json:"min_word_count" toml:"min_word_count" yaml:"min_word_count"`
	// StrictMode rejects any response with a detected signal, whatever its score.
	StrictMode bool `json:"strict_mode" toml:"strict_mode" yaml:"strict_mode"`
}

// Preset names.
const (
	PresetStrict      = "strict"
	PresetProduction  = "production"
	PresetDevelopment = "development"
	PresetCascade     = "cascade"
	PresetPermissive  = "permissive"
)

var presets = map[string]Config{
	PresetStrict:      {MinConfidence: 0.85, MinWordCount: 20, StrictMode: true},
	PresetProduction:  {MinConfidence: 0.70, MinWordCount: 10},
	PresetDevelopment: {MinConfidence: 0.50, MinWordCount: 3},
	PresetCascade:     {MinConfidence: 0.65, MinWordCount: 5},
	PresetPermissive:  {MinConfidence: 0.40, MinWordCount: 1},
}

// DefaultConfig returns the cascade preset.
func DefaultConfig() Config {
	return presets[PresetCascade]
}

// Preset returns the named preset, or the cascade preset for unknown names.
func Preset(name string) Config {
	c, _ := LookupPreset(name)
	return c
}

// LookupPreset returns the named preset and whether it exists.
func LookupPreset(name string) (Config, bool) {
	c, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return DefaultConfig(), false
	}
	return c, true
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
