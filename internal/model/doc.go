// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the candidate model descriptors, pricing and the
// prompt message types shared by every provider.
//
// # Key Types
//
//   - ModelConfig: one candidate model (name, provider, per-1K costs, tool support)
//   - Usage: token counts of one call
//   - Message: one prompt turn with a Role
//   - ToolSupportLevel: how reliably a local model family forms tool calls
//
// # Pricing
//
// Costs are computed with shopspring/decimal so summing many small calls
// never drifts:
//
//	m := model.ModelConfig{Name: "gpt-4o-mini", Provider: model.ProviderOpenAI}.WithDefaults()
//	cost := m.Cost(model.Usage{InputTokens: 1200, OutputTokens: 300})
//	fmt.Printf("$%s\n", cost.StringFixed(6))
package model
