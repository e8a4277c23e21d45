// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools handles tool-calling requests: schema validation, filtering
// candidate models by tool support, provider tool-call adapters, and scoring
// the tool calls a draft model proposes.
//
// # Key Types
//
//   - ToolSchema: a declared tool (OpenAI function-definition shape)
//   - ToolCall: a proposed call in provider-neutral form, tagged with its Format
//   - Router: model filtering, schema checks and model suggestions
//   - ToolCallValidator: five weighted checks with complexity-adaptive thresholds
//
// # Scoring
//
// Checks and weights:
//
//	JSON object          0.25
//	name + arguments     0.20
//	declared tool        0.20
//	required fields      0.20
//	arguments an object  0.15
//
// A batch passes a check only when every call passes it. The overall score is
// the exact sum of the weights of passing checks.
package tools
