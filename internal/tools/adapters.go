// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// PROVIDER ADAPTERS
// =============================================================================
// Each provider format gets one decode and two encode functions. Nothing
// outside this file needs to know what a provider's tool payload looks like.

// adapter converts between one provider shape and the universal shape.
type adapter struct {
	decode       func(raw map[string]any) (ToolCall, error)
	encode       func(call ToolCall) map[string]any
	encodeResult func(result ToolResult) map[string]any
}

var adapters = map[Format]adapter{
	FormatUniversal: {decodeUniversal, encodeUniversal, encodeUniversalResult},
	FormatOpenAI:    {decodeOpenAI, encodeOpenAI, encodeOpenAIResult},
	FormatAnthropic: {decodeAnthropic, encodeAnthropic, encodeAnthropicResult},
	FormatOllama:    {decodeOllama, encodeOllama, encodeOllamaResult},
}

func adapterFor(f Format) (adapter, error) {
	a, ok := adapters[f]
	if !ok {
		return adapter{}, fmt.Errorf("unknown tool call format %q", f)
	}
	return a, nil
}

// Decode converts one provider tool-call object into a ToolCall.
func Decode(f Format, raw map[string]any) (ToolCall, error) {
	a, err := adapterFor(f)
	if err != nil {
		return ToolCall{}, err
	}
	call, err := a.decode(raw)
	call.Format = f
	return call, err
}

// DecodeJSON decodes a JSON array of provider tool-call objects.
func DecodeJSON(f Format, data []byte) ([]ToolCall, error) {
	var raws []map[string]any
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode %s tool calls: %w", f, err)
	}
	calls := make([]ToolCall, 0, len(raws))
	for i, raw := range raws {
		call, err := Decode(f, raw)
		if err != nil {
			return nil, fmt.Errorf("tool call %d: %w", i, err)
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// Encode converts a ToolCall into a provider's object shape.
func Encode(f Format, call ToolCall) (map[string]any, error) {
	a, err := adapterFor(f)
	if err != nil {
		return nil, err
	}
	return a.encode(call), nil
}

// EncodeResult converts a ToolResult into a provider's result shape.
func EncodeResult(f Format, result ToolResult) (map[string]any, error) {
	a, err := adapterFor(f)
	if err != nil {
		return nil, err
	}
	return a.encodeResult(result), nil
}

// NewCall builds a ToolCall from already separated fields, parsing string
// arguments the way the decoders do. Arguments that fail to parse are kept
// in RawArguments.
func NewCall(f Format, id, name string, args any) ToolCall {
	parsed, rawArgs, _ := parseArguments(args)
	return ToolCall{ID: id, Name: name, Arguments: parsed, RawArguments: rawArgs, Format: f}
}

// -----------------------------------------------------------------------------
// universal: {"id", "name", "arguments"}
// -----------------------------------------------------------------------------

func decodeUniversal(raw map[string]any) (ToolCall, error) {
	name, _ := raw["name"].(string)
	id, _ := raw["id"].(string)
	args, rawArgs, err := parseArguments(raw["arguments"])
	return ToolCall{ID: id, Name: name, Arguments: args, RawArguments: rawArgs}, err
}

func encodeUniversal(call ToolCall) map[string]any {
	return call.ToRaw()
}

func encodeUniversalResult(r ToolResult) map[string]any {
	return map[string]any{"call_id": r.CallID, "name": r.Name, "content": r.Content, "is_error": r.IsError}
}

// -----------------------------------------------------------------------------
// openai: {"id", "type":"function", "function":{"name", "arguments":"<json>"}}
// -----------------------------------------------------------------------------

func decodeOpenAI(raw map[string]any) (ToolCall, error) {
	id, _ := raw["id"].(string)
	fn, ok := raw["function"].(map[string]any)
	if !ok {
		return ToolCall{ID: id}, fmt.Errorf("openai tool call has no function object")
	}
	name, _ := fn["name"].(string)
	args, rawArgs, err := parseArguments(fn["arguments"])
	return ToolCall{ID: id, Name: name, Arguments: args, RawArguments: rawArgs}, err
}

func encodeOpenAI(call ToolCall) map[string]any {
	args := call.RawArguments
	if call.Arguments != nil {
		if b, err := json.Marshal(call.Arguments); err == nil {
			args = string(b)
		}
	}
	if args == "" {
		args = "{}"
	}
	return map[string]any{
		"id":   call.ID,
		"type": "function",
		"function": map[string]any{
			"name":      call.Name,
			"arguments": args,
		},
	}
}

func encodeOpenAIResult(r ToolResult) map[string]any {
	return map[string]any{"role": "tool", "tool_call_id": r.CallID, "content": r.Content}
}

// -----------------------------------------------------------------------------
// anthropic: {"type":"tool_use", "id", "name", "input":{...}}
// -----------------------------------------------------------------------------

func decodeAnthropic(raw map[string]any) (ToolCall, error) {
	id, _ := raw["id"].(string)
	name, _ := raw["name"].(string)
	if t, _ := raw["type"].(string); t != "" && t != "tool_use" {
		return ToolCall{ID: id, Name: name}, fmt.Errorf("anthropic block type %q is not tool_use", t)
	}
	args, rawArgs, err := parseArguments(raw["input"])
	return ToolCall{ID: id, Name: name, Arguments: args, RawArguments: rawArgs}, err
}

func encodeAnthropic(call ToolCall) map[string]any {
	input := call.Arguments
	if input == nil {
		input = map[string]any{}
	}
	return map[string]any{"type": "tool_use", "id": call.ID, "name": call.Name, "input": input}
}

func encodeAnthropicResult(r ToolResult) map[string]any {
	return map[string]any{"type": "tool_result", "tool_use_id": r.CallID, "content": r.Content, "is_error": r.IsError}
}

// -----------------------------------------------------------------------------
// ollama: {"function":{"name", "arguments":{...}}}
// -----------------------------------------------------------------------------

func decodeOllama(raw map[string]any) (ToolCall, error) {
	fn, ok := raw["function"].(map[string]any)
	if !ok {
		return ToolCall{}, fmt.Errorf("ollama tool call has no function object")
	}
	name, _ := fn["name"].(string)
	args, rawArgs, err := parseArguments(fn["arguments"])
	return ToolCall{Name: name, Arguments: args, RawArguments: rawArgs}, err
}

func encodeOllama(call ToolCall) map[string]any {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{"function": map[string]any{"name": call.Name, "arguments": args}}
}

func encodeOllamaResult(r ToolResult) map[string]any {
	return map[string]any{"role": "tool", "content": r.Content}
}
