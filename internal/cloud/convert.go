// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"github.com/openai/openai-go/v3"

	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/provider"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
)

// buildParams converts a provider request into SDK parameters.
func buildParams(req provider.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(ResolveModel(req.Model)),
		Messages: convertMessages(req.Messages),
	}
	for _, schema := range req.Tools {
		fn := openai.FunctionDefinitionParam{
			Name:       schema.Name,
			Parameters: openai.FunctionParameters(schema.ParametersMap()),
		}
		if schema.Description != "" {
			fn.Description = openai.String(schema.Description)
		}
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(fn))
	}
	if req.Logprobs {
		params.Logprobs = openai.Bool(true)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	return params
}

func convertMessages(msgs []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case model.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// convertCompletion maps the first choice of a completion.
func convertCompletion(modelName string, c *openai.ChatCompletion) *provider.Response {
	resp := &provider.Response{
		Model: modelName,
		Usage: model.Usage{
			InputTokens:  int(c.Usage.PromptTokens),
			OutputTokens: int(c.Usage.CompletionTokens),
		},
	}
	if len(c.Choices) == 0 {
		return resp
	}
	choice := c.Choices[0]
	resp.Text = choice.Message.Content
	resp.FinishReason = string(choice.FinishReason)
	resp.ToolCalls = convertToolCalls(choice.Message.ToolCalls)
	resp.Logprobs = tokenLogprobs(choice.Logprobs.Content)
	return resp
}

func convertToolCalls(calls []openai.ChatCompletionMessageToolCallUnion) []tools.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]tools.ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, tools.NewCall(tools.FormatOpenAI, tc.ID, tc.Function.Name, tc.Function.Arguments))
	}
	return out
}

func tokenLogprobs(content []openai.ChatCompletionTokenLogprob) []float64 {
	if len(content) == 0 {
		return nil
	}
	out := make([]float64, len(content))
	for i, t := range content {
		out[i] = t.Logprob
	}
	return out
}
