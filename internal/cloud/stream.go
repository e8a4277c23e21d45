// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/provider"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
)

// Stream implements provider.Provider. Text deltas are forwarded as they
// arrive; tool calls are accumulated and delivered on the final chunk.
// HTTP failures surface as a chunk error because the SDK reports them on
// the first read. Cancelling ctx closes the connection.
func (c *Client) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	if err := c.ready(req.Model); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.classify(req.Model, err)
	}

	params := buildParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	stream := c.sdk.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan provider.Chunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		send := func(chunk provider.Chunk) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var (
			acc   openai.ChatCompletionAccumulator
			usage model.Usage
		)
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
				usage = model.Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			lps := tokenLogprobs(choice.Logprobs.Content)
			if choice.Delta.Content == "" && len(lps) == 0 {
				continue
			}
			if !send(provider.Chunk{Delta: choice.Delta.Content, Logprobs: lps}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			c.log.Debug("stream failed", zap.String("model", req.Model), zap.Error(err))
			send(provider.Chunk{Err: c.classify(req.Model, err)})
			return
		}

		var calls []tools.ToolCall
		if len(acc.Choices) > 0 {
			calls = convertToolCalls(acc.Choices[0].Message.ToolCalls)
		}
		send(provider.Chunk{Done: true, ToolCalls: calls, Usage: &usage})
	}()
	return ch, nil
}
