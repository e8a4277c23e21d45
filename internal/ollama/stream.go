// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/provider"
)

// =============================================================================
// STREAMING
// =============================================================================

// Stream implements provider.Provider. The returned channel is closed after
// the final chunk; a mid-stream failure arrives as a chunk with Err set.
func (c *Client) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}

	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		defer drainAndClose(resp.Body)

		start := time.Now()
		reader := NewStreamReader(resp.Body)
		for {
			line, err := reader.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = &ClientError{Type: ErrTypeInvalidResponse, Message: "stream ended before done"}
				}
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				send(ctx, out, provider.Chunk{Err: c.classify(req.Model, 0, err)})
				return
			}

			if line.Error != "" {
				// Ollama reports failures after headers are sent as an error line.
				send(ctx, out, provider.Chunk{Err: c.classify(req.Model, 0, errors.New(line.Error))})
				return
			}

			chunk := provider.Chunk{Delta: line.Message.Content}
			if line.Done {
				chunk.Done = true
				chunk.ToolCalls = convertToolCalls(reader.ToolCalls())
				chunk.Usage = &model.Usage{InputTokens: line.PromptEvalCount, OutputTokens: line.EvalCount}
			}
			if chunk.Delta == "" && !chunk.Done {
				continue
			}
			if !send(ctx, out, chunk) {
				return
			}
			if chunk.Done {
				c.log.Debug("stream complete",
					zap.String("model", req.Model),
					zap.Duration("duration", time.Since(start)),
					zap.Float64("tokens_per_second", line.TokensPerSecond()))
				return
			}
		}
	}()
	return out, nil
}

// send delivers a chunk unless ctx is cancelled first.
func send(ctx context.Context, out chan<- provider.Chunk, chunk provider.Chunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader parses Ollama's newline-delimited JSON stream.
type StreamReader struct {
	reader    *bufio.Reader
	toolCalls []ToolCall
	lines     int
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Next returns the next non-empty line. Tool calls are collected across
// lines because some models emit them before the done line. Returns io.EOF
// when the body ends.
func (s *StreamReader) Next() (*ChatResponse, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}

		var resp ChatResponse
		if jerr := json.Unmarshal(line, &resp); jerr != nil {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "malformed stream line", Cause: jerr}
		}
		s.lines++
		s.toolCalls = append(s.toolCalls, resp.Message.ToolCalls...)
		return &resp, nil
	}
}

// ToolCalls returns every tool call seen so far.
func (s *StreamReader) ToolCalls() []ToolCall {
	return s.toolCalls
}

// Lines returns the number of parsed lines.
func (s *StreamReader) Lines() int {
	return s.lines
}
