// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"strings"
)

// Collect drains a stream into a Response, calling onDelta for each text
// increment. It stops at the first chunk error, an onDelta error, or ctx
// cancellation.
func Collect(ctx context.Context, ch <-chan Chunk, onDelta func(string) error) (*Response, error) {
	var (
		text strings.Builder
		resp Response
	)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case c, ok := <-ch:
			if !ok {
				// A stream closed without Done was cut short by cancellation.
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				resp.Text = text.String()
				return &resp, nil
			}
			if c.Err != nil {
				return nil, c.Err
			}
			if c.Delta != "" {
				text.WriteString(c.Delta)
				if onDelta != nil {
					if err := onDelta(c.Delta); err != nil {
						return nil, err
					}
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, c.ToolCalls...)
			resp.Logprobs = append(resp.Logprobs, c.Logprobs...)
			if c.Usage != nil {
				resp.Usage = *c.Usage
			}
			if c.Done {
				resp.Text = text.String()
				return &resp, nil
			}
		}
	}
}
