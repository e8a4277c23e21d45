// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the local draft-tier provider backed by an Ollama
// server.
//
// The client speaks Ollama's /api/chat endpoint directly: blocking calls
// decode a single JSON document, streaming calls read newline-delimited JSON
// chunks. Failures are classified as provider.Error values: an unreachable
// server or timeout is transient, an unknown model is permanent.
//
// # Usage
//
//	client := ollama.New(ollama.DefaultConfig())
//	resp, err := client.Complete(ctx, provider.Request{
//	    Model:    "qwen2.5-coder:7b",
//	    Messages: []model.Message{model.NewUserMessage("Hello")},
//	})
package ollama
