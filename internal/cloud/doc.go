// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the OpenAI-compatible chat provider used for
// OpenRouter and OpenAI models.
//
// The client wraps the official openai-go SDK. SDK retries are disabled;
// the client retries rate limits and 5xx responses itself with exponential
// backoff, paces calls with a token-bucket limiter, and classifies every
// failure as a provider.Error so the cascade engine can decide whether to
// escalate.
//
// # Usage
//
//	client := cloud.New(cloud.Config{APIKey: key})
//	resp, err := client.Complete(ctx, provider.Request{
//	    Model:    "anthropic/claude-3.5-sonnet",
//	    Messages: []model.Message{model.NewUserMessage("Hello")},
//	})
//
// API keys are never logged; log lines carry a SHA-256 fingerprint instead.
package cloud
