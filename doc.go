// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cascade routes LLM completions through a cheap draft model first
// and escalates to an expensive verifier only when the draft fails a quality
// gate.
//
// Each request is classified by complexity and domain, routed to either
// CASCADE or DIRECT_BEST, and answered by the draft or the verifier. Tool
// requests are restricted to tool-capable models and their draft tool calls
// are checked against the offered schemas.
//
// # Usage
//
//	cfg, err := config.Load("cascade.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := cascade.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	res, err := r.Complete(ctx, cascade.Request{Query: "What is 2+2?"})
//
// Streaming is pull based:
//
//	s, err := r.Stream(ctx, cascade.Request{Query: q})
//	if err != nil {
//	    return err // configuration problem, nothing was called
//	}
//	defer s.Close()
//	for s.Next() {
//	    ev := s.Event()
//	    ...
//	}
//
// # Errors
//
// ConfigurationError is raised before any model call. ProviderFatalError
// means no fallback was left; its Stage says where the request stopped.
// Transient draft failures never surface: the request escalates instead.
package cascade
