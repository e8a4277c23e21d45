// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cascade runs the draft-then-verify routing state machine.
//
// A request moves through ROUTE, DRAFT_CALL, QUALITY_CHECK and then either
// ACCEPT or ESCALATE followed by VERIFIER_CALL. ROUTE validates the request,
// filters candidates by tool support and picks a strategy; nothing is sent to
// a model until it succeeds. Under DIRECT_BEST the verifier-tier model
// answers alone.
//
// # Draft failures
//
// A failed draft call escalates to the verifier when the failure is
// transient or specific to the draft provider (authentication, unknown
// model, exhausted credits). A malformed request (HTTP 400/422) ends the
// request with a ProviderFatalError at the draft stage, since the verifier
// would receive the same request. Config.EscalateOnInvalidRequest turns
// that off.
//
// # Streaming
//
// Engine.Stream returns a pull-based Stream. Events arrive in this order:
//
//	ROUTING
//	CHUNK...           draft text, live (text requests only)
//	DRAFT_DECISION
//	CHUNK              buffered draft of a tool request, once accepted
//	SWITCH             on escalation
//	CHUNK...           verifier output
//	COMPLETE | ERROR
//
// Closing the stream cancels the provider call; no event follows Close.
package cascade
