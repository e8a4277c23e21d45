// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cascade

import (
	"github.com/jeranaias/rigrun-cascade/internal/cascade"
	"github.com/jeranaias/rigrun-cascade/internal/config"
	cerrors "github.com/jeranaias/rigrun-cascade/internal/errors"
	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/quality"
	"github.com/jeranaias/rigrun-cascade/internal/router"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
)

// =============================================================================
// REQUESTS AND RESULTS
// =============================================================================

type (
	// Config is the file-backed router configuration.
	Config = config.Config
	// Request is one routed completion request.
	Request = cascade.Request
	// Result is the outcome of a blocking request.
	Result = cascade.Result
	// Tier names the model that produced a result.
	Tier = cascade.Tier
	// ValidationFailure explains a rejected draft.
	ValidationFailure = cascade.ValidationFailure

	// Stream is a pull-based event stream. Always Close it.
	Stream = cascade.Stream
	// Event is one stream event.
	Event = cascade.Event
	// EventType discriminates stream events.
	EventType = cascade.EventType
)

const (
	TierDraft    = cascade.TierDraft
	TierVerifier = cascade.TierVerifier

	EventRouting       = cascade.EventRouting
	EventChunk         = cascade.EventChunk
	EventDraftDecision = cascade.EventDraftDecision
	EventSwitch        = cascade.EventSwitch
	EventComplete      = cascade.EventComplete
	EventError         = cascade.EventError
)

// =============================================================================
// MODELS, TOOLS, ROUTING
// =============================================================================

type (
	ModelConfig      = model.ModelConfig
	Message          = model.Message
	Usage            = model.Usage
	ToolSchema       = tools.ToolSchema
	ToolCall         = tools.ToolCall
	RoutingDecision  = router.RoutingDecision
	QueryComplexity  = router.QueryComplexity
	QualityConfig    = quality.Config
	ValidationResult = tools.ValidationResult
)

// =============================================================================
// ERRORS
// =============================================================================

type (
	ConfigurationError     = cerrors.ConfigurationError
	ProviderTransientError = cerrors.ProviderTransientError
	ProviderFatalError     = cerrors.ProviderFatalError
	Stage                  = cerrors.Stage
)

const (
	StageRoute    = cerrors.StageRoute
	StageDraft    = cerrors.StageDraft
	StageQuality  = cerrors.StageQuality
	StageVerifier = cerrors.StageVerifier
)

var (
	IsConfiguration = cerrors.IsConfiguration
	IsTransient     = cerrors.IsTransient
	IsFatal         = cerrors.IsFatal
)
