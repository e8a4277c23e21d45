// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errors defines the typed failures a cascade request can end in.
//
// Every request terminates in a result or in one of these errors. Each error
// carries the offending model (when there is one), the stage the request
// reached, and the underlying cause.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================
// Stages
// ============================================================

// Stage identifies how far a request got before it failed.
type Stage int

const (
	// StageRoute covers input validation, tool filtering and routing.
	StageRoute Stage = iota
	// StageDraft is the draft model call.
	StageDraft
	// StageQuality is the quality gate over the draft output.
	StageQuality
	// StageVerifier is the verifier call, either direct or after escalation.
	StageVerifier
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageRoute:
		return "route"
	case StageDraft:
		return "draft"
	case StageQuality:
		return "quality"
	case StageVerifier:
		return "verifier"
	default:
		return "unknown"
	}
}

// ============================================================
// ConfigurationError
// ============================================================

// ConfigurationError reports a request that cannot be served as configured.
// It is raised before any model call and is never retried.
type ConfigurationError struct {
	// Reason is a short human-readable description.
	Reason string

	// Models lists the models involved, e.g. every model excluded for lacking
	// tool support.
	Models []string

	// ToolCount is the number of tools on the request, when relevant.
	ToolCount int

	// Issues holds individual schema problems, when relevant.
	Issues []string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error: ")
	b.WriteString(e.Reason)
	if len(e.Models) > 0 {
		fmt.Fprintf(&b, " (models: %s)", strings.Join(e.Models, ", "))
	}
	if e.ToolCount > 0 {
		fmt.Fprintf(&b, " (tools: %d)", e.ToolCount)
	}
	if len(e.Issues) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Issues, "; "))
	}
	return b.String()
}

// NewConfigurationError creates a ConfigurationError with only a reason.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ============================================================
// Provider errors
// ============================================================

// ProviderTransientError wraps a recoverable provider failure: a timeout, a
// rate limit or a dropped connection. On the draft call it triggers
// escalation instead of surfacing.
type ProviderTransientError struct {
	Model string
	Stage Stage
	Err   error
}

func (e *ProviderTransientError) Error() string {
	return fmt.Sprintf("transient provider failure at %s (model %s): %v", e.Stage, e.Model, e.Err)
}

func (e *ProviderTransientError) Unwrap() error {
	return e.Err
}

// ProviderFatalError is a provider failure with no fallback left. It always
// reaches the caller, either returned or as a stream ERROR event.
type ProviderFatalError struct {
	Model string
	Stage Stage
	Err   error
}

func (e *ProviderFatalError) Error() string {
	return fmt.Sprintf("provider failure at %s (model %s): %v", e.Stage, e.Model, e.Err)
}

func (e *ProviderFatalError) Unwrap() error {
	return e.Err
}

// ============================================================
// Helpers
// ============================================================

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsTransient reports whether err is or wraps a ProviderTransientError.
func IsTransient(err error) bool {
	var target *ProviderTransientError
	return errors.As(err, &target)
}

// IsFatal reports whether err is or wraps a ProviderFatalError.
func IsFatal(err error) bool {
	var target *ProviderFatalError
	return errors.As(err, &target)
}

// StageOf returns the stage recorded on a provider error, and false for any
// other error.
func StageOf(err error) (Stage, bool) {
	var fatal *ProviderFatalError
	if errors.As(err, &fatal) {
		return fatal.Stage, true
	}
	var transient *ProviderTransientError
	if errors.As(err, &transient) {
		return transient.Stage, true
	}
	var cfg *ConfigurationError
	if errors.As(err, &cfg) {
		return StageRoute, true
	}
	return StageRoute, false
}
