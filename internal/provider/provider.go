// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the model-call interface the cascade engine
// consumes, and the error classification it routes on.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
)

// =============================================================================
// PROVIDER INTERFACE
// =============================================================================

// Provider calls one backend. Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider id, matching model.ModelConfig.Provider.
	Name() string

	// Complete performs a blocking call.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream starts a streaming call. The channel is closed after a chunk with
	// Done set or Err set, or when ctx is cancelled.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}

// Request is one model call.
type Request struct {
	Model       string
	Messages    []model.Message
	Tools       []tools.ToolSchema
	Logprobs    bool
	MaxTokens   int
	Temperature *float64
}

// Response is a completed call.
type Response struct {
	Model        string
	Text         string
	ToolCalls    []tools.ToolCall
	Usage        model.Usage
	Logprobs     []float64
	FinishReason string
}

// HasToolCalls reports whether the model proposed any tool calls.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Chunk is one streaming increment. Tool calls arrive complete, on the final
// chunk, because partial tool-call deltas are not independently usable.
type Chunk struct {
	Delta     string
	ToolCalls []tools.ToolCall
	Logprobs  []float64
	Usage     *model.Usage
	Done      bool
	Err       error
}

// =============================================================================
// ERRORS
// =============================================================================

// Kind classifies provider failures for escalation decisions.
type Kind int

const (
	// KindTransient covers timeouts, rate limits, connection failures and 5xx.
	KindTransient Kind = iota
	// KindPermanent covers failures specific to this provider or model:
	// authentication, unknown model, exhausted credits.
	KindPermanent
	// KindInvalidRequest covers malformed requests (HTTP 400/422) that any
	// provider would reject the same way.
	KindInvalidRequest
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// Error is a classified provider failure.
type Error struct {
	Provider string
	Model    string
	Kind     Kind
	Status   int // HTTP status, 0 when none
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s (%s, HTTP %d): %v", e.Provider, e.Model, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s (%s): %v", e.Provider, e.Model, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError classifies err by HTTP status. A zero status is transient.
func NewError(providerName, modelName string, status int, err error) *Error {
	return &Error{
		Provider: providerName,
		Model:    modelName,
		Kind:     KindForStatus(status),
		Status:   status,
		Err:      err,
	}
}

// KindForStatus maps an HTTP status to a failure kind.
func KindForStatus(status int) Kind {
	switch {
	case status == 0,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return KindTransient
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindInvalidRequest
	default:
		return KindPermanent
	}
}

// KindOf classifies any error. Unclassified errors, including deadline
// expiry, are transient.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// IsInvalidRequest reports whether err is a malformed-request failure.
func IsInvalidRequest(err error) bool {
	return err != nil && KindOf(err) == KindInvalidRequest
}
