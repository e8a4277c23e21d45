// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package providertest provides a scripted provider for tests.
package providertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/provider"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
)

// Script is the canned behaviour for one model.
type Script struct {
	Text      string
	ToolCalls []tools.ToolCall
	Usage     model.Usage
	Logprobs  []float64

	// Err fails Complete, and Stream before any chunk is produced.
	Err error
	// Chunks overrides how Text is split into stream deltas.
	Chunks []string
	// StreamErr is delivered as a chunk error after the deltas.
	StreamErr error
	// Hang keeps the stream open after the deltas until ctx is cancelled.
	Hang bool
}

// Fake is a Provider whose answers are scripted per model name.
type Fake struct {
	name string

	mu      sync.Mutex
	scripts map[string]Script
	calls   []provider.Request
	open    int
}

// New creates a fake provider with the given id.
func New(name string) *Fake {
	return &Fake{name: name, scripts: make(map[string]Script)}
}

// On scripts the behaviour for a model and returns the fake for chaining.
func (f *Fake) On(modelName string, s Script) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[modelName] = s
	return f
}

// Name implements provider.Provider.
func (f *Fake) Name() string { return f.name }

func (f *Fake) record(req provider.Request) (Script, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	s, ok := f.scripts[req.Model]
	if !ok {
		return Script{}, &provider.Error{
			Provider: f.name, Model: req.Model, Kind: provider.KindPermanent,
			Err: fmt.Errorf("no script for model %q", req.Model),
		}
	}
	return s, nil
}

// Complete implements provider.Provider.
func (f *Fake) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := f.record(req)
	if err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &provider.Response{
		Model:     req.Model,
		Text:      s.Text,
		ToolCalls: s.ToolCalls,
		Usage:     s.Usage,
		Logprobs:  s.Logprobs,
	}, nil
}

// Stream implements provider.Provider.
func (f *Fake) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := f.record(req)
	if err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}

	deltas := s.Chunks
	if deltas == nil && s.Text != "" {
		deltas = strings.SplitAfter(s.Text, " ")
	}

	f.mu.Lock()
	f.open++
	f.mu.Unlock()

	ch := make(chan provider.Chunk)
	go func() {
		defer func() {
			f.mu.Lock()
			f.open--
			f.mu.Unlock()
		}()
		defer close(ch)

		send := func(c provider.Chunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, d := range deltas {
			if !send(provider.Chunk{Delta: d}) {
				return
			}
		}
		if s.StreamErr != nil {
			send(provider.Chunk{Err: s.StreamErr})
			return
		}
		if s.Hang {
			<-ctx.Done()
			return
		}
		usage := s.Usage
		send(provider.Chunk{Done: true, ToolCalls: s.ToolCalls, Logprobs: s.Logprobs, Usage: &usage})
	}()
	return ch, nil
}

// Calls returns every request received, in order.
func (f *Fake) Calls() []provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Request(nil), f.calls...)
}

// CallCount returns how many requests named the model.
func (f *Fake) CallCount(modelName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Model == modelName {
			n++
		}
	}
	return n
}

// OpenStreams returns how many stream goroutines have not exited yet.
func (f *Fake) OpenStreams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Transient returns a transient provider error for scripting.
func Transient(msg string) error {
	return &provider.Error{Provider: "fake", Kind: provider.KindTransient, Status: 503, Err: errors.New(msg)}
}

// InvalidRequest returns an invalid-request provider error for scripting.
func InvalidRequest(msg string) error {
	return &provider.Error{Provider: "fake", Kind: provider.KindInvalidRequest, Status: 400, Err: errors.New(msg)}
}

// Permanent returns a model-specific permanent error for scripting.
func Permanent(msg string) error {
	return &provider.Error{Provider: "fake", Kind: provider.KindPermanent, Status: 401, Err: errors.New(msg)}
}
