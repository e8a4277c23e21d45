// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jeranaias/rigrun-cascade/internal/model"
)

// Factory builds a provider for a model that carries its own credentials.
type Factory func(m model.ModelConfig) (Provider, error)

// Registry resolves models to providers. Shared providers are keyed by
// provider id; a model with its own APIKey or BaseURL gets a dedicated
// provider from the id's factory, built once.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	factories map[string]Factory
	perModel  map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		factories: make(map[string]Factory),
		perModel:  make(map[string]Provider),
	}
}

// Register adds a shared provider under its Name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// RegisterFactory sets the factory for models of provider id that carry
// their own credentials.
func (r *Registry) RegisterFactory(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// Resolve returns the provider that serves m.
func (r *Registry) Resolve(m model.ModelConfig) (Provider, error) {
	dedicated := m.APIKey != "" || m.BaseURL != ""

	r.mu.RLock()
	if dedicated {
		if p, ok := r.perModel[m.Name]; ok {
			r.mu.RUnlock()
			return p, nil
		}
	}
	shared, hasShared := r.providers[m.Provider]
	factory, hasFactory := r.factories[m.Provider]
	r.mu.RUnlock()

	if !dedicated || !hasFactory {
		if !hasShared {
			return nil, fmt.Errorf("no provider registered for %q (model %s)", m.Provider, m.Name)
		}
		return shared, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.perModel[m.Name]; ok {
		return p, nil
	}
	p, err := factory(m)
	if err != nil {
		return nil, fmt.Errorf("build provider for model %s: %w", m.Name, err)
	}
	r.perModel[m.Name] = p
	return p, nil
}

// Names lists the registered shared provider ids in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
