// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/provider"
	"github.com/jeranaias/rigrun-cascade/internal/provider/providertest"
)

// TestKindForStatus tests HTTP status classification.
func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   provider.Kind
	}{
		{0, provider.KindTransient},
		{408, provider.KindTransient},
		{429, provider.KindTransient},
		{500, provider.KindTransient},
		{503, provider.KindTransient},
		{400, provider.KindInvalidRequest},
		{422, provider.KindInvalidRequest},
		{401, provider.KindPermanent},
		{402, provider.KindPermanent},
		{403, provider.KindPermanent},
		{404, provider.KindPermanent},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, provider.KindForStatus(tt.status))
		})
	}
}

// TestKindOf verifies wrapped errors keep their kind and unknown errors are
// transient.
func TestKindOf(t *testing.T) {
	base := provider.NewError("openai", "gpt-4o", 422, errors.New("bad schema"))
	wrapped := fmt.Errorf("draft: %w", base)

	assert.Equal(t, provider.KindInvalidRequest, provider.KindOf(wrapped))
	assert.True(t, provider.IsInvalidRequest(wrapped))
	assert.Equal(t, provider.KindTransient, provider.KindOf(context.DeadlineExceeded))
	assert.False(t, provider.IsInvalidRequest(nil))
	assert.Contains(t, base.Error(), "HTTP 422")
	assert.Contains(t, base.Error(), "invalid_request")
}

// TestRegistryResolve tests shared and dedicated provider resolution.
func TestRegistryResolve(t *testing.T) {
	reg := provider.NewRegistry()
	shared := providertest.New("openai")
	reg.Register(shared)

	built := 0
	reg.RegisterFactory("openai", func(m model.ModelConfig) (provider.Provider, error) {
		built++
		return providertest.New("openai"), nil
	})

	p, err := reg.Resolve(model.ModelConfig{Name: "gpt-4o", Provider: "openai"})
	require.NoError(t, err)
	assert.Same(t, shared, p)

	own := model.ModelConfig{Name: "gpt-4o-mini", Provider: "openai", APIKey: "sk-test"}
	p1, err := reg.Resolve(own)
	require.NoError(t, err)
	p2, err := reg.Resolve(own)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.NotSame(t, shared, p1)
	assert.Equal(t, 1, built)

	_, err = reg.Resolve(model.ModelConfig{Name: "x", Provider: "ollama"})
	assert.Error(t, err)
	assert.Equal(t, []string{"openai"}, reg.Names())
}

// TestCollect drains a scripted stream.
func TestCollect(t *testing.T) {
	fake := providertest.New("fake").On("m", providertest.Script{
		Text:     "hello there world",
		Usage:    model.Usage{InputTokens: 3, OutputTokens: 3},
		Logprobs: []float64{-0.1},
	})
	ch, err := fake.Stream(context.Background(), provider.Request{Model: "m"})
	require.NoError(t, err)

	var deltas []string
	resp, err := provider.Collect(context.Background(), ch, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there world", resp.Text)
	assert.Equal(t, []string{"hello ", "there ", "world"}, deltas)
	assert.Equal(t, 6, resp.Usage.Total())
	assert.Equal(t, []float64{-0.1}, resp.Logprobs)
}

// TestCollectStreamError surfaces a mid-stream failure.
func TestCollectStreamError(t *testing.T) {
	fake := providertest.New("fake").On("m", providertest.Script{
		Chunks:    []string{"partial"},
		StreamErr: providertest.Transient("connection reset"),
	})
	ch, err := fake.Stream(context.Background(), provider.Request{Model: "m"})
	require.NoError(t, err)

	_, err = provider.Collect(context.Background(), ch, nil)
	require.Error(t, err)
	assert.Equal(t, provider.KindTransient, provider.KindOf(err))
}
