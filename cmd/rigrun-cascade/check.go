// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cascade "github.com/jeranaias/rigrun-cascade"
	"github.com/jeranaias/rigrun-cascade/internal/cloud"
	"github.com/jeranaias/rigrun-cascade/internal/config"
	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/ollama"
)

const checkTimeout = 10 * time.Second

func checkConfigCmd(g *globalFlags) *cobra.Command {
	var (
		show    bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and probe the configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if show {
				fmt.Fprintln(out, cfg.String())
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(out, err)
				return fmt.Errorf("configuration is invalid")
			}
			fmt.Fprintf(out, "config ok: %d models, cascade on %v\n",
				len(cfg.Models), cfg.Routing.CascadeComplexities)
			if offline {
				return nil
			}

			failed := 0
			for _, m := range cfg.ModelConfigs() {
				if err := probeModel(cmd.Context(), cfg, m, logger); err != nil {
					failed++
					fmt.Fprintf(out, "  FAIL %s: %v\n", m, err)
					continue
				}
				fmt.Fprintf(out, "  ok   %s\n", m)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d models unreachable", failed, len(cfg.Models))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "print the effective configuration (keys redacted)")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip provider checks")
	return cmd
}

// probeModel checks that the provider behind m is reachable and serves it.
func probeModel(ctx context.Context, cfg *config.Config, m model.ModelConfig, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	switch m.Provider {
	case model.ProviderOllama:
		oc := cascade.OllamaConfig(cfg.Providers.Ollama, logger)
		if m.BaseURL != "" {
			oc.BaseURL = m.BaseURL
		}
		names, err := ollama.New(oc).ListModels(ctx)
		if err != nil {
			return err
		}
		if !slices.Contains(names, m.Name) && !slices.Contains(names, m.Name+":latest") {
			return fmt.Errorf("model not pulled (try: ollama pull %s)", m.Name)
		}
		return nil

	case model.ProviderOpenRouter, model.ProviderOpenAI:
		p := cfg.Providers.OpenRouter
		if m.Provider == model.ProviderOpenAI {
			p = cfg.Providers.OpenAI
		}
		cc := cascade.CloudConfig(m.Provider, p, logger)
		if m.APIKey != "" {
			cc.APIKey = m.APIKey
		}
		if m.BaseURL != "" {
			cc.BaseURL = m.BaseURL
		}
		client := cloud.New(cc)
		if !client.IsConfigured() {
			return fmt.Errorf("no API key for %s", m.Provider)
		}
		ids, err := client.ListModels(ctx)
		if err != nil {
			return err
		}
		if !slices.Contains(ids, cloud.ResolveModel(m.Name)) {
			return fmt.Errorf("model not listed by %s", m.Provider)
		}
		return nil
	}
	return fmt.Errorf("unknown provider %q", m.Provider)
}

