// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command rigrun-cascade is the operations CLI for the cascade router:
// inspect routing decisions, run requests, lint tool schemas and check a
// configuration against the live providers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-cascade/internal/config"
	"github.com/jeranaias/rigrun-cascade/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "rigrun-cascade",
		Short:         "Cost-optimizing draft/verifier router for LLM completions",
		Long:          "Routes each request to a cheap draft model first and escalates to a verifier model only when the draft fails the quality gate.",
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default: ~/.rigrun-cascade/config.{toml,yaml,yml,json})")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		routeCmd(g),
		completeCmd(g),
		validateToolsCmd(g),
		checkConfigCmd(g),
	)
	return root
}

// load reads the configuration and installs the process logger.
func (g *globalFlags) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	logging.Set(logger)
	return cfg, logger, nil
}
