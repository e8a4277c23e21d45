// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	cascade "github.com/jeranaias/rigrun-cascade"
	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/router"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
)

// requestFlags are the routing overrides shared by route and complete.
type requestFlags struct {
	forceDirect bool
	complexity  string
	toolsFile   string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.forceDirect, "force-direct", false, "skip the draft and go straight to the verifier")
	cmd.Flags().StringVar(&f.complexity, "complexity", "", "complexity hint (trivial, simple, moderate, hard, expert)")
	cmd.Flags().StringVar(&f.toolsFile, "tools", "", "JSON or YAML file of tool schemas to offer")
}

func (f *requestFlags) request(args []string) (cascade.Request, error) {
	req := cascade.Request{
		Query:          strings.Join(args, " "),
		ForceDirect:    f.forceDirect,
		ComplexityHint: f.complexity,
	}
	if f.complexity != "" {
		if _, ok := router.ParseComplexity(f.complexity); !ok {
			return req, fmt.Errorf("unknown complexity %q", f.complexity)
		}
	}
	if f.toolsFile != "" {
		schemas, err := tools.LoadToolSchemas(f.toolsFile)
		if err != nil {
			return req, err
		}
		req.Tools = schemas
	}
	return req, nil
}

func routeCmd(g *globalFlags) *cobra.Command {
	var (
		rf     requestFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "route <query>",
		Short: "Show the routing decision for a query without calling any model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			req, err := rf.request(args)
			if err != nil {
				return err
			}

			r, err := cascade.New(cfg, cascade.WithLogger(logger))
			if err != nil {
				return err
			}
			defer r.Close()

			decision, err := r.Route(cmd.Context(), req)
			if err != nil {
				return err
			}
			domain := router.NewDomainRouter().Route(req.Query)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Decision cascade.RoutingDecision `json:"decision"`
					Domain   router.DomainResult     `json:"domain"`
				}{decision, domain})
			}

			candidates := r.Models()
			if len(req.Tools) > 0 {
				candidates = toolCapable(candidates)
			}
			fmt.Fprintf(out, "strategy:    %s\n", decision.Strategy)
			fmt.Fprintf(out, "reason:      %s\n", decision.Reason)
			fmt.Fprintf(out, "complexity:  %s (confidence %.2f)\n", decision.Metadata.Complexity, decision.Confidence)
			fmt.Fprintf(out, "domain:      %s (confidence %.2f)\n", domain.Domain, domain.Confidence)
			if len(candidates) > 0 {
				fmt.Fprintf(out, "draft:       %s\n", candidates[0])
				fmt.Fprintf(out, "verifier:    %s\n", candidates[len(candidates)-1])
			}
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decision as JSON")
	return cmd
}

func toolCapable(models []model.ModelConfig) []model.ModelConfig {
	var out []model.ModelConfig
	for _, m := range models {
		if m.SupportsTools {
			out = append(out, m)
		}
	}
	return out
}
