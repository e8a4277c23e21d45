// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	cascade "github.com/jeranaias/rigrun-cascade"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
	"github.com/jeranaias/rigrun-cascade/internal/util"
)

const nameWidth = 32

func validateToolsCmd(g *globalFlags) *cobra.Command {
	var (
		suggest bool
		maxCost float64
	)

	cmd := &cobra.Command{
		Use:   "validate-tools [file]",
		Short: "Lint a tool schema file",
		Long:  "Validates tool schemas (JSON or YAML). Defaults to tools.schema_file from the config.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}

			path := cfg.Tools.SchemaFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no schema file given and tools.schema_file is not set")
			}

			schemas, err := tools.LoadToolSchemas(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			result := cascade.ValidateToolSchemas(schemas)
			for _, issue := range result.Issues {
				fmt.Fprintln(out, issue)
			}
			fmt.Fprintf(out, "%d tools, %d errors, %d warnings\n",
				len(schemas), len(result.Errors()), len(result.Warnings()))

			if result.HasErrors() {
				return fmt.Errorf("%s: schema validation failed", path)
			}
			if !suggest {
				return nil
			}

			r, err := cascade.New(cfg, cascade.WithLogger(logger))
			if err != nil {
				return err
			}
			defer r.Close()

			var limit *float64
			if cmd.Flags().Changed("max-cost") {
				limit = &maxCost
			}
			ranked := r.SuggestModels(schemas, limit)
			if len(ranked) == 0 {
				fmt.Fprintln(out, "no configured model can serve these tools")
				return nil
			}
			fmt.Fprintln(out, "suggested models:")
			fmt.Fprintf(out, "  #  %s %s %s %s\n",
				util.FitWidth("MODEL", nameWidth), util.FitWidth("PROVIDER", 10), "TOOL QUALITY", "USD/1K")
			for i, m := range ranked {
				fmt.Fprintf(out, "  %-2d %s %s %12.2f %.4f\n",
					i+1, util.FitWidth(m.Name, nameWidth), util.FitWidth(m.Provider, 10),
					m.ToolQualityOr(tools.DefaultToolQuality), m.BlendedCostPer1K())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&suggest, "suggest", false, "rank configured models for these tools")
	cmd.Flags().Float64Var(&maxCost, "max-cost", 0, "upper bound on blended USD cost per 1K tokens for --suggest")
	return cmd
}
