// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cascade "github.com/jeranaias/rigrun-cascade"
	"github.com/jeranaias/rigrun-cascade/internal/telemetry"
)

func completeCmd(g *globalFlags) *cobra.Command {
	var (
		rf     requestFlags
		stream bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "complete <query>",
		Short: "Run a query through the cascade and print the answer",
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if stream {
				return runStream(ctx, r, req, cmd.OutOrStdout(), cmd.ErrOrStderr())
			}

			res, err := r.Complete(ctx, req)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printAnswer(cmd.OutOrStdout(), res)
			printSummary(cmd.ErrOrStderr(), res)
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().BoolVar(&stream, "stream", false, "print chunks as they arrive")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func runStream(ctx context.Context, r *cascade.Router, req cascade.Request, out, errOut io.Writer) error {
	s, err := r.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer s.Close()

	for s.Next() {
		ev := s.Event()
		switch ev.Type {
		case cascade.EventRouting:
			fmt.Fprintf(errOut, "routing: %s\n", ev.Routing.Decision)
		case cascade.EventChunk:
			fmt.Fprint(out, ev.Delta)
			for _, tc := range ev.ToolCalls {
				fmt.Fprintf(out, "\n%s", formatToolCall(tc))
			}
		case cascade.EventDraftDecision:
			if !ev.Decision.Accepted && ev.Decision.Rejection != nil {
				fmt.Fprintf(errOut, "\ndraft rejected: %s\n", ev.Decision.Rejection.Reason)
			}
		case cascade.EventSwitch:
			fmt.Fprintf(errOut, "\nswitching %s -> %s: %s\n", ev.Switch.From, ev.Switch.To, ev.Switch.Reason)
			fmt.Fprintln(out)
		case cascade.EventComplete:
			fmt.Fprintln(out)
			printSummary(errOut, ev.Result)
		}
	}
	return s.Err()
}

func printAnswer(w io.Writer, res *cascade.Result) {
	if res.Content != "" {
		fmt.Fprintln(w, res.Content)
	}
	for _, tc := range res.ToolCalls {
		fmt.Fprintln(w, formatToolCall(tc))
	}
}

func formatToolCall(tc cascade.ToolCall) string {
	args, err := json.Marshal(tc.Arguments)
	if err != nil || tc.Arguments == nil {
		args = []byte(tc.RawArguments)
	}
	return fmt.Sprintf("[tool call] %s %s", tc.Name, args)
}

func printSummary(w io.Writer, res *cascade.Result) {
	fmt.Fprintf(w, "model=%s (%s, %s) cost=$%.6f baseline=$%.6f saved=%.0f%% latency=%dms\n",
		res.ModelName, res.ModelUsed, telemetry.Outcome(res),
		res.TotalCost, res.BaselineCost, res.SavingsPercentage*100, res.LatencyMs)
}
