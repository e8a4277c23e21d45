// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records what the cascade spends and saves.
//
// Two cascade.Observer implementations live here:
//
//   - Metrics exports request, error, cost, token, latency and quality
//     series to Prometheus.
//   - CostTracker sums per-session spend as decimals and persists sessions
//     as JSON through CostStorage.
//
// # Usage
//
//	metrics, _ := telemetry.NewMetrics("rigrun_cascade", registry)
//	tracker := telemetry.NewCostTracker(storage)
//	engine := cascade.NewEngine(cfg, providers,
//	    cascade.WithObserver(metrics),
//	    cascade.WithObserver(tracker))
//
// # Privacy
//
// Cost tracking is local-only. Prompts and responses are never stored, only
// request IDs, token counts and costs.
package telemetry
