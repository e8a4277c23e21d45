// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router decides how a query should be served before any model is
// called.
//
// Three pieces run per request:
//
//   - ComplexityDetector: scores a query onto trivial, simple, moderate, hard
//     or expert
//   - DomainRouter: weighted keyword scoring into a topical domain
//   - PreRouter: turns complexity and overrides into CASCADE or DIRECT_BEST
//
// All scoring data lives in plain tables at the top of each file. Tuning a
// weight never touches control flow.
//
// # Statistics
//
// DomainRouter and PreRouter record into instance-scoped stats objects. Pass
// your own with WithDomainStats or WithPreRouterStats to share or inspect
// them; Snapshot returns a copy and Reset returns to the zero baseline.
//
// # Usage
//
//	detector := router.NewComplexityDetector()
//	pre := router.NewPreRouter(router.DefaultPreRouterConfig())
//
//	c := detector.Detect("What is 2+2?")
//	decision := pre.Route(c, router.RouteOptions{})
//	// decision.Strategy == router.StrategyCascade
package router
