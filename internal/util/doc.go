// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds the small helpers shared by the router packages:
// crash-safe file writes for the config layer, rune-safe truncation for
// log fields and column fitting for CLI tables.
//
//	err := util.AtomicWriteFile(path, data, 0600)
//	short := util.TruncateRunes(query, 80)
package util
