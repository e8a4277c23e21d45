// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the cascade router configuration.
//
// Files may be TOML, JSON or YAML; the format follows the extension. Keys a
// file omits keep their defaults.
//
// # Configuration Precedence
//
//   - Environment variables (RIGRUN_CASCADE_*)
//   - The file passed to Load, or ~/.rigrun-cascade/config.{toml,yaml,yml,json}
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("cascade.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engineCfg := cfg.CascadeConfig()
//	models := cfg.ModelConfigs()
//
// A Watcher reloads the file on change and hands validated configs to a
// callback:
//
//	w, _ := config.NewWatcher("cascade.toml", func(c *config.Config) { ... })
//	_ = w.Start()
//	defer w.Close()
package config
