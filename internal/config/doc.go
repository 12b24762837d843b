// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for replichat.
//
// Configuration is a TOML file with built-in defaults, environment variable
// overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - ReplicateConfig: API token, base URL, and client rate limit
//   - GenerationSection: Starting model and generation parameters
//   - UIConfig: Theme and rendering options
//   - Watcher: Reloads the file when it changes on disk
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (REPLICATE_API_TOKEN, REPLICHAT_*)
//   - ~/.replichat/config.toml (or $REPLICHAT_CONFIG)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gen := cfg.Generation.Params()
package config
