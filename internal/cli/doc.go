// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for replichat.
//
// This package implements the non-TUI commands and the argument parsing
// shared with the TUI entry point.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - Session: A configured session state and runner built from Args
//
// # Usage
//
// Parse and execute commands:
//
//	cmd, args := cli.Parse(os.Args[1:])
//	switch cmd {
//	case cli.CmdAsk:
//	    cli.HandleAsk(args)
//	case cli.CmdChat:
//	    cli.HandleChat(args)
//	// ... other commands
//	}
//
// # Commands Overview
//
//   - (none), tui: Full-screen chat
//   - chat: Line-mode chat with history and slash commands
//   - ask: Single question, reply streamed to stdout
//   - models: List the model catalog
//   - config: Show, get, or set configuration values
//   - token: Enter and save the API token
//   - version, help
//
// # Exit Codes
//
// Errors print as "Error: <err>" on stderr. The process exits with the code
// returned by ExitCode.
package cli
