// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes the transcript of the running session to a file.
//
// Exports are one-way: nothing reads them back, and a new process always
// starts with a fresh transcript.
//
// # Supported Formats
//
//   - Markdown: human-readable, with a YAML front matter block
//   - JSON: the session snapshot (model, parameters, turns)
//
// # Usage
//
//	exp, err := export.ForFormat("md", nil)
//	path, err := export.ToFile(state.Snapshot(), exp, nil)
package export
