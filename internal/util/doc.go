// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the front-ends and the
// config layer.
//
// # Key Functions
//
//   - AtomicWriteFile: Crash-safe file writing with fsync and rename
//   - TruncateWidth, PadRight: Display-width aware string fitting
//   - CleanInput: Normalizes typed or pasted user input
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0600)
//	label := util.TruncateWidth(modelID, 24)
//	msg := util.CleanInput(raw)
package util
