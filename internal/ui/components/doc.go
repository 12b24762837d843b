// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components renders the pieces of the replichat chat view.

  - CodeBlock (codeblock.go) - Chroma-highlighted fenced code blocks.
  - Renderer (markdown.go) - Glamour markdown rendering for assistant
    replies, with a plain fallback that still highlights code.
  - RenderTurn, RenderStreaming, RenderError (turn.go) - Turn bubbles.
  - RenderSettings (sidebar.go) - Model, parameters and hints.

Components are stateless functions over a styles.Theme except Renderer,
which caches one glamour renderer per wrap width.
*/
package components
