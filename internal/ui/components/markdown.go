// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jeranaias/replichat/internal/ui/styles"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// Renderer renders assistant replies. With markdown enabled replies go
// through glamour; otherwise, or when glamour fails, prose is word-wrapped
// and code blocks are highlighted with chroma.
type Renderer struct {
	theme    *styles.Theme
	markdown bool

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewRenderer creates a reply renderer for theme.
func NewRenderer(theme *styles.Theme, markdown bool) *Renderer {
	return &Renderer{
		theme:     theme,
		markdown:  markdown,
		renderers: make(map[int]*glamour.TermRenderer),
	}
}

// Markdown reports whether glamour rendering is enabled.
func (r *Renderer) Markdown() bool {
	return r.markdown
}

// SetMarkdown toggles glamour rendering.
func (r *Renderer) SetMarkdown(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markdown = enabled
}

// Render renders a finished reply at width columns.
func (r *Renderer) Render(text string, width int) string {
	if width < 20 {
		width = 20
	}
	r.mu.Lock()
	enabled := r.markdown
	r.mu.Unlock()

	if enabled {
		if tr := r.glamourFor(width); tr != nil {
			if out, err := tr.Render(text); err == nil {
				return strings.Trim(out, "\n")
			}
		}
	}
	return r.RenderPlain(text, width)
}

// RenderPlain wraps prose and highlights code blocks. It is cheap enough to
// run on every frame of a streaming reply.
func (r *Renderer) RenderPlain(text string, width int) string {
	if width < 20 {
		width = 20
	}
	segments := SplitCodeBlocks(text)
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if !seg.Code {
			parts = append(parts, wordwrap.String(seg.Text, width))
			continue
		}
		cb := NewCodeBlock(seg.Language, seg.Text)
		cb.MaxWidth = width
		cb.Dark = r.theme.IsDark
		parts = append(parts, cb.Render(r.theme))
	}
	return strings.Join(parts, "\n")
}

func (r *Renderer) glamourFor(width int) *glamour.TermRenderer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tr, ok := r.renderers[width]; ok {
		return tr
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.theme.GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	r.renderers[width] = tr
	return tr
}
