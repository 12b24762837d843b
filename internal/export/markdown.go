// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/session"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a snapshot to Markdown.
func (e *MarkdownExporter) Export(snap session.Snapshot) ([]byte, error) {
	if len(snap.Transcript) == 0 {
		return nil, ErrEmptyTranscript
	}

	var sb strings.Builder
	exported := e.options.now()
	started := snap.Transcript[0].CreatedAt

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "session: %s\n", snap.ID)
		fmt.Fprintf(&sb, "model: %s\n", snap.Model.ID)
		fmt.Fprintf(&sb, "endpoint: %s\n", snap.Model.Endpoint)
		fmt.Fprintf(&sb, "date: %s\n", started.Format(time.RFC3339))
		fmt.Fprintf(&sb, "turns: %d\n", len(snap.Transcript))
		fmt.Fprintf(&sb, "exported: %s\n", exported.Format(time.RFC3339))
		sb.WriteString("generator: replichat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# Chat with %s\n\n", escapeMarkdown(snap.Model.ID))

	if e.options.IncludeMetadata {
		cfg := snap.Config
		sb.WriteString("## Settings\n\n")
		fmt.Fprintf(&sb, "- **Model**: %s\n", snap.Model.Endpoint)
		fmt.Fprintf(&sb, "- **Temperature**: %.2f\n", cfg.Temperature)
		if snap.Model.SupportsTopP {
			fmt.Fprintf(&sb, "- **Top P**: %.2f\n", cfg.TopP)
		}
		fmt.Fprintf(&sb, "- **Max Tokens**: %d\n", cfg.MaxTokens)
		fmt.Fprintf(&sb, "- **Started**: %s\n", formatTimestamp(started))
		if cfg.SystemPrompt != "" {
			sb.WriteString("\n**System prompt**\n\n")
			sb.WriteString(quote(cfg.SystemPrompt))
			sb.WriteString("\n")
		}
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")
	for i, turn := range snap.Transcript {
		label := roleLabel(turn.Role)
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(turn.CreatedAt))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}
		sb.WriteString(strings.TrimSpace(turn.Content))
		sb.WriteString("\n\n")
		if i < len(snap.Transcript)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from replichat on %s*\n", exported.Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func roleLabel(role model.Role) string {
	if role.IsValid() {
		return role.DisplayName()
	}
	if role == "" {
		return "Unknown"
	}
	return string(role)
}

// quote renders text as a Markdown block quote.
func quote(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight("> "+line, " ")
	}
	return strings.Join(lines, "\n") + "\n"
}

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
