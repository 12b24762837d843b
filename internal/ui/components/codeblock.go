// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/replichat/internal/ui/styles"
)

// =============================================================================
// CODE BLOCK RENDERER
// =============================================================================

// CodeBlock is a fenced code block from an assistant reply.
type CodeBlock struct {
	Language string
	Code     string
	MaxWidth int
	Dark     bool
}

// NewCodeBlock creates a new code block.
func NewCodeBlock(language, code string) CodeBlock {
	return CodeBlock{
		Language: language,
		Code:     code,
		MaxWidth: 80,
		Dark:     true,
	}
}

// Render renders the code block with line numbers and a language badge.
func (c CodeBlock) Render(theme *styles.Theme) string {
	code := strings.TrimRight(c.Code, "\n")

	highlighted := highlightCode(code, c.Language, c.Dark, theme.HasTrueColor)
	lines := strings.Split(highlighted, "\n")

	rendered := make([]string, 0, len(lines)+1)
	if c.Language != "" {
		rendered = append(rendered, theme.CodeLangBadge.Render(c.Language))
	}
	for i, line := range lines {
		rendered = append(rendered, theme.CodeLineNum.Render(strconv.Itoa(i+1))+line)
	}

	maxWidth := c.MaxWidth - 2
	if maxWidth < 20 {
		maxWidth = 20
	}
	return theme.CodeBlock.MaxWidth(maxWidth).Render(strings.Join(rendered, "\n"))
}

// =============================================================================
// MARKDOWN CODE BLOCK PARSER
// =============================================================================

// Segment is a run of reply text, either prose or a fenced code block.
type Segment struct {
	Text     string
	Code     bool
	Language string
	// Closed is false for a code block still waiting for its closing fence
	Closed bool
}

// SplitCodeBlocks splits text at ``` fences. An unterminated fence yields a
// final open code segment, which happens mid-stream.
func SplitCodeBlocks(text string) []Segment {
	var segments []Segment
	var buf []string
	var inCode bool
	var language string

	flush := func(code, closed bool) {
		if len(buf) == 0 && !code {
			return
		}
		segments = append(segments, Segment{
			Text:     strings.Join(buf, "\n"),
			Code:     code,
			Language: language,
			Closed:   closed,
		})
		buf = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inCode {
				flush(true, true)
				language = ""
				inCode = false
			} else {
				flush(false, true)
				language = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
				inCode = true
			}
			continue
		}
		buf = append(buf, line)
	}
	if inCode {
		flush(true, false)
	} else {
		flush(false, true)
	}
	return segments
}

// ParseCodeBlocks returns text with every fenced code block replaced by its
// highlighted rendering. Prose passes through unchanged.
func ParseCodeBlocks(theme *styles.Theme, text string, maxWidth int) string {
	segments := SplitCodeBlocks(text)
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if !seg.Code {
			parts = append(parts, seg.Text)
			continue
		}
		cb := NewCodeBlock(seg.Language, seg.Text)
		cb.MaxWidth = maxWidth
		cb.Dark = theme.IsDark
		parts = append(parts, cb.Render(theme))
	}
	return strings.Join(parts, "\n")
}

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// highlightCode applies terminal syntax highlighting with chroma. The
// language falls back to content analysis, then to plain text. True-color
// terminals get 24-bit escapes.
func highlightCode(code, language string, dark, trueColor bool) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "monokai"
	if !dark {
		styleName = "github"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatterName := "terminal256"
	if trueColor {
		formatterName = "terminal16m"
	}
	formatter := formatters.Get(formatterName)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}

// DetectLanguage guesses the language of an unlabeled code block.
func DetectLanguage(code string) string {
	if lexer := lexers.Analyse(code); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}
