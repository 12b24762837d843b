// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command handler for replichat CLI.
//
// Sends one message to the selected model and streams the reply to stdout.
//
// Command: ask <message>
//
// Examples:
//
//	replichat ask "What is the capital of France?"
//	echo "Summarize: ..." | replichat ask
//	replichat --model anthropic-claude-3.7-sonnet ask "Review this plan"
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/jeranaias/replichat/internal/ui/components"
	"github.com/jeranaias/replichat/internal/ui/styles"
	"github.com/jeranaias/replichat/internal/util"
)

// maxPipedQuery caps how much of stdin is read as the question.
const maxPipedQuery = 1 << 20

// RunAsk sends args.Query (or stdin when it is piped and no query was given)
// and writes the reply to out.
func RunAsk(args Args, out io.Writer) error {
	query := strings.TrimSpace(args.Query)
	if query == "" && !IsTTY() {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, maxPipedQuery))
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		query = strings.TrimSpace(string(data))
	}
	if query == "" {
		return &UsageError{Message: "no message provided\nUsage: replichat ask <message>"}
	}

	sess, err := OpenSession(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := newReplyPrinter(out, sess.Config.UI.Markdown, sess.Config.UI.WordWrap)
	_, err = sess.Runner.Submit(ctx, util.CleanInput(query), printer.Write)
	printer.Finish(err == nil)
	return err
}

// =============================================================================
// REPLY PRINTER
// =============================================================================

// replyPrinter streams fragments to a writer as they arrive. On a terminal
// with markdown enabled the finished reply replaces the raw stream with its
// rendered form.
type replyPrinter struct {
	out      io.Writer
	render   bool
	width    int
	renderer *components.Renderer
	buf      strings.Builder
}

func newReplyPrinter(out io.Writer, markdown bool, wordWrap int) *replyPrinter {
	tty := isTerminalWriter(out)
	p := &replyPrinter{
		out:    out,
		render: markdown && tty && ColorsEnabled(),
		width:  wrapWidth(wordWrap),
	}
	if p.render {
		p.renderer = components.NewRenderer(styles.NewTheme(styles.ModeAuto), true)
	}
	return p
}

// Write prints one fragment unchanged.
func (p *replyPrinter) Write(fragment string) {
	p.buf.WriteString(fragment)
	fmt.Fprint(p.out, fragment)
}

// Text returns everything written so far.
func (p *replyPrinter) Text() string {
	return p.buf.String()
}

// Finish ends the reply. complete is false when the turn failed; the raw
// text then stays as streamed.
func (p *replyPrinter) Finish(complete bool) {
	text := p.buf.String()
	defer p.buf.Reset()

	if complete && p.render && text != "" {
		if p.replaceWithRendered(text) {
			return
		}
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(p.out)
	}
}

// replaceWithRendered erases the streamed lines and prints the markdown
// rendering. It gives up when the reply has scrolled past the top of the
// screen, since those lines can no longer be erased.
func (p *replyPrinter) replaceWithRendered(text string) bool {
	f, ok := p.out.(*os.File)
	if !ok {
		return false
	}
	cols, rows, err := term.GetSize(int(f.Fd()))
	if err != nil || cols <= 0 {
		return false
	}
	lines := displayLines(text, cols)
	if lines >= rows {
		return false
	}

	output := termenv.NewOutput(f)
	output.ClearLines(lines - 1)
	fmt.Fprint(p.out, "\r")
	fmt.Fprintln(p.out, p.renderer.Render(text, min(p.width, cols)))
	return true
}

// displayLines counts the terminal rows text occupies when printed raw at
// cols columns, including soft wraps. The cursor is assumed to sit on the
// last row.
func displayLines(text string, cols int) int {
	if cols <= 0 {
		cols = DefaultTerminalWidth
	}
	lines := strings.Split(text, "\n")
	total := 0
	for _, line := range lines {
		w := util.StringWidth(line)
		if w == 0 {
			total++
			continue
		}
		total += (w + cols - 1) / cols
	}
	return total
}
