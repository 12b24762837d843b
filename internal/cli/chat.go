// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line-mode chat for replichat CLI.
//
// Command: chat
//
// Reads messages with history and line editing, streams each reply as it
// arrives, and accepts slash commands for the session settings. A reply
// always runs to completion; Ctrl+C or Ctrl+D at the prompt exits, and
// Ctrl+C while a reply streams ends the process.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/replichat/internal/config"
	"github.com/jeranaias/replichat/internal/conversation"
	"github.com/jeranaias/replichat/internal/export"
	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/session"
	"github.com/jeranaias/replichat/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeSlash)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// slashCommands lists the REPL commands for help and completion.
var slashCommands = []struct {
	name, args, desc string
}{
	{"/model", "[id|number]", "Show or switch the model"},
	{"/models", "", "List available models"},
	{"/temp", "[value]", "Show or set temperature"},
	{"/topp", "[value]", "Show or set top_p"},
	{"/max", "[tokens]", "Show or set max tokens"},
	{"/system", "[text]", "Show or set the system prompt"},
	{"/reset", "", "Restore default parameters"},
	{"/settings", "", "Show the current settings"},
	{"/hints", "", "Show parameter hints"},
	{"/clear", "", "Start a new conversation"},
	{"/export", "[md|json] [path]", "Write the transcript to a file"},
	{"/help", "", "Show this help"},
	{"/quit", "", "Exit chat"},
}

// completeSlash completes slash commands and model ids for /model.
func completeSlash(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	if rest, ok := strings.CutPrefix(line, "/model "); ok {
		var out []string
		for _, id := range model.ModelIDs() {
			if strings.HasPrefix(id, rest) {
				out = append(out, "/model "+id)
			}
		}
		return out
	}
	var out []string
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, line) {
			out = append(out, c.name)
		}
	}
	return out
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// chatREPL holds one interactive chat.
type chatREPL struct {
	sess *Session
	out  io.Writer
}

func newChatREPL(sess *Session, out io.Writer) *chatREPL {
	return &chatREPL{sess: sess, out: out}
}

// RunChat starts the interactive chat.
func RunChat(args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}
	sess, err := OpenSession(args)
	if err != nil {
		return err
	}
	if !sess.State.HasCredential() {
		return conversation.ErrNoCredential
	}

	repl := newChatREPL(sess, os.Stdout)
	input := NewChatCLI()
	defer input.Close()

	repl.printWelcome()
	for {
		line, err := input.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			// ErrPromptAborted (Ctrl+C), io.EOF (Ctrl+D) or a terminal error
			fmt.Fprintln(repl.out)
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}
		if strings.HasPrefix(line, "/") {
			keepGoing, err := repl.command(line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}

		if err := repl.send(line); err != nil {
			repl.printTurnError(err)
		}
	}
}

// send submits one message and streams the reply.
func (r *chatREPL) send(message string) error {
	cfg := r.sess.Config
	printer := newReplyPrinter(r.out, cfg.UI.Markdown, cfg.UI.WordWrap)
	fmt.Fprintln(r.out, AssistantLabelStyle.Render(r.sess.State.Model().ID+">"))

	res, err := r.sess.Runner.Submit(context.Background(), util.CleanInput(message), printer.Write)
	printer.Finish(err == nil)
	if res != nil && res.Partial {
		fmt.Fprintln(r.out, DimStyle.Render("(partial reply kept)"))
	}
	if err == nil && res != nil && res.Stats != nil {
		fmt.Fprintln(r.out, DimStyle.Render(res.Stats.Format()))
	}
	fmt.Fprintln(r.out)
	return err
}

func (r *chatREPL) printTurnError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
	if hint := conversation.Suggestion(err); hint != "" {
		fmt.Fprintln(os.Stderr, hintStyle.Render(hint))
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command. It returns false when chat should end.
func (r *chatREPL) command(line string) (bool, error) {
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	arg := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	state := r.sess.State

	switch name {
	case "/quit", "/exit", "/q":
		return false, nil

	case "/help", "/?":
		r.printHelp()

	case "/models":
		printModels(r.out, state.Model().ID)

	case "/model", "/m":
		if arg == "" {
			fmt.Fprintf(r.out, "Model: %s\n", state.Model().Summary())
			return true, nil
		}
		id := arg
		if n, err := strconv.Atoi(arg); err == nil {
			ids := model.ModelIDs()
			if n < 1 || n > len(ids) {
				return true, fmt.Errorf("model number must be 1-%d", len(ids))
			}
			id = ids[n-1]
		}
		if err := state.SetModel(id); err != nil {
			return true, fmt.Errorf("%w: %s (see /models)", err, id)
		}
		fmt.Fprintf(r.out, "Model: %s\n", state.Model().Summary())
		r.printWarnings()

	case "/temp", "/temperature":
		if arg == "" {
			fmt.Fprintf(r.out, "Temperature: %.2f\n", state.Config().Temperature)
			return true, nil
		}
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return true, fmt.Errorf("invalid temperature %q", arg)
		}
		fmt.Fprintf(r.out, "Temperature: %.2f\n", state.SetTemperature(v))
		r.printWarnings()

	case "/topp", "/top_p":
		if !state.Model().SupportsTopP {
			return true, fmt.Errorf("%s does not use top_p", state.Model().ID)
		}
		if arg == "" {
			fmt.Fprintf(r.out, "Top P: %.2f\n", state.Config().TopP)
			return true, nil
		}
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return true, fmt.Errorf("invalid top_p %q", arg)
		}
		fmt.Fprintf(r.out, "Top P: %.2f\n", state.SetTopP(v))
		r.printWarnings()

	case "/max", "/max_tokens":
		if arg == "" {
			fmt.Fprintf(r.out, "Max tokens: %d\n", state.Config().MaxTokens)
			return true, nil
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return true, fmt.Errorf("invalid max tokens %q", arg)
		}
		fmt.Fprintf(r.out, "Max tokens: %d\n", state.SetMaxTokens(n))
		r.printWarnings()

	case "/system":
		if arg == "" {
			fmt.Fprintf(r.out, "System prompt:\n%s\n", state.Config().SystemPrompt)
			return true, nil
		}
		if err := state.SetSystemPrompt(arg); err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, "System prompt updated.")

	case "/reset":
		state.ResetConfig()
		fmt.Fprintln(r.out, "Parameters restored to defaults.")
		r.printSettings()

	case "/settings", "/status":
		r.printSettings()

	case "/hints":
		hints := state.Hints()
		if len(hints) == 0 {
			fmt.Fprintln(r.out, "No hints for the current settings.")
		}
		for _, h := range hints {
			fmt.Fprintln(r.out, renderHint(h))
		}

	case "/clear":
		if err := state.Clear(); err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, "Conversation cleared.")
		fmt.Fprintln(r.out, AssistantLabelStyle.Render("assistant>")+" "+model.Greeting)

	case "/export":
		path, err := r.export(fields[1:])
		if err != nil {
			return true, err
		}
		fmt.Fprintf(r.out, "%s Transcript written to %s\n", RenderStatus(true), path)

	default:
		return true, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return true, nil
}

// export writes the transcript. The format comes from the first argument,
// or from the extension of the path, and defaults to Markdown.
func (r *chatREPL) export(args []string) (string, error) {
	var format, path string
	switch len(args) {
	case 0:
	case 1:
		if isExportFormat(args[0]) {
			format = args[0]
		} else {
			path = args[0]
		}
	case 2:
		format, path = args[0], args[1]
	default:
		return "", fmt.Errorf("usage: /export [md|json] [path]")
	}
	if format == "" && path != "" {
		format = filepath.Ext(path)
	}

	exporter, err := export.ForFormat(format, nil)
	if err != nil {
		return "", err
	}
	snap := r.sess.State.Snapshot()
	if path == "" {
		return export.ToFile(snap, exporter, nil)
	}
	return export.ToPath(snap, exporter, path)
}

func isExportFormat(s string) bool {
	switch strings.ToLower(s) {
	case "md", "markdown", "json":
		return true
	}
	return false
}

// printWarnings prints warning-level hints after a settings change.
func (r *chatREPL) printWarnings() {
	if !r.sess.Config.UI.ShowHints {
		return
	}
	for _, h := range r.sess.State.Hints() {
		if h.Level == session.HintWarning {
			fmt.Fprintln(r.out, renderHint(h))
		}
	}
}

func renderHint(h session.Hint) string {
	if h.Level == session.HintWarning {
		return WarningStyle.Render("! " + h.Text)
	}
	return DimStyle.Render("- " + h.Text)
}

func (r *chatREPL) printWelcome() {
	snap := r.sess.State.Snapshot()
	fmt.Fprintln(r.out, TitleStyle.Render("replichat "+Version))
	fmt.Fprintf(r.out, "%s\n", DimStyle.Render("Session "+snap.ID+". Type /help for commands, /quit to exit."))
	fmt.Fprintln(r.out, RenderSeparator(40))
	r.printSettings()
	fmt.Fprintln(r.out)
	for _, turn := range snap.Transcript {
		if turn.Role == model.RoleAssistant {
			fmt.Fprintln(r.out, AssistantLabelStyle.Render("assistant>")+" "+turn.Content)
		}
	}
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printSettings() {
	snap := r.sess.State.Snapshot()
	topP := fmt.Sprintf("%.2f", snap.Config.TopP)
	if !snap.Model.SupportsTopP {
		topP = "not used by this model"
	}
	fmt.Fprintf(r.out, "%s%s\n", RenderLabel("Model"), ValueStyle.Render(snap.Model.ID))
	fmt.Fprintf(r.out, "%s%s\n", RenderLabel("Temperature"), ValueStyle.Render(fmt.Sprintf("%.2f", snap.Config.Temperature)))
	fmt.Fprintf(r.out, "%s%s\n", RenderLabel("Top P"), ValueStyle.Render(topP))
	fmt.Fprintf(r.out, "%s%s\n", RenderLabel("Max tokens"), ValueStyle.Render(strconv.Itoa(snap.Config.MaxTokens)))
	fmt.Fprintf(r.out, "%s%s\n", RenderLabel("System prompt"), ValueStyle.Render(util.TruncateRunes(snap.Config.SystemPrompt, 48)))
	fmt.Fprintf(r.out, "%s%s\n", RenderLabel("Partial replies"), ValueStyle.Render(r.sess.Runner.Policy().String()))
}

func (r *chatREPL) printHelp() {
	fmt.Fprintln(r.out, TitleStyle.Render("Commands"))
	names := make([]string, 0, len(slashCommands))
	width := 0
	for _, c := range slashCommands {
		s := strings.TrimSpace(c.name + " " + c.args)
		names = append(names, s)
		width = max(width, len(s))
	}
	for i, c := range slashCommands {
		fmt.Fprintf(r.out, "  %-*s  %s\n", width, names[i], DimStyle.Render(c.desc))
	}
	fmt.Fprintln(r.out, DimStyle.Render("Replies always run to completion. Ctrl+C or Ctrl+D at the prompt exits."))
}
