// replichat - A terminal chat client for language models hosted on Replicate.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/replichat/internal/cli"
	"github.com/jeranaias/replichat/internal/config"
	"github.com/jeranaias/replichat/internal/ui/chat"
	"github.com/jeranaias/replichat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate

	log.SetPrefix("[replichat] ")
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdChat:
		cli.HandleChat(args)
	case cli.CmdAsk:
		cli.HandleAsk(args)
	case cli.CmdModels:
		cli.HandleModels(args)
	case cli.CmdConfig:
		cli.HandleConfig(args)
	case cli.CmdToken:
		cli.HandleToken(args)
	case cli.CmdVersion:
		cli.HandleVersion()
	case cli.CmdHelp:
		cli.HandleHelp(args)
	}
}

// fail prints err the way the CLI commands do and exits.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if hint := cli.Hint(err); hint != "" {
		fmt.Fprintln(os.Stderr, hint)
	}
	os.Exit(cli.ExitCode(err))
}

// setupTUILogging sends the standard logger to ~/.replichat/debug.log when
// debugging, and discards it otherwise; the screen belongs to the TUI.
func setupTUILogging(debug bool) func() {
	if !debug {
		log.SetOutput(io.Discard)
		return func() {}
	}
	dir, err := config.ConfigDir()
	if err == nil {
		err = os.MkdirAll(dir, 0700)
	}
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	f, err := tea.LogToFile(filepath.Join(dir, "debug.log"), "replichat")
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	return func() { f.Close() }
}

func runTUI(args cli.Args) {
	if err := args.Err(); err != nil {
		fail(err)
	}
	if !cli.IsTTY() || !cli.IsStdoutTTY() {
		fail(&cli.UsageError{Message: "the chat screen needs a terminal; use 'replichat ask' for piped input"})
	}

	sess, err := cli.OpenSession(args)
	if err != nil {
		fail(err)
	}
	config.SetGlobal(sess.Config)

	closeLog := setupTUILogging(sess.Config.Replicate.Debug)
	defer closeLog()

	theme := styles.NewTheme(sess.Config.UI.Theme)
	m := chat.New(chat.Options{
		State:  sess.State,
		Runner: sess.Runner,
		Config: sess.Config,
		Theme:  theme,
		SaveCredential: func(token string) error {
			_, err := cli.SaveToken(token)
			return err
		},
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	m.SetSender(p.Send)

	// Pick up edits made to the config file while the TUI runs, such as a
	// token saved with "replichat token" from another terminal.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if path, err := config.Path(); err == nil {
		_, err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
			if cfg != nil {
				cli.ApplyFlags(cfg, args)
				config.SetGlobal(cfg)
			}
			p.Send(chat.ConfigReloadedMsg{Config: cfg, Err: err})
		})
		if err != nil {
			log.Printf("config watch disabled: %v", err)
		}
	}

	log.Printf("session %s started with %s", sess.State.ID(), sess.State.Model().ID)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running replichat: %v\n", err)
		os.Exit(1)
	}
}
