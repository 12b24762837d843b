// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session.go - Builds a chat session from the config file and flags.
package cli

import (
	"fmt"
	"strings"

	"github.com/jeranaias/replichat/internal/config"
	"github.com/jeranaias/replichat/internal/conversation"
	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/replicate"
	"github.com/jeranaias/replichat/internal/session"
)

// Session bundles what every chat front-end needs.
type Session struct {
	Config *config.Config
	State  *session.State
	Runner *conversation.Runner
}

// LoadConfig loads the config file and applies the command-line overrides
// in args. Overrides are validated together with the file.
func LoadConfig(args Args) (*config.Config, error) {
	if err := args.Err(); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	ApplyFlags(cfg, args)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// ApplyFlags copies command-line overrides into cfg.
func ApplyFlags(cfg *config.Config, args Args) {
	if args.Model != "" {
		cfg.Generation.Model = args.Model
	}
	if args.Temperature != nil {
		cfg.Generation.Temperature = *args.Temperature
	}
	if args.TopP != nil {
		cfg.Generation.TopP = *args.TopP
	}
	if args.MaxTokens != nil {
		cfg.Generation.MaxTokens = *args.MaxTokens
	}
	if strings.TrimSpace(args.System) != "" {
		cfg.Generation.SystemPrompt = args.System
	}
	if args.Token != "" {
		cfg.Replicate.APIToken = args.Token
	}
	if args.KeepPartial {
		cfg.Generation.PartialPolicy = conversation.PartialKeep.String()
	}
	if args.NoMarkdown {
		cfg.UI.Markdown = false
	}
	if args.Verbose {
		cfg.Replicate.Debug = true
	}
}

// NewSession creates session state and a runner from cfg.
func NewSession(cfg *config.Config) (*Session, error) {
	policy, err := conversation.ParsePartialPolicy(cfg.Generation.PartialPolicy)
	if err != nil {
		return nil, err
	}
	if _, ok := model.LookupModel(cfg.Generation.Model); !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrUnknownModel, cfg.Generation.Model)
	}

	state := session.New(
		session.WithModel(cfg.Generation.Model),
		session.WithConfig(cfg.Generation.Params()),
		session.WithCredential(cfg.Replicate.APIToken),
	)
	state.Initialize()

	runner := conversation.NewRunner(state, ClientFactory(cfg), conversation.WithPartialPolicy(policy))
	return &Session{Config: cfg, State: state, Runner: runner}, nil
}

// OpenSession is LoadConfig followed by NewSession.
func OpenSession(args Args) (*Session, error) {
	cfg, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}
	return NewSession(cfg)
}

// ClientFactory returns the Replicate client factory configured by cfg.
func ClientFactory(cfg *config.Config) conversation.ClientFactory {
	rc := cfg.Replicate
	return conversation.ReplicateFactory(func(c *replicate.Client) *replicate.Client {
		c = c.WithUserAgent("replichat/"+Version).
			WithRateLimit(rc.RateLimit, rc.RateBurst).
			WithDebug(rc.Debug)
		if rc.BaseURL != "" {
			c = c.WithBaseURL(rc.BaseURL)
		}
		return c
	})
}
