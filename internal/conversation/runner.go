// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation drives one chat exchange: it records the user turn,
// assembles the prompt, streams the reply, and records the assistant turn.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/prompt"
	"github.com/jeranaias/replichat/internal/replicate"
	"github.com/jeranaias/replichat/internal/session"
)

// Errors returned by Submit.
var (
	ErrNoCredential = errors.New("no valid API token; set one before chatting")
	ErrEmptyMessage = errors.New("message is empty")

	// ErrEmptyReply indicates the stream completed without any text.
	ErrEmptyReply = errors.New("model returned an empty reply")
)

// =============================================================================
// STREAMING SOURCE
// =============================================================================

// FragmentStream is a single-use sequence of text fragments.
type FragmentStream interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}

// Streamer opens a streaming generation on a model endpoint.
type Streamer interface {
	Stream(ctx context.Context, endpoint string, input map[string]any) (FragmentStream, error)
}

// ClientFactory builds a Streamer for an API token. The token is read from
// the session on every submit, so a credential change takes effect on the
// next turn.
type ClientFactory func(token string) Streamer

// ReplicateFactory returns a ClientFactory backed by the Replicate API.
// configure may further adjust each client (base URL, rate limit). The
// client is reused until the token changes, so a rate limit spans turns.
func ReplicateFactory(configure func(*replicate.Client) *replicate.Client) ClientFactory {
	var (
		mu      sync.Mutex
		current *replicate.Client
		forTok  string
	)
	return func(token string) Streamer {
		mu.Lock()
		defer mu.Unlock()
		if current == nil || forTok != token {
			c := replicate.NewClient(token)
			if configure != nil {
				c = configure(c)
			}
			current, forTok = c, token
		}
		return replicateStreamer{client: current}
	}
}

type replicateStreamer struct {
	client *replicate.Client
}

func (r replicateStreamer) Stream(ctx context.Context, endpoint string, input map[string]any) (FragmentStream, error) {
	return r.client.Stream(ctx, endpoint, input)
}

// =============================================================================
// PARTIAL POLICY
// =============================================================================

// PartialPolicy decides what happens to text streamed before a failure.
type PartialPolicy int

const (
	// PartialDiscard drops the partial reply; no assistant turn is added.
	PartialDiscard PartialPolicy = iota

	// PartialKeep records the partial reply as the assistant turn when at
	// least one fragment arrived. The error is still returned.
	PartialKeep
)

// String returns the config name of the policy.
func (p PartialPolicy) String() string {
	if p == PartialKeep {
		return "keep"
	}
	return "discard"
}

// ParsePartialPolicy parses "discard" or "keep".
func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "discard":
		return PartialDiscard, nil
	case "keep":
		return PartialKeep, nil
	default:
		return PartialDiscard, fmt.Errorf("unknown partial policy %q (want discard or keep)", s)
	}
}

// =============================================================================
// RUNNER
// =============================================================================

// Result describes a finished exchange.
type Result struct {
	Text      string
	Partial   bool
	Stats     *model.Statistics
	Model     model.ModelProfile
	UserTurn  model.Turn
	ReplyTurn *model.Turn
}

// Runner executes exchanges against one session.
type Runner struct {
	state   *session.State
	factory ClientFactory
	policy  PartialPolicy
}

// Option configures a Runner.
type Option func(*Runner)

// WithPartialPolicy sets the partial reply policy.
func WithPartialPolicy(p PartialPolicy) Option {
	return func(r *Runner) {
		r.policy = p
	}
}

// NewRunner creates a Runner for state using factory to reach the service.
func NewRunner(state *session.State, factory ClientFactory, opts ...Option) *Runner {
	r := &Runner{
		state:   state,
		factory: factory,
		policy:  PartialDiscard,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the partial reply policy in effect.
func (r *Runner) Policy() PartialPolicy {
	return r.policy
}

// Submit sends message as the next user turn and streams the reply. Each
// fragment is passed to onFragment as it arrives, unchanged and in order.
// On success exactly one assistant turn equal to the concatenated fragments
// is appended. Failures are returned once and never retried.
//
// A stream that completes without text is handled like one that fails
// before its first fragment: ErrEmptyReply is returned and no assistant
// turn is appended under either PartialPolicy, since there is nothing to
// keep and the transcript holds no empty assistant turns. The user turn
// stays, so the next submission replays it.
func (r *Runner) Submit(ctx context.Context, message string, onFragment func(string)) (*Result, error) {
	token := r.state.Credential()
	if token == "" {
		return nil, ErrNoCredential
	}
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	release, err := r.state.BeginGeneration()
	if err != nil {
		return nil, err
	}
	defer release()

	snap := r.state.Snapshot()
	text := prompt.Assemble(snap.Transcript, snap.Config.SystemPrompt, message)
	input := prompt.BuildInput(snap.Model, snap.Config, text)

	userTurn := model.NewUserTurn(message)
	if err := r.state.AppendTurn(userTurn); err != nil {
		return nil, err
	}

	result := &Result{
		Stats:    model.NewStatistics(),
		Model:    snap.Model,
		UserTurn: userTurn,
	}

	reply, streamErr := r.stream(ctx, token, snap.Model.Endpoint, input, result.Stats, onFragment)
	result.Stats.Finalize()
	result.Text = reply

	if streamErr != nil {
		if r.policy == PartialKeep && reply != "" {
			turn := model.NewAssistantTurn(reply)
			if err := r.state.AppendTurn(turn); err == nil {
				result.ReplyTurn = &turn
				result.Partial = true
			}
		}
		return result, fmt.Errorf("%s: %w", snap.Model.ID, streamErr)
	}

	if reply == "" {
		return result, fmt.Errorf("%s: %w", snap.Model.ID, ErrEmptyReply)
	}

	turn := model.NewAssistantTurn(reply)
	if err := r.state.AppendTurn(turn); err != nil {
		return result, err
	}
	result.ReplyTurn = &turn
	return result, nil
}

func (r *Runner) stream(ctx context.Context, token, endpoint string, input prompt.Input, stats *model.Statistics, onFragment func(string)) (string, error) {
	stream, err := r.factory(token).Stream(ctx, endpoint, input.Map())
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		fragment := stream.Fragment()
		stats.RecordFragment()
		b.WriteString(fragment)
		if onFragment != nil {
			onFragment(fragment)
		}
	}
	return b.String(), stream.Err()
}

// Elapsed is a convenience for front-ends that report turn timing.
func (res *Result) Elapsed() time.Duration {
	if res == nil || res.Stats == nil {
		return 0
	}
	return res.Stats.TotalDuration
}
