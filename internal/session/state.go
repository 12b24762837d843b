// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/replicate"
)

// Errors returned by State operations.
var (
	ErrUnknownModel       = errors.New("unknown model")
	ErrInvalidTurn        = errors.New("invalid turn")
	ErrBlankSystemPrompt  = errors.New("system prompt must not be blank")
	ErrInvalidCredential  = errors.New("invalid API token format")
	ErrGenerationInFlight = errors.New("a response is still being generated")
)

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// ChangeKind names the part of the state that changed.
type ChangeKind int

const (
	ChangeModel ChangeKind = iota
	ChangeConfig
	ChangeTranscript
	ChangeCredential
	ChangeGeneration
)

// String returns the name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeModel:
		return "model"
	case ChangeConfig:
		return "config"
	case ChangeTranscript:
		return "transcript"
	case ChangeCredential:
		return "credential"
	case ChangeGeneration:
		return "generation"
	default:
		return fmt.Sprintf("change(%d)", int(k))
	}
}

// Change is delivered to observers after a mutation has been applied.
type Change struct {
	Kind      ChangeKind
	SessionID string
}

type observer struct {
	id int
	fn func(Change)
}

// =============================================================================
// STATE
// =============================================================================

// State is the state of one chat session. All methods are safe for
// concurrent use. Observers run after the lock is released, so they may call
// back into the State.
type State struct {
	mu sync.Mutex

	id          string
	startTime   time.Time
	initialized bool

	profile    model.ModelProfile
	hasProfile bool
	config     model.GenerationConfig
	hasConfig  bool
	credential string
	transcript *model.Transcript

	inFlight bool

	observers      []observer
	nextObserverID int
}

// Option configures a State before initialization.
type Option func(*State)

// WithModel preselects a catalog model. Unknown IDs are ignored and the
// default model is used.
func WithModel(id string) Option {
	return func(s *State) {
		if p, ok := model.LookupModel(id); ok {
			s.profile = p
			s.hasProfile = true
		}
	}
}

// WithConfig sets starting generation parameters. They are clamped against
// the selected model during initialization.
func WithConfig(cfg model.GenerationConfig) Option {
	return func(s *State) {
		if strings.TrimSpace(cfg.SystemPrompt) == "" {
			cfg.SystemPrompt = model.DefaultSystemPrompt
		}
		s.config = cfg
		s.hasConfig = true
	}
}

// WithCredential sets the API token when it passes the format check.
func WithCredential(token string) Option {
	return func(s *State) {
		token = strings.TrimSpace(token)
		if replicate.ValidateToken(token) {
			s.credential = token
		}
	}
}

// New creates a State. Call Initialize before use; the other methods also
// initialize lazily.
func New(opts ...Option) *State {
	s := &State{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize fills in defaults for anything not yet set. Calling it again
// leaves existing values untouched.
func (s *State) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
}

func (s *State) initLocked() {
	if !s.initialized {
		s.id = generateSessionID()
		s.startTime = time.Now()
		s.initialized = true
	}
	if !s.hasProfile {
		s.profile = model.DefaultModel()
		s.hasProfile = true
	}
	if !s.hasConfig {
		s.config = model.DefaultGenerationConfig()
		s.hasConfig = true
	}
	s.config = s.config.Clamp(s.profile)
	if s.transcript == nil || s.transcript.IsEmpty() {
		s.transcript = model.NewGreetingTranscript()
	}
}

// =============================================================================
// READS
// =============================================================================

// ID returns the session ID.
func (s *State) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
	return s.id
}

// StartTime returns when the session was initialized.
func (s *State) StartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
	return s.startTime
}

// Model returns the selected model profile.
func (s *State) Model() model.ModelProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
	return s.profile
}

// Config returns the current generation parameters.
func (s *State) Config() model.GenerationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
	return s.config
}

// Transcript returns a copy of the turns in order.
func (s *State) Transcript() []model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
	return s.transcript.Turns()
}

// Credential returns the API token, or "" when none is set.
func (s *State) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// HasCredential reports whether a well-formed token is set.
func (s *State) HasCredential() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential != ""
}

// InFlight reports whether a generation is outstanding.
func (s *State) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Snapshot is a consistent copy of the whole state.
type Snapshot struct {
	ID            string
	Model         model.ModelProfile
	Config        model.GenerationConfig
	Transcript    []model.Turn
	HasCredential bool
	InFlight      bool
}

// Snapshot returns every field under one lock.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
	return Snapshot{
		ID:            s.id,
		Model:         s.profile,
		Config:        s.config,
		Transcript:    s.transcript.Turns(),
		HasCredential: s.credential != "",
		InFlight:      s.inFlight,
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// SetModel selects a catalog model. Changing the model raises MaxTokens to
// the new model's minimum when needed. The transcript is not touched.
func (s *State) SetModel(id string) error {
	p, ok := model.LookupModel(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}

	s.mu.Lock()
	s.initLocked()
	if s.profile.ID == p.ID {
		s.mu.Unlock()
		return nil
	}
	s.profile = p
	s.config = s.config.Clamp(p)
	s.mu.Unlock()

	s.notify(ChangeModel)
	return nil
}

// AppendTurn appends a turn to the transcript. There is no size cap.
func (s *State) AppendTurn(turn model.Turn) error {
	if !turn.Role.IsValid() {
		return fmt.Errorf("%w: role %q", ErrInvalidTurn, turn.Role)
	}
	if turn.Role == model.RoleAssistant && turn.Content == "" {
		return fmt.Errorf("%w: empty assistant turn", ErrInvalidTurn)
	}

	s.mu.Lock()
	s.initLocked()
	s.transcript.Append(turn)
	s.mu.Unlock()

	s.notify(ChangeTranscript)
	return nil
}

// Clear resets the transcript to the single greeting turn. Generation
// parameters are kept. While a reply is streaming it returns
// ErrGenerationInFlight and leaves the transcript untouched.
func (s *State) Clear() error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrGenerationInFlight
	}
	s.initLocked()
	s.transcript = model.NewGreetingTranscript()
	s.mu.Unlock()

	s.notify(ChangeTranscript)
	return nil
}

// SetTemperature sets the temperature, clamped to [0, 5].
func (s *State) SetTemperature(t float64) float64 {
	return s.updateConfig(func(c *model.GenerationConfig) {
		c.Temperature = model.ClampTemperature(t)
	}).Temperature
}

// SetTopP sets the nucleus threshold, clamped to [0, 1].
func (s *State) SetTopP(p float64) float64 {
	return s.updateConfig(func(c *model.GenerationConfig) {
		c.TopP = model.ClampTopP(p)
	}).TopP
}

// SetMaxTokens sets the output length, clamped to the model minimum and 4096.
func (s *State) SetMaxTokens(n int) int {
	return s.updateConfig(func(c *model.GenerationConfig) {
		c.MaxTokens = n
	}).MaxTokens
}

// SetSystemPrompt replaces the system prompt. Blank text is rejected and
// the previous prompt kept.
func (s *State) SetSystemPrompt(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlankSystemPrompt
	}
	s.updateConfig(func(c *model.GenerationConfig) {
		c.SystemPrompt = text
	})
	return nil
}

// ResetConfig restores the default generation parameters.
func (s *State) ResetConfig() model.GenerationConfig {
	return s.updateConfig(func(c *model.GenerationConfig) {
		*c = model.DefaultGenerationConfig()
	})
}

func (s *State) updateConfig(fn func(*model.GenerationConfig)) model.GenerationConfig {
	s.mu.Lock()
	s.initLocked()
	before := s.config
	fn(&s.config)
	s.config = s.config.Clamp(s.profile)
	after := s.config
	s.mu.Unlock()

	if after != before {
		s.notify(ChangeConfig)
	}
	return after
}

// SetCredential stores the API token after the format check. The token is
// not verified against the service.
func (s *State) SetCredential(token string) error {
	token = strings.TrimSpace(token)
	if !replicate.ValidateToken(token) {
		return ErrInvalidCredential
	}

	s.mu.Lock()
	changed := s.credential != token
	s.credential = token
	s.mu.Unlock()

	if changed {
		s.notify(ChangeCredential)
	}
	return nil
}

// ClearCredential removes the API token.
func (s *State) ClearCredential() {
	s.mu.Lock()
	changed := s.credential != ""
	s.credential = ""
	s.mu.Unlock()

	if changed {
		s.notify(ChangeCredential)
	}
}

// =============================================================================
// IN-FLIGHT GUARD
// =============================================================================

// BeginGeneration marks a generation as outstanding. It fails with
// ErrGenerationInFlight when one already is. The returned release function
// ends the generation and may be called more than once.
func (s *State) BeginGeneration() (release func(), err error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrGenerationInFlight
	}
	s.initLocked()
	s.inFlight = true
	s.mu.Unlock()

	s.notify(ChangeGeneration)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.inFlight = false
			s.mu.Unlock()
			s.notify(ChangeGeneration)
		})
	}, nil
}

// =============================================================================
// OBSERVERS
// =============================================================================

// Subscribe registers fn to be called after every change. The returned
// function removes the subscription.
func (s *State) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextObserverID++
	id := s.nextObserverID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// notify calls observers in subscription order. Must be called without the
// lock held.
func (s *State) notify(kind ChangeKind) {
	s.mu.Lock()
	observers := make([]observer, len(s.observers))
	copy(observers, s.observers)
	change := Change{Kind: kind, SessionID: s.id}
	s.mu.Unlock()

	for _, o := range observers {
		o.fn(change)
	}
}

// generateSessionID creates a unique session ID.
func generateSessionID() string {
	return "sess_" + uuid.NewString()
}
