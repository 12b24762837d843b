// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/prompt"
	"github.com/jeranaias/replichat/internal/replicate"
	"github.com/jeranaias/replichat/internal/session"
)

const testToken = "r8_abcdefghijklmnopqrstuvwxyz0123456789A"

// =============================================================================
// FAKE STREAMER
// =============================================================================

type fakeStream struct {
	fragments []string
	failAfter error
	pos       int
	closed    bool
	err       error
}

func (f *fakeStream) Next() bool {
	if f.pos < len(f.fragments) {
		f.pos++
		return true
	}
	f.err = f.failAfter
	return false
}

func (f *fakeStream) Fragment() string { return f.fragments[f.pos-1] }
func (f *fakeStream) Err() error       { return f.err }
func (f *fakeStream) Close() error     { f.closed = true; return nil }

type fakeStreamer struct {
	mu       sync.Mutex
	stream   *fakeStream
	openErr  error
	calls    int
	endpoint string
	input    map[string]any
	token    string
	block    chan struct{}
}

func (f *fakeStreamer) factory() ClientFactory {
	return func(token string) Streamer {
		f.mu.Lock()
		f.token = token
		f.mu.Unlock()
		return f
	}
}

func (f *fakeStreamer) Stream(ctx context.Context, endpoint string, input map[string]any) (FragmentStream, error) {
	f.mu.Lock()
	f.calls++
	f.endpoint = endpoint
	f.input = input
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

func newState(t *testing.T) *session.State {
	t.Helper()
	st := session.New(session.WithCredential(testToken))
	st.Initialize()
	require.NoError(t, st.SetSystemPrompt("You are helpful."))
	return st
}

// =============================================================================
// SUBMIT TESTS
// =============================================================================

func TestSubmit_Success(t *testing.T) {
	st := newState(t)
	fs := &fakeStreamer{stream: &fakeStream{fragments: []string{"Hel", "lo", " there", "\n"}}}
	r := NewRunner(st, fs.factory())

	var got []string
	res, err := r.Submit(context.Background(), "Hi", func(f string) { got = append(got, f) })
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo", " there", "\n"}, got)
	assert.Equal(t, "Hello there\n", res.Text)
	assert.Equal(t, 4, res.Stats.Fragments)
	assert.True(t, fs.stream.closed)

	turns := st.Transcript()
	require.Len(t, turns, 3)
	assert.Equal(t, model.RoleUser, turns[1].Role)
	assert.Equal(t, "Hi", turns[1].Content)
	assert.Equal(t, model.RoleAssistant, turns[2].Role)
	assert.Equal(t, strings.Join(got, ""), turns[2].Content)

	assert.Equal(t, testToken, fs.token)
	assert.Equal(t, "meta/meta-llama-3-8b-instruct", fs.endpoint)
	assert.Equal(t, "You are helpful.\n\nAssistant: How may I assist you today?\n\nUser: Hi\n\nAssistant: ",
		fs.input[prompt.KeyPrompt])
	assert.Contains(t, fs.input, prompt.KeyTopP)
	assert.False(t, st.InFlight())
}

func TestSubmit_SecondTurnIncludesHistory(t *testing.T) {
	st := newState(t)
	fs := &fakeStreamer{stream: &fakeStream{fragments: []string{"A1"}}}
	r := NewRunner(st, fs.factory())

	_, err := r.Submit(context.Background(), "Q1", nil)
	require.NoError(t, err)

	fs.stream = &fakeStream{fragments: []string{"A2"}}
	_, err = r.Submit(context.Background(), "Q2", nil)
	require.NoError(t, err)

	want := "You are helpful.\n\nAssistant: How may I assist you today?\n\nUser: Q1\n\nAssistant: A1\n\nUser: Q2\n\nAssistant: "
	assert.Equal(t, want, fs.input[prompt.KeyPrompt])
}

func TestSubmit_OmitsTopPForModelsWithoutIt(t *testing.T) {
	st := newState(t)
	require.NoError(t, st.SetModel("anthropic-claude-3.7-sonnet"))
	fs := &fakeStreamer{stream: &fakeStream{fragments: []string{"ok"}}}

	_, err := NewRunner(st, fs.factory()).Submit(context.Background(), "Hi", nil)
	require.NoError(t, err)

	assert.NotContains(t, fs.input, prompt.KeyTopP)
	assert.Equal(t, 1024, fs.input[prompt.KeyMaxTokens])
	assert.Equal(t, "anthropic/claude-3.7-sonnet", fs.endpoint)
}

func TestSubmit_Preconditions(t *testing.T) {
	fs := &fakeStreamer{stream: &fakeStream{fragments: []string{"x"}}}

	noCred := session.New()
	_, err := NewRunner(noCred, fs.factory()).Submit(context.Background(), "Hi", nil)
	assert.ErrorIs(t, err, ErrNoCredential)

	st := newState(t)
	_, err = NewRunner(st, fs.factory()).Submit(context.Background(), "  \n", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	assert.Equal(t, 0, fs.calls, "no remote call may be attempted")
	assert.Len(t, st.Transcript(), 1)
}

func TestSubmit_RejectsWhileInFlight(t *testing.T) {
	st := newState(t)
	fs := &fakeStreamer{
		stream: &fakeStream{fragments: []string{"slow"}},
		block:  make(chan struct{}),
	}
	r := NewRunner(st, fs.factory())

	done := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), "first", nil)
		done <- err
	}()

	require.Eventually(t, st.InFlight, testTimeout, testTick)

	_, err := r.Submit(context.Background(), "second", nil)
	assert.ErrorIs(t, err, session.ErrGenerationInFlight)

	close(fs.block)
	require.NoError(t, <-done)

	turns := st.Transcript()
	require.Len(t, turns, 3)
	assert.Equal(t, "first", turns[1].Content)
	assert.Equal(t, "slow", turns[2].Content)
}

// =============================================================================
// FAILURE TESTS
// =============================================================================

func TestSubmit_FailureBeforeFragments(t *testing.T) {
	st := newState(t)
	fs := &fakeStreamer{openErr: replicate.ErrAuthFailed}

	var got []string
	_, err := NewRunner(st, fs.factory()).Submit(context.Background(), "Hi", func(f string) { got = append(got, f) })

	assert.ErrorIs(t, err, replicate.ErrAuthFailed)
	assert.Empty(t, got)
	turns := st.Transcript()
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleUser, turns[1].Role)
	assert.False(t, st.InFlight())
}

func TestSubmit_PartialPolicy(t *testing.T) {
	midStream := errors.New("connection reset")

	tests := []struct {
		name       string
		policy     PartialPolicy
		wantTurns  int
		wantReply  string
		wantPartly bool
	}{
		{"discard drops partial reply", PartialDiscard, 2, "", false},
		{"keep records partial reply", PartialKeep, 3, "par", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := newState(t)
			fs := &fakeStreamer{stream: &fakeStream{fragments: []string{"pa", "r"}, failAfter: midStream}}
			r := NewRunner(st, fs.factory(), WithPartialPolicy(tc.policy))

			res, err := r.Submit(context.Background(), "Hi", nil)
			require.ErrorIs(t, err, midStream)
			require.NotNil(t, res)
			assert.Equal(t, "par", res.Text)
			assert.Equal(t, tc.wantPartly, res.Partial)

			turns := st.Transcript()
			require.Len(t, turns, tc.wantTurns)
			if tc.wantReply != "" {
				assert.Equal(t, tc.wantReply, turns[len(turns)-1].Content)
			}
		})
	}
}

func TestSubmit_KeepWithNothingStreamed(t *testing.T) {
	st := newState(t)
	fs := &fakeStreamer{stream: &fakeStream{failAfter: errors.New("boom")}}

	res, err := NewRunner(st, fs.factory(), WithPartialPolicy(PartialKeep)).Submit(context.Background(), "Hi", nil)
	require.Error(t, err)
	assert.False(t, res.Partial)
	assert.Len(t, st.Transcript(), 2)
}

func TestSubmit_EmptyReply(t *testing.T) {
	st := newState(t)
	fs := &fakeStreamer{stream: &fakeStream{}}

	_, err := NewRunner(st, fs.factory()).Submit(context.Background(), "Hi", nil)
	assert.ErrorIs(t, err, ErrEmptyReply)
	assert.Len(t, st.Transcript(), 2)
}

func TestSubmit_EmptyReplyUnderKeepPolicy(t *testing.T) {
	st := newState(t)
	fs := &fakeStreamer{stream: &fakeStream{}}

	res, err := NewRunner(st, fs.factory(), WithPartialPolicy(PartialKeep)).Submit(context.Background(), "Hi", nil)
	require.ErrorIs(t, err, ErrEmptyReply)
	assert.False(t, res.Partial)
	assert.Nil(t, res.ReplyTurn)

	turns := st.Transcript()
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleUser, turns[1].Role)
	assert.Equal(t, "Hi", turns[1].Content)
	assert.False(t, st.InFlight())
}

func TestSubmit_AfterFailureAllowsNextTurn(t *testing.T) {
	st := newState(t)
	fs := &fakeStreamer{openErr: errors.New("network down")}
	r := NewRunner(st, fs.factory())

	_, err := r.Submit(context.Background(), "first", nil)
	require.Error(t, err)

	fs.openErr = nil
	fs.stream = &fakeStream{fragments: []string{"ok"}}
	_, err = r.Submit(context.Background(), "second", nil)
	require.NoError(t, err)

	want := "You are helpful.\n\nAssistant: How may I assist you today?\n\nUser: first\n\nUser: second\n\nAssistant: "
	assert.Equal(t, want, fs.input[prompt.KeyPrompt])
}

// =============================================================================
// REPLICATE INTEGRATION TEST
// =============================================================================

func TestSubmit_ReplicateEndToEnd(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/predictions"):
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":"p1","urls":{"stream":"%s/stream"}}`, srv.URL)
		case r.URL.Path == "/stream":
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: output\ndata: Hi\n\nevent: output\ndata:  there\n\nevent: done\ndata: {}\n\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	st := newState(t)
	factory := ReplicateFactory(func(c *replicate.Client) *replicate.Client {
		return c.WithBaseURL(srv.URL)
	})

	res, err := NewRunner(st, factory).Submit(context.Background(), "Hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", res.Text)
	assert.Equal(t, "Hi there", st.Transcript()[2].Content)
}

func TestReplicateFactory_ReusesClientPerToken(t *testing.T) {
	calls := 0
	factory := ReplicateFactory(func(c *replicate.Client) *replicate.Client {
		calls++
		return c
	})

	a1 := factory(testToken).(replicateStreamer)
	a2 := factory(testToken).(replicateStreamer)
	assert.Same(t, a1.client, a2.client)

	other := "r8_" + strings.Repeat("b", 37)
	b := factory(other).(replicateStreamer)
	assert.NotSame(t, a1.client, b.client)
	assert.Equal(t, 2, calls)
}

// =============================================================================
// POLICY PARSING
// =============================================================================

func TestParsePartialPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    PartialPolicy
		wantErr bool
	}{
		{"", PartialDiscard, false},
		{"discard", PartialDiscard, false},
		{" KEEP ", PartialKeep, false},
		{"maybe", PartialDiscard, true},
	}
	for _, tc := range tests {
		got, err := ParsePartialPolicy(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParsePartialPolicy(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParsePartialPolicy(%q) = %v, expected %v", tc.in, got, tc.want)
		}
	}
	assert.Equal(t, "keep", PartialKeep.String())
}
