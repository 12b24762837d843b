// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// This test file covers argument parsing, session setup, the config and
// token commands, the chat slash commands and the ask command.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/replichat/internal/config"
	"github.com/jeranaias/replichat/internal/conversation"
	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/replicate"
	"github.com/jeranaias/replichat/internal/session"
)

const testToken = "r8_abcdefghijklmnopqrstuvwxyz0123456789A"

// useConfigFile points the config loader at a temp file holding content and
// clears the environment overrides.
func useConfigFile(t *testing.T, content string) string {
	t.Helper()
	for _, k := range []string{"REPLICATE_API_TOKEN", "REPLICHAT_BASE_URL", "REPLICHAT_MODEL", "REPLICHAT_DEBUG"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}
	t.Setenv("REPLICHAT_CONFIG", path)
	return path
}

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParse_Commands(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want Command
	}{
		{"no args starts tui", nil, CmdTUI},
		{"tui", []string{"tui"}, CmdTUI},
		{"chat", []string{"chat"}, CmdChat},
		{"ask", []string{"ask", "hi"}, CmdAsk},
		{"models", []string{"models"}, CmdModels},
		{"config", []string{"config"}, CmdConfig},
		{"token", []string{"token"}, CmdToken},
		{"login alias", []string{"login"}, CmdToken},
		{"version", []string{"version"}, CmdVersion},
		{"help flag", []string{"--help"}, CmdHelp},
		{"case insensitive", []string{"CHAT"}, CmdChat},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, args := Parse(tc.argv)
			assert.Equal(t, tc.want, cmd)
			assert.NoError(t, args.Err())
		})
	}
}

func TestParse_GlobalFlagsAnywhere(t *testing.T) {
	cmd, args := Parse([]string{
		"--model", "meta-llama-3-70b-instruct",
		"ask", "--temperature=0.3", "--top-p", "0.5", "--max-tokens", "256",
		"what", "is", "--keep-partial", "go", "-v", "--no-markdown",
		"--system", "Be brief.", "--token=" + testToken,
	})

	require.NoError(t, args.Err())
	assert.Equal(t, CmdAsk, cmd)
	assert.Equal(t, "what is go", args.Query)
	assert.Equal(t, "meta-llama-3-70b-instruct", args.Model)
	require.NotNil(t, args.Temperature)
	assert.Equal(t, 0.3, *args.Temperature)
	require.NotNil(t, args.TopP)
	assert.Equal(t, 0.5, *args.TopP)
	require.NotNil(t, args.MaxTokens)
	assert.Equal(t, 256, *args.MaxTokens)
	assert.Equal(t, "Be brief.", args.System)
	assert.Equal(t, testToken, args.Token)
	assert.True(t, args.KeepPartial)
	assert.True(t, args.NoMarkdown)
	assert.True(t, args.Verbose)
}

func TestParse_UnsetNumericFlagsStayNil(t *testing.T) {
	_, args := Parse([]string{"chat"})
	assert.Nil(t, args.Temperature)
	assert.Nil(t, args.TopP)
	assert.Nil(t, args.MaxTokens)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		wantMsg string
	}{
		{"bad float", []string{"--temperature", "warm", "chat"}, CmdChat, "invalid value"},
		{"bad int", []string{"--max-tokens=lots"}, CmdTUI, "an integer"},
		{"missing value", []string{"chat", "--model"}, CmdChat, "needs a value"},
		{"unknown command", []string{"frobnicate"}, CmdHelp, "unknown command"},
		{"unknown ask flag", []string{"ask", "--loud", "hi"}, CmdAsk, "unknown ask flag"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, args := Parse(tc.argv)
			assert.Equal(t, tc.wantCmd, cmd)
			require.Error(t, args.Err())
			assert.Contains(t, args.Err().Error(), tc.wantMsg)
			assert.Equal(t, ExitUsageError, ExitCode(args.Err()))
		})
	}
}

func TestParse_DoubleDashEndsFlags(t *testing.T) {
	cmd, args := Parse([]string{"ask", "--", "--model", "is", "a", "flag"})
	require.NoError(t, args.Err())
	assert.Equal(t, CmdAsk, cmd)
	assert.Equal(t, "--model is a flag", args.Query)
	assert.Empty(t, args.Model)
}

func TestParse_ConfigArgs(t *testing.T) {
	_, args := Parse([]string{"config", "SET", "generation.system_prompt", "Be", "terse."})
	assert.Equal(t, "set", args.Subcommand)
	assert.Equal(t, "generation.system_prompt", args.ConfigKey)
	assert.Equal(t, "Be terse.", args.ConfigVal)
}

// =============================================================================
// EXIT CODE TESTS
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Message: "x"}, ExitUsageError},
		{"config", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "a", Message: "b"}}), ExitConfigError},
		{"no credential", conversation.ErrNoCredential, ExitAuthError},
		{"auth", fmt.Errorf("m: %w", replicate.ErrAuthFailed), ExitAuthError},
		{"credits", replicate.ErrInsufficientCredits, ExitAuthError},
		{"unknown model", session.ErrUnknownModel, ExitNotFoundError},
		{"canceled", context.Canceled, ExitInterrupted},
		{"deadline", context.DeadlineExceeded, ExitTimeoutError},
		{"truncated", replicate.ErrStreamTruncated, ExitNetworkError},
		{"api", &replicate.APIError{Status: 500}, ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}

func TestHint(t *testing.T) {
	assert.Contains(t, Hint(conversation.ErrNoCredential), "replichat token")
	assert.Contains(t, Hint(&UsageError{Message: "x"}), "replichat help")
	assert.NotEmpty(t, Hint(replicate.ErrRateLimited))
	assert.Empty(t, Hint(errors.New("boom")))
}

// =============================================================================
// SESSION SETUP TESTS
// =============================================================================

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	useConfigFile(t, "[generation]\ntemperature = 1.5\nmodel = \"meta-llama-3-70b-instruct\"\n")

	temp := 0.25
	maxTokens := 900
	cfg, err := LoadConfig(Args{
		Model:       "anthropic-claude-3.7-sonnet",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		KeepPartial: true,
		NoMarkdown:  true,
		Verbose:     true,
		Token:       testToken,
	})
	require.NoError(t, err)

	assert.Equal(t, "anthropic-claude-3.7-sonnet", cfg.Generation.Model)
	assert.Equal(t, 0.25, cfg.Generation.Temperature)
	assert.Equal(t, 900, cfg.Generation.MaxTokens)
	assert.Equal(t, "keep", cfg.Generation.PartialPolicy)
	assert.False(t, cfg.UI.Markdown)
	assert.True(t, cfg.Replicate.Debug)
	assert.Equal(t, testToken, cfg.Replicate.APIToken)
}

func TestLoadConfig_RejectsBadFlags(t *testing.T) {
	useConfigFile(t, "")

	_, err := LoadConfig(Args{Model: "gpt-4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation.model")
	assert.Equal(t, ExitConfigError, ExitCode(err))

	_, err = LoadConfig(Args{Token: "sk-not-replicate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replicate.api_token")

	_, err = LoadConfig(Args{Errors: []error{&UsageError{Message: "bad"}}})
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestNewSession(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.Model = "anthropic-claude-3.7-sonnet"
	cfg.Generation.MaxTokens = 512
	cfg.Generation.PartialPolicy = "keep"
	cfg.Replicate.APIToken = testToken

	sess, err := NewSession(cfg)
	require.NoError(t, err)

	assert.Equal(t, "anthropic-claude-3.7-sonnet", sess.State.Model().ID)
	assert.Equal(t, 1024, sess.State.Config().MaxTokens, "raised to the model minimum")
	assert.True(t, sess.State.HasCredential())
	assert.Equal(t, conversation.PartialKeep, sess.Runner.Policy())
	require.Len(t, sess.State.Transcript(), 1)
	assert.Equal(t, model.Greeting, sess.State.Transcript()[0].Content)
}

// =============================================================================
// CONFIG COMMAND TESTS
// =============================================================================

func TestRunConfig_SetGetShow(t *testing.T) {
	path := useConfigFile(t, "")

	var out bytes.Buffer
	require.NoError(t, RunConfig(Args{Subcommand: "set", ConfigKey: "generation.temperature", ConfigVal: "0.4"}, &out))
	assert.Contains(t, out.String(), "generation.temperature = 0.4")

	out.Reset()
	require.NoError(t, RunConfig(Args{Subcommand: "set", ConfigKey: "Replicate.API_Token", ConfigVal: testToken}, &out))
	assert.NotContains(t, out.String(), testToken)
	assert.Contains(t, out.String(), "REDACTED")

	saved, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 0.4, saved.Generation.Temperature)
	assert.Equal(t, testToken, saved.Replicate.APIToken)

	out.Reset()
	require.NoError(t, RunConfig(Args{Subcommand: "get", ConfigKey: "generation.temperature"}, &out))
	assert.Equal(t, "0.4\n", out.String())

	out.Reset()
	require.NoError(t, RunConfig(Args{}, &out))
	show := out.String()
	assert.Contains(t, show, "[generation]")
	assert.Contains(t, show, "temperature")
	assert.NotContains(t, show, testToken)

	out.Reset()
	require.NoError(t, RunConfig(Args{Subcommand: "path"}, &out))
	assert.Equal(t, path+"\n", out.String())
}

func TestRunConfig_SetErrors(t *testing.T) {
	path := useConfigFile(t, "")
	var out bytes.Buffer

	err := RunConfig(Args{Subcommand: "set", ConfigKey: "generation.temperature", ConfigVal: "9"}, &out)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "invalid values are never saved")

	err = RunConfig(Args{Subcommand: "set", ConfigKey: "generation.colour", ConfigVal: "red"}, &out)
	assert.Equal(t, ExitUsageError, ExitCode(err))

	err = RunConfig(Args{Subcommand: "set"}, &out)
	assert.Equal(t, ExitUsageError, ExitCode(err))

	err = RunConfig(Args{Subcommand: "explode"}, &out)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestRunConfig_SetDoesNotPersistEnvToken(t *testing.T) {
	path := useConfigFile(t, "")
	t.Setenv("REPLICATE_API_TOKEN", testToken)

	var out bytes.Buffer
	require.NoError(t, RunConfig(Args{Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "light"}, &out))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), testToken)
	assert.Contains(t, string(data), `theme = "light"`)
}

func TestSaveToken_KeepsOtherSettings(t *testing.T) {
	path := useConfigFile(t, "[generation]\nmax_tokens = 300\n")

	got, err := SaveToken(testToken)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, testToken, cfg.Replicate.APIToken)
	assert.Equal(t, 300, cfg.Generation.MaxTokens)
}

func TestRunToken_RejectsMalformedToken(t *testing.T) {
	useConfigFile(t, "")
	err := RunToken(Args{Token: "r8_short"})
	require.ErrorIs(t, err, session.ErrInvalidCredential)
	assert.Equal(t, ExitAuthError, ExitCode(err))
}

func TestRunModels(t *testing.T) {
	useConfigFile(t, "[generation]\nmodel = \"meta-llama-3.1-405b-instruct\"\n")

	var out bytes.Buffer
	require.NoError(t, RunModels(Args{}, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1+len(model.Catalog()))
	for i, id := range model.ModelIDs() {
		assert.Contains(t, lines[i+1], id)
	}
	assert.True(t, strings.HasPrefix(lines[3], "* "), "current model is marked: %q", lines[3])
}

// =============================================================================
// CHAT REPL TESTS
// =============================================================================

type scriptedStream struct {
	fragments []string
	err       error
	pos       int
}

func (s *scriptedStream) Next() bool {
	if s.pos < len(s.fragments) {
		s.pos++
		return true
	}
	return false
}

func (s *scriptedStream) Fragment() string { return s.fragments[s.pos-1] }
func (s *scriptedStream) Err() error {
	if s.pos >= len(s.fragments) {
		return s.err
	}
	return nil
}
func (s *scriptedStream) Close() error { return nil }

type scriptedStreamer struct {
	stream *scriptedStream
}

func (s *scriptedStreamer) Stream(ctx context.Context, endpoint string, input map[string]any) (conversation.FragmentStream, error) {
	return s.stream, nil
}

func newTestREPL(t *testing.T, fragments []string, streamErr error) (*chatREPL, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Replicate.APIToken = testToken
	cfg.UI.Markdown = false

	state := session.New(
		session.WithModel(cfg.Generation.Model),
		session.WithConfig(cfg.Generation.Params()),
		session.WithCredential(testToken),
	)
	state.Initialize()
	streamer := &scriptedStreamer{stream: &scriptedStream{fragments: fragments, err: streamErr}}
	runner := conversation.NewRunner(state, func(string) conversation.Streamer { return streamer })

	var out bytes.Buffer
	return newChatREPL(&Session{Config: cfg, State: state, Runner: runner}, &out), &out
}

func TestChatREPL_Send(t *testing.T) {
	repl, out := newTestREPL(t, []string{"Hel", "lo!"}, nil)

	require.NoError(t, repl.send("  hi there \x1b  "))
	assert.Contains(t, out.String(), "Hello!\n")
	assert.Contains(t, out.String(), "fragments")

	turns := repl.sess.State.Transcript()
	require.Len(t, turns, 3)
	assert.Equal(t, "hi there", turns[1].Content)
	assert.Equal(t, "Hello!", turns[2].Content)
	assert.False(t, repl.sess.State.InFlight(), "nothing in flight after send returns")
}

func TestChatREPL_SendFailure(t *testing.T) {
	repl, out := newTestREPL(t, []string{"par"}, replicate.ErrStreamTruncated)

	err := repl.send("hi")
	require.ErrorIs(t, err, replicate.ErrStreamTruncated)
	assert.Contains(t, out.String(), "par\n")
	assert.NotContains(t, out.String(), "fragments")
	assert.Len(t, repl.sess.State.Transcript(), 2, "partial reply discarded by default")
}

func TestChatREPL_Commands(t *testing.T) {
	repl, out := newTestREPL(t, nil, nil)
	state := repl.sess.State

	run := func(line string) error {
		t.Helper()
		out.Reset()
		keep, err := repl.command(line)
		assert.True(t, keep, line)
		return err
	}

	require.NoError(t, run("/model 2"))
	assert.Equal(t, "meta-llama-3-70b-instruct", state.Model().ID)

	require.NoError(t, run("/model meta-llama-3.1-405b-instruct"))
	assert.Equal(t, "meta-llama-3.1-405b-instruct", state.Model().ID)

	assert.ErrorIs(t, run("/model gpt-4"), session.ErrUnknownModel)
	assert.Error(t, run("/model 99"))

	require.NoError(t, run("/temp 9"))
	assert.Contains(t, out.String(), "Temperature: 5.00")
	assert.Error(t, run("/temp hot"))

	require.NoError(t, run("/topp 0.42"))
	assert.InDelta(t, 0.42, state.Config().TopP, 1e-9)

	require.NoError(t, run("/max 100000"))
	assert.Equal(t, model.MaxMaxTokens, state.Config().MaxTokens)

	require.NoError(t, run("/system Answer in haiku."))
	assert.Equal(t, "Answer in haiku.", state.Config().SystemPrompt)
	require.NoError(t, run("/system"))
	assert.Contains(t, out.String(), "Answer in haiku.")

	require.NoError(t, run("/model anthropic-claude-3.7-sonnet"))
	err := run("/topp 0.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not use top_p")

	require.NoError(t, run("/hints"))
	assert.NotEmpty(t, out.String())

	require.NoError(t, run("/reset"))
	assert.Equal(t, model.DefaultTemperature, state.Config().Temperature)

	require.NoError(t, run("/models"))
	assert.Contains(t, out.String(), "meta-llama-3-8b-instruct")

	require.NoError(t, run("/help"))
	assert.Contains(t, out.String(), "/clear")

	assert.Error(t, run("/dance"))
}

func TestChatREPL_ClearAndQuit(t *testing.T) {
	repl, _ := newTestREPL(t, []string{"ok"}, nil)
	require.NoError(t, repl.send("hi"))
	require.Len(t, repl.sess.State.Transcript(), 3)

	keep, err := repl.command("/clear")
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Len(t, repl.sess.State.Transcript(), 1)

	keep, err = repl.command("/quit")
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestChatREPL_Export(t *testing.T) {
	repl, out := newTestREPL(t, []string{"Four."}, nil)
	require.NoError(t, repl.send("2+2?"))
	dir := t.TempDir()

	mdPath := filepath.Join(dir, "chat.md")
	_, err := repl.command("/export " + mdPath)
	require.NoError(t, err)
	data, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2+2?")
	assert.Contains(t, string(data), "Four.")
	assert.Contains(t, out.String(), "Transcript written to "+mdPath)

	jsonPath := filepath.Join(dir, "chat.txt")
	_, err = repl.command("/export json " + jsonPath)
	require.NoError(t, err)
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"turns"`)

	_, err = repl.command("/export " + filepath.Join(dir, "chat.html"))
	assert.Error(t, err)
	_, err = repl.command("/export md a b")
	assert.Error(t, err)
}

func TestCompleteSlash(t *testing.T) {
	assert.Equal(t, []string{"/model", "/models"}, completeSlash("/mod"))
	assert.Equal(t, []string{"/model meta-llama-3-8b-instruct", "/model meta-llama-3-70b-instruct", "/model meta-llama-3.1-405b-instruct", "/model meta-llama-4-17b-maverick-instruct"},
		completeSlash("/model meta"))
	assert.Nil(t, completeSlash("hello"))
}

// =============================================================================
// ASK TESTS
// =============================================================================

func TestRunAsk_StreamsReply(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/predictions"):
			assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":"p1","urls":{"stream":"%s/stream"}}`, srv.URL)
		case r.URL.Path == "/stream":
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: output\ndata: Paris\n\nevent: output\ndata: .\n\nevent: done\ndata: {}\n\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	useConfigFile(t, fmt.Sprintf("[replicate]\napi_token = %q\nbase_url = %q\n", testToken, srv.URL))

	var out bytes.Buffer
	require.NoError(t, RunAsk(Args{Query: "Capital of France?"}, &out))
	assert.Equal(t, "Paris.\n", out.String())
}

func TestRunAsk_Errors(t *testing.T) {
	useConfigFile(t, "")
	var out bytes.Buffer

	err := RunAsk(Args{Query: "hello"}, &out)
	require.ErrorIs(t, err, conversation.ErrNoCredential)
	assert.Equal(t, ExitAuthError, ExitCode(err))
	assert.Empty(t, out.String())
}

func TestDisplayLines(t *testing.T) {
	assert.Equal(t, 1, displayLines("hello", 80))
	assert.Equal(t, 2, displayLines("hello\n", 80))
	assert.Equal(t, 3, displayLines(strings.Repeat("x", 81)+"\nend", 80))
	assert.Equal(t, 1, displayLines("", 80))
}
