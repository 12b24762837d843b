// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command handlers for replichat.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdModels
	CmdConfig
	CmdToken
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdModels:
		return "models"
	case CmdConfig:
		return "config"
	case CmdToken:
		return "token"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed command-line arguments.
type Args struct {
	// Global flags. Pointer fields are nil when the flag was not given.
	Model       string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	System      string
	Token       string
	KeepPartial bool
	NoMarkdown  bool
	Verbose     bool

	// Ask
	Query string

	// Config
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw holds the arguments following the command.
	Raw []string

	// Errors collects flag problems found while parsing.
	Errors []error
}

// Err returns the first parse error, or nil.
func (a Args) Err() error {
	if len(a.Errors) == 0 {
		return nil
	}
	return a.Errors[0]
}

const usageText = `replichat %s - chat with hosted language models from your terminal

USAGE:
    replichat [FLAGS] [COMMAND] [ARGS]

COMMANDS:
    (none), tui          Start the full-screen chat
    chat                 Line-mode chat with history and slash commands
    ask <message>        Send one message and stream the reply to stdout
    models               List available models
    config [show]        Show the configuration (token masked)
    config get <key>     Print one configuration value
    config set <k> <v>   Set and save one configuration value
    config path          Print the configuration file path
    token                Enter the API token (input hidden) and save it
    version              Show version information
    help                 Show this help

FLAGS:
    --model <id>         Model to start with
    --temperature <t>    Sampling temperature (0.01-5)
    --top-p <p>          Nucleus sampling (0.01-1)
    --max-tokens <n>     Maximum reply tokens (model minimum to 4096)
    --system <text>      System prompt
    --token <r8_...>     API token for this run (not saved)
    --keep-partial       Keep text streamed before a failure
    --no-markdown        Print replies without markdown rendering
    -v, --verbose        Log API requests

ENVIRONMENT:
    REPLICATE_API_TOKEN  API token
    REPLICHAT_MODEL      Starting model
    REPLICHAT_CONFIG     Configuration file path
    REPLICHAT_BASE_URL   API base URL
    REPLICHAT_DEBUG      Log API requests when set to 1

EXAMPLES:
    replichat
    replichat --model meta-llama-3-70b-instruct chat
    replichat ask "Explain Go channels in two sentences"
    replichat config set generation.temperature 0.4
`

// PrintUsage prints the usage text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("replichat version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go version: %s\n", runtime.Version())
}

// Parse parses command-line arguments (without the program name) and
// returns the command and args.
func Parse(argv []string) (Command, Args) {
	// Parse global flags first
	remaining, parsedArgs := parseGlobalFlags(argv)

	// If no remaining args, default to TUI
	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs

	case "chat":
		return CmdChat, parsedArgs

	case "ask":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "models", "model":
		return CmdModels, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "token", "login":
		return CmdToken, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		parsedArgs.Raw = append([]string{cmd}, remaining...)
		parsedArgs.Errors = append(parsedArgs.Errors, &UsageError{
			Message: fmt.Sprintf("unknown command %q", cmd),
		})
		return CmdHelp, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
// Flags may appear anywhere on the line; both "--flag value" and
// "--flag=value" forms are accepted.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" ends flag parsing; it is kept so commands see it too
		if arg == "--" {
			remaining = append(remaining, args[i:]...)
			break
		}

		name, value, hasValue := strings.Cut(arg, "=")
		if !strings.HasPrefix(name, "-") || name == "-" {
			remaining = append(remaining, arg)
			continue
		}

		// takeValue returns the flag's value from "=value" or the next arg.
		takeValue := func() (string, bool) {
			if hasValue {
				return value, true
			}
			if i+1 < len(args) {
				i++
				return args[i], true
			}
			parsedArgs.Errors = append(parsedArgs.Errors, &UsageError{
				Message: fmt.Sprintf("flag %s needs a value", name),
			})
			return "", false
		}

		switch name {
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--keep-partial":
			parsedArgs.KeepPartial = true
		case "--no-markdown":
			parsedArgs.NoMarkdown = true
		case "-m", "--model":
			if v, ok := takeValue(); ok {
				parsedArgs.Model = v
			}
		case "-s", "--system":
			if v, ok := takeValue(); ok {
				parsedArgs.System = v
			}
		case "--token":
			if v, ok := takeValue(); ok {
				parsedArgs.Token = strings.TrimSpace(v)
			}
		case "-t", "--temperature":
			if v, ok := takeValue(); ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					parsedArgs.Temperature = &f
				} else {
					parsedArgs.Errors = append(parsedArgs.Errors, invalidFlag(name, v, "a number"))
				}
			}
		case "--top-p":
			if v, ok := takeValue(); ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					parsedArgs.TopP = &f
				} else {
					parsedArgs.Errors = append(parsedArgs.Errors, invalidFlag(name, v, "a number"))
				}
			}
		case "--max-tokens":
			if v, ok := takeValue(); ok {
				if n, err := strconv.Atoi(v); err == nil {
					parsedArgs.MaxTokens = &n
				} else {
					parsedArgs.Errors = append(parsedArgs.Errors, invalidFlag(name, v, "an integer"))
				}
			}
		default:
			// Unknown flags belong to the command (e.g. "-h")
			remaining = append(remaining, arg)
		}
	}

	return remaining, parsedArgs
}

// parseAskArgs joins the positional words into the query.
func parseAskArgs(args *Args, remaining []string) {
	var query []string
	flagsDone := false
	for _, arg := range remaining {
		if arg == "--" && !flagsDone {
			flagsDone = true
			continue
		}
		if strings.HasPrefix(arg, "-") && len(query) == 0 && !flagsDone {
			args.Errors = append(args.Errors, &UsageError{
				Message: fmt.Sprintf("unknown ask flag %s", arg),
			})
			continue
		}
		query = append(query, arg)
	}
	args.Query = strings.Join(query, " ")
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = strings.ToLower(remaining[0])
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = strings.Join(remaining[2:], " ")
		}
	}
}

func invalidFlag(name, value, want string) error {
	return &UsageError{Message: fmt.Sprintf("invalid value %q for %s: want %s", value, name, want)}
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// exitOnError prints err and exits with its exit code.
func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if hint := Hint(err); hint != "" {
		fmt.Fprintln(os.Stderr, hintStyle.Render(hint))
	}
	os.Exit(ExitCode(err))
}

// HandleAsk handles the "ask" command.
func HandleAsk(args Args) {
	exitOnError(RunAsk(args, os.Stdout))
}

// HandleChat handles the "chat" command.
func HandleChat(args Args) {
	exitOnError(RunChat(args))
}

// HandleModels handles the "models" command.
func HandleModels(args Args) {
	exitOnError(RunModels(args, os.Stdout))
}

// HandleConfig handles the "config" command.
func HandleConfig(args Args) {
	exitOnError(RunConfig(args, os.Stdout))
}

// HandleToken handles the "token" command.
func HandleToken(args Args) {
	exitOnError(RunToken(args))
}

// HandleVersion handles the "version" command.
func HandleVersion() {
	PrintVersion()
}

// HandleHelp handles the "help" command. Unknown commands land here with a
// usage error, which is reported after the usage text.
func HandleHelp(args Args) {
	PrintUsage()
	exitOnError(args.Err())
}
