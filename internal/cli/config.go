// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration command for replichat CLI.
//
// Command: config [subcommand]
//
// Subcommands:
//
//	show (default)       Show all settings, token masked
//	get <key>            Print one value
//	set <key> <value>    Set, validate and save one value
//	path                 Print the config file path
//
// Examples:
//
//	replichat config
//	replichat config get generation.model
//	replichat config set generation.temperature 0.4
//	replichat config set ui.theme light
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/replichat/internal/config"
	"github.com/jeranaias/replichat/internal/replicate"
)

// RunConfig handles the config subcommands.
func RunConfig(args Args, out io.Writer) error {
	switch args.Subcommand {
	case "", "show", "list":
		return configShow(out)

	case "get":
		return configGet(out, args.ConfigKey)

	case "set":
		return configSet(out, args.ConfigKey, args.ConfigVal)

	case "path":
		return configPath(out)

	default:
		return &UsageError{Message: fmt.Sprintf("unknown config subcommand: %s\nUsage: replichat config [show|get|set|path]", args.Subcommand)}
	}
}

// loadForEdit reads the file without env overrides, so saving never writes
// an environment-supplied token to disk. A file that fails validation is
// still loaded so it can be repaired with set.
func loadForEdit() (*config.Config, string, error) {
	path, err := config.Path()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.ReadFile(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func configShow(out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		var verrs config.ValidateErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", WarningStyle.Render("Warning:"), err)
		if cfg, _, err = loadForEdit(); err != nil {
			return err
		}
	}

	path, _ := config.Path()
	fmt.Fprintln(out, TitleStyle.Render("replichat configuration"))
	fmt.Fprintln(out, DimStyle.Render(path))
	fmt.Fprintln(out, RenderSeparator(40))

	section := ""
	for _, key := range config.Keys() {
		sec, name, _ := strings.Cut(key, ".")
		if sec != section {
			if section != "" {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, ValueStyle.Bold(true).Render("["+sec+"]"))
			section = sec
		}
		v, err := cfg.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s%s\n", RenderLabel(name), formatValue(key, v))
	}
	return nil
}

func configGet(out io.Writer, key string) error {
	if key == "" {
		return &UsageError{Message: "no config key provided\nUsage: replichat config get <key>"}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	v, err := cfg.Get(normalizeKey(key))
	if err != nil {
		return &UsageError{Message: fmt.Sprintf("%v (known keys: %s)", err, strings.Join(config.Keys(), ", "))}
	}
	fmt.Fprintln(out, formatValue(normalizeKey(key), v))
	return nil
}

func configSet(out io.Writer, key, value string) error {
	if key == "" {
		return &UsageError{Message: "no config key provided\nUsage: replichat config set <key> <value>"}
	}
	key = normalizeKey(key)

	cfg, path, err := loadForEdit()
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Message: fmt.Sprintf("%v (known keys: %s)", err, strings.Join(config.Keys(), ", "))}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration value: %w", err)
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(out, "%s %s = %s\n", RenderStatus(true), key, maskIfSecret(key, value))
	return nil
}

func configPath(out io.Writer) error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, DimStyle.Render("(file does not exist yet; defaults are in effect)"))
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// normalizeKey accepts "Generation.Top_P" as well as "generation.top_p".
func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func formatValue(key string, v interface{}) string {
	if s, ok := v.(string); ok {
		if config.IsSecretKey(key) {
			return maskIfSecret(key, s)
		}
		if s == "" {
			return DimStyle.Render("(not set)")
		}
		if strings.Contains(s, "\n") {
			return fmt.Sprintf("%q", s)
		}
		return s
	}
	return fmt.Sprint(v)
}

// maskIfSecret masks the value if the key holds a credential.
func maskIfSecret(key, value string) string {
	if config.IsSecretKey(key) {
		return replicate.MaskToken(value)
	}
	return value
}
