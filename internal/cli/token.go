// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// token.go - API token entry for replichat CLI.
//
// Command: token
//
// Prompts for a Replicate API token without echo, checks its format and
// saves it to the config file. A token given with --token is saved without
// prompting. The token is not verified against the service here; the first
// request does that.
package cli

import (
	"fmt"
	"os"

	"github.com/jeranaias/replichat/internal/config"
	"github.com/jeranaias/replichat/internal/replicate"
	"github.com/jeranaias/replichat/internal/session"
)

// RunToken reads, validates and saves the API token.
func RunToken(args Args) error {
	token := args.Token
	if token == "" {
		fmt.Fprintln(os.Stderr, DimStyle.Render("Find your token at https://replicate.com/account/api-tokens"))
		var err error
		token, err = readSecret("Replicate API token (r8_...): ")
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}
	if !replicate.ValidateToken(token) {
		return fmt.Errorf("%w: must start with %q and be %d characters",
			session.ErrInvalidCredential, replicate.TokenPrefix, replicate.TokenLength)
	}

	path, err := SaveToken(token)
	if err != nil {
		return err
	}
	fmt.Printf("%s Token %s saved to %s\n", RenderStatus(true), replicate.MaskToken(token), path)
	if os.Getenv("REPLICATE_API_TOKEN") != "" {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Note: REPLICATE_API_TOKEN is set and takes precedence over the saved token."))
	}
	return nil
}

// SaveToken writes token into the config file, keeping every other setting.
// It returns the file path.
func SaveToken(token string) (string, error) {
	cfg, path, err := loadForEdit()
	if err != nil {
		return "", err
	}
	cfg.Replicate.APIToken = token
	if err := config.SaveTo(cfg, path); err != nil {
		return "", fmt.Errorf("failed to save config: %w", err)
	}
	return path, nil
}
