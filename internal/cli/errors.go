// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for replichat CLI.
package cli

import (
	"context"
	"errors"

	"github.com/jeranaias/replichat/internal/config"
	"github.com/jeranaias/replichat/internal/conversation"
	"github.com/jeranaias/replichat/internal/replicate"
	"github.com/jeranaias/replichat/internal/session"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing or rejected API token
	ExitAuthError = 4
	// ExitNetworkError indicates a transport or remote service failure
	ExitNetworkError = 5
	// ExitNotFoundError indicates an unknown model
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitInterrupted indicates the user canceled the operation
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports a malformed command line.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode determines the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var validateErrs config.ValidateErrors
	var validationErr config.ValidationError
	if errors.As(err, &validateErrs) || errors.As(err, &validationErr) {
		return ExitConfigError
	}

	switch {
	case conversation.IsCanceled(err):
		return ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, conversation.ErrNoCredential),
		errors.Is(err, session.ErrInvalidCredential),
		errors.Is(err, replicate.ErrAuthFailed),
		errors.Is(err, replicate.ErrNotConfigured),
		errors.Is(err, replicate.ErrInsufficientCredits):
		return ExitAuthError
	case errors.Is(err, session.ErrUnknownModel),
		errors.Is(err, replicate.ErrModelNotFound):
		return ExitNotFoundError
	case errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, session.ErrBlankSystemPrompt):
		return ExitUsageError
	}

	var apiErr *replicate.APIError
	var streamErr *replicate.StreamError
	if errors.As(err, &apiErr) || errors.As(err, &streamErr) ||
		errors.Is(err, replicate.ErrRateLimited) ||
		errors.Is(err, replicate.ErrStreamTruncated) ||
		errors.Is(err, replicate.ErrNoStreamURL) {
		return ExitNetworkError
	}

	return ExitGeneralError
}

// Hint returns a follow-up suggestion for err, or "" when there is none.
func Hint(err error) string {
	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return "Run 'replichat help' for usage."
	}
	if errors.Is(err, conversation.ErrNoCredential) {
		return "Run 'replichat token' or set REPLICATE_API_TOKEN."
	}
	return conversation.Suggestion(err)
}
