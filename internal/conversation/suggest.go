// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"

	"github.com/jeranaias/replichat/internal/replicate"
	"github.com/jeranaias/replichat/internal/session"
)

// Suggestion returns a short next step for a failed turn, or "" when there
// is nothing useful to suggest.
func Suggestion(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoCredential), errors.Is(err, replicate.ErrNotConfigured):
		return "Set a Replicate API token first."
	case errors.Is(err, replicate.ErrAuthFailed):
		return "Check that your Replicate API token is correct and active."
	case errors.Is(err, replicate.ErrInsufficientCredits):
		return "Add billing credit to your Replicate account."
	case errors.Is(err, replicate.ErrModelNotFound):
		return "The model endpoint may have moved; try another model."
	case errors.Is(err, replicate.ErrInvalidInput):
		return "Adjust the generation parameters for this model."
	case errors.Is(err, replicate.ErrRateLimited):
		return "Wait a moment before sending again."
	case errors.Is(err, context.Canceled), errors.Is(err, replicate.ErrPredictionCanceled):
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out; try again or lower max tokens."
	case errors.Is(err, replicate.ErrStreamTruncated):
		return "The connection dropped mid-reply; send the message again."
	case errors.Is(err, ErrEmptyReply):
		return "Try rephrasing or raising the temperature."
	case errors.Is(err, session.ErrGenerationInFlight):
		return "Wait for the current reply to finish."
	}
	return ""
}

// IsCanceled reports whether err comes from a canceled context (process
// shutdown) or a prediction canceled on the service side.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, replicate.ErrPredictionCanceled)
}
