// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for tauros CLI commands.
//
// Commands always return errors; Execute displays them once and maps them
// to an exit code. Classification uses typed errors and sentinels only.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/tauros/internal/cloud"
	"github.com/jeranaias/tauros/internal/config"
	"github.com/jeranaias/tauros/internal/export"
	"github.com/jeranaias/tauros/internal/offline"
	"github.com/jeranaias/tauros/internal/prompt"
	"github.com/jeranaias/tauros/internal/session"
)

// =============================================================================
// EXIT CODES
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
	// ExitAuthError indicates a missing or rejected API key
	ExitAuthError = 4
	// ExitNetworkError indicates network, rate limit or server failures
	ExitNetworkError = 5
	// ExitOfflineError indicates an operation blocked by offline mode
	ExitOfflineError = 6
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "persona", "tone")
	ID       string // Identifier that was not found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// configError marks failures while loading or validating configuration.
type configError struct {
	err error
}

func (e *configError) Error() string { return "configuration: " + e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	var cfgErr *configError
	var validateErrs config.ValidateErrors
	var apiErr *cloud.Error

	switch {
	case errors.As(err, &validationErr), errors.Is(err, session.ErrEmptyMessage):
		return ExitUsageError
	case errors.As(err, &notFoundErr), errors.Is(err, prompt.ErrTemplateNotFound):
		return ExitNotFoundError
	case errors.As(err, &cfgErr), errors.As(err, &validateErrs):
		return ExitConfigError
	case errors.Is(err, offline.ErrCloudBlocked), errors.Is(err, offline.ErrNonLocalhost):
		return ExitOfflineError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &apiErr):
		switch apiErr.Kind {
		case cloud.KindMissingCredential, cloud.KindInvalidCredential:
			return ExitAuthError
		case cloud.KindNetwork, cloud.KindRateLimited, cloud.KindServer:
			return ExitNetworkError
		}
	}
	return ExitGeneralError
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// UserMessage returns the text shown to the user for err. API failures use
// their Italian user-facing text.
func UserMessage(err error) string {
	var apiErr *cloud.Error
	if errors.As(err, &apiErr) || errors.Is(err, prompt.ErrTemplateNotFound) {
		return cloud.UserMessage(err)
	}
	if errors.Is(err, export.ErrEmptyConversation) {
		return "Nessun messaggio da esportare."
	}
	return err.Error()
}

// DisplayError writes err in a consistent format.
// In JSON mode it writes a structured object instead.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		output := map[string]any{
			"success":   false,
			"error":     UserMessage(err),
			"exit_code": GetExitCode(err),
		}
		var apiErr *cloud.Error
		if errors.As(err, &apiErr) {
			output["error_type"] = apiErr.Kind.String()
			if apiErr.Status != 0 {
				output["status"] = apiErr.Status
			}
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(output)
		return
	}

	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), UserMessage(err))
}

// =============================================================================
// COMMON ERROR CONSTRUCTORS
// =============================================================================

// ErrInvalidFormat creates an error for invalid format.
func ErrInvalidFormat(field, value, expected string) error {
	return &ValidationError{Field: field, Value: value, Reason: "invalid format", Example: expected}
}

// ErrUnsupportedFormat creates an error for unsupported formats.
func ErrUnsupportedFormat(format string, supportedFormats []string) error {
	return &ValidationError{
		Field:   "format",
		Value:   format,
		Reason:  "unsupported format",
		Example: fmt.Sprintf("supported formats: %v", supportedFormats),
	}
}
