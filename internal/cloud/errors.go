// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jeranaias/tauros/internal/prompt"
)

// Kind classifies a failed API call.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingCredential
	KindInvalidCredential
	KindRateLimited
	KindNetwork
	KindServer
	KindEmptyResponse
)

// Sentinel errors, one per Kind. *Error unwraps to the sentinel of its kind,
// so errors.Is(err, ErrRateLimited) works on anything Send returns.
var (
	ErrUnknown           = errors.New("unknown API error")
	ErrMissingCredential = errors.New("API key not configured")
	ErrInvalidCredential = errors.New("invalid API key")
	ErrRateLimited       = errors.New("rate limited")
	ErrNetwork           = errors.New("network error")
	ErrServer            = errors.New("server error")
	ErrEmptyResponse     = errors.New("empty response")
)

var kindInfo = map[Kind]struct {
	name     string
	sentinel error
	message  string
}{
	KindUnknown:           {"unknown", ErrUnknown, "Errore sconosciuto di Mistral AI."},
	KindMissingCredential: {"missing_credential", ErrMissingCredential, "API Key Mistral non configurata. Inserisci la tua API key nelle impostazioni."},
	KindInvalidCredential: {"invalid_credential", ErrInvalidCredential, "API Key non valida. Verifica la tua chiave Mistral AI."},
	KindRateLimited:       {"rate_limited", ErrRateLimited, "Limite di richieste raggiunto. Riprova tra qualche minuto."},
	KindNetwork:           {"network", ErrNetwork, "Errore di connessione. Verifica la tua connessione internet."},
	KindServer:            {"server", ErrServer, "Errore del server Mistral. Riprova più tardi."},
	KindEmptyResponse:     {"empty_response", ErrEmptyResponse, "Risposta vuota dal server Mistral"},
}

// String returns the kind's identifier.
func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// UserMessage returns the text shown to the user for this kind.
func (k Kind) UserMessage() string {
	if info, ok := kindInfo[k]; ok {
		return info.message
	}
	return kindInfo[KindUnknown].message
}

func (k Kind) sentinel() error {
	if info, ok := kindInfo[k]; ok {
		return info.sentinel
	}
	return ErrUnknown
}

// Error is a classified API failure.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Message string // provider message, if any
	Err     error  // underlying cause, if any
}

func newError(kind Kind, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind's sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// kindForStatus maps an HTTP status to a Kind. It is total: every status
// that is not 401, 429 or 5xx is KindUnknown.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindInvalidCredential
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500 && status <= 599:
		return KindServer
	default:
		return KindUnknown
	}
}

// retryableStatus lists the HTTP statuses worth another attempt.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsRetryable reports whether err is a transient failure: a network error
// or HTTP 429, 500, 502, 503 or 504.
func IsRetryable(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Kind == KindNetwork {
		return true
	}
	return retryableStatus[apiErr.Status]
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// UserMessage turns any error from this package into text for the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Kind == KindUnknown && apiErr.Message != "" {
			return "Errore Mistral AI: " + apiErr.Message
		}
		return apiErr.Kind.UserMessage()
	}
	if errors.Is(err, prompt.ErrTemplateNotFound) {
		return "Template non trovato: " + err.Error()
	}
	return "Errore Mistral AI: " + err.Error()
}
