// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNonLocalhost is returned when a non-loopback API URL is used in offline mode.
	ErrNonLocalhost = errors.New("offline mode: only localhost API endpoints are allowed")

	// ErrCloudBlocked is returned when the Mistral API is requested in offline mode.
	ErrCloudBlocked = errors.New("offline mode: cloud requests are disabled")

	// ErrInvalidURL is returned when the API URL cannot be parsed.
	ErrInvalidURL = errors.New("invalid API URL")

	// ErrInvalidURLScheme is returned when URL scheme is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https schemes are allowed")
)

// =============================================================================
// MODE MANAGEMENT
// =============================================================================

// Global offline mode state with thread-safe access.
var (
	offlineMode      bool
	offlineModeMutex sync.RWMutex
)

// SetOfflineMode enables or disables offline mode globally. While enabled the
// chat answers from the Simulator and no request leaves the machine.
func SetOfflineMode(enabled bool) {
	offlineModeMutex.Lock()
	defer offlineModeMutex.Unlock()
	offlineMode = enabled
}

// IsOfflineMode returns true if offline mode is currently enabled.
func IsOfflineMode() bool {
	offlineModeMutex.RLock()
	defer offlineModeMutex.RUnlock()
	return offlineMode
}

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost checks if a host string refers to localhost.
// Accepts "localhost", the whole 127.0.0.0/8 range and every IPv6 loopback
// spelling, with or without port and brackets.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateURLForOfflineMode checks an API base URL. The scheme must always be
// http or https; in offline mode the host must also be loopback.
func ValidateURLForOfflineMode(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Join(ErrInvalidURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}
	if parsed.Host == "" {
		return ErrInvalidURL
	}

	if IsOfflineMode() && !IsLocalhost(parsed.Hostname()) {
		return ErrNonLocalhost
	}
	return nil
}

// =============================================================================
// FEATURE GUARDS
// =============================================================================

// CheckCloudAllowed returns an error if cloud services are not allowed.
func CheckCloudAllowed() error {
	if IsOfflineMode() {
		return ErrCloudBlocked
	}
	return nil
}

// =============================================================================
// STATUS DISPLAY
// =============================================================================

// StatusBadge returns "[OFFLINE]" when offline, empty string otherwise.
func StatusBadge() string {
	if IsOfflineMode() {
		return "[OFFLINE]"
	}
	return ""
}
