// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the Mistral AI chat completions client.
//
// The client composes the system prompt from a persona and tone, optionally
// renders the user text through a prompt template, and sends a single
// non-streaming completion request with linear-backoff retries.
//
// # Key Types
//
//   - Client: HTTP client for the Mistral API with TLS and retry support
//   - SendOptions: persona, tone and template selection for one request
//   - Response: normalized completion with token usage
//   - Error: classified failure; match with errors.Is against the Err* sentinels
//
// # Usage
//
//	client := cloud.NewClient(apiKey, engine).WithUsageRecorder(tracker)
//	resp, err := client.Send(ctx, "Prepara una proposta", cloud.SendOptions{
//	    Persona: "professional",
//	    Tone:    "formal",
//	})
//	if err != nil {
//	    fmt.Println(cloud.UserMessage(err))
//	}
//
// # Retries
//
// At most MaxRetries attempts are made. Attempt n+1 waits n times the retry
// delay. Only network failures and HTTP 429, 500, 502, 503 and 504 are
// retried.
//
// # Security
//
// API keys are never logged; KeyFingerprint gives a short hash for display.
// All requests use TLS 1.2+ and response bodies are capped at MaxResponseSize.
package cloud
