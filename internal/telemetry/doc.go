// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry tracks Mistral API usage.
//
// UsageTracker keeps the request count and the cumulative token total in the
// mistral_usage_stats slot. The cloud client records each successful
// response; failures are never counted.
package telemetry
