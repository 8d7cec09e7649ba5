// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline provides offline operation for tauros.
//
// In offline mode no request reaches the Mistral API: the chat answers from
// the Simulator, which replies by keyword after a short random "typing"
// delay, and API base URLs are restricted to loopback hosts.
//
// # Key Types
//
//   - Simulator: local stand-in for the cloud client
//
// # Usage
//
//	offline.SetOfflineMode(true)
//	if err := offline.ValidateURLForOfflineMode(baseURL); err != nil {
//		return err
//	}
//	sim := offline.NewSimulator(time.Second, 3*time.Second)
//	resp, err := sim.Send(ctx, "ciao", cloud.SendOptions{})
package offline
