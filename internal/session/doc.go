// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the chat session facade.
//
// A Session ties the Mistral client (or the offline simulator), the template
// engine and the persistent stores together. Everything is passed in
// through Deps; the package holds no global state.
//
// # Usage
//
//	sess, err := session.New(session.Deps{
//	    Client:       client,
//	    Engine:       engine,
//	    Conversation: storage.NewConversationStore(slots),
//	    Credentials:  storage.NewCredentials(slots),
//	    Usage:        tracker,
//	})
//	if err := sess.Start(ctx); err != nil {
//	    return err
//	}
//	reply, err := sess.SendMessage(ctx, "Ciao", cloud.SendOptions{Persona: "creative"})
//
// A failed send still leaves a trace in the conversation: a system message
// flagged as an error with the user-facing text of the failure.
package session
