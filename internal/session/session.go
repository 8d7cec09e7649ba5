// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/tauros/internal/cloud"
	"github.com/jeranaias/tauros/internal/export"
	"github.com/jeranaias/tauros/internal/logging"
	"github.com/jeranaias/tauros/internal/model"
	"github.com/jeranaias/tauros/internal/prompt"
	"github.com/jeranaias/tauros/internal/storage"
	"github.com/jeranaias/tauros/internal/telemetry"
)

// ErrEmptyMessage is returned by SendMessage for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Responder produces the reply to one user message. *cloud.Client and
// *offline.Simulator both satisfy it.
type Responder interface {
	Send(ctx context.Context, text string, opts cloud.SendOptions) (*cloud.Response, error)
}

// Deps are the collaborators of a Session. Client, Engine, Conversation,
// Credentials and Usage are required.
type Deps struct {
	Client       *cloud.Client
	Engine       *prompt.Engine
	Conversation *storage.ConversationStore
	Credentials  *storage.Credentials
	Usage        *telemetry.UsageTracker

	// Responder answers messages. Default: Client.
	Responder Responder

	Logger *zerolog.Logger
	Now    func() time.Time
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the chat facade used by the CLI: it sends messages, keeps the
// conversation log and exposes the credential, usage and template stores.
type Session struct {
	client      *cloud.Client
	engine      *prompt.Engine
	convo       *storage.ConversationStore
	credentials *storage.Credentials
	usage       *telemetry.UsageTracker
	responder   Responder
	logger      zerolog.Logger
	now         func() time.Time

	id        string
	startTime time.Time
}

// Reply is the outcome of a successful SendMessage.
type Reply struct {
	Message  model.ChatMessage
	Response *cloud.Response
}

// New builds a session from deps.
func New(deps Deps) (*Session, error) {
	switch {
	case deps.Client == nil:
		return nil, errors.New("session: client is required")
	case deps.Engine == nil:
		return nil, errors.New("session: prompt engine is required")
	case deps.Conversation == nil:
		return nil, errors.New("session: conversation store is required")
	case deps.Credentials == nil:
		return nil, errors.New("session: credential store is required")
	case deps.Usage == nil:
		return nil, errors.New("session: usage tracker is required")
	}

	s := &Session{
		client:      deps.Client,
		engine:      deps.Engine,
		convo:       deps.Conversation,
		credentials: deps.Credentials,
		usage:       deps.Usage,
		responder:   deps.Responder,
		logger:      logging.Component("session"),
		now:         deps.Now,
	}
	if s.responder == nil {
		s.responder = deps.Client
	}
	if deps.Logger != nil {
		s.logger = *deps.Logger
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.startTime = s.now()
	s.id = generateSessionID(s.startTime)
	return s, nil
}

// Start loads the persisted credential into the client and the previous
// conversation into memory.
func (s *Session) Start(ctx context.Context) error {
	key, err := s.credentials.Get(ctx)
	if err != nil {
		return fmt.Errorf("load api key: %w", err)
	}
	if key != "" {
		s.client.SetAPIKey(key)
	}

	msgs, err := s.convo.Load(ctx)
	if err != nil {
		return err
	}
	s.logger.Debug().
		Str("session", s.id).
		Int("messages", len(msgs)).
		Bool("configured", s.client.IsConfigured()).
		Msg("Session started")
	return nil
}

// =============================================================================
// MESSAGING
// =============================================================================

// SendMessage appends text to the conversation, asks the responder and
// appends the reply. On failure a system message carrying the user-facing
// error text is appended and the error is returned.
func (s *Session) SendMessage(ctx context.Context, text string, opts cloud.SendOptions) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	if err := s.convo.Append(ctx, model.NewMessageAt(model.RoleUser, text, s.now())); err != nil {
		return nil, err
	}

	start := s.now()
	resp, err := s.responder.Send(ctx, text, opts)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("kind", cloud.KindOf(err).String()).
			Msg("Send failed")

		errMsg := model.NewMessageAt(model.RoleSystem, cloud.UserMessage(err), s.now())
		errMsg.Error = true
		if appendErr := s.convo.Append(ctx, errMsg); appendErr != nil {
			return nil, errors.Join(err, appendErr)
		}
		return nil, err
	}

	msg := model.NewMessageAt(model.RoleAssistant, resp.Content, s.now())
	if err := s.convo.Append(ctx, msg); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("model", resp.Model).
		Int("tokens", resp.Usage.TotalTokens).
		Dur("duration", s.now().Sub(start)).
		Msg("Reply received")
	return &Reply{Message: msg, Response: resp}, nil
}

// History returns a copy of the conversation log.
func (s *Session) History() []model.ChatMessage {
	return s.convo.All()
}

// ClearHistory empties the conversation log.
func (s *Session) ClearHistory(ctx context.Context) error {
	return s.convo.Clear(ctx)
}

// Export writes the conversation log in format ("json" or "markdown") and
// returns the file path.
func (s *Session) Export(format string, opts *export.Options) (string, error) {
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return "", err
	}
	return export.ExportToFile(s.convo.All(), exporter, opts)
}

// =============================================================================
// CREDENTIAL
// =============================================================================

// SetAPIKey persists key and hands it to the client. An empty key removes
// the credential.
func (s *Session) SetAPIKey(ctx context.Context, key string) error {
	if err := s.credentials.Set(ctx, key); err != nil {
		return err
	}
	s.client.SetAPIKey(key)
	s.logger.Info().Str("fingerprint", s.client.KeyFingerprint()).Msg("API key updated")
	return nil
}

// HasValidAPIKey reports whether a non-empty key is stored.
func (s *Session) HasValidAPIKey(ctx context.Context) (bool, error) {
	return s.credentials.Has(ctx)
}

// KeyFingerprint returns the display hash of the active key.
func (s *Session) KeyFingerprint() string {
	return s.client.KeyFingerprint()
}

// TestConnection checks the key against the API.
func (s *Session) TestConnection(ctx context.Context) (bool, error) {
	return s.client.TestConnection(ctx)
}

// AvailableModels lists the models of the API, or the fallback list.
func (s *Session) AvailableModels(ctx context.Context) []model.ModelInfo {
	return s.client.ListModels(ctx)
}

// =============================================================================
// USAGE
// =============================================================================

// UsageStats returns the persisted usage counters.
func (s *Session) UsageStats(ctx context.Context) (telemetry.UsageStats, error) {
	return s.usage.Stats(ctx)
}

// ResetUsage zeroes the usage counters.
func (s *Session) ResetUsage(ctx context.Context) error {
	return s.usage.Reset(ctx)
}

// =============================================================================
// TEMPLATES
// =============================================================================

// ListTemplates returns the available templates sorted by key.
func (s *Session) ListTemplates() []prompt.TemplateInfo {
	return s.engine.Registry().Templates()
}

// ListPersonas returns the available personas sorted by key.
func (s *Session) ListPersonas() []prompt.PersonaInfo {
	return s.engine.Registry().Personas()
}

// Render fills a template without sending it.
func (s *Session) Render(key string, vars prompt.Variables, persona, tone string) (*prompt.Rendered, error) {
	return s.engine.Render(key, vars, persona, tone)
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status represents the current session status.
type Status struct {
	SessionID  string
	StartTime  time.Time
	Duration   time.Duration
	Messages   int
	Model      string
	Configured bool
}

// GetStatus returns the current session status.
func (s *Session) GetStatus() Status {
	return Status{
		SessionID:  s.id,
		StartTime:  s.startTime,
		Duration:   s.now().Sub(s.startTime),
		Messages:   s.convo.Len(),
		Model:      s.client.Model(),
		Configured: s.client.IsConfigured(),
	}
}

// generateSessionID creates a session ID from the start time.
func generateSessionID(t time.Time) string {
	return "sess_" + t.Format("20060102_150405")
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}
