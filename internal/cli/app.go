// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Lazy wiring of config, storage, prompts and the chat session.
//
// Commands ask for the smallest piece they need: config alone for
// `config show`, the prompt engine for `render`, the full session for
// anything that touches storage or the API.

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeranaias/tauros/internal/cloud"
	"github.com/jeranaias/tauros/internal/config"
	"github.com/jeranaias/tauros/internal/logging"
	"github.com/jeranaias/tauros/internal/offline"
	"github.com/jeranaias/tauros/internal/prompt"
	"github.com/jeranaias/tauros/internal/session"
	"github.com/jeranaias/tauros/internal/storage"
	"github.com/jeranaias/tauros/internal/telemetry"
)

type app struct {
	opts options
	v    *viper.Viper

	cfg        *config.Config
	configPath string
	engine     *prompt.Engine
	slots      storage.Slots
	client     *cloud.Client
	session    *session.Session
	logger     zerolog.Logger

	// jsonOut is set by commands with a --json flag; errors follow it.
	jsonOut bool
}

func newApp(o options, v *viper.Viper) *app {
	return &app{opts: o, v: v, logger: zerolog.Nop()}
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// loadConfig loads the config file, applies flag overrides and sets up logging
// and offline mode.
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	path := a.v.GetString("config")
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, &configError{err: err}
	}

	// Flags win over the file and over TAUROS_* variables.
	if a.v.IsSet("offline") {
		cfg.Chat.Offline = a.v.GetBool("offline")
	}
	if a.v.GetBool("ephemeral") {
		cfg.Storage.Backend = config.BackendMemory
	}
	if a.v.IsSet("log-level") {
		cfg.Log.Level = a.v.GetString("log-level")
	}
	if a.v.IsSet("log-format") {
		cfg.Log.Format = a.v.GetString("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return nil, &configError{err: err}
	}

	if err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
		Writer: a.opts.errOut,
	}); err != nil {
		return nil, &configError{err: err}
	}
	offline.SetOfflineMode(cfg.Chat.Offline)

	a.logger = logging.Component("cli")
	a.cfg = cfg
	a.configPath = path
	a.logger.Debug().
		Str("config", path).
		Str("backend", cfg.Storage.Backend).
		Bool("offline", cfg.Chat.Offline).
		Msg("Configuration loaded")
	return cfg, nil
}

// promptEngine loads built-in and user templates and personas.
func (a *app) promptEngine() (*prompt.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	reg, err := prompt.Load(prompt.LoadOptions{
		TemplatesDir: cfg.Prompts.TemplatesDir,
		PersonasFile: cfg.Prompts.PersonasFile,
	})
	if err != nil {
		return nil, &configError{err: fmt.Errorf("load prompts: %w", err)}
	}
	a.engine = prompt.NewEngine(reg, prompt.WithClock(a.opts.now))
	return a.engine, nil
}

// open wires storage, the API client and the session, then starts it.
func (a *app) open(ctx context.Context) (*session.Session, error) {
	if a.session != nil {
		return a.session, nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	// A remote base URL is tolerated offline: the simulator answers instead.
	if err := offline.ValidateURLForOfflineMode(cfg.API.BaseURL); err != nil && !errors.Is(err, offline.ErrNonLocalhost) {
		return nil, &configError{err: err}
	}

	engine, err := a.promptEngine()
	if err != nil {
		return nil, err
	}

	slots, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	a.slots = slots

	usage := telemetry.NewUsageTracker(slots).WithClock(a.opts.now)
	a.client = cloud.NewClient("", engine).
		WithBaseURL(cfg.API.BaseURL).
		WithModel(cfg.API.Model).
		WithTimeout(cfg.API.Timeout()).
		WithMaxRetries(cfg.API.MaxRetries).
		WithRetryDelay(cfg.API.RetryDelay()).
		WithSampling(cfg.API.MaxTokens, cfg.API.TopP).
		WithLanguageDirective(cfg.API.LanguageDirective).
		WithRateLimit(cfg.API.RequestsPerSecond).
		WithUsageRecorder(usage)

	deps := session.Deps{
		Client:       a.client,
		Engine:       engine,
		Conversation: storage.NewConversationStore(slots),
		Credentials:  storage.NewCredentials(slots),
		Usage:        usage,
		Now:          a.opts.now,
	}
	if cfg.Chat.Offline {
		deps.Responder = offline.NewSimulator(
			time.Duration(cfg.Chat.TypingDelayMinMs)*time.Millisecond,
			time.Duration(cfg.Chat.TypingDelayMaxMs)*time.Millisecond,
		)
	}

	sess, err := session.New(deps)
	if err != nil {
		return nil, err
	}
	if err := sess.Start(ctx); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	a.session = sess
	return sess, nil
}

// cloudAllowed fails when offline mode forbids reaching the configured API.
func (a *app) cloudAllowed() error {
	if !a.cfg.Chat.Offline {
		return nil
	}
	if err := offline.ValidateURLForOfflineMode(a.cfg.API.BaseURL); err != nil {
		return errors.Join(offline.ErrCloudBlocked, err)
	}
	return nil
}

// close releases the storage backend.
func (a *app) close() error {
	if a.slots == nil {
		return nil
	}
	err := a.slots.Close()
	a.slots = nil
	return err
}

// =============================================================================
// SHARED FLAG HANDLING
// =============================================================================

// styleFlags are the persona/tone/template flags shared by chat and send.
type styleFlags struct {
	persona  string
	tone     string
	template string
	vars     []string
	system   string
}

func (f *styleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.persona, "persona", "p", "", "response persona (default from config)")
	cmd.Flags().StringVarP(&f.tone, "tone", "t", "", "response tone (default from config)")
	cmd.Flags().StringVar(&f.template, "template", "", "wrap the message in a template")
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "template variable name=value (repeatable)")
	cmd.Flags().StringVar(&f.system, "system", "", "replace the generated system prompt")
}

// sendOptions resolves the flags against config defaults and the registry.
func (a *app) sendOptions(f styleFlags) (cloud.SendOptions, error) {
	opts := cloud.SendOptions{
		Persona:      f.persona,
		Tone:         f.tone,
		Template:     f.template,
		SystemPrompt: f.system,
	}
	if opts.Persona == "" {
		opts.Persona = a.cfg.Chat.DefaultPersona
	}
	if opts.Tone == "" {
		opts.Tone = a.cfg.Chat.DefaultTone
	}

	vars, err := parseVars(f.vars)
	if err != nil {
		return opts, err
	}
	opts.Variables = vars

	engine, err := a.promptEngine()
	if err != nil {
		return opts, err
	}
	if err := checkStyle(engine.Registry(), opts.Persona, opts.Tone); err != nil {
		return opts, err
	}
	if opts.Template != "" {
		if _, ok := engine.Registry().Template(opts.Template); !ok {
			return opts, fmt.Errorf("%w: %q", prompt.ErrTemplateNotFound, opts.Template)
		}
	}
	return opts, nil
}

// checkStyle rejects unknown persona and tone keys. Empty means default. A
// tone is known when it is global or one of the persona's modifiers.
func checkStyle(reg *prompt.Registry, persona, tone string) error {
	if persona != "" {
		if _, ok := reg.Persona(persona); !ok {
			return &NotFoundError{Resource: "persona", ID: persona}
		}
	}
	if tone != "" {
		if !reg.HasTone(persona, tone) {
			return &NotFoundError{Resource: "tone", ID: tone}
		}
	}
	return nil
}
