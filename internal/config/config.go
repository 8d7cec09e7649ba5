// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"

	"github.com/jeranaias/tauros/internal/logging"
	"github.com/jeranaias/tauros/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete tauros configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Prompts PromptsConfig `toml:"prompts"`
	Chat    ChatConfig    `toml:"chat"`
	Log     LogConfig     `toml:"log"`
}

// APIConfig holds the Mistral endpoint settings.
// The API key is not part of the config file; it lives in the credential slot.
type APIConfig struct {
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	MaxTokens         int     `toml:"max_tokens"`
	TopP              float64 `toml:"top_p"`
	TimeoutSecs       int     `toml:"timeout_secs"`
	MaxRetries        int     `toml:"max_retries"`
	RetryDelayMs      int     `toml:"retry_delay_ms"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	LanguageDirective string  `toml:"language_directive"`
}

// StorageConfig selects the slot backend.
type StorageConfig struct {
	// Backend is one of file, sqlite, redis, memory.
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	SQLitePath    string `toml:"sqlite_path"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// PromptsConfig points at optional user template and persona files.
type PromptsConfig struct {
	TemplatesDir     string `toml:"templates_dir"`
	PersonasFile     string `toml:"personas_file"`
	MaxContentLength int    `toml:"max_content_length"`
}

// ChatConfig holds REPL defaults.
type ChatConfig struct {
	DefaultPersona   string `toml:"default_persona"`
	DefaultTone      string `toml:"default_tone"`
	Offline          bool   `toml:"offline"`
	TypingDelayMinMs int    `toml:"typing_delay_min_ms"`
	TypingDelayMaxMs int    `toml:"typing_delay_max_ms"`
	HistoryFile      string `toml:"history_file"`
}

// LogConfig controls logging.Setup.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// DefaultLanguageDirective is appended to every system prompt.
const DefaultLanguageDirective = "Rispondi sempre in italiano a meno che non sia specificatamente richiesto diversamente."

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "https://api.mistral.ai/v1",
			Model:             "mistral-large-latest",
			MaxTokens:         4000,
			TopP:              1,
			TimeoutSecs:       60,
			MaxRetries:        3,
			RetryDelayMs:      1000,
			LanguageDirective: DefaultLanguageDirective,
		},
		Storage: StorageConfig{
			Backend:   BackendFile,
			RedisAddr: "localhost:6379",
		},
		Prompts: PromptsConfig{
			MaxContentLength: 280,
		},
		Chat: ChatConfig{
			DefaultPersona:   "professional",
			DefaultTone:      "formal",
			TypingDelayMinMs: 1000,
			TypingDelayMaxMs: 3000,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: string(logging.FormatConsole),
		},
	}
}

// Timeout returns the HTTP timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// RetryDelay returns the linear backoff base.
func (a APIConfig) RetryDelay() time.Duration {
	return time.Duration(a.RetryDelayMs) * time.Millisecond
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns $XDG_CONFIG_HOME/tauros.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "tauros")
}

// DataDir returns $XDG_DATA_HOME/tauros, where slots and history live.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "tauros")
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFromPath(ConfigPath())
}

// LoadFromPath decodes the TOML file at path over the defaults, then applies
// environment overrides, fills derived defaults and validates.
// A missing file yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path with 0600 permissions.
// SECURITY: the file may hold a Redis password.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# tauros configuration file\n")
	b.WriteString("# The Mistral API key is stored separately: use `tauros key set`.\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, []byte(b.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// API
	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("api.base_url", "must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if strings.TrimSpace(c.API.Model) == "" {
		add("api.model", "must not be empty")
	}
	if c.API.MaxTokens <= 0 {
		add("api.max_tokens", "must be positive, got %d", c.API.MaxTokens)
	}
	if c.API.TopP <= 0 || c.API.TopP > 1 {
		add("api.top_p", "must be in (0, 1], got %g", c.API.TopP)
	}
	if c.API.TimeoutSecs <= 0 {
		add("api.timeout_secs", "must be positive, got %d", c.API.TimeoutSecs)
	}
	if c.API.MaxRetries < 1 || c.API.MaxRetries > 10 {
		add("api.max_retries", "must be between 1 and 10, got %d", c.API.MaxRetries)
	}
	if c.API.RetryDelayMs < 0 {
		add("api.retry_delay_ms", "must not be negative, got %d", c.API.RetryDelayMs)
	}
	if c.API.RequestsPerSecond < 0 {
		add("api.requests_per_second", "must not be negative, got %g", c.API.RequestsPerSecond)
	}

	// Storage
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			add("storage.redis_addr", "required when backend is redis")
		}
	default:
		add("storage.backend", "invalid backend %q, must be one of: file, sqlite, redis, memory", c.Storage.Backend)
	}
	if c.Storage.RedisDB < 0 {
		add("storage.redis_db", "must not be negative, got %d", c.Storage.RedisDB)
	}

	// Prompts
	if c.Prompts.MaxContentLength <= 0 {
		add("prompts.max_content_length", "must be positive, got %d", c.Prompts.MaxContentLength)
	}

	// Chat
	if c.Chat.TypingDelayMinMs < 0 {
		add("chat.typing_delay_min_ms", "must not be negative, got %d", c.Chat.TypingDelayMinMs)
	}
	if c.Chat.TypingDelayMaxMs < c.Chat.TypingDelayMinMs {
		add("chat.typing_delay_max_ms", "must be >= typing_delay_min_ms (%d), got %d", c.Chat.TypingDelayMinMs, c.Chat.TypingDelayMaxMs)
	}

	// Log
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "%v", err)
	}
	if f := logging.Format(c.Log.Format); f != logging.FormatConsole && f != logging.FormatJSON {
		add("log.format", "invalid format %q, must be console or json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills values that are derived from other settings or that a
// partial config file left empty.
func (c *Config) SetDefaults() {
	d := Default()

	if c.API.LanguageDirective == "" {
		c.API.LanguageDirective = d.API.LanguageDirective
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = DataDir()
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(c.Storage.Dir, "tauros.db")
	}

	if c.Prompts.MaxContentLength == 0 {
		c.Prompts.MaxContentLength = d.Prompts.MaxContentLength
	}

	if c.Chat.DefaultPersona == "" {
		c.Chat.DefaultPersona = d.Chat.DefaultPersona
	}
	if c.Chat.HistoryFile == "" {
		c.Chat.HistoryFile = filepath.Join(c.Storage.Dir, "chat_history")
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - TAUROS_API_BASE_URL: overrides api.base_url
//   - TAUROS_MODEL: overrides api.model
//   - TAUROS_MAX_RETRIES: overrides api.max_retries
//   - TAUROS_STORAGE_BACKEND: overrides storage.backend
//   - TAUROS_STORAGE_DIR: overrides storage.dir
//   - TAUROS_REDIS_ADDR, TAUROS_REDIS_PASSWORD: override the redis settings
//   - TAUROS_PERSONA, TAUROS_TONE: override the chat defaults
//   - TAUROS_OFFLINE: "1" or "true" answers with the local simulator
//   - TAUROS_LOG_LEVEL, TAUROS_LOG_FORMAT: override log settings
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TAUROS_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("TAUROS_MODEL"); v != "" {
		c.API.Model = v
	}
	if v := os.Getenv("TAUROS_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.API.MaxRetries = n
		}
	}
	if v := os.Getenv("TAUROS_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("TAUROS_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("TAUROS_REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv("TAUROS_REDIS_PASSWORD"); v != "" {
		c.Storage.RedisPassword = v
	}
	if v := os.Getenv("TAUROS_PERSONA"); v != "" {
		c.Chat.DefaultPersona = v
	}
	if v := os.Getenv("TAUROS_TONE"); v != "" {
		c.Chat.DefaultTone = v
	}
	if v := os.Getenv("TAUROS_OFFLINE"); v != "" {
		c.Chat.Offline = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("TAUROS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TAUROS_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}
