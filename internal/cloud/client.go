// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/tauros/internal/logging"
	"github.com/jeranaias/tauros/internal/model"
	"github.com/jeranaias/tauros/internal/prompt"
)

// Configuration constants for the Mistral API.
const (
	// DefaultBaseURL is the base URL for the Mistral API.
	DefaultBaseURL = "https://api.mistral.ai/v1"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the total number of attempts per request.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the linear backoff base: attempt n waits n times this.
	DefaultRetryDelay = 1000 * time.Millisecond

	// DefaultMaxTokens caps the completion size.
	DefaultMaxTokens = 4000

	// DefaultPersona is used when the requested persona is unknown.
	DefaultPersona = "professional"

	// DefaultTone is used when SendOptions leaves the tone empty.
	DefaultTone = "formal"

	// DefaultTemperature applies to personas without a temperature.
	DefaultTemperature = 0.5

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	testConnectionPrompt = `Test connection - rispondi solo "OK"`
	userAgent            = "tauros/1.0"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is one message of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type modelsResponse struct {
	Data []model.ModelInfo `json:"data"`
}

// apiErrorResponse covers the error bodies Mistral sends. message is
// usually a string but can be a structured validation report.
type apiErrorResponse struct {
	Message json.RawMessage `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

// =============================================================================
// PUBLIC TYPES
// =============================================================================

// Usage is the token accounting of one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a normalized chat completion.
type Response struct {
	Content      string    `json:"content"`
	Model        string    `json:"model"`
	Usage        Usage     `json:"usage"`
	Timestamp    time.Time `json:"timestamp"`
	FinishReason string    `json:"finish_reason"`
}

// SendOptions shapes one Send call.
type SendOptions struct {
	Persona string
	Tone    string
	// Template, when set, renders the text through the template engine with
	// the text as main_content.
	Template  string
	Variables prompt.Variables
	// SystemPrompt replaces the generated system prompt.
	SystemPrompt string
}

// UsageRecorder receives the token total of every successful Send.
type UsageRecorder interface {
	Record(ctx context.Context, tokens int) error
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Mistral chat completions API.
type Client struct {
	mu     sync.RWMutex
	apiKey string

	baseURL           string
	model             string
	maxTokens         int
	topP              float64
	maxRetries        int
	retryDelay        time.Duration
	languageDirective string

	engine     *prompt.Engine
	usage      UsageRecorder
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. An empty apiKey is allowed; Send then fails
// with ErrMissingCredential until SetAPIKey is called.
func NewClient(apiKey string, engine *prompt.Engine) *Client {
	return &Client{
		apiKey:            strings.TrimSpace(apiKey),
		baseURL:           DefaultBaseURL,
		model:             model.DefaultModel,
		maxTokens:         DefaultMaxTokens,
		topP:              1,
		maxRetries:        DefaultMaxRetries,
		retryDelay:        DefaultRetryDelay,
		languageDirective: "Rispondi sempre in italiano a meno che non sia specificatamente richiesto diversamente.",
		engine:            engine,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		logger: logging.Component("cloud"),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithModel sets the model used for requests.
func (c *Client) WithModel(name string) *Client {
	if name != "" {
		c.model = name
	}
	return c
}

// WithTimeout sets the per-attempt HTTP timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithMaxRetries sets the total number of attempts. Values below 1 mean 1.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	c.maxRetries = maxRetries
	return c
}

// WithRetryDelay sets the linear backoff base.
func (c *Client) WithRetryDelay(d time.Duration) *Client {
	c.retryDelay = d
	return c
}

// WithSampling sets max_tokens and top_p for Send.
func (c *Client) WithSampling(maxTokens int, topP float64) *Client {
	if maxTokens > 0 {
		c.maxTokens = maxTokens
	}
	if topP > 0 {
		c.topP = topP
	}
	return c
}

// WithLanguageDirective sets the sentence closing every system prompt.
func (c *Client) WithLanguageDirective(s string) *Client {
	if s != "" {
		c.languageDirective = s
	}
	return c
}

// WithRateLimit paces attempts to rps per second. 0 disables pacing.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	} else {
		c.limiter = nil
	}
	return c
}

// WithUsageRecorder sets where successful usage is recorded.
func (c *Client) WithUsageRecorder(u UsageRecorder) *Client {
	c.usage = u
	return c
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithLogger replaces the client's logger.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger
	return c
}

// SetAPIKey replaces the credential.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = strings.TrimSpace(key)
}

// IsConfigured returns true if the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.key() != ""
}

// Model returns the model used for requests.
func (c *Client) Model() string {
	return c.model
}

// KeyFingerprint returns the first 8 hex characters of the key's SHA-256,
// for display without exposing the key.
func (c *Client) KeyFingerprint() string {
	return Fingerprint(c.key())
}

// Fingerprint hashes an API key for display. Empty keys give "none".
func Fingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// =============================================================================
// PROMPT CONSTRUCTION
// =============================================================================

// SystemPrompt builds the system message: the persona's base prompt (falling
// back to the default persona), the tone instruction, the extra
// instructions and the language directive, joined by single spaces in that
// order. Unknown tones and empty extras are skipped.
func (c *Client) SystemPrompt(persona, tone, extra string) string {
	reg := c.engine.Registry()

	parts := make([]string, 0, 4)
	p, ok := reg.Persona(persona)
	if !ok {
		p, ok = reg.Persona(DefaultPersona)
	}
	if ok && p.SystemPrompt != "" {
		parts = append(parts, p.SystemPrompt)
	}
	if instr, ok := reg.ToneInstruction(tone); ok {
		parts = append(parts, instr)
	}
	if extra != "" {
		parts = append(parts, extra)
	}
	parts = append(parts, c.languageDirective)
	return strings.Join(parts, " ")
}

// Temperature returns the sampling temperature for persona.
func (c *Client) Temperature(persona string) float64 {
	if p, ok := c.engine.Registry().Persona(persona); ok && p.Temperature > 0 {
		return p.Temperature
	}
	return DefaultTemperature
}

// =============================================================================
// REQUESTS
// =============================================================================

// Send renders text according to opts, sends it and returns the normalized
// reply. Transient failures are retried; see IsRetryable. Successful
// responses are recorded with the UsageRecorder.
func (c *Client) Send(ctx context.Context, text string, opts SendOptions) (*Response, error) {
	if !c.IsConfigured() {
		return nil, newError(KindMissingCredential, 0, "", nil)
	}

	persona := opts.Persona
	if persona == "" {
		persona = DefaultPersona
	}
	tone := opts.Tone
	if tone == "" {
		tone = DefaultTone
	}

	userText := text
	systemPrompt := opts.SystemPrompt
	if opts.Template != "" {
		vars := make(prompt.Variables, len(opts.Variables)+1)
		for k, v := range opts.Variables {
			vars[k] = v
		}
		vars[prompt.VarMainContent] = text

		rendered, err := c.engine.Render(opts.Template, vars, persona, tone)
		if err != nil {
			return nil, err
		}
		userText = rendered.Text
		if systemPrompt == "" && rendered.HasInstructions() {
			systemPrompt = c.SystemPrompt(persona, tone, rendered.Instructions)
		}
	}
	if systemPrompt == "" {
		systemPrompt = c.SystemPrompt(persona, tone, "")
	}

	temperature := c.Temperature(persona)
	topP := c.topP
	req := chatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
		Temperature: &temperature,
		MaxTokens:   c.maxTokens,
		TopP:        &topP,
		Stream:      false,
	}

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, newError(KindEmptyResponse, 0, "", nil)
	}

	out := &Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		Usage:        resp.Usage,
		Timestamp:    c.now().UTC(),
		FinishReason: resp.Choices[0].FinishReason,
	}

	if c.usage != nil {
		if err := c.usage.Record(ctx, out.Usage.TotalTokens); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record usage")
		}
	}
	return out, nil
}

// TestConnection sends a tiny prompt and reports whether the reply contains
// "OK".
func (c *Client) TestConnection(ctx context.Context) (bool, error) {
	if !c.IsConfigured() {
		return false, newError(KindMissingCredential, 0, "", nil)
	}

	resp, err := c.doWithRetry(ctx, chatRequest{
		Model:     c.model,
		Messages:  []ChatMessage{{Role: "user", Content: testConnectionPrompt}},
		MaxTokens: 10,
	})
	if err != nil {
		return false, err
	}
	if len(resp.Choices) == 0 {
		return false, newError(KindEmptyResponse, 0, "", nil)
	}
	return strings.Contains(resp.Choices[0].Message.Content, "OK"), nil
}

// ListModels returns the models the key can use. Any failure, including a
// missing key, is logged and answered with the static fallback list.
func (c *Client) ListModels(ctx context.Context) []model.ModelInfo {
	models, err := c.fetchModels(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Could not fetch model list, using fallback")
		return model.FallbackModels()
	}
	return models
}

func (c *Client) fetchModels(ctx context.Context) ([]model.ModelInfo, error) {
	key := c.key()
	if key == "" {
		return nil, newError(KindMissingCredential, 0, "", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindNetwork, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var mr modelsResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, newError(KindUnknown, resp.StatusCode, "failed to parse models response", err)
	}
	if mr.Data == nil {
		return []model.ModelInfo{}, nil
	}
	return mr.Data, nil
}

// =============================================================================
// RETRY LOOP
// =============================================================================

// doWithRetry makes up to maxRetries attempts. Before attempt n+1 it waits
// n*retryDelay. Only retryable failures are retried; the last error is
// returned when attempts run out.
func (c *Client) doWithRetry(ctx context.Context, req chatRequest) (*chatResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			delay := c.retryDelay * time.Duration(attempt-1)
			c.logger.Warn().Err(lastErr).Int("attempt", attempt-1).Dur("delay", delay).Msg("Request failed, retrying")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.doRequest(ctx, req, attempt)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// doRequest performs a single POST to the chat completions endpoint.
func (c *Client) doRequest(ctx context.Context, reqBody chatRequest, attempt int) (*chatResponse, error) {
	key := c.key()

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, key)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	// SECURITY: never keep the credential on a request that may be logged
	req.Header.Del("Authorization")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Debug().Err(err).Int("attempt", attempt).Dur("duration", time.Since(start)).Msg("API transport failure")
		return nil, newError(KindNetwork, 0, "", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Int("attempt", attempt).
		Dur("duration", time.Since(start)).
		Msg("API request")

	body, err := readResponse(resp)
	if err != nil {
		return nil, newError(KindNetwork, resp.StatusCode, "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, newError(KindUnknown, resp.StatusCode, "failed to parse response", err)
	}
	return &chatResp, nil
}

func (c *Client) setHeaders(req *http.Request, key string) {
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// readResponse reads the body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse classifies a non-2xx response.
func handleErrorResponse(status int, body []byte) error {
	return newError(kindForStatus(status), status, errorMessage(status, body), nil)
}

// errorMessage extracts the provider's message, falling back to the status
// text.
func errorMessage(status int, body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		for _, raw := range []json.RawMessage{apiErr.Message, apiErr.Detail} {
			if len(raw) == 0 || string(raw) == "null" {
				continue
			}
			var s string
			if json.Unmarshal(raw, &s) == nil {
				if s != "" {
					return s
				}
				continue
			}
			var compact bytes.Buffer
			if json.Compact(&compact, raw) == nil {
				return compact.String()
			}
		}
	}
	return http.StatusText(status)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
