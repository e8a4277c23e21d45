// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/rigrun-cascade/internal/logging"
	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/provider"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel errors by type, so a ClientError carrying a cause
// still satisfies errors.Is(err, ErrNotRunning).
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Type == e.Type && t.Message == e.Message
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// DefaultBaseURL uses an explicit IPv4 address instead of localhost to avoid
// IPv6 resolution issues on Windows.
const DefaultBaseURL = "http://127.0.0.1:11434"

// Config holds configuration options for the Ollama client.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	BaseURL string

	// Timeout for non-streaming requests (default: 120s, local models are slow to load)
	Timeout time.Duration

	// RequestsPerSecond paces outgoing calls; zero means unlimited
	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 120 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the Ollama provider. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// New creates a client, filling zero fields from DefaultConfig.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No client-level timeout: blocking calls use a context deadline and
		// streams are bounded by the caller's context.
		// SECURITY: TLS not required - Ollama runs locally over HTTP
		httpClient = &http.Client{}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		log:        logging.Named(cfg.Logger, "ollama"),
	}
}

// NewFactory returns a provider.Factory for models that name their own
// Ollama server in BaseURL.
func NewFactory(base Config) provider.Factory {
	return func(m model.ModelConfig) (provider.Provider, error) {
		cfg := base
		if m.BaseURL != "" {
			cfg.BaseURL = m.BaseURL
		}
		return New(cfg), nil
	}
}

// Name implements provider.Provider.
func (c *Client) Name() string {
	return model.ProviderOllama
}

// =============================================================================
// HEALTH AND MODELS
// =============================================================================

// CheckRunning verifies that Ollama is reachable and running.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}
	return nil
}

// ListModels returns the names of locally available models.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify("", 0, transportError(err))
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, c.classify("", resp.StatusCode, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "failed to list models: " + resp.Status,
		})
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

// =============================================================================
// CHAT
// =============================================================================

// Complete implements provider.Provider.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.classify(req.Model, 0, &ClientError{
			Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err,
		})
	}

	c.log.Debug("completion",
		zap.String("model", req.Model),
		zap.Duration("duration", time.Since(start)),
		zap.Float64("tokens_per_second", result.TokensPerSecond()))

	return &provider.Response{
		Model:        req.Model,
		Text:         result.Message.Content,
		ToolCalls:    convertToolCalls(result.Message.ToolCalls),
		Usage:        model.Usage{InputTokens: result.PromptEvalCount, OutputTokens: result.EvalCount},
		FinishReason: result.DoneReason,
	}, nil
}

// post sends a chat request and returns the response once the status is OK.
func (c *Client) post(ctx context.Context, req provider.Request, stream bool) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.classify(req.Model, 0, err)
	}

	body, err := json.Marshal(buildRequest(req, stream))
	if err != nil {
		return nil, c.classify(req.Model, http.StatusBadRequest, &ClientError{
			Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err,
		})
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, c.classify(req.Model, 0, &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err})
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classify(req.Model, 0, transportError(err))
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, c.classify(req.Model, resp.StatusCode, ErrModelNotFound)
	}
	msg := "chat request failed: " + resp.Status
	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	return nil, c.classify(req.Model, resp.StatusCode, &ClientError{Type: ErrTypeInvalidResponse, Message: msg})
}

func buildRequest(req provider.Request, stream bool) ChatRequest {
	out := ChatRequest{
		Model:    req.Model,
		Messages: make([]Message, 0, len(req.Messages)),
		Stream:   stream,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, Message{Role: m.Role.String(), Content: m.Content})
	}
	for _, s := range req.Tools {
		out.Tools = append(out.Tools, Tool{
			Type: "function",
			Function: ToolSpec{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.ParametersMap(),
			},
		})
	}
	if req.MaxTokens > 0 || req.Temperature != nil {
		out.Options = &Options{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}
	return out
}

func convertToolCalls(calls []ToolCall) []tools.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]tools.ToolCall, 0, len(calls))
	for i, tc := range calls {
		// Ollama assigns no call ids; number them so results can be matched.
		id := fmt.Sprintf("call_%d", i)
		out = append(out, tools.NewCall(tools.FormatOllama, id, tc.Function.Name, tc.Function.Arguments))
	}
	return out
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// transportError maps an HTTP client failure onto a sentinel.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: err}
	}
	return &ClientError{Type: ErrTypeNotRunning, Message: ErrNotRunning.Message, Cause: err}
}

// classify wraps err in a provider.Error. Status 0 (unreachable, timeout)
// is transient; an unknown model is permanent.
func (c *Client) classify(modelName string, status int, err error) error {
	return provider.NewError(c.Name(), modelName, status, err)
}

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	return errors.Is(err, ErrModelNotFound)
}

// IsNotRunning checks if an error indicates Ollama is not running.
func IsNotRunning(err error) bool {
	return errors.Is(err, ErrNotRunning)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	_ = r.Close()
}
