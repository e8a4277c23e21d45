// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/rigrun-cascade/internal/logging"
	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/provider"
)

// Configuration defaults.
const (
	// DefaultOpenRouterURL is the base URL for OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultOpenAIURL is the base URL for the OpenAI API.
	DefaultOpenAIURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds a blocking completion, retries included.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for transient errors.
	DefaultMaxRetries = 2

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second
)

// Error variables for common API errors. They are wrapped inside a
// provider.Error, so errors.Is works on anything the client returns.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account has insufficient credits.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// OpenRouterModels maps friendly names to full model identifiers.
var OpenRouterModels = map[string]string{
	"auto":   "openrouter/auto",
	"haiku":  "anthropic/claude-3.5-haiku",
	"sonnet": "anthropic/claude-3.5-sonnet",
	"opus":   "anthropic/claude-3-opus",
	"gpt4o":  "openai/gpt-4o",
	"mini":   "openai/gpt-4o-mini",
}

// ResolveModel expands a friendly alias. Other names pass through.
func ResolveModel(name string) string {
	if full, ok := OpenRouterModels[name]; ok {
		return full
	}
	return name
}

// Config configures a Client.
type Config struct {
	// Name is the provider id the client registers under.
	Name    string
	APIKey  string
	BaseURL string

	Timeout    time.Duration
	MaxRetries int

	// RequestsPerSecond paces outgoing calls. Zero means unlimited.
	RequestsPerSecond float64
	Burst             int

	// SiteURL and SiteName are sent as OpenRouter attribution headers.
	SiteURL  string
	SiteName string

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// DefaultConfig returns an OpenRouter configuration without credentials.
func DefaultConfig() Config {
	return Config{
		Name:       model.ProviderOpenRouter,
		BaseURL:    DefaultOpenRouterURL,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

// Client is an OpenAI-compatible chat provider. Safe for concurrent use.
type Client struct {
	cfg     Config
	sdk     openai.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// New creates a client. Zero fields take DefaultConfig values, except
// MaxRetries where a negative value means zero.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
		if cfg.Name == model.ProviderOpenAI {
			cfg.BaseURL = DefaultOpenAIURL
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}

	c := &Client{
		cfg:     cfg,
		sdk:     openai.NewClient(opts...),
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
	c.log = logging.Named(cfg.Logger, "cloud").With(
		zap.String("provider", cfg.Name),
		zap.String("key", c.KeyFingerprint()),
	)
	return c
}

// NewFactory returns a provider.Factory building a client for a model that
// carries its own credentials, inheriting everything else from base.
func NewFactory(base Config) provider.Factory {
	return func(m model.ModelConfig) (provider.Provider, error) {
		cfg := base
		if m.APIKey != "" {
			cfg.APIKey = m.APIKey
		}
		if m.BaseURL != "" {
			cfg.BaseURL = m.BaseURL
		}
		return New(cfg), nil
	}
}

// Name implements provider.Provider.
func (c *Client) Name() string {
	return c.cfg.Name
}

// IsConfigured returns true if the client has an API key configured.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

// KeyFingerprint returns a short SHA-256 fingerprint of the API key for
// logging. Never exposes key fragments.
func (c *Client) KeyFingerprint() string {
	if c.cfg.APIKey == "" {
		return "(not set)"
	}
	hash := sha256.Sum256([]byte(c.cfg.APIKey))
	return "sha256:" + hex.EncodeToString(hash[:4])
}

// =============================================================================
// COMPLETE
// =============================================================================

// Complete implements provider.Provider. Transient failures are retried
// with exponential backoff up to MaxRetries times.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if err := c.ready(req.Model); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt - 1)
			c.log.Debug("retrying completion",
				zap.String("model", req.Model),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, c.classify(req.Model, ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := c.completeOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) completeOnce(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.classify(req.Model, err)
	}

	start := time.Now()
	completion, err := c.sdk.Chat.Completions.New(ctx, buildParams(req))
	if err != nil {
		c.log.Debug("completion failed",
			zap.String("model", req.Model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, c.classify(req.Model, err)
	}
	c.log.Debug("completion",
		zap.String("model", req.Model),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int64("completion_tokens", completion.Usage.CompletionTokens))

	return convertCompletion(req.Model, completion), nil
}

// ListModels returns the model ids the endpoint serves.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if err := c.ready(""); err != nil {
		return nil, err
	}
	page, err := c.sdk.Models.List(ctx)
	if err != nil {
		return nil, c.classify("", err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

func (c *Client) ready(modelName string) error {
	if !c.IsConfigured() {
		return &provider.Error{Provider: c.cfg.Name, Model: modelName, Kind: provider.KindPermanent, Err: ErrNotConfigured}
	}
	return nil
}

// classify converts SDK and transport errors into a provider.Error, mapping
// well-known statuses onto the package sentinels.
func (c *Client) classify(modelName string, err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return provider.NewError(c.cfg.Name, modelName, 0, err)
	}

	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(apiErr.StatusCode)
	}
	var cause error
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		cause = fmt.Errorf("%w: %s", ErrAuthFailed, msg)
	case http.StatusPaymentRequired:
		cause = fmt.Errorf("%w: %s", ErrInsufficientCredits, msg)
	case http.StatusNotFound:
		cause = fmt.Errorf("%w: %s", ErrModelNotFound, msg)
	case http.StatusTooManyRequests:
		cause = fmt.Errorf("%w: %s", ErrRateLimited, msg)
	default:
		cause = errors.New(msg)
	}
	return provider.NewError(c.cfg.Name, modelName, apiErr.StatusCode, cause)
}

// isRetryable determines if an error should trigger a retry. Cancellation
// and deadline expiry are never retried.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return provider.KindOf(err) == provider.KindTransient
}

// calculateBackoff returns the delay to wait before the next retry.
func calculateBackoff(attempt int) time.Duration {
	// Exponential backoff: 500ms, 1000ms, 2000ms, etc.
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
