// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cascade

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-cascade/internal/cascade"
	"github.com/jeranaias/rigrun-cascade/internal/cloud"
	"github.com/jeranaias/rigrun-cascade/internal/config"
	"github.com/jeranaias/rigrun-cascade/internal/logging"
	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/ollama"
	"github.com/jeranaias/rigrun-cascade/internal/provider"
	"github.com/jeranaias/rigrun-cascade/internal/router"
	"github.com/jeranaias/rigrun-cascade/internal/telemetry"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Router.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	registry  *prometheus.Registry
	providers cascade.Resolver
	newID     func() string
}

// WithLogger sets the logger. The default is the process logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPrometheusRegistry registers the metrics collector with reg instead of
// a private registry.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithProviders replaces the providers built from the configuration.
// Reloads keep using it.
func WithProviders(p cascade.Resolver) Option {
	return func(o *options) { o.providers = p }
}

// WithRequestIDs replaces the request id generator.
func WithRequestIDs(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

// =============================================================================
// ROUTER
// =============================================================================

// state is everything a config reload replaces.
type state struct {
	cfg    *config.Config
	engine *cascade.Engine
	models []model.ModelConfig
}

// Router is the caller-facing cascade router. It is safe for concurrent use,
// and a reload never disturbs requests already in flight.
type Router struct {
	opts  options
	log   *zap.Logger
	state atomic.Pointer[state]

	// Counters survive reloads.
	preStats    *router.PreRouterStats
	domainStats *router.DomainStats
	toolStats   *tools.RouterStats
	engineStats *cascade.Stats

	metrics *telemetry.Metrics
	costs   *telemetry.CostTracker

	mu      sync.Mutex
	watcher *config.Watcher
}

// New creates a router from cfg. A nil cfg uses config.Default.
func New(cfg *config.Config, opts ...Option) (*Router, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Router{
		opts:        o,
		log:         logging.Named(o.logger, "router"),
		preStats:    router.NewPreRouterStats(),
		domainStats: router.NewDomainStats(),
		toolStats:   tools.NewRouterStats(),
		engineStats: cascade.NewStats(),
		costs:       telemetry.NewCostTracker(),
	}

	if cfg.Metrics.Enabled {
		m, err := telemetry.NewMetrics(cfg.Metrics.Namespace, o.registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		r.metrics = m
	}

	if err := r.Reload(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload validates cfg and swaps in a new engine. On error the current
// engine stays in place.
func (r *Router) Reload(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("reload: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg = cfg.Clone()

	providers := r.opts.providers
	if providers == nil {
		providers = NewRegistry(cfg, r.opts.logger)
	}

	engineOpts := []cascade.Option{
		cascade.WithLogger(r.opts.logger),
		cascade.WithStats(r.preStats, r.domainStats, r.toolStats, r.engineStats),
		cascade.WithObserver(r.costs),
	}
	if r.metrics != nil {
		engineOpts = append(engineOpts, cascade.WithObserver(r.metrics))
	}
	if r.opts.newID != nil {
		engineOpts = append(engineOpts, cascade.WithRequestIDs(r.opts.newID))
	}

	prev := r.state.Swap(&state{
		cfg:    cfg,
		engine: cascade.NewEngine(cfg.CascadeConfig(), providers, engineOpts...),
		models: cfg.ModelConfigs(),
	})
	if prev != nil {
		r.log.Info("engine reloaded", zap.Int("models", len(cfg.Models)))
	}
	return nil
}

// Config returns a copy of the active configuration.
func (r *Router) Config() *config.Config {
	return r.state.Load().cfg.Clone()
}

// Models returns the configured default candidates.
func (r *Router) Models() []ModelConfig {
	models := r.state.Load().models
	out := make([]ModelConfig, len(models))
	copy(out, models)
	return out
}

// withDefaults fills the configured candidates when the request has none.
func (s *state) withDefaults(req Request) Request {
	if len(req.Models) == 0 {
		req.Models = s.models
	}
	return req
}

// Complete runs one request to completion. Requests without models use the
// configured candidates.
func (r *Router) Complete(ctx context.Context, req Request) (*Result, error) {
	s := r.state.Load()
	return s.engine.Complete(ctx, s.withDefaults(req))
}

// Stream runs one request as an event stream. Configuration errors are
// returned directly; everything later arrives as an ERROR event.
func (r *Router) Stream(ctx context.Context, req Request) (*Stream, error) {
	s := r.state.Load()
	return s.engine.Stream(ctx, s.withDefaults(req))
}

// Route returns the routing decision for req without calling any model.
func (r *Router) Route(ctx context.Context, req Request) (RoutingDecision, error) {
	s := r.state.Load()
	return s.engine.Route(ctx, s.withDefaults(req))
}

// SuggestModels ranks the configured models for a tool set. A non-nil
// maxCost caps the blended per-1K price.
func (r *Router) SuggestModels(schemas []ToolSchema, maxCost *float64) []ModelConfig {
	s := r.state.Load()
	return s.engine.ToolRouter().SuggestModels(s.models, schemas, maxCost)
}

// ValidateToolSchemas checks tool definitions without making a request.
func ValidateToolSchemas(schemas []ToolSchema) *ValidationResult {
	return tools.ValidateToolSchemas(schemas)
}

// =============================================================================
// STATS
// =============================================================================

// Stats is a point-in-time view of every counter the router keeps.
type Stats struct {
	cascade.Snapshot
	Session *telemetry.SessionCost `json:"session"`
}

// Stats returns the current counters.
func (r *Router) Stats() Stats {
	return Stats{
		Snapshot: r.state.Load().engine.Stats(),
		Session:  r.costs.Current(),
	}
}

// ResetStats clears every counter and starts a new cost session.
func (r *Router) ResetStats() {
	r.state.Load().engine.ResetStats()
	r.costs.EndSession()
}

// CostSummary describes the current cost session in one line.
func (r *Router) CostSummary() string {
	return r.costs.Summary()
}

// MetricsHandler serves Prometheus metrics, or nil when metrics are off.
func (r *Router) MetricsHandler() http.Handler {
	if r.metrics == nil {
		return nil
	}
	return r.metrics.Handler()
}

// =============================================================================
// HOT RELOAD
// =============================================================================

// WatchConfig reloads the router whenever the file at path changes. Invalid
// files are logged and skipped.
func (r *Router) WatchConfig(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		return errors.New("already watching a config file")
	}

	w, err := config.NewWatcher(path, func(cfg *config.Config) {
		if err := r.Reload(cfg); err != nil {
			r.log.Warn("config reload failed", zap.Error(err))
		}
	}, config.WithWatchLogger(r.opts.logger))
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		_ = w.Close()
		return err
	}
	r.watcher = w
	return nil
}

// Close stops config watching.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil {
		return nil
	}
	err := r.watcher.Close()
	r.watcher = nil
	return err
}

// =============================================================================
// PROVIDERS
// =============================================================================

// NewRegistry builds the provider registry for cfg: shared OpenRouter,
// OpenAI and Ollama clients, plus factories for models that carry their own
// credentials.
func NewRegistry(cfg *config.Config, logger *zap.Logger) *provider.Registry {
	reg := provider.NewRegistry()

	for _, c := range []cloud.Config{
		CloudConfig(model.ProviderOpenRouter, cfg.Providers.OpenRouter, logger),
		CloudConfig(model.ProviderOpenAI, cfg.Providers.OpenAI, logger),
	} {
		reg.Register(cloud.New(c))
		reg.RegisterFactory(c.Name, cloud.NewFactory(c))
	}

	oc := OllamaConfig(cfg.Providers.Ollama, logger)
	reg.Register(ollama.New(oc))
	reg.RegisterFactory(model.ProviderOllama, ollama.NewFactory(oc))
	return reg
}

// CloudConfig converts the file settings of a cloud provider into a client
// configuration.
func CloudConfig(name string, p config.CloudConfig, logger *zap.Logger) cloud.Config {
	return cloud.Config{
		Name:              name,
		APIKey:            p.APIKey,
		BaseURL:           p.BaseURL,
		Timeout:           time.Duration(p.TimeoutSecs) * time.Second,
		MaxRetries:        p.MaxRetries,
		RequestsPerSecond: p.RequestsPerSecond,
		SiteURL:           p.SiteURL,
		SiteName:          p.SiteName,
		Logger:            logger,
	}
}

// OllamaConfig converts the file settings into a client configuration.
func OllamaConfig(p config.OllamaConfig, logger *zap.Logger) ollama.Config {
	return ollama.Config{
		BaseURL:           p.BaseURL,
		Timeout:           time.Duration(p.TimeoutSecs) * time.Second,
		RequestsPerSecond: p.RequestsPerSecond,
		Logger:            logger,
	}
}
