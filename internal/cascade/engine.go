// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cascade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	cerrors "github.com/jeranaias/rigrun-cascade/internal/errors"
	"github.com/jeranaias/rigrun-cascade/internal/logging"
	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/provider"
	"github.com/jeranaias/rigrun-cascade/internal/quality"
	"github.com/jeranaias/rigrun-cascade/internal/router"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
	"github.com/jeranaias/rigrun-cascade/internal/util"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config controls routing and the quality gate.
type Config struct {
	Routing router.PreRouterConfig
	Quality quality.Config

	// ToolThreshold replaces the adaptive tool-call thresholds when set.
	ToolThreshold *float64

	// EscalateOnInvalidRequest escalates draft failures the verifier would
	// most likely reject too (HTTP 400/422). Off by default: such failures
	// end the request at the draft stage.
	EscalateOnInvalidRequest bool
}

// DefaultConfig returns cascade routing over trivial, simple and moderate
// queries with the cascade quality preset.
func DefaultConfig() Config {
	return Config{
		Routing: router.DefaultPreRouterConfig(),
		Quality: quality.DefaultConfig(),
	}
}

// Resolver finds the provider serving a model. *provider.Registry
// implements it.
type Resolver interface {
	Resolve(m model.ModelConfig) (provider.Provider, error)
}

// Observer receives every finished request. Implementations must be safe
// for concurrent use.
type Observer interface {
	RecordResult(r *Result)
	RecordError(err error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs the draft, quality gate, verifier state machine. It is safe
// for concurrent use; per-request state lives on the stack.
type Engine struct {
	cfg       Config
	providers Resolver

	complexity *router.ComplexityDetector
	domains    *router.DomainRouter
	prerouter  *router.PreRouter
	toolRouter *tools.Router
	toolCheck  *tools.ToolCallValidator
	quality    *quality.Validator

	stats     *Stats
	observers []Observer
	log       *zap.Logger
	newID     func() string
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger      *zap.Logger
	preStats    *router.PreRouterStats
	domainStats *router.DomainStats
	toolStats   *tools.RouterStats
	stats       *Stats
	observers   []Observer
	newID       func() string
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithStats injects the stats objects the routers record into, so they can
// be shared or inspected.
func WithStats(pre *router.PreRouterStats, domain *router.DomainStats, toolStats *tools.RouterStats, engine *Stats) Option {
	return func(o *engineOptions) {
		o.preStats = pre
		o.domainStats = domain
		o.toolStats = toolStats
		o.stats = engine
	}
}

// WithObserver adds an observer for finished requests.
func WithObserver(obs Observer) Option {
	return func(o *engineOptions) { o.observers = append(o.observers, obs) }
}

// WithRequestIDs replaces the request id generator.
func WithRequestIDs(gen func() string) Option {
	return func(o *engineOptions) { o.newID = gen }
}

// NewEngine creates an engine. Nil stats objects are replaced with fresh
// ones.
func NewEngine(cfg Config, providers Resolver, opts ...Option) *Engine {
	o := engineOptions{newID: func() string { return uuid.New().String() }}
	for _, opt := range opts {
		opt(&o)
	}
	if o.preStats == nil {
		o.preStats = router.NewPreRouterStats()
	}
	if o.domainStats == nil {
		o.domainStats = router.NewDomainStats()
	}
	if o.toolStats == nil {
		o.toolStats = tools.NewRouterStats()
	}
	if o.stats == nil {
		o.stats = NewStats()
	}

	var validatorOpts []tools.ValidatorOption
	if cfg.ToolThreshold != nil {
		validatorOpts = append(validatorOpts, tools.WithFixedThreshold(*cfg.ToolThreshold))
	}

	return &Engine{
		cfg:        cfg,
		providers:  providers,
		complexity: router.NewComplexityDetector(),
		domains:    router.NewDomainRouter(router.WithDomainStats(o.domainStats)),
		prerouter:  router.NewPreRouter(cfg.Routing, router.WithPreRouterStats(o.preStats)),
		toolRouter: tools.NewRouter(tools.WithRouterStats(o.toolStats)),
		toolCheck:  tools.NewToolCallValidator(validatorOpts...),
		quality:    quality.NewValidator(cfg.Quality),
		stats:      o.stats,
		observers:  o.observers,
		log:        logging.Named(o.logger, "cascade"),
		newID:      o.newID,
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ToolRouter exposes the tool router, e.g. for model suggestions.
func (e *Engine) ToolRouter() *tools.Router {
	return e.toolRouter
}

// =============================================================================
// PLANNING
// =============================================================================

// plan is everything decided before the first model call.
type plan struct {
	id       string
	start    time.Time
	messages []model.Message
	query    string
	tools    []tools.ToolSchema
	catalog  tools.Catalog

	complexity router.ComplexityResult
	domain     router.DomainResult
	decision   router.RoutingDecision

	draft, verifier       model.ModelConfig
	draftProv, verifyProv provider.Provider
	validator             *quality.Validator

	maxTokens   int
	temperature *float64
}

// Route runs the ROUTE stage only: validation, tool filtering, complexity
// and domain detection, and the strategy decision. No model is called.
func (e *Engine) Route(ctx context.Context, req Request) (router.RoutingDecision, error) {
	p, err := e.plan(ctx, req, false)
	if err != nil {
		return router.RoutingDecision{}, err
	}
	return p.decision, nil
}

// plan runs ROUTE. With resolve set, providers are looked up too.
func (e *Engine) plan(ctx context.Context, req Request, resolve bool) (*plan, error) {
	p := &plan{
		id:          e.newID(),
		start:       time.Now(),
		messages:    req.messages(),
		query:       req.queryText(),
		tools:       req.Tools,
		validator:   e.quality,
		maxTokens:   req.MaxTokens,
		temperature: req.Temperature,
	}
	if req.Quality != nil {
		p.validator = quality.NewValidator(*req.Quality)
	}

	if len(req.Models) == 0 {
		return nil, cerrors.NewConfigurationError("empty model list")
	}
	if err := router.ValidateQuery(p.query); err != nil {
		return nil, cerrors.NewConfigurationError("%v", err)
	}
	for _, m := range req.Models {
		if err := m.Validate(); err != nil {
			return nil, &cerrors.ConfigurationError{Reason: err.Error(), Models: []string{m.Name}}
		}
	}

	candidates := req.Models
	if len(req.Tools) > 0 {
		if _, err := e.toolRouter.ValidateSchemas(req.Tools); err != nil {
			return nil, err
		}
		p.catalog = tools.NewCatalog(req.Tools)
	}
	candidates, err := e.toolRouter.FilterToolCapableModels(candidates, req.Tools)
	if err != nil {
		return nil, err
	}
	p.draft = candidates[0]
	p.verifier = candidates[len(candidates)-1]

	// Both classifiers are pure; run them side by side.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.complexity = e.complexity.Resolve(p.query, req.ComplexityHint, req.Complexity)
		return gctx.Err()
	})
	g.Go(func() error {
		p.domain = e.domains.Route(p.query)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.decision = e.prerouter.Route(p.complexity, router.RouteOptions{
		ForceDirect:      req.ForceDirect,
		CascadeEnabled:   req.CascadeEnabled,
		DomainConfidence: p.domain.Confidence,
		SingleCandidate:  len(candidates) == 1,
	})

	if resolve {
		if p.verifyProv, err = e.resolve(p.verifier); err != nil {
			return nil, err
		}
		if p.decision.Strategy == router.StrategyCascade {
			if p.draftProv, err = e.resolve(p.draft); err != nil {
				return nil, err
			}
		}
	}

	e.log.Debug("routed",
		zap.String("request_id", p.id),
		zap.Stringer("strategy", p.decision.Strategy),
		zap.Stringer("complexity", p.complexity.Complexity),
		zap.Stringer("domain", p.domain.Domain),
		zap.String("draft", p.draft.Name),
		zap.String("verifier", p.verifier.Name),
		zap.Int("tools", len(p.tools)),
		zap.String("query", util.TruncateRunes(p.query, 80)))
	return p, nil
}

func (e *Engine) resolve(m model.ModelConfig) (provider.Provider, error) {
	if e.providers == nil {
		return nil, &cerrors.ConfigurationError{Reason: "no providers configured", Models: []string{m.Name}}
	}
	prov, err := e.providers.Resolve(m)
	if err != nil {
		return nil, &cerrors.ConfigurationError{Reason: err.Error(), Models: []string{m.Name}}
	}
	return prov, nil
}

func (p *plan) request(m model.ModelConfig, logprobs bool) provider.Request {
	return provider.Request{
		Model:       m.Name,
		Messages:    p.messages,
		Tools:       p.tools,
		Logprobs:    logprobs,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}
}

// =============================================================================
// BLOCKING COMPLETION
// =============================================================================

// Complete routes and serves one request. Every outcome is either a Result
// or a typed error: *errors.ConfigurationError before any call, or
// *errors.ProviderFatalError naming the failed stage.
func (e *Engine) Complete(ctx context.Context, req Request) (*Result, error) {
	p, err := e.plan(ctx, req, true)
	if err != nil {
		return nil, e.fail(err)
	}

	if p.decision.Strategy == router.StrategyDirectBest {
		resp, err := p.verifyProv.Complete(ctx, p.request(p.verifier, false))
		if err != nil {
			return nil, e.fail(e.fatal(p, p.verifier, cerrors.StageVerifier, err))
		}
		return e.finish(p, e.direct(p, resp)), nil
	}

	draftResp, err := p.draftProv.Complete(ctx, p.request(p.draft, len(p.tools) == 0))
	var verdict draftVerdict
	if err != nil {
		if ferr := e.draftFailure(ctx, p, err); ferr != nil {
			return nil, e.fail(ferr)
		}
		verdict = e.rejectFailedDraft(p, err)
	} else {
		verdict = e.judge(p, draftResp)
	}

	if verdict.accepted {
		return e.finish(p, e.accept(p, draftResp, verdict)), nil
	}

	e.logEscalation(p, verdict)
	verifyResp, err := p.verifyProv.Complete(ctx, p.request(p.verifier, false))
	if err != nil {
		return nil, e.fail(e.fatal(p, p.verifier, cerrors.StageVerifier, err))
	}
	return e.finish(p, e.escalate(p, draftResp, verdict, verifyResp)), nil
}

// =============================================================================
// QUALITY GATE
// =============================================================================

// draftVerdict is the QUALITY_CHECK outcome.
type draftVerdict struct {
	accepted    bool
	quality     *quality.QualityScore
	toolQuality *tools.ToolQualityScore
	rejection   *ValidationFailure
}

func (v draftVerdict) decision() *DraftDecision {
	return &DraftDecision{
		Accepted:    v.accepted,
		Quality:     v.quality,
		ToolQuality: v.toolQuality,
		Rejection:   v.rejection,
	}
}

// judge applies the tool-call validator when the draft proposed tool calls
// and the text validator otherwise.
func (e *Engine) judge(p *plan, resp *provider.Response) draftVerdict {
	if resp.HasToolCalls() {
		complexity := p.complexity.Complexity
		score := e.toolCheck.ValidateCalls(resp.ToolCalls, p.catalog, &complexity)
		v := draftVerdict{accepted: score.IsValid, toolQuality: &score}
		if !score.IsValid {
			v.rejection = &ValidationFailure{
				Reason:    toolRejectionReason(score),
				Score:     score.OverallScore,
				Threshold: score.ThresholdUsed,
			}
		}
		return v
	}

	score := p.validator.Validate(resp.Text, resp.Logprobs, p.domain.Domain)
	v := draftVerdict{accepted: score.Passed, quality: &score}
	if !score.Passed {
		v.rejection = &ValidationFailure{
			Reason:    score.Reason,
			Score:     score.Score,
			Threshold: score.Threshold,
		}
	}
	return v
}

func toolRejectionReason(s tools.ToolQualityScore) string {
	reason := fmt.Sprintf("tool call score %.2f below threshold %.2f", s.OverallScore, s.ThresholdUsed)
	if len(s.Issues) > 0 {
		reason += ": " + s.Issues[0]
		if len(s.Issues) > 1 {
			reason += fmt.Sprintf(" (+%d more)", len(s.Issues)-1)
		}
	}
	return reason
}

// =============================================================================
// DRAFT FAILURE POLICY
// =============================================================================

// draftFailure returns the error that ends the request, or nil when the
// failure should escalate instead. Cancellation of the caller's context
// always ends the request; malformed requests end it unless configured to
// escalate.
func (e *Engine) draftFailure(ctx context.Context, p *plan, err error) error {
	if ctx.Err() != nil {
		return e.fatal(p, p.draft, cerrors.StageDraft, ctx.Err())
	}
	if provider.IsInvalidRequest(err) && !e.cfg.EscalateOnInvalidRequest {
		return e.fatal(p, p.draft, cerrors.StageDraft, err)
	}
	return nil
}

func (e *Engine) rejectFailedDraft(p *plan, err error) draftVerdict {
	e.stats.recordDraftFailure()
	e.log.Warn("draft call failed, escalating",
		zap.String("request_id", p.id),
		zap.String("model", p.draft.Name),
		zap.Stringer("kind", provider.KindOf(err)),
		zap.Error(err))

	cause := err
	if provider.KindOf(err) == provider.KindTransient {
		cause = &cerrors.ProviderTransientError{Model: p.draft.Name, Stage: cerrors.StageDraft, Err: err}
	}
	return draftVerdict{rejection: &ValidationFailure{
		Reason:     "draft call failed: " + err.Error(),
		DraftError: cause,
	}}
}

func (e *Engine) fatal(p *plan, m model.ModelConfig, stage cerrors.Stage, err error) error {
	e.log.Error("provider call failed",
		zap.String("request_id", p.id),
		zap.String("model", m.Name),
		zap.Stringer("stage", stage),
		zap.Error(err))
	return &cerrors.ProviderFatalError{Model: m.Name, Stage: stage, Err: err}
}

func (e *Engine) logEscalation(p *plan, v draftVerdict) {
	reason := ""
	if v.rejection != nil {
		reason = v.rejection.Reason
	}
	e.log.Info("escalating to verifier",
		zap.String("request_id", p.id),
		zap.String("draft", p.draft.Name),
		zap.String("verifier", p.verifier.Name),
		zap.String("reason", reason))
}

// =============================================================================
// RESULTS
// =============================================================================

// usageOf returns reported usage, estimating it when the provider sent none.
func usageOf(p *plan, resp *provider.Response) model.Usage {
	if resp == nil {
		return model.Usage{}
	}
	if resp.Usage.Total() > 0 {
		return resp.Usage
	}
	return model.Usage{
		InputTokens:  router.EstimateTokens(model.PromptText(p.messages)),
		OutputTokens: router.EstimateTokens(resp.Text),
	}
}

func (e *Engine) base(p *plan) *Result {
	return &Result{
		RequestID:  p.id,
		Routing:    p.decision,
		Complexity: p.complexity,
		Domain:     p.domain,
	}
}

// direct builds a DIRECT_BEST result. The single call is the first call, so
// its cost is reported as DraftCost.
func (e *Engine) direct(p *plan, resp *provider.Response) *Result {
	r := e.base(p)
	usage := usageOf(p, resp)
	r.Content = resp.Text
	r.ToolCalls = resp.ToolCalls
	r.ModelUsed = TierVerifier
	r.ModelName = p.verifier.Name
	r.Accepted = true
	r.Usage = usage
	r.DraftCost = p.verifier.CostUSD(usage)
	r.BaselineCost = r.DraftCost
	return r
}

// accept builds the result for a draft that passed the gate. Savings are
// measured against what the verifier would have charged for the same usage.
func (e *Engine) accept(p *plan, resp *provider.Response, v draftVerdict) *Result {
	r := e.base(p)
	usage := usageOf(p, resp)
	r.Content = resp.Text
	r.ToolCalls = resp.ToolCalls
	r.ModelUsed = TierDraft
	r.ModelName = p.draft.Name
	r.Accepted = true
	r.DraftQuality = v.quality
	r.DraftToolQuality = v.toolQuality
	r.Usage = usage
	r.DraftCost = p.draft.CostUSD(usage)
	r.BaselineCost = p.verifier.CostUSD(usage)
	r.SavingsPercentage = router.SavingsFraction(r.DraftCost, r.BaselineCost)
	return r
}

// escalate builds the result for a verifier answer after a rejected or
// failed draft. draftResp is nil when the draft call failed.
func (e *Engine) escalate(p *plan, draftResp *provider.Response, v draftVerdict, resp *provider.Response) *Result {
	r := e.base(p)
	draftUsage := usageOf(p, draftResp)
	usage := usageOf(p, resp)
	r.Content = resp.Text
	r.ToolCalls = resp.ToolCalls
	r.ModelUsed = TierVerifier
	r.ModelName = p.verifier.Name
	r.Accepted = false
	r.DraftQuality = v.quality
	r.DraftToolQuality = v.toolQuality
	r.Rejection = v.rejection
	r.Usage = draftUsage.Add(usage)
	r.DraftCost = p.draft.CostUSD(draftUsage)
	r.VerifierCost = p.verifier.CostUSD(usage)
	r.BaselineCost = r.VerifierCost
	return r
}

// finish stamps totals and latency, then records the request.
func (e *Engine) finish(p *plan, r *Result) *Result {
	r.TotalCost = r.DraftCost
	if !r.Accepted {
		r.TotalCost += r.VerifierCost
	}
	r.LatencyMs = time.Since(p.start).Milliseconds()

	e.stats.recordResult(r)
	for _, o := range e.observers {
		o.RecordResult(r)
	}
	e.log.Info("request complete",
		zap.String("request_id", r.RequestID),
		zap.String("model", r.ModelName),
		zap.String("model_used", string(r.ModelUsed)),
		zap.Bool("accepted", r.Accepted),
		zap.Float64("total_cost", r.TotalCost),
		zap.Int64("latency_ms", r.LatencyMs))
	return r
}

func (e *Engine) fail(err error) error {
	e.stats.recordError(err)
	for _, o := range e.observers {
		o.RecordError(err)
	}
	return err
}

// =============================================================================
// STATS
// =============================================================================

// Snapshot gathers every router's counters.
type Snapshot struct {
	Engine    StatsSnapshot                 `json:"engine"`
	PreRouter router.PreRouterStatsSnapshot `json:"pre_router"`
	Domain    router.DomainStatsSnapshot    `json:"domain"`
	Tools     tools.RouterStatsSnapshot     `json:"tools"`
}

// Stats returns a snapshot of all counters.
func (e *Engine) Stats() Snapshot {
	return Snapshot{
		Engine:    e.stats.Snapshot(),
		PreRouter: e.prerouter.Stats(),
		Domain:    e.domains.Stats(),
		Tools:     e.toolRouter.Stats(),
	}
}

// ResetStats clears all counters.
func (e *Engine) ResetStats() {
	e.stats.Reset()
	e.prerouter.ResetStats()
	e.domains.ResetStats()
	e.toolRouter.ResetStats()
}
