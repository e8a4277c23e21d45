// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cascade

import (
	"context"
	"errors"
	"sync"

	cerrors "github.com/jeranaias/rigrun-cascade/internal/errors"
	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/provider"
	"github.com/jeranaias/rigrun-cascade/internal/router"
)

// =============================================================================
// STREAM
// =============================================================================

// Stream is a pull-based sequence of events for one request.
//
//	s, err := engine.Stream(ctx, req)
//	if err != nil { ... }
//	defer s.Close()
//	for s.Next() {
//	    ev := s.Event()
//	    ...
//	}
//	if err := s.Err(); err != nil { ... }
//
// A Stream is not safe for concurrent use.
type Stream struct {
	events <-chan Event
	cancel context.CancelFunc
	done   chan struct{}

	// set by the producer before events is closed
	final error

	cur       Event
	err       error
	closeOnce sync.Once
	closed    bool
}

// Next advances to the next event. It returns false once a terminal event
// has been consumed, the producer stopped, or Close was called.
func (s *Stream) Next() bool {
	if s.closed {
		return false
	}
	ev, ok := <-s.events
	if !ok {
		if s.err == nil {
			s.err = s.final
		}
		return false
	}
	s.cur = ev
	if ev.Type == EventError {
		s.err = ev.Err
	}
	return true
}

// Event returns the current event.
func (s *Stream) Event() Event {
	return s.cur
}

// Err returns the terminal error, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close stops the producer and releases the provider connection. No event
// is delivered afterwards. Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		s.cancel()
		<-s.done
	})
	return nil
}

// =============================================================================
// PRODUCER
// =============================================================================

// Stream routes the request and returns its event stream. Configuration
// errors are returned directly since no model has been called yet; provider
// failures arrive as an ERROR event.
func (e *Engine) Stream(ctx context.Context, req Request) (*Stream, error) {
	p, err := e.plan(ctx, req, true)
	if err != nil {
		return nil, e.fail(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan Event)
	s := &Stream{events: events, cancel: cancel, done: make(chan struct{})}

	prod := &producer{engine: e, plan: p, ctx: ctx, out: events}
	go func() {
		defer close(s.done)
		defer close(events)
		s.final = prod.run()
	}()
	return s, nil
}

// producer feeds one stream. Only its goroutine touches it.
type producer struct {
	engine *Engine
	plan   *plan
	ctx    context.Context
	out    chan<- Event
}

// errStopped marks a producer that stopped because its context ended.
var errStopped = errors.New("stream stopped")

// emit delivers an event unless the context ends first.
func (pr *producer) emit(ev Event) bool {
	ev.RequestID = pr.plan.id
	select {
	case pr.out <- ev:
		return true
	case <-pr.ctx.Done():
		return false
	}
}

// run drives the state machine. It returns the caller context's error when
// the stream ended without a terminal event.
func (pr *producer) run() error {
	e, p := pr.engine, pr.plan

	if !pr.emit(Event{Type: EventRouting, Routing: &Routing{
		Decision:   p.decision,
		Complexity: p.complexity,
		Domain:     p.domain,
		Draft:      draftName(p),
		Verifier:   p.verifier.Name,
	}}) {
		return pr.stopped()
	}

	if p.decision.Strategy == router.StrategyDirectBest {
		resp, err := pr.call(p.verifyProv, p.request(p.verifier, false), TierVerifier, true)
		if err != nil {
			return pr.terminal(err, p.verifier, cerrors.StageVerifier)
		}
		return pr.complete(e.direct(p, resp))
	}

	// Tool requests are buffered until the draft is accepted.
	live := len(p.tools) == 0
	draftResp, err := pr.call(p.draftProv, p.request(p.draft, live), TierDraft, live)
	var verdict draftVerdict
	if err != nil {
		if errors.Is(err, errStopped) {
			return pr.stopped()
		}
		if ferr := e.draftFailure(pr.ctx, p, err); ferr != nil {
			return pr.fail(ferr)
		}
		verdict = e.rejectFailedDraft(p, err)
	} else {
		verdict = e.judge(p, draftResp)
	}

	if !pr.emit(Event{Type: EventDraftDecision, Decision: verdict.decision()}) {
		return pr.stopped()
	}

	if verdict.accepted {
		if !live && (draftResp.Text != "" || draftResp.HasToolCalls()) {
			if !pr.emit(Event{Type: EventChunk, Tier: TierDraft, Delta: draftResp.Text, ToolCalls: draftResp.ToolCalls}) {
				return pr.stopped()
			}
		}
		return pr.complete(e.accept(p, draftResp, verdict))
	}

	e.logEscalation(p, verdict)
	if !pr.emit(Event{Type: EventSwitch, Switch: &Switch{
		From:   p.draft.Name,
		To:     p.verifier.Name,
		Reason: verdict.rejection.Reason,
	}}) {
		return pr.stopped()
	}

	verifyResp, err := pr.call(p.verifyProv, p.request(p.verifier, false), TierVerifier, true)
	if err != nil {
		return pr.terminal(err, p.verifier, cerrors.StageVerifier)
	}
	return pr.complete(e.escalate(p, draftResp, verdict, verifyResp))
}

// call streams one model call into a Response. With live set each delta is
// emitted as a CHUNK; the final tool calls follow in one more CHUNK.
// Returns errStopped when the consumer went away.
func (pr *producer) call(prov provider.Provider, req provider.Request, tier Tier, live bool) (*provider.Response, error) {
	ch, err := prov.Stream(pr.ctx, req)
	if err != nil {
		return nil, pr.classify(err)
	}

	var onDelta func(string) error
	if live {
		onDelta = func(delta string) error {
			if !pr.emit(Event{Type: EventChunk, Tier: tier, Delta: delta}) {
				return errStopped
			}
			return nil
		}
	}

	resp, err := provider.Collect(pr.ctx, ch, onDelta)
	if err != nil {
		return nil, pr.classify(err)
	}
	resp.Model = req.Model
	if live && resp.HasToolCalls() {
		if !pr.emit(Event{Type: EventChunk, Tier: tier, ToolCalls: resp.ToolCalls}) {
			return nil, errStopped
		}
	}
	return resp, nil
}

// classify turns failures caused by our own cancellation into errStopped.
func (pr *producer) classify(err error) error {
	if pr.ctx.Err() != nil {
		return errStopped
	}
	return err
}

func (pr *producer) terminal(err error, m model.ModelConfig, stage cerrors.Stage) error {
	if errors.Is(err, errStopped) {
		return pr.stopped()
	}
	return pr.fail(pr.engine.fatal(pr.plan, m, stage, err))
}

func (pr *producer) fail(err error) error {
	pr.engine.fail(err)
	if !pr.emit(Event{Type: EventError, Err: err}) {
		return pr.stopped()
	}
	return nil
}

func (pr *producer) complete(r *Result) error {
	pr.engine.finish(pr.plan, r)
	if !pr.emit(Event{Type: EventComplete, Result: r}) {
		return pr.stopped()
	}
	return nil
}

// stopped reports why the producer ended early. Close is not an error for
// the consumer; Next never reads the value after Close.
func (pr *producer) stopped() error {
	return pr.ctx.Err()
}

func draftName(p *plan) string {
	if p.decision.Strategy == router.StrategyCascade {
		return p.draft.Name
	}
	return ""
}
