// Package enginetest provides a scripted engine implementation for tests
// and for running the service without a real backend. Each submission is
// answered with the next queued script: a fixed event sequence terminated
// by task_complete unless the script says otherwise.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentcore/agentcore/pkg/engine"
)

// Script is the canned response to one submission.
type Script struct {
	// Events are emitted in order after the submission arrives.
	Events []engine.Event

	// SubmitErr, when set, fails the Submit call itself.
	SubmitErr error

	// FetchErr, when set, is returned by NextEvent after Events are
	// exhausted instead of a terminal event.
	FetchErr error
}

// Engine is a scripted engine.Engine. Zero value is not usable; use New.
type Engine struct {
	mu      sync.Mutex
	scripts []Script
	queue   chan fetchResult
	subs    []engine.Submission
	closed  bool
}

type fetchResult struct {
	ev  engine.Event
	err error
}

// New creates a scripted engine that will answer submissions in order.
func New(scripts ...Script) *Engine {
	return &Engine{
		scripts: scripts,
		queue:   make(chan fetchResult, 256),
	}
}

// EchoScript builds a script that streams the given text as message deltas
// and completes the task. Convenient default for loop tests.
func EchoScript(parts ...string) Script {
	var events []engine.Event
	for _, p := range parts {
		events = append(events, engine.Event{
			Kind:  engine.KindAgentMessageDelta,
			Delta: p,
		})
	}
	events = append(events, engine.Event{Kind: engine.KindTaskComplete})
	return Script{Events: events}
}

// Submit records the submission and queues the next script's events.
func (e *Engine) Submit(ctx context.Context, sub engine.Submission) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("engine closed")
	}
	e.subs = append(e.subs, sub)

	if len(e.scripts) == 0 {
		// No script left: complete the turn immediately.
		e.queue <- fetchResult{ev: engine.Event{ID: sub.ID, Kind: engine.KindTaskComplete}}
		return nil
	}

	script := e.scripts[0]
	e.scripts = e.scripts[1:]

	if script.SubmitErr != nil {
		return script.SubmitErr
	}
	for _, ev := range script.Events {
		if ev.ID == "" {
			ev.ID = sub.ID
		}
		e.queue <- fetchResult{ev: ev}
	}
	if script.FetchErr != nil {
		e.queue <- fetchResult{err: script.FetchErr}
	}
	return nil
}

// NextEvent returns the next queued event, blocking until one is available
// or ctx is cancelled.
func (e *Engine) NextEvent(ctx context.Context) (engine.Event, error) {
	select {
	case r := <-e.queue:
		return r.ev, r.err
	case <-ctx.Done():
		return engine.Event{}, ctx.Err()
	}
}

// Submissions returns everything submitted so far.
func (e *Engine) Submissions() []engine.Submission {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]engine.Submission, len(e.subs))
	copy(out, e.subs)
	return out
}

// Close marks the engine closed; further submissions fail.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
