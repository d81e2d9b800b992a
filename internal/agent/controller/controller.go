// Package controller owns the agent's execution state and the control
// command protocol. A Controller is shared between the execution loop and
// any number of external holders: the loop is the only writer, everyone
// else reads snapshots and sends commands.
package controller

import (
	"context"
	"time"

	"sync"
	"sync/atomic"

	"github.com/agentcore/agentcore/internal/common/errors"
)

// Execution states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StatePaused  = "paused"
	StateStopped = "stopped"
	StateError   = "error"
)

// Control actions.
const (
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionStop   = "stop"
)

// pollInterval bounds how long a paused loop waits between flag re-checks.
const pollInterval = 100 * time.Millisecond

// Command is one control request. The response channel has capacity 1 and
// receives exactly one result from the loop, or nothing if the loop exits
// first (callers observe that through Done).
type Command struct {
	Action string
	resp   chan error
}

// Controller coordinates execution state between the loop and its callers.
type Controller struct {
	mu        sync.Mutex
	state     string
	errReason string

	turnCount  atomic.Uint64
	isPaused   atomic.Bool
	shouldStop atomic.Bool

	commands  chan Command
	done      chan struct{}
	closeOnce sync.Once
}

// New creates an idle controller.
func New() *Controller {
	return &Controller{
		state:    StateIdle,
		commands: make(chan Command, 16),
		done:     make(chan struct{}),
	}
}

// Snapshot is an immutable view of the controller's state.
type Snapshot struct {
	State      string `json:"state"`
	TurnCount  uint64 `json:"turn_count"`
	IsPaused   bool   `json:"is_paused"`
	ShouldStop bool   `json:"should_stop"`
}

// IsActive reports whether the agent is running or can run.
func (s Snapshot) IsActive() bool {
	return s.State == StateRunning || s.State == StatePaused
}

// IsFinished reports whether the agent has terminally finished.
func (s Snapshot) IsFinished() bool {
	return s.State == StateStopped || s.State == StateError
}

// State returns a snapshot of the current execution state.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	return Snapshot{
		State:      state,
		TurnCount:  c.turnCount.Load(),
		IsPaused:   c.isPaused.Load(),
		ShouldStop: c.shouldStop.Load(),
	}
}

// TurnCount returns the number of accepted input messages so far.
func (c *Controller) TurnCount() uint64 {
	return c.turnCount.Load()
}

// IsPaused reports the advisory pause flag.
func (c *Controller) IsPaused() bool {
	return c.isPaused.Load()
}

// ShouldStop reports the advisory stop flag.
func (c *Controller) ShouldStop() bool {
	return c.shouldStop.Load()
}

// Pause requests a pause and blocks until the loop acknowledges.
func (c *Controller) Pause(ctx context.Context) error {
	return c.send(ctx, ActionPause)
}

// Resume requests a resume and blocks until the loop acknowledges.
func (c *Controller) Resume(ctx context.Context) error {
	return c.send(ctx, ActionResume)
}

// Stop requests a permanent stop and blocks until the loop acknowledges.
// Stop is idempotent; once applied the agent never processes another input.
func (c *Controller) Stop(ctx context.Context) error {
	return c.send(ctx, ActionStop)
}

func (c *Controller) send(ctx context.Context, action string) error {
	cmd := Command{Action: action, resp: make(chan error, 1)}

	select {
	case c.commands <- cmd:
	case <-c.done:
		return errors.ControllerInactive()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.resp:
		return err
	case <-c.done:
		return errors.ControllerInactive()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Commands exposes the control channel to the execution loop. The loop is
// the single consumer; commands are applied in send order.
func (c *Controller) Commands() <-chan Command {
	return c.commands
}

// Apply executes one control command and acknowledges it. Only the
// execution loop calls this.
func (c *Controller) Apply(cmd Command) {
	switch cmd.Action {
	case ActionPause:
		if !c.shouldStop.Load() {
			c.isPaused.Store(true)
			c.setState(StatePaused)
		}
	case ActionResume:
		if !c.shouldStop.Load() {
			c.isPaused.Store(false)
			c.setState(StateRunning)
		}
	case ActionStop:
		c.shouldStop.Store(true)
		c.isPaused.Store(false)
		c.setState(StateStopped)
	}
	cmd.resp <- nil
}

// WaitWhilePaused blocks until the pause flag clears, a stop is requested,
// or ctx is cancelled. Control commands arriving during the wait are
// applied here, so a resume sent while the loop is parked takes effect
// without waiting for the next poll tick.
func (c *Controller) WaitWhilePaused(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for c.isPaused.Load() && !c.shouldStop.Load() {
		select {
		case cmd := <-c.commands:
			c.Apply(cmd)
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// IncrementTurnCount commits one accepted input message.
func (c *Controller) IncrementTurnCount() uint64 {
	return c.turnCount.Add(1)
}

// SetState records an execution state transition. Loop-internal.
func (c *Controller) SetState(state string) {
	c.setState(state)
}

// SetError records a turn failure. The loop keeps running; the reason is
// retained for logs and diagnostics.
func (c *Controller) SetError(reason string) {
	c.mu.Lock()
	c.state = StateError
	c.errReason = reason
	c.mu.Unlock()
}

// ErrorReason returns the most recent turn failure reason, if any.
func (c *Controller) ErrorReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errReason
}

func (c *Controller) setState(state string) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// Deactivate marks the loop as exited. Pending and future control calls
// fail with "controller not active" instead of hanging.
func (c *Controller) Deactivate() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}
