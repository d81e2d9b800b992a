// Package runtime implements the agent execution engine: the controllable
// loop that turns input messages into normalized output streams.
package runtime

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/agentcore/agentcore/internal/agent/controller"
	"github.com/agentcore/agentcore/internal/common/errors"
	"github.com/agentcore/agentcore/internal/common/logger"
	"github.com/agentcore/agentcore/pkg/engine"
	"github.com/agentcore/agentcore/pkg/messages"
	"github.com/agentcore/agentcore/pkg/plan"
)

const (
	outputBuffer = 100
	planBuffer   = 100
)

// Agent owns one engine handle and runs at most one execution loop over it.
type Agent struct {
	eng     engine.Engine
	ctrl    *controller.Controller
	log     *logger.Logger
	started atomic.Bool
}

// New creates an agent over the given engine.
func New(eng engine.Engine, log *logger.Logger) *Agent {
	if log == nil {
		log = logger.Default()
	}
	return &Agent{
		eng:  eng,
		ctrl: controller.New(),
		log:  log.WithComponent("agent"),
	}
}

// Controller returns the control handle shared with the execution loop.
func (a *Agent) Controller() *controller.Controller {
	return a.ctrl
}

// Execute starts the execution loop over the input channel and returns a
// handle to it. The loop creates and closes the output and plan channels;
// a caller that loses interest cancels ctx rather than closing anything.
// Execute starts exactly one loop per agent: the engine handle moves into
// the loop for its lifetime.
func (a *Agent) Execute(ctx context.Context, inputs <-chan messages.InputMessage) (*Handle, error) {
	if a.eng == nil {
		return nil, errors.ConfigError("no engine configured")
	}
	if !a.started.CompareAndSwap(false, true) {
		return nil, errors.Conflict("agent execution already started")
	}

	a.ctrl.SetState(controller.StateRunning)

	l := &loop{
		ctrl:    a.ctrl,
		eng:     a.eng,
		inputs:  inputs,
		outputs: make(chan messages.OutputMessage, outputBuffer),
		plans:   make(chan plan.Message, planBuffer),
		log:     a.log,
	}

	h := &Handle{
		ctrl:    a.ctrl,
		outputs: l.outputs,
		plans:   l.plans,
		done:    make(chan struct{}),
	}

	go func() {
		h.err = l.run(ctx)
		close(h.done)
	}()

	return h, nil
}

// Query submits a single message and returns the concatenated primary
// response. It is built entirely on the channel protocol: one input, one
// loop, accumulate Primary/PrimaryDelta until Completed or Error.
func (a *Agent) Query(ctx context.Context, message string) (string, error) {
	inputs := make(chan messages.InputMessage, 1)
	inputs <- messages.NewInputMessage(message)
	close(inputs)

	h, err := a.Execute(ctx, inputs)
	if err != nil {
		return "", err
	}

	// Plans are irrelevant to a one-shot query but must be drained so the
	// loop never blocks on the plan channel.
	go func() {
		for range h.Plans() {
		}
	}()

	var b strings.Builder
collect:
	for {
		select {
		case out, ok := <-h.Outputs():
			if !ok {
				break collect
			}
			switch out.Data.Type {
			case messages.OutputPrimary, messages.OutputPrimaryDelta:
				b.WriteString(out.Data.Content)
			case messages.OutputCompleted:
				break collect
			case messages.OutputError:
				msg := "query failed"
				if out.Data.Error != nil {
					msg = out.Data.Error.Message
				}
				return "", errors.ExecutionError(msg, nil)
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err := h.Wait(ctx); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

// Handle represents a running execution loop.
type Handle struct {
	ctrl    *controller.Controller
	outputs <-chan messages.OutputMessage
	plans   <-chan plan.Message
	done    chan struct{}
	err     error
}

// Controller returns the controller driving this loop.
func (h *Handle) Controller() *controller.Controller {
	return h.ctrl
}

// Outputs returns the output stream. Closed when the loop exits.
func (h *Handle) Outputs() <-chan messages.OutputMessage {
	return h.outputs
}

// Plans returns the plan snapshot stream. Closed when the loop exits.
func (h *Handle) Plans() <-chan plan.Message {
	return h.plans
}

// Wait blocks until the loop has exited and returns its terminal result.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
