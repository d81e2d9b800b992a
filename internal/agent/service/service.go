// Package service wires the execution runtime to the event bus and the
// WebSocket hub, and exposes the operations the HTTP API needs.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentcore/agentcore/internal/agent/controller"
	"github.com/agentcore/agentcore/internal/agent/runtime"
	"github.com/agentcore/agentcore/internal/agent/streaming"
	apperrors "github.com/agentcore/agentcore/internal/common/errors"
	"github.com/agentcore/agentcore/internal/common/logger"
	"github.com/agentcore/agentcore/internal/events/bus"
	"github.com/agentcore/agentcore/pkg/engine"
	"github.com/agentcore/agentcore/pkg/messages"
)

const inputBuffer = 16

// Service owns a single agent session: its input channel, the running
// execution loop, and the fan-out of outputs to the bus and the hub.
type Service struct {
	agent    *runtime.Agent
	eventBus bus.EventBus
	hub      *streaming.Hub
	log      *logger.Logger

	inputs chan messages.InputMessage
	handle *runtime.Handle
	pumps  *errgroup.Group

	// sendMu orders SendMessage against the Shutdown close of inputs.
	sendMu    sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New creates a Service around the given engine. The bus and hub are
// optional; a nil value disables that sink.
func New(eng engine.Engine, eventBus bus.EventBus, hub *streaming.Hub, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		agent:    runtime.New(eng, log),
		eventBus: eventBus,
		hub:      hub,
		log:      log.WithFields(zap.String("component", "agent-service")),
		inputs:   make(chan messages.InputMessage, inputBuffer),
	}
}

// Start launches the execution loop and the fan-out goroutines. The
// loop runs until ctx is cancelled, Stop is issued, or the input
// channel is closed by Shutdown.
func (s *Service) Start(ctx context.Context) error {
	handle, err := s.agent.Execute(ctx, s.inputs)
	if err != nil {
		return err
	}
	s.handle = handle

	s.pumps = &errgroup.Group{}
	s.pumps.Go(func() error {
		s.pumpOutputs(handle)
		return nil
	})
	s.pumps.Go(func() error {
		s.pumpPlans(handle)
		return nil
	})

	s.log.Info("Agent service started")
	return nil
}

// Controller exposes the control protocol.
func (s *Service) Controller() *controller.Controller {
	return s.agent.Controller()
}

// SendMessage queues a user message for the execution loop.
func (s *Service) SendMessage(ctx context.Context, msg messages.InputMessage) error {
	if s.handle == nil {
		return apperrors.ControllerInactive()
	}
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return apperrors.ControllerInactive()
	}
	select {
	case s.inputs <- msg:
		return nil
	case <-s.handle.Done():
		return apperrors.ControllerInactive()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause requests that turn processing be suspended.
func (s *Service) Pause(ctx context.Context) error {
	if err := s.agent.Controller().Pause(ctx); err != nil {
		return err
	}
	s.publishState()
	return nil
}

// Resume lifts a pause.
func (s *Service) Resume(ctx context.Context) error {
	if err := s.agent.Controller().Resume(ctx); err != nil {
		return err
	}
	s.publishState()
	return nil
}

// Stop permanently halts the execution loop.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.agent.Controller().Stop(ctx); err != nil {
		return err
	}
	s.publishState()
	return nil
}

// Snapshot returns the current execution state.
func (s *Service) Snapshot() controller.Snapshot {
	return s.agent.Controller().State()
}

// ErrorReason returns the stored error reason, if any.
func (s *Service) ErrorReason() string {
	return s.agent.Controller().ErrorReason()
}

// Shutdown closes the input channel and waits for the loop to drain.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.handle == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.sendMu.Lock()
		s.closed = true
		close(s.inputs)
		s.sendMu.Unlock()
	})
	if err := s.handle.Wait(ctx); err != nil {
		return fmt.Errorf("wait for execution loop: %w", err)
	}
	// The loop closed its channels; wait for the fan-out to drain.
	s.pumps.Wait()
	s.log.Info("Agent service stopped")
	return nil
}

func (s *Service) pumpOutputs(handle *runtime.Handle) {
	for out := range handle.Outputs() {
		if s.hub != nil {
			s.hub.Broadcast(streaming.StreamOutput, out)
		}
		s.publishOutput(out)
		if out.Data.Type == messages.OutputStart || out.Data.Type == messages.OutputCompleted || out.Data.Type == messages.OutputError {
			s.publishState()
		}
	}
	// Loop finished; announce the terminal state.
	s.publishState()
	if s.hub != nil {
		s.hub.Broadcast(streaming.StreamState, s.Snapshot())
	}
}

func (s *Service) pumpPlans(handle *runtime.Handle) {
	for msg := range handle.Plans() {
		if s.hub != nil {
			s.hub.Broadcast(streaming.StreamPlan, msg)
		}
		if s.eventBus == nil {
			continue
		}
		event := bus.NewEvent("agent.plan.updated", "agent-service", map[string]interface{}{
			"todos":      msg.Todos,
			"completion": msg.CompletionPercentage(),
			"timestamp":  msg.Timestamp.Format(time.RFC3339Nano),
		})
		if err := s.eventBus.Publish(context.Background(), bus.SubjectPlanUpdated, event); err != nil {
			s.log.Warn("Failed to publish plan update", zap.Error(err))
		}
	}
}

func (s *Service) publishOutput(out messages.OutputMessage) {
	if s.eventBus == nil {
		return
	}
	data := map[string]interface{}{
		"turn_id": out.TurnID,
		"type":    out.Data.Type,
		"message": out,
	}
	subject := bus.SubjectOutputPrefix + out.Data.Type
	event := bus.NewEvent("agent.output", "agent-service", data)
	if err := s.eventBus.Publish(context.Background(), subject, event); err != nil {
		s.log.Warn("Failed to publish output", zap.Error(err))
	}

	if out.Data.Type == messages.OutputStart {
		started := bus.NewEvent("agent.turn.started", "agent-service", map[string]interface{}{
			"turn_id": out.TurnID,
		})
		if err := s.eventBus.Publish(context.Background(), bus.SubjectTurnStarted, started); err != nil {
			s.log.Warn("Failed to publish turn start", zap.Error(err))
		}
	}
}

func (s *Service) publishState() {
	snap := s.Snapshot()
	if s.hub != nil {
		s.hub.Broadcast(streaming.StreamState, snap)
	}
	if s.eventBus == nil {
		return
	}
	event := bus.NewEvent("agent.state.changed", "agent-service", map[string]interface{}{
		"state":       snap.State,
		"turn_count":  snap.TurnCount,
		"is_paused":   snap.IsPaused,
		"should_stop": snap.ShouldStop,
	})
	if err := s.eventBus.Publish(context.Background(), bus.SubjectStateChanged, event); err != nil {
		s.log.Warn("Failed to publish state change", zap.Error(err))
	}
}
