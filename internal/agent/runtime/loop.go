package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/agent/controller"
	"github.com/agentcore/agentcore/internal/common/logger"
	"github.com/agentcore/agentcore/pkg/engine"
	"github.com/agentcore/agentcore/pkg/messages"
	"github.com/agentcore/agentcore/pkg/plan"
)

// tickInterval bounds how long the loop can go without re-checking control
// state when neither the control nor the input channel has traffic.
const tickInterval = time.Second

// loop is the single task that owns the engine handle, consumes the input
// and control channels, and is the sole writer of execution state.
type loop struct {
	ctrl    *controller.Controller
	eng     engine.Engine
	inputs  <-chan messages.InputMessage
	outputs chan messages.OutputMessage
	plans   chan plan.Message
	log     *logger.Logger
}

// run drives the loop until stop, input-channel close, or cancellation.
// On exit it emits a best-effort final Completed, returns state to idle
// unless stopped, deactivates the controller, and closes both owned
// channels.
func (l *loop) run(ctx context.Context) error {
	l.log.Info("starting agent execution loop")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var runErr error

loop:
	for {
		select {
		case cmd := <-l.ctrl.Commands():
			l.log.Debug("received control command", zap.String("action", cmd.Action))
			l.ctrl.Apply(cmd)
			if l.ctrl.ShouldStop() {
				break loop
			}

		case msg, ok := <-l.inputs:
			if !ok {
				l.log.Debug("input channel closed")
				break loop
			}

			if err := l.ctrl.WaitWhilePaused(ctx); err != nil {
				runErr = err
				break loop
			}
			if l.ctrl.ShouldStop() {
				break loop
			}

			if err := l.processInput(ctx, msg); err != nil {
				if ctx.Err() != nil {
					runErr = ctx.Err()
					break loop
				}
				l.log.WithError(err).Error("error processing input message")

				errOut := messages.NewOutputMessage(
					l.ctrl.TurnCount(),
					messages.Error(messages.GeneralError(err.Error())),
				)
				if sendErr := l.sendOutput(ctx, errOut); sendErr != nil {
					l.log.WithError(sendErr).Error("failed to send error output")
				}
				l.ctrl.SetError(err.Error())
			}

		case <-ticker.C:
			// Housekeeping checkpoint only.

		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		}
	}

	l.log.Info("agent execution loop finished",
		zap.Uint64("turns", l.ctrl.TurnCount()))

	// Best effort; the consumer may already be gone.
	final := messages.NewOutputMessage(l.ctrl.TurnCount(), messages.Completed())
	select {
	case l.outputs <- final:
	default:
		l.log.Warn("failed to send final completion message")
	}

	if !l.ctrl.ShouldStop() {
		l.ctrl.SetState(controller.StateIdle)
	}
	l.ctrl.Deactivate()
	close(l.outputs)
	close(l.plans)

	return runErr
}

// processInput runs one full turn: commit the turn, announce it, submit the
// input to the engine, then pump engine events until a terminal one. A
// failed event fetch ends the turn with an Error output but not the loop.
func (l *loop) processInput(ctx context.Context, msg messages.InputMessage) error {
	turnID := l.ctrl.IncrementTurnCount()
	log := l.log.WithTurn(turnID)
	log.Debug("processing input message", zap.Int("images", len(msg.Images)))

	if err := l.sendOutput(ctx, messages.NewOutputMessage(turnID, messages.Start())); err != nil {
		return err
	}

	items := []engine.InputItem{engine.TextItem(msg.Message)}
	for _, img := range msg.Images {
		url := fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Data)
		items = append(items, engine.ImageItem(url, img.Description))
	}

	sub := engine.Submission{
		ID: uuid.New().String(),
		Op: engine.Op{Type: engine.OpUserInput, Items: items},
	}
	if err := l.eng.Submit(ctx, sub); err != nil {
		return fmt.Errorf("submit turn %d: %w", turnID, err)
	}

	for {
		if l.ctrl.ShouldStop() {
			return nil
		}
		if err := l.ctrl.WaitWhilePaused(ctx); err != nil {
			return err
		}

		ev, err := l.eng.NextEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Error("error fetching next engine event")
			errOut := messages.NewOutputMessage(turnID,
				messages.Error(messages.ModelRequestError(err.Error())))
			return l.sendOutput(ctx, errOut)
		}

		if ev.Kind == engine.KindPlanUpdate {
			if err := l.sendPlan(ctx, NormalizePlan(ev)); err != nil {
				return err
			}
			continue
		}

		data, ok := Normalize(ev)
		if !ok {
			log.Debug("ignoring engine event", zap.String("kind", ev.Kind))
		} else if err := l.sendOutput(ctx, messages.NewOutputMessage(turnID, data)); err != nil {
			return err
		}

		if terminal(ev.Kind) {
			return nil
		}
	}
}

// sendOutput blocks until the message is accepted; a slow consumer applies
// back-pressure to the loop rather than losing outputs.
func (l *loop) sendOutput(ctx context.Context, msg messages.OutputMessage) error {
	select {
	case l.outputs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *loop) sendPlan(ctx context.Context, msg plan.Message) error {
	select {
	case l.plans <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
