package runtime

import (
	"github.com/agentcore/agentcore/pkg/engine"
	"github.com/agentcore/agentcore/pkg/messages"
	"github.com/agentcore/agentcore/pkg/plan"
)

// Normalize maps one engine event to at most one output payload. The
// mapping is a closed table: every engine kind is either converted here,
// listed in the ignored set, or routed to the plan channel by the loop.
// An unknown kind is treated as ignored and logged by the caller.
//
// Ignored kinds (no externally meaningful effect):
//   - session_configured: engine session bookkeeping
//   - task_started: the loop emits Start itself when it accepts an input
//   - token_count: token accounting
//   - history_replay: raw transcript replay
//   - tools_listed: tool inventory response
//   - plan_update: routed to the plan channel, never to the output channel
func Normalize(ev engine.Event) (messages.OutputData, bool) {
	switch ev.Kind {
	case engine.KindAgentMessage:
		return messages.Primary(ev.Message), true
	case engine.KindAgentMessageDelta:
		return messages.PrimaryDelta(ev.Delta), true
	case engine.KindAgentReasoning:
		return messages.Reasoning(ev.Message), true
	case engine.KindAgentReasoningDelta:
		return messages.ReasoningDelta(ev.Delta), true
	case engine.KindToolCallBegin:
		return messages.ToolStart(ev.ToolName, ev.Arguments), true
	case engine.KindToolCallEnd:
		return messages.ToolComplete(ev.ToolName, ev.Result), true
	case engine.KindToolOutputDelta:
		return messages.ToolOutput(ev.ToolName, ev.Output), true
	case engine.KindTaskComplete, engine.KindShutdownComplete:
		return messages.Completed(), true
	case engine.KindTurnAborted:
		return messages.Error(messages.GeneralError("turn aborted before completion")), true
	case engine.KindError:
		return messages.Error(messages.GeneralError(ev.Message)), true
	}
	return messages.OutputData{}, false
}

// NormalizePlan converts a plan_update event into a full plan snapshot.
// Engine steps have no stable IDs, so each snapshot mints fresh ones;
// consumers treat the snapshot as a complete replacement anyway.
func NormalizePlan(ev engine.Event) plan.Message {
	todos := make([]plan.TodoItem, 0, len(ev.PlanSteps))
	for _, step := range ev.PlanSteps {
		item := plan.NewTodoItem(step.Step)
		item.Status = todoStatus(step.Status)
		todos = append(todos, item)
	}

	if ev.PlanExplanation != "" {
		return plan.NewMessageWithMetadata(todos, plan.Metadata{
			Description: ev.PlanExplanation,
		})
	}
	return plan.NewMessage(todos)
}

// todoStatus maps engine plan step statuses onto the todo status set.
// A failed step surfaces as blocked.
func todoStatus(s string) string {
	switch s {
	case engine.PlanStepInProgress:
		return plan.StatusInProgress
	case engine.PlanStepCompleted:
		return plan.StatusCompleted
	case engine.PlanStepFailed:
		return plan.StatusBlocked
	default:
		return plan.StatusPending
	}
}

// terminal reports whether an engine event ends the current turn.
func terminal(kind string) bool {
	switch kind {
	case engine.KindTaskComplete, engine.KindTurnAborted, engine.KindShutdownComplete:
		return true
	}
	return false
}
