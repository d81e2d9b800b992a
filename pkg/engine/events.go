package engine

// Event kind constants. The set is closed: the normalizer categorizes every
// kind either into the output vocabulary or into the explicit ignored set,
// so a new engine event requires a deliberate decision, not a fallthrough.
const (
	// KindSessionConfigured reports engine session setup. Bookkeeping only.
	KindSessionConfigured = "session_configured"

	// KindTaskStarted reports the engine has begun working on a submission.
	KindTaskStarted = "task_started"

	// KindAgentMessage carries a complete assistant message.
	KindAgentMessage = "agent_message"

	// KindAgentMessageDelta carries an assistant message fragment.
	KindAgentMessageDelta = "agent_message_delta"

	// KindAgentReasoning carries a complete reasoning section.
	KindAgentReasoning = "agent_reasoning"

	// KindAgentReasoningDelta carries a reasoning fragment.
	KindAgentReasoningDelta = "agent_reasoning_delta"

	// KindToolCallBegin reports a tool invocation has started.
	KindToolCallBegin = "tool_call_begin"

	// KindToolCallEnd reports a tool invocation has finished.
	KindToolCallEnd = "tool_call_end"

	// KindToolOutputDelta carries incremental output from a running tool.
	KindToolOutputDelta = "tool_output_delta"

	// KindPlanUpdate carries a full replacement of the engine's plan.
	KindPlanUpdate = "plan_update"

	// KindTaskComplete reports the current turn finished.
	KindTaskComplete = "task_complete"

	// KindTurnAborted reports the current turn was interrupted.
	KindTurnAborted = "turn_aborted"

	// KindShutdownComplete reports the engine has shut down.
	KindShutdownComplete = "shutdown_complete"

	// KindError carries an engine-level error for the current turn.
	KindError = "error"

	// KindTokenCount reports token accounting. Bookkeeping only.
	KindTokenCount = "token_count"

	// KindHistoryReplay carries raw transcript replay. Bookkeeping only.
	KindHistoryReplay = "history_replay"

	// KindToolsListed carries the engine's tool inventory. Bookkeeping only.
	KindToolsListed = "tools_listed"
)

// Plan step statuses as engines report them. "failed" has no counterpart in
// the normalized todo model and maps to blocked.
const (
	PlanStepPending    = "pending"
	PlanStepInProgress = "in_progress"
	PlanStepCompleted  = "completed"
	PlanStepFailed     = "failed"
)

// PlanStep is one entry of an engine plan update.
type PlanStep struct {
	Step   string `json:"step"`
	Status string `json:"status"`
}

// Event is one engine-native event. Kind selects the variant; only the
// fields relevant to that kind are populated.
type Event struct {
	// ID is the submission ID this event belongs to; may be empty for
	// session-scoped events.
	ID string `json:"id,omitempty"`

	// Kind is one of the Kind* constants.
	Kind string `json:"kind"`

	// Message holds text for agent_message, agent_reasoning and error events.
	Message string `json:"message,omitempty"`

	// Delta holds the fragment for *_delta events.
	Delta string `json:"delta,omitempty"`

	// CallID identifies a tool invocation across begin/output/end events.
	CallID string `json:"call_id,omitempty"`

	// ToolName names the tool for tool_call_* and tool_output_delta events.
	ToolName string `json:"tool_name,omitempty"`

	// Arguments holds tool invocation arguments for tool_call_begin.
	Arguments interface{} `json:"arguments,omitempty"`

	// Result holds the tool result for tool_call_end.
	Result interface{} `json:"result,omitempty"`

	// Output holds the fragment for tool_output_delta events.
	Output string `json:"output,omitempty"`

	// PlanExplanation and PlanSteps are set for plan_update events.
	PlanExplanation string     `json:"plan_explanation,omitempty"`
	PlanSteps       []PlanStep `json:"plan_steps,omitempty"`

	// Tokens is set for token_count events.
	Tokens int `json:"tokens,omitempty"`
}
