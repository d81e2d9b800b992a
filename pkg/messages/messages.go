// Package messages defines the input and output message types exchanged
// between callers and the agent. Output data uses a single tagged struct:
// Type selects the variant and the payload fields that apply to it, the
// rest stay empty and are omitted from JSON.
package messages

import (
	"fmt"
	"time"

	"github.com/agentcore/agentcore/pkg/plan"
)

// InputMessage is a single user request submitted to the agent.
type InputMessage struct {
	// Message is the text content of the request.
	Message string `json:"message"`

	// Images optionally attached to the message.
	Images []ImageInput `json:"images,omitempty"`
}

// NewInputMessage creates a text-only input message.
func NewInputMessage(message string) InputMessage {
	return InputMessage{Message: message}
}

// AddImage appends an image attachment.
func (m *InputMessage) AddImage(img ImageInput) {
	m.Images = append(m.Images, img)
}

// ImageInput carries one image attachment.
type ImageInput struct {
	// Data is the base64-encoded image payload.
	Data string `json:"data"`

	// MimeType is the image media type, e.g. "image/png".
	MimeType string `json:"mime_type"`

	// Description is optional alt text.
	Description string `json:"description,omitempty"`
}

// Output type constants. Use these with OutputData.Type.
const (
	// OutputStart marks the beginning of a turn.
	OutputStart = "start"

	// OutputPrimary carries a complete primary response.
	OutputPrimary = "primary"

	// OutputPrimaryDelta carries a streaming fragment of the primary response.
	OutputPrimaryDelta = "primary_delta"

	// OutputToolStart indicates a tool invocation has begun.
	OutputToolStart = "tool_start"

	// OutputToolComplete indicates a tool invocation has finished.
	OutputToolComplete = "tool_complete"

	// OutputToolOutput carries incremental output from a running tool.
	OutputToolOutput = "tool_output"

	// OutputReasoning carries a complete reasoning section.
	OutputReasoning = "reasoning"

	// OutputReasoningDelta carries a streaming reasoning fragment.
	OutputReasoningDelta = "reasoning_delta"

	// OutputTodoUpdate carries a full todo-list replacement.
	OutputTodoUpdate = "todo_update"

	// OutputCompleted marks the successful end of a turn.
	OutputCompleted = "completed"

	// OutputError carries a turn-level error.
	OutputError = "error"
)

// OutputMessage is one normalized event emitted by the agent.
type OutputMessage struct {
	// TurnID is the turn this output belongs to. Turns number from 1.
	TurnID uint64 `json:"turn_id"`

	// Data is the output payload.
	Data OutputData `json:"data"`

	// Timestamp is when the message was created.
	Timestamp time.Time `json:"timestamp"`
}

// NewOutputMessage stamps an output payload with its turn ID.
func NewOutputMessage(turnID uint64, data OutputData) OutputMessage {
	return OutputMessage{
		TurnID:    turnID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// OutputData is the tagged output payload. Type selects which of the
// optional fields are meaningful.
type OutputData struct {
	// Type identifies the variant. Use the Output* constants.
	Type string `json:"type"`

	// Content holds text for primary, primary_delta, reasoning and
	// reasoning_delta outputs.
	Content string `json:"content,omitempty"`

	// ToolName identifies the tool for tool_start, tool_complete and
	// tool_output.
	ToolName string `json:"tool_name,omitempty"`

	// Arguments holds the tool invocation arguments for tool_start.
	Arguments interface{} `json:"arguments,omitempty"`

	// Result holds the tool result for tool_complete.
	Result interface{} `json:"result,omitempty"`

	// Output holds incremental tool output for tool_output.
	Output string `json:"output,omitempty"`

	// Todos holds the replacement todo list for todo_update.
	Todos []plan.TodoItem `json:"todos,omitempty"`

	// Error holds the error payload for error outputs.
	Error *ErrorData `json:"error,omitempty"`
}

// Start creates a turn-start payload.
func Start() OutputData {
	return OutputData{Type: OutputStart}
}

// Primary creates a complete response payload.
func Primary(content string) OutputData {
	return OutputData{Type: OutputPrimary, Content: content}
}

// PrimaryDelta creates a streaming response fragment.
func PrimaryDelta(content string) OutputData {
	return OutputData{Type: OutputPrimaryDelta, Content: content}
}

// ToolStart creates a tool-invocation-started payload.
func ToolStart(toolName string, arguments interface{}) OutputData {
	return OutputData{Type: OutputToolStart, ToolName: toolName, Arguments: arguments}
}

// ToolComplete creates a tool-invocation-finished payload.
func ToolComplete(toolName string, result interface{}) OutputData {
	return OutputData{Type: OutputToolComplete, ToolName: toolName, Result: result}
}

// ToolOutput creates an incremental tool output payload.
func ToolOutput(toolName, output string) OutputData {
	return OutputData{Type: OutputToolOutput, ToolName: toolName, Output: output}
}

// Reasoning creates a complete reasoning payload.
func Reasoning(content string) OutputData {
	return OutputData{Type: OutputReasoning, Content: content}
}

// ReasoningDelta creates a streaming reasoning fragment.
func ReasoningDelta(content string) OutputData {
	return OutputData{Type: OutputReasoningDelta, Content: content}
}

// TodoUpdate creates a full todo-list replacement payload.
func TodoUpdate(todos []plan.TodoItem) OutputData {
	return OutputData{Type: OutputTodoUpdate, Todos: todos}
}

// Completed creates a turn-completed payload.
func Completed() OutputData {
	return OutputData{Type: OutputCompleted}
}

// Error creates an error payload.
func Error(err ErrorData) OutputData {
	return OutputData{Type: OutputError, Error: &err}
}

// ErrorData kind constants.
const (
	ErrToolExecutionFailed   = "tool_execution_failed"
	ErrModelRequestFailed    = "model_request_failed"
	ErrConfiguration         = "configuration_error"
	ErrSandboxViolation      = "sandbox_violation"
	ErrPermissionDenied      = "permission_denied"
	ErrResourceLimitExceeded = "resource_limit_exceeded"
	ErrGeneral               = "general"
)

// ErrorData describes a turn error delivered in the output stream.
type ErrorData struct {
	// Kind is one of the Err* constants.
	Kind string `json:"kind"`

	// Message is the human-readable error text.
	Message string `json:"message"`

	// ToolName is set for tool_execution_failed errors.
	ToolName string `json:"tool_name,omitempty"`

	// Operation is set for permission_denied errors.
	Operation string `json:"operation,omitempty"`

	// Resource and Limit are set for resource_limit_exceeded errors.
	Resource string `json:"resource,omitempty"`
	Limit    string `json:"limit,omitempty"`
}

// GeneralError wraps a plain message as a general error payload.
func GeneralError(message string) ErrorData {
	return ErrorData{Kind: ErrGeneral, Message: message}
}

// ModelRequestError wraps an engine/model failure.
func ModelRequestError(message string) ErrorData {
	return ErrorData{Kind: ErrModelRequestFailed, Message: message}
}

// String renders the message for human-readable display.
func (m OutputMessage) String() string {
	switch m.Data.Type {
	case OutputStart:
		return fmt.Sprintf("[Turn %d] Started", m.TurnID)
	case OutputPrimary, OutputPrimaryDelta, OutputReasoningDelta:
		return m.Data.Content
	case OutputToolStart:
		return fmt.Sprintf("[Tool] Starting %s", m.Data.ToolName)
	case OutputToolComplete:
		return fmt.Sprintf("[Tool] Completed %s", m.Data.ToolName)
	case OutputToolOutput:
		return fmt.Sprintf("[%s] %s", m.Data.ToolName, m.Data.Output)
	case OutputReasoning:
		return fmt.Sprintf("[Reasoning] %s", m.Data.Content)
	case OutputTodoUpdate:
		return fmt.Sprintf("[Plan] %d todos", len(m.Data.Todos))
	case OutputCompleted:
		return fmt.Sprintf("[Turn %d] Completed", m.TurnID)
	case OutputError:
		if m.Data.Error != nil {
			return fmt.Sprintf("[Error] %s: %s", m.Data.Error.Kind, m.Data.Error.Message)
		}
		return "[Error]"
	}
	return fmt.Sprintf("[Unknown output %q]", m.Data.Type)
}
