package appserver

import "encoding/json"

// Request is an outgoing JSON-RPC request. The app-server dialect omits
// the "jsonrpc":"2.0" field.
type Request struct {
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is an incoming JSON-RPC response.
type Response struct {
	ID     interface{}     `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Notification is a method call without an ID; no response is expected.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Request methods.
const (
	MethodInitialize    = "initialize"
	MethodInitialized   = "initialized" // Notification
	MethodThreadStart   = "thread/start"
	MethodTurnStart     = "turn/start"
	MethodTurnInterrupt = "turn/interrupt"
	MethodShutdown      = "shutdown"
)

// Server notifications.
const (
	NotifyThreadStarted          = "thread/started"
	NotifyTurnStarted            = "turn/started"
	NotifyTurnCompleted          = "turn/completed"
	NotifyTurnPlanUpdated        = "turn/plan/updated"
	NotifyItemStarted            = "item/started"
	NotifyItemCompleted          = "item/completed"
	NotifyAgentMessageDelta      = "item/agentMessage/delta"
	NotifyReasoningTextDelta     = "item/reasoning/textDelta"
	NotifyReasoningSummaryDelta  = "item/reasoning/summaryTextDelta"
	NotifyCommandExecOutputDelta = "item/commandExecution/outputDelta"
	NotifyError                  = "error"
	NotifyTokenCount             = "token_count"
)

// InitializeParams for initialize.
type InitializeParams struct {
	ClientInfo *ClientInfo `json:"clientInfo"`
}

// ClientInfo identifies the client to the server.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// SandboxPolicy configures sandbox behavior; Type uses kebab-case values.
type SandboxPolicy struct {
	Type          string   `json:"type"` // "workspace-write", "read-only", "danger-full-access"
	WritableRoots []string `json:"writableRoots,omitempty"`
	NetworkAccess bool     `json:"networkAccess,omitempty"`
}

// ThreadStartParams for thread/start.
type ThreadStartParams struct {
	Model            string         `json:"model,omitempty"`
	Cwd              string         `json:"cwd,omitempty"`
	ApprovalPolicy   string         `json:"approvalPolicy,omitempty"`
	SandboxPolicy    *SandboxPolicy `json:"sandboxPolicy,omitempty"`
	BaseInstructions string         `json:"baseInstructions,omitempty"`
}

// Thread identifies a server-side conversation.
type Thread struct {
	ID string `json:"id"`
}

// ThreadStartResult from thread/start.
type ThreadStartResult struct {
	Thread *Thread `json:"thread"`
}

// UserInput is one input element of a turn.
type UserInput struct {
	Type string `json:"type"` // "text", "image"
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
}

// TurnStartParams for turn/start.
type TurnStartParams struct {
	ThreadID string      `json:"threadId"`
	Input    []UserInput `json:"input"`
}

// TurnInterruptParams for turn/interrupt.
type TurnInterruptParams struct {
	ThreadID string `json:"threadId"`
}

// Item is one unit of turn content: a message, a command execution, a
// reasoning block, or an MCP tool call.
type Item struct {
	ID     string `json:"id"`
	Type   string `json:"type"`   // "agentMessage", "commandExecution", "reasoning", "mcpToolCall"
	Status string `json:"status"` // "inProgress", "completed", "failed"

	Text string `json:"text,omitempty"`

	// For commandExecution
	Command          string `json:"command,omitempty"`
	AggregatedOutput string `json:"aggregatedOutput,omitempty"`
	ExitCode         *int   `json:"exitCode,omitempty"`

	// For mcpToolCall
	Server    string          `json:"server,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// ItemParams carries item/started and item/completed notifications.
type ItemParams struct {
	ThreadID string `json:"threadId"`
	TurnID   string `json:"turnId"`
	Item     *Item  `json:"item"`
}

// DeltaParams carries the streaming delta notifications.
type DeltaParams struct {
	ThreadID string `json:"threadId"`
	TurnID   string `json:"turnId"`
	ItemID   string `json:"itemId"`
	Delta    string `json:"delta"`
}

// TurnCompletedParams for turn/completed.
type TurnCompletedParams struct {
	ThreadID string `json:"threadId"`
	TurnID   string `json:"turnId"`
	Status   string `json:"status,omitempty"` // "completed", "aborted", "failed"
	Error    string `json:"error,omitempty"`
}

// PlanEntry is one step of a turn/plan/updated notification.
type PlanEntry struct {
	Description string `json:"description"`
	Status      string `json:"status"` // "pending", "in_progress", "completed", "failed"
}

// TurnPlanUpdatedParams for turn/plan/updated.
type TurnPlanUpdatedParams struct {
	ThreadID    string      `json:"threadId"`
	TurnID      string      `json:"turnId"`
	Explanation string      `json:"explanation,omitempty"`
	Plan        []PlanEntry `json:"plan"`
}

// ErrorParams for the error notification.
type ErrorParams struct {
	Message string `json:"message"`
}

// TokenCountParams for the token_count notification.
type TokenCountParams struct {
	Total int `json:"total"`
}
