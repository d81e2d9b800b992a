package appserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/common/config"
	apperrors "github.com/agentcore/agentcore/internal/common/errors"
	"github.com/agentcore/agentcore/internal/common/logger"
	"github.com/agentcore/agentcore/pkg/engine"
)

const eventBuffer = 256

// Engine runs an app-server subprocess and adapts its JSON-RPC protocol
// to the engine.Engine interface. A single thread is started during
// connect; every user_input submission becomes a turn on that thread.
type Engine struct {
	cfg    config.EngineConfig
	agent  config.AgentConfig
	log    *logger.Logger
	cmd    *exec.Cmd
	client *Client

	threadID string
	events   chan engine.Event
}

// New spawns the configured command, performs the initialize handshake
// and starts a thread. The subprocess is killed if any step fails.
func New(cfg config.EngineConfig, agent config.AgentConfig, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("appserver")

	e := &Engine{
		cfg:    cfg,
		agent:  agent,
		log:    log,
		events: make(chan engine.Event, eventBuffer),
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range agent.Environment {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if key := agent.APIKey(); key != "" {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", agent.APIKeyEnv, key))
	}
	if agent.WorkingDirectory != "" {
		cmd.Dir = agent.WorkingDirectory
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, apperrors.ConfigError(fmt.Sprintf("start engine command %q: %v", cfg.Command, err))
	}
	e.cmd = cmd

	e.client = NewClient(stdin, stdout, log)
	e.client.SetNotificationHandler(e.handleNotification)
	e.client.Start()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeoutDuration())
	defer cancel()

	if err := e.connect(ctx); err != nil {
		e.Close()
		return nil, err
	}

	log.Info("Engine subprocess ready",
		zap.String("command", cfg.Command),
		zap.String("thread_id", e.threadID))
	return e, nil
}

func (e *Engine) connect(ctx context.Context) error {
	initParams := InitializeParams{
		ClientInfo: &ClientInfo{Name: "agentcore", Version: "1.0.0"},
	}
	if err := e.client.Call(ctx, MethodInitialize, initParams, nil); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := e.client.Notify(MethodInitialized, nil); err != nil {
		return fmt.Errorf("initialized: %w", err)
	}

	params := ThreadStartParams{
		Model:            e.agent.Model,
		Cwd:              e.agent.WorkingDirectory,
		ApprovalPolicy:   e.agent.ApprovalPolicy,
		SandboxPolicy:    sandboxPolicy(e.agent.SandboxPolicy),
		BaseInstructions: e.agent.SystemPrompt,
	}
	var result ThreadStartResult
	if err := e.client.Call(ctx, MethodThreadStart, params, &result); err != nil {
		return fmt.Errorf("thread/start: %w", err)
	}
	if result.Thread == nil || result.Thread.ID == "" {
		return fmt.Errorf("thread/start returned no thread id")
	}
	e.threadID = result.Thread.ID

	e.emit(engine.Event{Kind: engine.KindSessionConfigured, Message: e.threadID})
	return nil
}

func sandboxPolicy(mode string) *SandboxPolicy {
	if mode == "" {
		return nil
	}
	p := &SandboxPolicy{Type: mode}
	if mode == config.SandboxWorkspaceWrite {
		p.NetworkAccess = true
	}
	return p
}

// Submit maps submissions onto protocol calls. user_input starts a turn,
// interrupt aborts the running one, shutdown ends the subprocess session.
func (e *Engine) Submit(ctx context.Context, sub engine.Submission) error {
	switch sub.Op.Type {
	case engine.OpUserInput:
		input := make([]UserInput, 0, len(sub.Op.Items))
		for _, item := range sub.Op.Items {
			switch item.Type {
			case engine.ItemText:
				input = append(input, UserInput{Type: "text", Text: item.Text})
			case engine.ItemImage:
				input = append(input, UserInput{Type: "image", URL: item.ImageURL})
			}
		}
		params := TurnStartParams{ThreadID: e.threadID, Input: input}
		return e.client.Call(ctx, MethodTurnStart, params, nil)

	case engine.OpInterrupt:
		params := TurnInterruptParams{ThreadID: e.threadID}
		return e.client.Call(ctx, MethodTurnInterrupt, params, nil)

	case engine.OpShutdown:
		if err := e.client.Call(ctx, MethodShutdown, nil, nil); err != nil {
			e.log.WithError(err).Debug("Shutdown call failed, closing anyway")
		}
		e.emit(engine.Event{Kind: engine.KindShutdownComplete})
		return nil

	default:
		return fmt.Errorf("unsupported op type %q", sub.Op.Type)
	}
}

// NextEvent returns the next translated engine event.
func (e *Engine) NextEvent(ctx context.Context) (engine.Event, error) {
	select {
	case ev, ok := <-e.events:
		if !ok {
			return engine.Event{}, apperrors.ChannelClosed("engine event stream closed")
		}
		return ev, nil
	case <-e.client.Done():
		// Drain anything translated before the stream ended.
		select {
		case ev, ok := <-e.events:
			if ok {
				return ev, nil
			}
		default:
		}
		return engine.Event{}, apperrors.ChannelClosed("engine process disconnected")
	case <-ctx.Done():
		return engine.Event{}, ctx.Err()
	}
}

// Close terminates the client and the subprocess.
func (e *Engine) Close() error {
	e.client.Close()
	if e.cmd != nil && e.cmd.Process != nil {
		if err := e.cmd.Process.Kill(); err != nil && !strings.Contains(err.Error(), "already finished") {
			e.log.WithError(err).Warn("Failed to kill engine process")
		}
		done := make(chan struct{})
		go func() {
			e.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			e.log.Warn("Engine process did not exit after kill")
		}
	}
	return nil
}

func (e *Engine) emit(ev engine.Event) {
	select {
	case e.events <- ev:
	default:
		e.log.Warn("Event buffer full, dropping event", zap.String("kind", ev.Kind))
	}
}

func (e *Engine) handleNotification(method string, params json.RawMessage) {
	switch method {
	case NotifyTurnStarted:
		e.emit(engine.Event{Kind: engine.KindTaskStarted})

	case NotifyTurnCompleted:
		var p TurnCompletedParams
		if err := json.Unmarshal(params, &p); err != nil {
			e.log.WithError(err).Warn("Malformed turn/completed params")
			return
		}
		switch p.Status {
		case "aborted":
			e.emit(engine.Event{ID: p.TurnID, Kind: engine.KindTurnAborted})
		case "failed":
			e.emit(engine.Event{ID: p.TurnID, Kind: engine.KindError, Message: p.Error})
			e.emit(engine.Event{ID: p.TurnID, Kind: engine.KindTaskComplete})
		default:
			e.emit(engine.Event{ID: p.TurnID, Kind: engine.KindTaskComplete})
		}

	case NotifyTurnPlanUpdated:
		var p TurnPlanUpdatedParams
		if err := json.Unmarshal(params, &p); err != nil {
			e.log.WithError(err).Warn("Malformed turn/plan/updated params")
			return
		}
		steps := make([]engine.PlanStep, 0, len(p.Plan))
		for _, entry := range p.Plan {
			steps = append(steps, engine.PlanStep{Step: entry.Description, Status: entry.Status})
		}
		e.emit(engine.Event{
			ID:              p.TurnID,
			Kind:            engine.KindPlanUpdate,
			PlanExplanation: p.Explanation,
			PlanSteps:       steps,
		})

	case NotifyAgentMessageDelta:
		e.emitDelta(params, engine.KindAgentMessageDelta)

	case NotifyReasoningTextDelta, NotifyReasoningSummaryDelta:
		e.emitDelta(params, engine.KindAgentReasoningDelta)

	case NotifyCommandExecOutputDelta:
		e.emitDelta(params, engine.KindToolOutputDelta)

	case NotifyItemStarted:
		var p ItemParams
		if err := json.Unmarshal(params, &p); err != nil || p.Item == nil {
			return
		}
		switch p.Item.Type {
		case "commandExecution":
			e.emit(engine.Event{
				ID:        p.TurnID,
				Kind:      engine.KindToolCallBegin,
				CallID:    p.Item.ID,
				ToolName:  "shell",
				Arguments: p.Item.Command,
			})
		case "mcpToolCall":
			e.emit(engine.Event{
				ID:        p.TurnID,
				Kind:      engine.KindToolCallBegin,
				CallID:    p.Item.ID,
				ToolName:  mcpToolName(p.Item),
				Arguments: string(p.Item.Arguments),
			})
		}

	case NotifyItemCompleted:
		var p ItemParams
		if err := json.Unmarshal(params, &p); err != nil || p.Item == nil {
			return
		}
		switch p.Item.Type {
		case "agentMessage":
			e.emit(engine.Event{ID: p.TurnID, Kind: engine.KindAgentMessage, Message: p.Item.Text})
		case "reasoning":
			e.emit(engine.Event{ID: p.TurnID, Kind: engine.KindAgentReasoning, Message: p.Item.Text})
		case "commandExecution":
			e.emit(engine.Event{
				ID:       p.TurnID,
				Kind:     engine.KindToolCallEnd,
				CallID:   p.Item.ID,
				ToolName: "shell",
				Result:   commandResult(p.Item),
				Output:   p.Item.AggregatedOutput,
			})
		case "mcpToolCall":
			e.emit(engine.Event{
				ID:       p.TurnID,
				Kind:     engine.KindToolCallEnd,
				CallID:   p.Item.ID,
				ToolName: mcpToolName(p.Item),
				Result:   p.Item.Status,
				Output:   string(p.Item.Result),
			})
		}

	case NotifyError:
		var p ErrorParams
		if err := json.Unmarshal(params, &p); err != nil {
			return
		}
		e.emit(engine.Event{Kind: engine.KindError, Message: p.Message})

	case NotifyTokenCount:
		var p TokenCountParams
		if err := json.Unmarshal(params, &p); err != nil {
			return
		}
		e.emit(engine.Event{Kind: engine.KindTokenCount, Tokens: p.Total})

	case NotifyThreadStarted:
		// Already handled via the thread/start response.

	default:
		e.log.Debug("Unhandled engine notification", zap.String("method", method))
	}
}

func (e *Engine) emitDelta(params json.RawMessage, kind string) {
	var p DeltaParams
	if err := json.Unmarshal(params, &p); err != nil {
		e.log.WithError(err).Warn("Malformed delta params")
		return
	}
	e.emit(engine.Event{ID: p.TurnID, Kind: kind, CallID: p.ItemID, Delta: p.Delta})
}

func mcpToolName(item *Item) string {
	if item.Server != "" {
		return item.Server + "." + item.Tool
	}
	return item.Tool
}

func commandResult(item *Item) string {
	if item.ExitCode != nil {
		return fmt.Sprintf("exit %d", *item.ExitCode)
	}
	return item.Status
}
