package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/internal/agent/controller"
	apperrors "github.com/agentcore/agentcore/internal/common/errors"
	"github.com/agentcore/agentcore/internal/engine/enginetest"
	"github.com/agentcore/agentcore/pkg/engine"
	"github.com/agentcore/agentcore/pkg/messages"
)

// collect reads outputs until the channel closes or the timeout fires.
func collect(t *testing.T, h *Handle) []messages.OutputMessage {
	t.Helper()
	var out []messages.OutputMessage
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-h.Outputs():
			if !ok {
				return out
			}
			out = append(out, msg)
		case <-timeout:
			t.Fatalf("timed out collecting outputs, got %d so far", len(out))
		}
	}
}

func types(out []messages.OutputMessage) []string {
	var ts []string
	for _, m := range out {
		ts = append(ts, m.Data.Type)
	}
	return ts
}

func TestSingleTurnEndToEnd(t *testing.T) {
	eng := enginetest.New(enginetest.EchoScript("hel", "lo"))
	a := New(eng, nil)

	inputs := make(chan messages.InputMessage, 1)
	inputs <- messages.NewInputMessage("hi")
	close(inputs)

	h, err := a.Execute(context.Background(), inputs)
	require.NoError(t, err)

	out := collect(t, h)
	require.NoError(t, h.Wait(context.Background()))

	// Start, two deltas, turn Completed, then the loop's final Completed.
	assert.Equal(t, []string{
		messages.OutputStart,
		messages.OutputPrimaryDelta,
		messages.OutputPrimaryDelta,
		messages.OutputCompleted,
		messages.OutputCompleted,
	}, types(out))

	for _, m := range out[:4] {
		assert.Equal(t, uint64(1), m.TurnID)
	}

	snap := a.Controller().State()
	assert.Equal(t, controller.StateIdle, snap.State, "closed input channel returns state to idle")
	assert.Equal(t, uint64(1), snap.TurnCount)
}

func TestTurnCountMatchesInputs(t *testing.T) {
	eng := enginetest.New(
		enginetest.EchoScript("a"),
		enginetest.EchoScript("b"),
		enginetest.EchoScript("c"),
	)
	a := New(eng, nil)

	inputs := make(chan messages.InputMessage, 3)
	for _, m := range []string{"one", "two", "three"} {
		inputs <- messages.NewInputMessage(m)
	}
	close(inputs)

	h, err := a.Execute(context.Background(), inputs)
	require.NoError(t, err)

	out := collect(t, h)
	require.NoError(t, h.Wait(context.Background()))

	assert.Equal(t, uint64(3), a.Controller().TurnCount())

	// Every output of turn N carries turn_id N, and turn_count was
	// committed before the turn's Start was emitted.
	var starts []uint64
	for _, m := range out {
		if m.Data.Type == messages.OutputStart {
			starts = append(starts, m.TurnID)
		}
	}
	assert.Equal(t, []uint64{1, 2, 3}, starts)
}

func TestQueryConcatenatesDeltas(t *testing.T) {
	eng := enginetest.New(enginetest.EchoScript("Hello", ", ", "world"))
	a := New(eng, nil)

	got, err := a.Query(context.Background(), "greet me")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", got)
}

func TestQuerySurfacesTurnError(t *testing.T) {
	eng := enginetest.New(enginetest.Script{
		Events: []engine.Event{
			{Kind: engine.KindError, Message: "model unavailable"},
			{Kind: engine.KindTurnAborted},
		},
	})
	a := New(eng, nil)

	_, err := a.Query(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestFetchErrorEndsTurnNotLoop(t *testing.T) {
	eng := enginetest.New(
		enginetest.Script{
			Events: []engine.Event{
				{Kind: engine.KindAgentMessageDelta, Delta: "par"},
			},
			FetchErr: errors.New("stream reset"),
		},
		enginetest.EchoScript("recovered"),
	)
	a := New(eng, nil)

	inputs := make(chan messages.InputMessage, 2)
	inputs <- messages.NewInputMessage("first")
	inputs <- messages.NewInputMessage("second")
	close(inputs)

	h, err := a.Execute(context.Background(), inputs)
	require.NoError(t, err)

	out := collect(t, h)
	require.NoError(t, h.Wait(context.Background()))

	// Turn 1 ends with an Error output; turn 2 still ran to completion.
	var turn1Err, turn2Done bool
	for _, m := range out {
		if m.TurnID == 1 && m.Data.Type == messages.OutputError {
			turn1Err = true
			assert.Equal(t, messages.ErrModelRequestFailed, m.Data.Error.Kind)
		}
		if m.TurnID == 2 && m.Data.Type == messages.OutputCompleted {
			turn2Done = true
		}
	}
	assert.True(t, turn1Err, "turn 1 should surface the fetch error")
	assert.True(t, turn2Done, "loop should survive a failed turn")
	assert.Equal(t, uint64(2), a.Controller().TurnCount())
}

func TestSubmitErrorReportsErrorState(t *testing.T) {
	eng := enginetest.New(
		enginetest.Script{SubmitErr: errors.New("engine rejected submission")},
	)
	a := New(eng, nil)

	inputs := make(chan messages.InputMessage, 1)
	inputs <- messages.NewInputMessage("hi")
	close(inputs)

	h, err := a.Execute(context.Background(), inputs)
	require.NoError(t, err)

	out := collect(t, h)
	require.NoError(t, h.Wait(context.Background()))

	var sawError bool
	for _, m := range out {
		if m.Data.Type == messages.OutputError {
			sawError = true
		}
	}
	assert.True(t, sawError)
	assert.Equal(t, controller.StateError, a.Controller().State().State)
	assert.Contains(t, a.Controller().ErrorReason(), "engine rejected submission")
}

func TestPauseDefersProcessing(t *testing.T) {
	eng := enginetest.New(enginetest.EchoScript("late"))
	a := New(eng, nil)
	ctrl := a.Controller()

	inputs := make(chan messages.InputMessage, 1)
	h, err := a.Execute(context.Background(), inputs)
	require.NoError(t, err)

	require.NoError(t, ctrl.Pause(context.Background()))
	assert.Equal(t, controller.StatePaused, ctrl.State().State)

	inputs <- messages.NewInputMessage("queued while paused")
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, ctrl.TurnCount(), "no turn may start while paused")

	require.NoError(t, ctrl.Resume(context.Background()))
	close(inputs)

	out := collect(t, h)
	require.NoError(t, h.Wait(context.Background()))

	assert.Equal(t, uint64(1), ctrl.TurnCount())
	assert.Contains(t, types(out), messages.OutputStart)
}

func TestStopExitsLoop(t *testing.T) {
	eng := enginetest.New()
	a := New(eng, nil)
	ctrl := a.Controller()

	inputs := make(chan messages.InputMessage)
	h, err := a.Execute(context.Background(), inputs)
	require.NoError(t, err)

	require.NoError(t, ctrl.Stop(context.Background()))
	out := collect(t, h)
	require.NoError(t, h.Wait(context.Background()))

	snap := ctrl.State()
	assert.Equal(t, controller.StateStopped, snap.State, "stopped, not idle")
	assert.True(t, snap.ShouldStop)

	// Final best-effort Completed still goes out.
	require.NotEmpty(t, out)
	assert.Equal(t, messages.OutputCompleted, out[len(out)-1].Data.Type)

	// Controls after exit fail fast.
	err = ctrl.Pause(context.Background())
	assert.True(t, apperrors.IsControllerInactive(err))
}

func TestStopWhilePausedAbandonsQueuedInput(t *testing.T) {
	eng := enginetest.New(enginetest.EchoScript("never"))
	a := New(eng, nil)
	ctrl := a.Controller()

	inputs := make(chan messages.InputMessage, 1)
	h, err := a.Execute(context.Background(), inputs)
	require.NoError(t, err)

	require.NoError(t, ctrl.Pause(context.Background()))
	inputs <- messages.NewInputMessage("abandoned")
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, ctrl.Stop(context.Background()))
	collect(t, h)
	require.NoError(t, h.Wait(context.Background()))

	assert.Zero(t, ctrl.TurnCount(), "input queued during pause is abandoned on stop")
	assert.Empty(t, eng.Submissions())
}

func TestExecuteTwiceFails(t *testing.T) {
	a := New(enginetest.New(), nil)

	inputs := make(chan messages.InputMessage)
	defer close(inputs)

	_, err := a.Execute(context.Background(), inputs)
	require.NoError(t, err)

	_, err = a.Execute(context.Background(), inputs)
	require.Error(t, err)
}

func TestExecuteWithoutEngineFails(t *testing.T) {
	a := New(nil, nil)
	_, err := a.Execute(context.Background(), make(chan messages.InputMessage))
	require.Error(t, err)
}

func TestPlanUpdatesGoToPlanChannel(t *testing.T) {
	eng := enginetest.New(enginetest.Script{
		Events: []engine.Event{
			{Kind: engine.KindPlanUpdate, PlanSteps: []engine.PlanStep{
				{Step: "a", Status: engine.PlanStepInProgress},
				{Step: "b", Status: engine.PlanStepPending},
			}},
			{Kind: engine.KindAgentMessage, Message: "done"},
			{Kind: engine.KindTaskComplete},
		},
	})
	a := New(eng, nil)

	inputs := make(chan messages.InputMessage, 1)
	inputs <- messages.NewInputMessage("plan something")
	close(inputs)

	h, err := a.Execute(context.Background(), inputs)
	require.NoError(t, err)

	planCount := make(chan int, 1)
	go func() {
		n := 0
		for range h.Plans() {
			n++
		}
		planCount <- n
	}()

	out := collect(t, h)
	require.NoError(t, h.Wait(context.Background()))

	assert.NotContains(t, types(out), messages.OutputTodoUpdate,
		"plan updates never appear on the output channel")
	assert.Equal(t, 1, <-planCount)
}

func TestCancelledContextStopsLoop(t *testing.T) {
	eng := enginetest.New()
	a := New(eng, nil)

	ctx, cancel := context.WithCancel(context.Background())
	inputs := make(chan messages.InputMessage)
	defer close(inputs)

	h, err := a.Execute(ctx, inputs)
	require.NoError(t, err)

	cancel()
	err = h.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}
