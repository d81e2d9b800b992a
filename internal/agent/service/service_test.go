package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/internal/agent/controller"
	"github.com/agentcore/agentcore/internal/common/logger"
	"github.com/agentcore/agentcore/internal/engine/enginetest"
	"github.com/agentcore/agentcore/internal/events/bus"
	"github.com/agentcore/agentcore/pkg/engine"
	"github.com/agentcore/agentcore/pkg/messages"
)

type eventRecorder struct {
	mu       sync.Mutex
	subjects []string
}

func (r *eventRecorder) record(t *testing.T, b bus.EventBus, subjects ...string) {
	t.Helper()
	for _, subject := range subjects {
		sub := subject
		_, err := b.Subscribe(sub, func(ctx context.Context, event *bus.Event) error {
			r.mu.Lock()
			r.subjects = append(r.subjects, sub)
			r.mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}
}

func (r *eventRecorder) count(subject string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

func startService(t *testing.T, b bus.EventBus, scripts ...enginetest.Script) *Service {
	t.Helper()
	svc := New(enginetest.New(scripts...), b, nil, logger.Default())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		svc.Shutdown(shutdownCtx)
	})
	return svc
}

func TestOutputsPublishedToBus(t *testing.T) {
	b := bus.NewMemoryEventBus(logger.Default())
	defer b.Close()

	rec := &eventRecorder{}
	rec.record(t, b, bus.SubjectTurnStarted, bus.SubjectOutputAll)

	svc := startService(t, b, enginetest.EchoScript("hi"))

	require.NoError(t, svc.SendMessage(context.Background(), messages.InputMessage{Message: "hello"}))

	require.Eventually(t, func() bool {
		return rec.count(bus.SubjectTurnStarted) == 1 && rec.count(bus.SubjectOutputAll) >= 3
	}, 2*time.Second, 10*time.Millisecond, "expected turn start plus start/delta/completed outputs")
}

func TestPlanUpdatesPublishedToBus(t *testing.T) {
	b := bus.NewMemoryEventBus(logger.Default())
	defer b.Close()

	rec := &eventRecorder{}
	rec.record(t, b, bus.SubjectPlanUpdated)

	script := enginetest.Script{Events: []engine.Event{
		{Kind: engine.KindPlanUpdate, PlanSteps: []engine.PlanStep{
			{Step: "read files", Status: engine.PlanStepInProgress},
		}},
		{Kind: engine.KindTaskComplete},
	}}
	svc := startService(t, b, script)

	require.NoError(t, svc.SendMessage(context.Background(), messages.InputMessage{Message: "plan"}))

	require.Eventually(t, func() bool {
		return rec.count(bus.SubjectPlanUpdated) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestControlPublishesStateChanges(t *testing.T) {
	b := bus.NewMemoryEventBus(logger.Default())
	defer b.Close()

	rec := &eventRecorder{}
	rec.record(t, b, bus.SubjectStateChanged)

	svc := startService(t, b)

	require.NoError(t, svc.Pause(context.Background()))
	assert.Equal(t, controller.StatePaused, svc.Snapshot().State)
	require.NoError(t, svc.Resume(context.Background()))

	require.Eventually(t, func() bool {
		return rec.count(bus.SubjectStateChanged) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownDrainsAndStops(t *testing.T) {
	svc := startService(t, nil, enginetest.EchoScript("bye"))

	require.NoError(t, svc.SendMessage(context.Background(), messages.InputMessage{Message: "last"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	snap := svc.Snapshot()
	assert.Equal(t, controller.StateIdle, snap.State)
	assert.Equal(t, uint64(1), snap.TurnCount)
}
