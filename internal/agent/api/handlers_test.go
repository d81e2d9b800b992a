package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/internal/agent/controller"
	"github.com/agentcore/agentcore/internal/agent/service"
	"github.com/agentcore/agentcore/internal/common/logger"
	"github.com/agentcore/agentcore/internal/engine/enginetest"
)

func newTestRouter(t *testing.T, scripts ...enginetest.Script) (*gin.Engine, *service.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	eng := enginetest.New(scripts...)
	svc := service.New(eng, nil, nil, logger.Default())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		svc.Shutdown(shutdownCtx)
	})

	router := gin.New()
	router.GET("/health", NewHandler(svc, logger.Default()).HealthCheck)
	SetupRoutes(router.Group("/api/v1"), svc, logger.Default())
	return router, svc
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSendMessageQueues(t *testing.T) {
	router, svc := newTestRouter(t, enginetest.EchoScript("done"))

	w := doJSON(t, router, http.MethodPost, "/api/v1/agent/messages", SendMessageRequest{
		Message: "hello",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp SendMessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Queued)

	require.Eventually(t, func() bool {
		return svc.Snapshot().TurnCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendMessageRejectsEmptyBody(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/agent/messages", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStateReportsRunning(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/agent/state", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, controller.StateRunning, resp.State)
	assert.Zero(t, resp.TurnCount)
}

func TestPauseAndResume(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/agent/control/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ControlResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, controller.ActionPause, resp.Action)
	assert.True(t, resp.State.IsPaused)

	w = doJSON(t, router, http.MethodPost, "/api/v1/agent/control/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.State.IsPaused)
	assert.Equal(t, controller.StateRunning, resp.State.State)
}

func TestStopIsTerminal(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/agent/control/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ControlResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.State.ShouldStop)

	// Once the loop has exited, further control commands are rejected.
	require.Eventually(t, func() bool {
		w := doJSON(t, router, http.MethodPost, "/api/v1/agent/control/pause", nil)
		return w.Code == http.StatusConflict
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendMessageAfterLoopExitConflicts(t *testing.T) {
	router, svc := newTestRouter(t)

	require.NoError(t, svc.Stop(context.Background()))
	require.Eventually(t, func() bool {
		return svc.Snapshot().State == controller.StateStopped
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		w := doJSON(t, router, http.MethodPost, "/api/v1/agent/messages", SendMessageRequest{Message: "late"})
		return w.Code == http.StatusConflict
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}
