package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/agent/controller"
	"github.com/agentcore/agentcore/internal/agent/service"
	"github.com/agentcore/agentcore/internal/common/errors"
	"github.com/agentcore/agentcore/internal/common/logger"
	"github.com/agentcore/agentcore/pkg/messages"
)

// Handler contains HTTP handlers for the agent control API
type Handler struct {
	service *service.Service
	logger  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  log.WithFields(zap.String("component", "agent-api")),
	}
}

// SendMessage queues a user message for the execution loop
// POST /api/v1/agent/messages
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.BadRequest("invalid request body: " + err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	msg := messages.InputMessage{Message: req.Message}
	for _, img := range req.Images {
		msg.Images = append(msg.Images, messages.ImageInput{
			Data:        img.Data,
			MimeType:    img.MimeType,
			Description: img.Description,
		})
	}

	if err := h.service.SendMessage(c.Request.Context(), msg); err != nil {
		h.logger.Error("failed to queue message", zap.Error(err))
		writeError(c, err, "failed to queue message")
		return
	}

	c.JSON(http.StatusAccepted, SendMessageResponse{
		Queued:    true,
		Timestamp: time.Now(),
	})
}

// Pause suspends turn processing
// POST /api/v1/agent/control/pause
func (h *Handler) Pause(c *gin.Context) {
	h.control(c, controller.ActionPause, h.service.Pause)
}

// Resume lifts a pause
// POST /api/v1/agent/control/resume
func (h *Handler) Resume(c *gin.Context) {
	h.control(c, controller.ActionResume, h.service.Resume)
}

// Stop permanently halts the execution loop
// POST /api/v1/agent/control/stop
func (h *Handler) Stop(c *gin.Context) {
	h.control(c, controller.ActionStop, h.service.Stop)
}

func (h *Handler) control(c *gin.Context, action string, op func(ctx context.Context) error) {
	if err := op(c.Request.Context()); err != nil {
		h.logger.Error("control command failed",
			zap.String("action", action),
			zap.Error(err))
		writeError(c, err, "control command failed")
		return
	}

	c.JSON(http.StatusOK, ControlResponse{
		Action: action,
		State:  h.service.Snapshot(),
	})
}

// GetState returns the execution state
// GET /api/v1/agent/state
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, StateResponse{
		Snapshot:    h.service.Snapshot(),
		ErrorReason: h.service.ErrorReason(),
	})
}

// HealthCheck returns health status
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		State:     h.service.Snapshot().State,
		Timestamp: time.Now(),
	})
}

func writeError(c *gin.Context, err error, fallback string) {
	if appErr, ok := err.(*errors.AppError); ok {
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	appErr := errors.InternalError(fallback, err)
	c.JSON(appErr.HTTPStatus, appErr)
}
