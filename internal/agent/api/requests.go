// Package api provides HTTP handlers for the agent control API.
package api

import (
	"time"

	"github.com/agentcore/agentcore/internal/agent/controller"
)

// SendMessageRequest for queueing a user message
type SendMessageRequest struct {
	Message string         `json:"message" binding:"required"`
	Images  []ImageRequest `json:"images,omitempty"`
}

// ImageRequest is one base64-encoded image attached to a message
type ImageRequest struct {
	Data        string `json:"data" binding:"required"`
	MimeType    string `json:"mime_type" binding:"required"`
	Description string `json:"description,omitempty"`
}

// SendMessageResponse acknowledges a queued message
type SendMessageResponse struct {
	Queued    bool      `json:"queued"`
	Timestamp time.Time `json:"timestamp"`
}

// StateResponse for the execution state
type StateResponse struct {
	controller.Snapshot
	ErrorReason string `json:"error_reason,omitempty"`
}

// ControlResponse acknowledges a control command
type ControlResponse struct {
	Action string              `json:"action"`
	State  controller.Snapshot `json:"state"`
}

// HealthResponse for health check
type HealthResponse struct {
	Status    string    `json:"status"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}
