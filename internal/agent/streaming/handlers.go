package streaming

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/common/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin
		return true
	},
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub    *Hub
	logger *logger.Logger
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(hub *Hub, log *logger.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: log.WithFields(zap.String("component", "ws_handler")),
	}
}

// Stream handles a WebSocket connection subscribed to every stream.
// WS /api/v1/agent/stream
func (h *WSHandler) Stream(c *gin.Context) {
	h.serve(c, StreamOutput, StreamPlan, StreamState)
}

// StreamOne handles a WebSocket connection for a single named stream.
// WS /api/v1/agent/stream/:stream
func (h *WSHandler) StreamOne(c *gin.Context) {
	stream := c.Param("stream")
	switch stream {
	case StreamOutput, StreamPlan, StreamState:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "UNKNOWN_STREAM",
				"message": "stream must be one of output, plan, state",
			},
		})
		return
	}
	h.serve(c, stream)
}

func (h *WSHandler) serve(c *gin.Context, streams ...string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	h.logger.Info("WebSocket connection established",
		zap.String("client_id", clientID),
		zap.Strings("streams", streams),
	)

	client := NewClient(clientID, conn, h.hub, h.logger)
	h.hub.Register(client)
	for _, stream := range streams {
		client.Subscribe(stream)
	}

	// ReadPump handles subscription changes from the client
	go client.WritePump()
	go client.ReadPump()
}

// SetupWebSocketRoutes adds WebSocket routes to the router
func SetupWebSocketRoutes(router *gin.RouterGroup, handler *WSHandler) {
	router.GET("/stream", handler.Stream)
	router.GET("/stream/:stream", handler.StreamOne)
}
