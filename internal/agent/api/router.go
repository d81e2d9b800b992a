package api

import (
	"github.com/gin-gonic/gin"

	"github.com/agentcore/agentcore/internal/agent/service"
	"github.com/agentcore/agentcore/internal/common/logger"
)

// SetupRoutes configures the agent control API routes
// router should be the /api/v1 group
func SetupRoutes(router *gin.RouterGroup, svc *service.Service, log *logger.Logger) {
	handler := NewHandler(svc, log)

	agent := router.Group("/agent")
	{
		agent.POST("/messages", handler.SendMessage)
		agent.GET("/state", handler.GetState)

		control := agent.Group("/control")
		{
			control.POST("/pause", handler.Pause)
			control.POST("/resume", handler.Resume)
			control.POST("/stop", handler.Stop)
		}
	}
}
