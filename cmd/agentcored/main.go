package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/agent/api"
	"github.com/agentcore/agentcore/internal/agent/service"
	"github.com/agentcore/agentcore/internal/agent/streaming"
	"github.com/agentcore/agentcore/internal/common/config"
	"github.com/agentcore/agentcore/internal/common/logger"
	"github.com/agentcore/agentcore/internal/engine/appserver"
	"github.com/agentcore/agentcore/internal/engine/enginetest"
	"github.com/agentcore/agentcore/internal/events/bus"
	"github.com/agentcore/agentcore/pkg/engine"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting agentcore service...")

	// 3. Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Connect the event bus; an empty NATS URL selects in-memory
	var eventBus bus.EventBus
	if cfg.NATS.URL != "" {
		eventBus, err = bus.NewNATSEventBus(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		log.Info("Connected to NATS event bus", zap.String("url", cfg.NATS.URL))
	} else {
		eventBus = bus.NewMemoryEventBus(log)
		log.Info("Using in-memory event bus")
	}
	defer eventBus.Close()

	// 5. Start the engine backend
	var eng engine.Engine
	switch cfg.Engine.Mode {
	case config.EngineModeScript:
		eng = enginetest.New()
		log.Info("Using scripted engine")
	default:
		eng, err = appserver.New(cfg.Engine, cfg.Agent, log)
		if err != nil {
			log.Fatal("Failed to start engine", zap.Error(err))
		}
		log.Info("Started engine subprocess", zap.String("command", cfg.Engine.Command))
	}
	defer eng.Close()

	// 6. Start the WebSocket hub
	hub := streaming.NewHub(log)
	go hub.Run(ctx)

	// 7. Start the agent service
	svc := service.New(eng, eventBus, hub, log)
	if err := svc.Start(ctx); err != nil {
		log.Fatal("Failed to start agent service", zap.Error(err))
	}

	// 8. Setup HTTP server with Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// 9. Register API and WebSocket routes
	v1 := router.Group("/api/v1")
	api.SetupRoutes(v1, svc, log)
	streaming.SetupWebSocketRoutes(v1.Group("/agent"), streaming.NewWSHandler(hub, log))

	handler := api.NewHandler(svc, log)
	router.GET("/health", handler.HealthCheck)

	// 10. Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// 11. Start server in goroutine
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 12. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down agentcore service...")

	// 13. Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error("Agent service shutdown error", zap.Error(err))
	}

	cancel()
	log.Info("agentcore service stopped")
}
