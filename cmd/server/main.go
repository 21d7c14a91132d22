package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"

	"github.com/ecoloop/chatsync/internal/config"
	"github.com/ecoloop/chatsync/internal/directory"
	"github.com/ecoloop/chatsync/internal/events"
	"github.com/ecoloop/chatsync/internal/gateway"
	"github.com/ecoloop/chatsync/internal/handler"
	"github.com/ecoloop/chatsync/internal/repository"
	"github.com/ecoloop/chatsync/internal/router"
	"github.com/ecoloop/chatsync/internal/service"
	"github.com/ecoloop/chatsync/pkg/constant"
	"github.com/ecoloop/chatsync/pkg/jwt"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	tokenStore := jwt.NewTokenStore(repos.Redis, cfg.JWT.ExpireHours)

	// Event bus fans out conversation changes, including those made by
	// other instances.
	bus := events.NewBus(repos.Redis)
	go bus.Run(ctx)
	defer bus.Close()

	// Directory hub turns change events into per-user snapshots
	hub := directory.NewHub(repos.Conversation, cfg.Directory.RetryInitial, cfg.Directory.RetryMax)
	bus.Subscribe(hub.HandleEvent)
	defer hub.Close()

	// Initialize services
	authService := service.NewAuthService(repos.User, tokenStore, cfg.JWT)
	convService := service.NewConversationService(repos.Conversation, repos.Member, bus)
	msgService := service.NewMessageService(repos.Conversation, repos.Member, repos.Message, bus)

	// Initialize WebSocket server
	wsServer := gateway.NewWsServer(cfg, repos.Redis, hub, msgService, convService)
	msgService.SetPusher(wsServer)

	wsServer.Run(ctx)
	go func() {
		if err := wsServer.Serve(ctx); err != nil {
			log.CtxError(ctx, "websocket server error: %v", err)
		}
	}()
	log.CtxInfo(ctx, "websocket server started on port %d", cfg.Server.WSPort)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	authHandler.SetPresence(wsServer)
	handlers := &router.Handlers{
		Auth:         authHandler,
		Conversation: handler.NewConversationHandler(convService),
		Message:      handler.NewMessageHandler(msgService),
	}

	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	router.SetupRouter(h, handlers, tokenStore)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")

	if err := wsServer.Shutdown(ctx); err != nil {
		log.CtxError(ctx, "websocket server shutdown error: %v", err)
	}
	if err := h.Shutdown(ctx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}
