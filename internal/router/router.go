package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/ecoloop/chatsync/internal/handler"
	"github.com/ecoloop/chatsync/internal/middleware"
	"github.com/ecoloop/chatsync/pkg/jwt"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Auth         *handler.AuthHandler
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
}

// SetupRouter sets up all routes
func SetupRouter(h *server.Hertz, handlers *Handlers, tokenStore *jwt.TokenStore) {
	h.Use(middleware.CORS())

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth routes (no auth required)
	authGroup := h.Group("/auth")
	{
		authGroup.POST("/register", handlers.Auth.Register)
		authGroup.POST("/login", handlers.Auth.Login)
	}

	// Authenticated auth routes
	authedAuthGroup := h.Group("/auth", middleware.JWTAuth(tokenStore))
	{
		authedAuthGroup.POST("/logout", handlers.Auth.Logout)
	}

	// User routes (auth required)
	userGroup := h.Group("/user", middleware.JWTAuth(tokenStore))
	{
		userGroup.GET("/info", handlers.Auth.GetUser)
		userGroup.GET("/info/:user_id", handlers.Auth.GetUser)
		userGroup.GET("/online/:user_id", handlers.Auth.OnlineStatus)
	}

	// Conversation routes (auth required)
	convGroup := h.Group("/conversation", middleware.JWTAuth(tokenStore))
	{
		convGroup.POST("/direct", handlers.Conversation.OpenDirect)
		convGroup.POST("/group", handlers.Conversation.CreateGroup)
		convGroup.GET("/list", handlers.Conversation.GetConversationList)
		convGroup.GET("/info", handlers.Conversation.GetConversation)
		convGroup.POST("/member/add", handlers.Conversation.AddMember)
		convGroup.POST("/member/remove", handlers.Conversation.RemoveMember)
		convGroup.POST("/leave", handlers.Conversation.Leave)
		convGroup.POST("/mark_read", handlers.Conversation.MarkRead)
	}

	// Message routes (auth required)
	msgGroup := h.Group("/msg", middleware.JWTAuth(tokenStore))
	{
		msgGroup.POST("/send", handlers.Message.Send)
		msgGroup.POST("/edit", handlers.Message.Edit)
		msgGroup.POST("/delete", handlers.Message.Delete)
		msgGroup.POST("/react", handlers.Message.React)
		msgGroup.GET("/history", handlers.Message.History)
	}
}
