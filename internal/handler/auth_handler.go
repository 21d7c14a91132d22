package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/ecoloop/chatsync/internal/middleware"
	"github.com/ecoloop/chatsync/internal/service"
	"github.com/ecoloop/chatsync/pkg/errcode"
	"github.com/ecoloop/chatsync/pkg/response"
)

// Presence reports whether a user currently holds a live connection.
// Implemented by the websocket gateway.
type Presence interface {
	IsOnline(ctx context.Context, userId string) bool
}

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *service.AuthService
	presence    Presence
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SetPresence attaches the online-status source
func (h *AuthHandler) SetPresence(p Presence) {
	h.presence = p
}

// Register handles user registration
func (h *AuthHandler) Register(ctx context.Context, c *app.RequestContext) {
	var req service.RegisterRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	userInfo, err := h.authService.Register(ctx, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, userInfo)
}

// LoginRequest represents a login request
type LoginRequest struct {
	Id         string `json:"id"`
	Password   string `json:"password"`
	PlatformId int    `json:"platform_id"`
}

// Login handles user login
func (h *AuthHandler) Login(ctx context.Context, c *app.RequestContext) {
	var req LoginRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	resp, err := h.authService.Login(ctx, req.Id, req.Password, req.PlatformId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, resp)
}

// Logout handles user logout
func (h *AuthHandler) Logout(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.Unauthorized(ctx, c)
		return
	}

	if err := h.authService.Logout(ctx, userId, middleware.GetPlatformId(c), middleware.GetToken(c)); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// GetUser handles get user profile request
func (h *AuthHandler) GetUser(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.Unauthorized(ctx, c)
		return
	}

	targetId := c.Param("user_id")
	if targetId == "" {
		targetId = userId
	}

	userInfo, err := h.authService.GetUser(ctx, targetId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, userInfo)
}

// OnlineStatus reports whether a user is currently connected
func (h *AuthHandler) OnlineStatus(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.Unauthorized(ctx, c)
		return
	}

	targetId := c.Param("user_id")
	if targetId == "" {
		targetId = userId
	}

	online := false
	if h.presence != nil {
		online = h.presence.IsOnline(ctx, targetId)
	}

	response.Success(ctx, c, map[string]interface{}{
		"uid":    targetId,
		"online": online,
	})
}
