package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/ecoloop/chatsync/internal/middleware"
	"github.com/ecoloop/chatsync/internal/service"
	"github.com/ecoloop/chatsync/pkg/errcode"
	"github.com/ecoloop/chatsync/pkg/response"
)

// MessageHandler handles message-related requests
type MessageHandler struct {
	msgService *service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(msgService *service.MessageService) *MessageHandler {
	return &MessageHandler{msgService: msgService}
}

// Send handles send message request
func (h *MessageHandler) Send(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.Unauthorized(ctx, c)
		return
	}

	var req service.SendRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.Send(ctx, userId, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg)
}

// EditRequest represents an edit message request
type EditRequest struct {
	ConversationId string `json:"conversation_id"`
	MessageId      string `json:"message_id"`
	Text           string `json:"text"`
}

// Edit handles edit message request
func (h *MessageHandler) Edit(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.Unauthorized(ctx, c)
		return
	}

	var req EditRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.Edit(ctx, userId, req.ConversationId, req.MessageId, req.Text)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg)
}

// DeleteRequest represents a delete message request
type DeleteRequest struct {
	ConversationId string `json:"conversation_id"`
	MessageId      string `json:"message_id"`
}

// Delete handles delete message request
func (h *MessageHandler) Delete(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.Unauthorized(ctx, c)
		return
	}

	var req DeleteRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.msgService.Delete(ctx, userId, req.ConversationId, req.MessageId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// ReactRequest represents a reaction request
type ReactRequest struct {
	ConversationId string `json:"conversation_id"`
	MessageId      string `json:"message_id"`
	Emoji          string `json:"emoji"`
}

// React handles set/remove reaction request
func (h *MessageHandler) React(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.Unauthorized(ctx, c)
		return
	}

	var req ReactRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.msgService.React(ctx, userId, req.ConversationId, req.MessageId, req.Emoji); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// History handles paged message history request
func (h *MessageHandler) History(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.Unauthorized(ctx, c)
		return
	}

	conversationId := c.Query("conversation_id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	cursor := c.Query("cursor")
	pageSize, _ := strconv.Atoi(c.Query("page_size"))

	page, err := h.msgService.History(ctx, userId, conversationId, cursor, pageSize)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, page)
}
