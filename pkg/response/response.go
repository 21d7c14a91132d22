package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/ecoloop/chatsync/pkg/errcode"
)

// Response represents a standard API response envelope
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success sends a success response
func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// Error sends an error response, mapping business errors to their codes
func Error(ctx context.Context, c *app.RequestContext, err error) {
	if e, ok := err.(*errcode.Error); ok {
		c.JSON(http.StatusOK, Response{Code: e.Code, Msg: e.Msg})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code: errcode.ErrInternalServer.Code,
		Msg:  err.Error(),
	})
}

// ErrorWithCode sends an error response with a specific error code
func ErrorWithCode(ctx context.Context, c *app.RequestContext, e *errcode.Error) {
	c.JSON(http.StatusOK, Response{Code: e.Code, Msg: e.Msg})
}

// Unauthorized sends a 401 unauthorized response
func Unauthorized(ctx context.Context, c *app.RequestContext) {
	c.JSON(http.StatusUnauthorized, Response{
		Code: errcode.ErrAuthRequired.Code,
		Msg:  errcode.ErrAuthRequired.Msg,
	})
}
