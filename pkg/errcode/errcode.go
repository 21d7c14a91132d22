package errcode

import "fmt"

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Is reports whether err carries the same code. This makes errors.Is work
// across Wrap.
func (e *Error) Is(err error) bool {
	t, ok := err.(*Error)
	return ok && t.Code == e.Code
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam   = New(1001, "invalid parameter")
	ErrInternalServer = New(1002, "internal server error")
	ErrTooManyReqs    = New(1003, "too many requests")

	// Auth errors (2xxx)
	ErrAuthRequired  = New(2001, "authentication required")
	ErrTokenInvalid  = New(2002, "token invalid")
	ErrTokenExpired  = New(2003, "token expired")
	ErrTokenMissing  = New(2004, "token missing")
	ErrTokenMismatch = New(2005, "token user mismatch")
	ErrLoginFailed   = New(2006, "login failed")
	ErrUserNotFound  = New(2007, "user not found")
	ErrUserExists    = New(2008, "user already exists")
	ErrPasswordWrong = New(2009, "password wrong")

	// Conversation / membership errors (3xxx)
	ErrConvNotFound     = New(3001, "conversation not found")
	ErrNotMember        = New(3002, "not a conversation member")
	ErrAlreadyMember    = New(3003, "already a conversation member")
	ErrDirectImmutable  = New(3004, "direct conversation membership is immutable")
	ErrForbidden        = New(3005, "operation forbidden")
	ErrSelfConversation = New(3006, "cannot open a direct conversation with yourself")

	// Message errors (4xxx)
	ErrMessageNotFound = New(4001, "message not found")
	ErrMessageDeleted  = New(4002, "message has been deleted")
	ErrSendFailed      = New(4003, "message send failed")
	ErrBadCursor       = New(4004, "malformed page cursor")

	// WebSocket errors (5xxx)
	ErrConnOverLimit   = New(5001, "connection over max limit")
	ErrConnClosed      = New(5002, "connection closed")
	ErrInvalidProtocol = New(5003, "invalid protocol")
	ErrPushFailed      = New(5004, "push message failed")
)
