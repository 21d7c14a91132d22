package entity

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// PageCursor is the typed pagination boundary for message history: the
// (created_at, id) pair of the oldest message already delivered. History
// pages are bounded strictly below the cursor, so concurrent inserts of
// newer messages never shift or duplicate already-delivered pages.
type PageCursor struct {
	CreatedAt int64
	MessageId string
}

// Encode renders the cursor as an opaque token for transport
func (c PageCursor) Encode() string {
	raw := fmt.Sprintf("%d:%s", c.CreatedAt, c.MessageId)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodePageCursor parses an opaque token back into a PageCursor
func DecodePageCursor(token string) (PageCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return PageCursor{}, fmt.Errorf("malformed cursor token: %w", err)
	}

	idx := strings.Index(string(raw), ":")
	if idx <= 0 || idx == len(raw)-1 {
		return PageCursor{}, fmt.Errorf("malformed cursor token: %q", raw)
	}

	createdAt, err := strconv.ParseInt(string(raw[:idx]), 10, 64)
	if err != nil {
		return PageCursor{}, fmt.Errorf("malformed cursor timestamp: %w", err)
	}

	return PageCursor{CreatedAt: createdAt, MessageId: string(raw[idx+1:])}, nil
}

// MessagePage is one page of message history, newest first. An empty
// NextCursor signals that no older messages exist.
type MessagePage struct {
	Messages   []*MessageInfo `json:"messages"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
