package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecoloop/chatsync/pkg/constant"
)

// NowUnixMilli returns the current unix timestamp in milliseconds.
// All persisted timestamps come from this server clock; client clocks are
// never trusted for ordering.
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// DirectConversationId derives the canonical Id of the direct conversation
// between two users. The uids are sorted ascending, so the function is
// symmetric: both parties compute the same Id and repeated creation attempts
// resolve to the same conversation.
// Format: d_{min(uidA,uidB)}:{max(uidA,uidB)}
// Uses ":" as separator to support uids containing "_".
func DirectConversationId(uidA, uidB string) string {
	lo, hi := uidA, uidB
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%s%s:%s", constant.DirectConversationPrefix, lo, hi)
}

// NewGroupConversationId mints a fresh group conversation Id.
// Format: g_{uuid}
func NewGroupConversationId() string {
	return constant.GroupConversationPrefix + uuid.New().String()
}

// IsDirectConversation checks if a conversation Id addresses a direct chat
func IsDirectConversation(conversationId string) bool {
	return strings.HasPrefix(conversationId, constant.DirectConversationPrefix)
}

// IsGroupConversation checks if a conversation Id addresses a group chat
func IsGroupConversation(conversationId string) bool {
	return strings.HasPrefix(conversationId, constant.GroupConversationPrefix)
}

// DirectPeers extracts the two participant uids from a direct conversation
// Id. Returns ok=false for anything that is not a well-formed direct Id.
func DirectPeers(conversationId string) (uidA, uidB string, ok bool) {
	if !IsDirectConversation(conversationId) {
		return "", "", false
	}
	rest := conversationId[len(constant.DirectConversationPrefix):]
	idx := strings.Index(rest, ":")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}
