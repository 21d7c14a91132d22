package gateway

// WebSocket protocol constants
const (
	// Request identifiers
	WSSendMsg  = 1001 // Send a message
	WSMarkRead = 1002 // Acknowledge read position

	// Push identifiers
	WSPushSnapshot  = 2001 // Conversation directory snapshot
	WSPushMsg       = 2002 // New message
	WSKickOnlineMsg = 2003 // Kick user offline
)

// Query parameter keys
const (
	QueryToken      = "token"
	QuerySendId     = "send_id"
	QueryPlatformId = "platform_id"
)
