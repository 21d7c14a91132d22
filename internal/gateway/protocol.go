package gateway

import (
	"encoding/json"

	"github.com/ecoloop/chatsync/internal/entity"
)

// WSRequest represents a WebSocket request message
type WSRequest struct {
	ReqIdentifier int32           `json:"req_identifier"` // Request type
	MsgIncr       string          `json:"msg_incr"`       // Client message counter/trace Id
	SendId        string          `json:"send_id"`        // Sender user Id
	Data          json.RawMessage `json:"data"`           // Business data
}

// WSResponse represents a WebSocket response message
type WSResponse struct {
	ReqIdentifier int32           `json:"req_identifier"` // Request type (echo back)
	MsgIncr       string          `json:"msg_incr"`       // Message counter (echo back)
	ErrCode       int             `json:"err_code"`       // Error code, 0 = success
	ErrMsg        string          `json:"err_msg"`        // Error message
	Data          json.RawMessage `json:"data"`           // Response data
}

// SendMsgReq represents send message request data
type SendMsgReq struct {
	ConversationId string `json:"conversation_id"`
	Text           string `json:"text"`
	MsgType        int32  `json:"msg_type,omitempty"`
	ReplyToId      string `json:"reply_to_id,omitempty"`
}

// MarkReadReq represents a read acknowledgment request
type MarkReadReq struct {
	ConversationId string `json:"conversation_id"`
	Ts             int64  `json:"ts"`
}

// SnapshotData carries a full conversation directory snapshot
type SnapshotData struct {
	Conversations []*entity.ConversationView `json:"conversations"`
}

// PushMsgData carries a pushed message
type PushMsgData struct {
	Message *entity.MessageInfo `json:"message"`
}
