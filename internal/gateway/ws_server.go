package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"

	"github.com/ecoloop/chatsync/internal/config"
	"github.com/ecoloop/chatsync/internal/directory"
	"github.com/ecoloop/chatsync/internal/entity"
	"github.com/ecoloop/chatsync/internal/service"
	"github.com/ecoloop/chatsync/pkg/constant"
	"github.com/ecoloop/chatsync/pkg/errcode"
	"github.com/ecoloop/chatsync/pkg/jwt"
)

// WsServer is the WebSocket server. On connect it subscribes the user to
// the conversation directory so every roster or message change lands as a
// full snapshot push; new messages are fanned out by the push workers.
type WsServer struct {
	upgrader       *websocket.Upgrader
	cfg            *config.Config
	userMap        *UserMap
	hub            *directory.Hub
	registerChan   chan *Client
	unregisterChan chan *Client
	pushChan       chan *PushTask
	msgService     *service.MessageService
	convService    *service.ConversationService
	onlineUserNum  atomic.Int64
	onlineConnNum  atomic.Int64
	maxConnNum     int64
	httpServer     *http.Server
}

// PushTask represents a message push task
type PushTask struct {
	Msg       *entity.MessageInfo
	TargetIds []string
}

// NewWsServer creates a new WebSocket server
func NewWsServer(cfg *config.Config, rdb *redis.Client, hub *directory.Hub, msgService *service.MessageService, convService *service.ConversationService) *WsServer {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return &WsServer{
		upgrader:       upgrader,
		cfg:            cfg,
		userMap:        NewUserMap(rdb),
		hub:            hub,
		registerChan:   make(chan *Client, 1000),
		unregisterChan: make(chan *Client, 1000),
		pushChan:       make(chan *PushTask, cfg.WebSocket.PushChannelSize),
		msgService:     msgService,
		convService:    convService,
		maxConnNum:     cfg.WebSocket.MaxConnNum,
	}
}

// Run starts the event loop and push workers
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)

	workerNum := s.cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	for i := 0; i < workerNum; i++ {
		go s.pushLoop(ctx)
	}
	log.Info("started %d push workers", workerNum)
}

// Serve listens for WebSocket connections on the configured port
func (s *WsServer) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.HandleConnection(r.Context(), w, r)
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int64{
			"online_users": s.GetOnlineUserCount(),
			"online_conns": s.GetOnlineConnCount(),
		})
	})

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.WSPort),
		Handler: mux,
	}

	log.Info("websocket server listening on :%d", s.cfg.Server.WSPort)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains the server
func (s *WsServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// eventLoop handles client registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop handles async message pushing
func (s *WsServer) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.pushChan:
			s.processPushTask(ctx, task)
		}
	}
}

// processPushTask processes a single push task
func (s *WsServer) processPushTask(ctx context.Context, task *PushTask) {
	for _, userId := range task.TargetIds {
		clients, ok := s.userMap.GetAll(userId)
		if !ok {
			continue
		}

		for _, client := range clients {
			if err := client.PushMessage(ctx, task.Msg); err != nil {
				log.CtxDebug(ctx, "push to client failed: user_id=%s, conn_id=%s, error=%v", userId, client.ConnId, err)
			}
		}
	}
}

// registerClient registers a client and opens its directory subscription
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	existingClients, exists := s.userMap.GetAll(client.UserId)
	if !exists {
		s.onlineUserNum.Add(1)
	}

	// A re-login on the same platform invalidated the old token, so the
	// old connection is kicked rather than left half-dead.
	for _, old := range existingClients {
		if old.PlatformId == client.PlatformId && old.Token != client.Token {
			log.CtxInfo(ctx, "kicking stale connection: user_id=%s, platform=%s, conn_id=%s",
				old.UserId, constant.PlatformIdToName(old.PlatformId), old.ConnId)
			_ = old.KickOnline()
		}
	}

	s.userMap.Register(ctx, client)
	s.onlineConnNum.Add(1)

	// Each connection gets its own subscription so a fresh snapshot
	// arrives right after the handshake.
	client.sub = s.hub.Subscribe(ctx, client.UserId, func(snapshot []*entity.ConversationView) {
		if err := client.PushSnapshot(snapshot); err != nil {
			log.CtxDebug(ctx, "push snapshot failed: user_id=%s, conn_id=%s, error=%v", client.UserId, client.ConnId, err)
		}
	})

	log.CtxInfo(ctx, "client registered: user_id=%s, platform_id=%d, conn_id=%s, existing_conns=%d, online_users=%d, online_conns=%d",
		client.UserId, client.PlatformId, client.ConnId, len(existingClients), s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// unregisterClient unregisters a client and cancels its subscription
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	if client.sub != nil {
		client.sub.Cancel()
	}

	isUserOffline := s.userMap.Unregister(ctx, client)
	s.onlineConnNum.Add(-1)

	if isUserOffline {
		s.onlineUserNum.Add(-1)
	}

	log.CtxInfo(ctx, "client unregistered: user_id=%s, platform_id=%d, conn_id=%s, user_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.PlatformId, client.ConnId, isUserOffline, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: user_id=%s", client.UserId)
	}
}

// HandleConnection handles a new WebSocket connection
func (s *WsServer) HandleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		http.Error(w, "connection limit exceeded", http.StatusServiceUnavailable)
		return
	}

	token := r.URL.Query().Get(QueryToken)
	sendId := r.URL.Query().Get(QuerySendId)
	platformIdStr := r.URL.Query().Get(QueryPlatformId)

	if token == "" || sendId == "" {
		http.Error(w, "missing required parameters", http.StatusBadRequest)
		return
	}

	platformId := 0
	if platformIdStr != "" {
		platformId, _ = strconv.Atoi(platformIdStr)
	}

	claims, err := jwt.ValidateToken(token, s.cfg.JWT.Secret, sendId, platformId)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: send_id=%s, error=%v", sendId, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}

	connId := uuid.New().String()
	wsConn := NewWebSocketClientConn(conn,
		s.cfg.WebSocket.MaxMessageSize,
		s.cfg.WebSocket.WriteChannelSize,
		s.cfg.WebSocket.WriteWait,
		s.cfg.WebSocket.PongWait,
		s.cfg.WebSocket.PingPeriod)
	client := NewClient(wsConn, claims.Uid, claims.PlatformId, token, connId, s)

	s.registerChan <- client
	client.Start()
}

// AsyncPushMessage queues a message push to users. Implements the message
// service's Pusher.
func (s *WsServer) AsyncPushMessage(ctx context.Context, userIds []string, msg *entity.MessageInfo) {
	task := &PushTask{
		Msg:       msg,
		TargetIds: userIds,
	}

	select {
	case s.pushChan <- task:
	default:
		log.CtxWarn(ctx, "push channel full, message dropped: conversation_id=%s, message_id=%s", msg.ConversationId, msg.Id)
	}
}

// IsOnline reports whether the user has a live connection on any instance
func (s *WsServer) IsOnline(ctx context.Context, userId string) bool {
	return s.userMap.IsOnline(ctx, userId)
}

// GetOnlineUserCount returns online user count
func (s *WsServer) GetOnlineUserCount() int64 {
	return s.onlineUserNum.Load()
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

// ========== Message Handlers ==========

// HandleSendMsg handles send message request
func (s *WsServer) HandleSendMsg(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var sendReq SendMsgReq
	if err := json.Unmarshal(req.Data, &sendReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	msg, err := s.msgService.Send(ctx, client.UserId, &service.SendRequest{
		ConversationId: sendReq.ConversationId,
		Text:           sendReq.Text,
		MsgType:        sendReq.MsgType,
		ReplyToId:      sendReq.ReplyToId,
	})
	if err != nil {
		return nil, err
	}

	return json.Marshal(msg)
}

// HandleMarkRead handles a read acknowledgment
func (s *WsServer) HandleMarkRead(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var readReq MarkReadReq
	if err := json.Unmarshal(req.Data, &readReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	if err := s.convService.MarkRead(ctx, client.UserId, readReq.ConversationId, readReq.Ts); err != nil {
		return nil, err
	}

	s.userMap.RefreshOnlineStatus(ctx, client.UserId)
	return json.Marshal(struct {
		Ok bool `json:"ok"`
	}{Ok: true})
}

var _ service.Pusher = (*WsServer)(nil)
