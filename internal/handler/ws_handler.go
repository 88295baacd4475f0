package handler

import (
	"context"
	"errors"
	"net/http"

	"notesync-server/internal/config"
	"notesync-server/internal/middleware"
	"notesync-server/internal/service"
	"notesync-server/internal/websocket"
	"notesync-server/pkg/jwt"
	"notesync-server/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Error replies sent over the realtime channel.
const (
	msgInvalidFormat    = "Invalid message format"
	msgUnknownType      = "Unknown message type"
	msgRateLimited      = "Rate limit exceeded"
	msgJoinRequired     = "noteId is required for join"
	msgEditRequired     = "noteId, content, and version are required for edit"
	msgJoinDenied       = "Access denied"
	msgJoinFailed       = "Failed to join note"
	msgEditDenied       = "Note not found or access denied"
	msgEditFailed       = "Failed to update note"
	msgInternal         = "Internal server error"
	msgAuthFailed       = "Authentication failed"
	msgTooManyConnected = "Too many connections"
	msgShuttingDown     = "Server shutting down"
)

type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

type WebSocketHandler struct {
	hub      *websocket.Hub
	auth     TokenValidator
	collab   *service.CollabService
	messages *WebSocketMessageHandler
	cfg      config.WebSocketConfig
	upgrader ws.Upgrader
	log      *zap.Logger
}

func NewWebSocketHandler(
	hub *websocket.Hub,
	auth TokenValidator,
	collab *service.CollabService,
	cfg config.WebSocketConfig,
	allowedOrigins string,
	log *zap.Logger,
) *WebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketHandler{
		hub:      hub,
		auth:     auth,
		collab:   collab,
		messages: NewWebSocketMessageHandler(collab, log),
		cfg:      cfg,
		upgrader: ws.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
			},
		},
		log: log,
	}
}

// HandleConnection authenticates once, at upgrade time. A bad credential is
// answered by upgrading and closing with 1008 so browser clients can tell
// an auth failure from a network error.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r.Header.Get("Authorization"))
	}

	claims, authErr := h.auth.ValidateToken(token)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	if authErr != nil {
		metrics.AuthFailures.Inc()
		h.log.Info("rejected realtime connection", zap.String("remote_addr", r.RemoteAddr), zap.Error(authErr))
		websocket.CloseWithCode(conn, ws.ClosePolicyViolation, msgAuthFailed, h.cfg.WriteWait)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	name := h.collab.DisplayName(ctx, claims.UserID)

	client := websocket.NewClient(uuid.New().String(), claims.UserID, name, conn, h.cfg, h.log)
	if err := h.hub.Register(client); err != nil {
		if errors.Is(err, websocket.ErrHubClosed) {
			websocket.CloseWithCode(conn, ws.CloseGoingAway, msgShuttingDown, h.cfg.WriteWait)
			return
		}
		websocket.CloseWithCode(conn, ws.ClosePolicyViolation, msgTooManyConnected, h.cfg.WriteWait)
		return
	}

	go client.WritePump()
	go client.ReadPump(ctx, h.messages)
}

// WebSocketMessageHandler dispatches decoded client frames to CollabService.
type WebSocketMessageHandler struct {
	collab   *service.CollabService
	validate *validator.Validate
	log      *zap.Logger
}

func NewWebSocketMessageHandler(collab *service.CollabService, log *zap.Logger) *WebSocketMessageHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketMessageHandler{
		collab:   collab,
		validate: validator.New(),
		log:      log,
	}
}

func (h *WebSocketMessageHandler) HandleMessage(ctx context.Context, client *websocket.Client, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("panic while handling message",
				zap.String("client_id", client.ID),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			client.Send(websocket.NewError(msgInternal))
		}
	}()

	if !client.Allow() {
		client.Send(websocket.NewError(msgRateLimited))
		return
	}

	msg, err := websocket.DecodeInbound(data)
	if err != nil {
		client.Send(websocket.NewError(msgInvalidFormat))
		return
	}

	switch msg.Type {
	case websocket.TypeJoin:
		h.handleJoin(ctx, client, msg.JoinRequest())

	case websocket.TypeEdit:
		h.handleEdit(ctx, client, msg.EditRequest())

	case websocket.TypeLeave:
		h.collab.Leave(ctx, client, msg.LeaveRequest().NoteID)

	case websocket.TypePing:
		client.Send(websocket.NewPong())

	default:
		client.Send(websocket.NewError(msgUnknownType))
	}
}

func (h *WebSocketMessageHandler) handleJoin(ctx context.Context, client *websocket.Client, req websocket.JoinRequest) {
	if err := h.validate.Struct(req); err != nil {
		client.Send(websocket.NewError(msgJoinRequired))
		return
	}

	err := h.collab.Join(ctx, client, req.NoteID)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrAccessDenied), errors.Is(err, service.ErrNoteNotFound):
		client.Send(websocket.NewError(msgJoinDenied))
	default:
		h.log.Error("join failed", zap.String("note_id", req.NoteID), zap.Error(err))
		client.Send(websocket.NewError(msgJoinFailed))
	}
}

func (h *WebSocketMessageHandler) handleEdit(ctx context.Context, client *websocket.Client, req websocket.EditRequest) {
	if err := h.validate.Struct(req); err != nil {
		client.Send(websocket.NewError(msgEditRequired))
		return
	}

	err := h.collab.Edit(ctx, client, req)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrAccessDenied), errors.Is(err, service.ErrNoteNotFound):
		client.Send(websocket.NewError(msgEditDenied))
	default:
		h.log.Error("edit failed", zap.String("note_id", req.NoteID), zap.Error(err))
		client.Send(websocket.NewError(msgEditFailed))
	}
}

func (h *WebSocketMessageHandler) HandleDisconnect(ctx context.Context, client *websocket.Client) {
	h.collab.Disconnect(ctx, client)
}
