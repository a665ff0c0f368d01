package websocket

import (
	"context"
	"time"

	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/internal/pkg/serverutils"
	"ai-plugin-engine/pkg/rag/collab"
	"ai-plugin-engine/pkg/rag/engineerr"
	"ai-plugin-engine/pkg/stream"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	opServe = "websocket.Serve"

	ActionStart = "start"
	ActionWatch = "watch"
)

// Collaborator runs collaborations; the collaboration service satisfies it.
type Collaborator interface {
	Prepare(ctx context.Context, callerId *uuid.UUID, req *dto.CollaborationRequest) (collab.Config, error)
	Stream(ctx context.Context, cfg collab.Config, sink stream.Sink) error
}

// Command is the first message a client sends.
type Command struct {
	Action    string                    `json:"action"`
	Request   *dto.CollaborationRequest `json:"request,omitempty"`
	SessionId uuid.UUID                 `json:"sessionId,omitempty"`
}

type Handler struct {
	hub          *Hub
	collaborator Collaborator
	logger       logger.ILogger
}

func NewHandler(hub *Hub, collaborator Collaborator, log logger.ILogger) *Handler {
	return &Handler{hub: hub, collaborator: collaborator, logger: log}
}

// Serve reads one Command and either runs a collaboration on this connection
// or follows a session running elsewhere. Malformed commands get a terminal
// error event.
func (h *Handler) Serve(conn Conn, callerId *uuid.UUID) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}

	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		h.reject(conn, engineerr.Validation(opServe, "malformed command: %v", err))
		return
	}

	switch cmd.Action {
	case ActionStart:
		if cmd.Request == nil {
			h.reject(conn, engineerr.Validation(opServe, "start needs a request"))
			return
		}
		h.start(conn, callerId, cmd.Request)
	case ActionWatch:
		if cmd.SessionId == uuid.Nil {
			h.reject(conn, engineerr.Validation(opServe, "watch needs a sessionId"))
			return
		}
		h.watch(conn, cmd.SessionId)
	default:
		h.reject(conn, engineerr.Validation(opServe, "unknown action %q", cmd.Action))
	}
}

func (h *Handler) reject(conn Conn, err error) {
	defer conn.Close()
	data, encErr := stream.Encode(stream.TerminalEvent(err))
	if encErr != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Handler) start(conn Conn, callerId *uuid.UUID, req *dto.CollaborationRequest) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := serverutils.ValidateRequest(req); err != nil {
		h.reject(conn, err)
		return
	}
	cfg, err := h.collaborator.Prepare(ctx, callerId, req)
	if err != nil {
		h.reject(conn, err)
		return
	}

	sink := stream.NewChannelSink(8)
	tee := stream.NewTee(sink, h.hub.Observer(cfg.SessionId))
	stream.Run(ctx, tee, func(ctx context.Context, s stream.Sink) error {
		return h.collaborator.Stream(ctx, cfg, s)
	})

	// a closed connection cancels the collaboration
	go func() {
		conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	defer conn.Close()
	for ev := range sink.Events() {
		data, err := stream.Encode(ev)
		if err == nil {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteMessage(websocket.TextMessage, data)
		}
		if err != nil {
			h.logger.Warn("WebSocket", "Collaboration client gone", map[string]interface{}{
				"session": cfg.SessionId.String(),
				"error":   err.Error(),
			})
			cancel()
			for range sink.Events() {
			}
			return
		}
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Handler) watch(conn Conn, sessionId uuid.UUID) {
	client := &Client{Hub: h.hub, Conn: conn, SessionId: sessionId, Send: make(chan []byte, 64)}
	h.hub.register <- client

	go client.writePump()
	client.readPump()
}
