package handler

import (
	"ai-plugin-engine/internal/pkg/serverutils"
	internalWS "ai-plugin-engine/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// CollaborationStreamHandler upgrades /collaborations/ws to a websocket
// carrying collaboration stream events.
type CollaborationStreamHandler struct {
	ws *internalWS.Handler
}

func NewCollaborationStreamHandler(ws *internalWS.Handler) *CollaborationStreamHandler {
	return &CollaborationStreamHandler{ws: ws}
}

// RegisterRoutes must run before routes matching /collaborations/:id.
func (h *CollaborationStreamHandler) RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler) {
	r.Get("/collaborations/ws", jwtMiddleware, h.Upgrade, websocket.New(h.serve))
}

func (h *CollaborationStreamHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals("callerId", serverutils.CallerId(c))
	return c.Next()
}

func (h *CollaborationStreamHandler) serve(conn *websocket.Conn) {
	callerId, _ := conn.Locals("callerId").(*uuid.UUID)
	h.ws.Serve(conn, callerId)
}
