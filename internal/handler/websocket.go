package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"tramboard/internal/domain"
	"tramboard/internal/hub"
	"tramboard/internal/middleware"
	"tramboard/internal/store"
)

type WSHandler struct {
	hub       *hub.Hub
	store     *store.Store
	refresher Refresher
	limiter   *middleware.RateLimiter
	logger    *slog.Logger
}

// NewWSHandler builds the websocket endpoint. limiter may be nil, in which
// case refresh messages are not rate limited.
func NewWSHandler(h *hub.Hub, s *store.Store, refresher Refresher, limiter *middleware.RateLimiter, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:       h,
		store:     s,
		refresher: refresher,
		limiter:   limiter,
		logger:    logger.With("component", "ws_handler"),
	}
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SubscribePayload struct {
	Tab string `json:"tab"`
}

type ControlMessage struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	client := hub.NewClient(uuid.New().String(), 16)
	ip := middleware.ClientIP(r)

	h.hub.Register(client)
	ServerStats.IncWSConnections()
	defer ServerStats.DecWSConnections()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client, ip)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client, ip string) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}
		ServerStats.IncWSMessagesIn()

		if msgType != websocket.MessageText {
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "subscribe":
			var payload SubscribePayload
			if len(msg.Payload) > 0 {
				if err := json.Unmarshal(msg.Payload, &payload); err != nil {
					continue
				}
			}
			tab := domain.ParseDirection(payload.Tab)
			h.hub.Subscribe(client, tab)
			h.sendSnapshot(client, tab)

		case "refresh":
			h.refresh(client, ip)

		case "ping":
			h.sendControl(client, ControlMessage{Type: "pong"})
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// sendSnapshot renders the current board for a newly chosen tab.
func (h *WSHandler) sendSnapshot(client *hub.Client, tab domain.Direction) {
	data, err := h.hub.Render(h.store.Snapshot(), tab)
	if err != nil {
		h.logger.Error("failed to render snapshot", "client_id", client.ID, "error", err)
		return
	}
	if !h.hub.Deliver(client, data) {
		h.logger.Debug("failed to send snapshot, buffer full", "client_id", client.ID)
	}
}

func (h *WSHandler) refresh(client *hub.Client, ip string) {
	if h.limiter != nil && !h.limiter.Permit(ip) {
		h.sendControl(client, ControlMessage{Type: "error", Error: "rate limit exceeded"})
		return
	}
	if err := h.refresher.Refresh("websocket"); err != nil {
		h.sendControl(client, ControlMessage{Type: "error", Error: err.Error()})
	}
}

func (h *WSHandler) sendControl(client *hub.Client, msg ControlMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.hub.Deliver(client, data)
}
