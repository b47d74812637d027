package hub

import (
	"context"
	"log/slog"
	"sync"

	"tramboard/internal/domain"
)

// Encoder renders the board for one tab into a wire message.
type Encoder func(state domain.BoardState, tab domain.Direction) ([]byte, error)

type Client struct {
	ID   string
	Send chan []byte

	mu  sync.RWMutex
	tab domain.Direction

	// guarded by Hub.mu
	closed bool
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:   id,
		Send: make(chan []byte, bufferSize),
		tab:  domain.DirectionPrimary,
	}
}

func (c *Client) Tab() domain.Direction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tab
}

func (c *Client) setTab(tab domain.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tab = tab
}

// Hub pushes every board change to the connected clients, each rendered for
// the tab that client is looking at.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan domain.BoardState
	done       chan struct{}

	encode Encoder
	logger *slog.Logger
}

func NewHub(encode Encoder, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan domain.BoardState, 64),
		done:       make(chan struct{}),
		encode:     encode,
		logger:     logger.With("component", "hub"),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", total)

		case client := <-h.unregister:
			h.removeClient(client)

		case state := <-h.broadcast:
			h.fanout(state)
		}
	}
}

// Subscribe switches the tab a client receives.
func (h *Hub) Subscribe(client *Client, tab domain.Direction) {
	client.setTab(tab)
}

// Broadcast queues state for delivery. When the queue is full the state is
// dropped; the next clock tick carries a newer one.
func (h *Hub) Broadcast(state domain.BoardState) {
	select {
	case h.broadcast <- state:
	default:
		h.logger.Warn("broadcast channel full, dropping board state")
	}
}

// Register adds a client. After Run returned it closes the client's Send
// channel instead.
func (h *Hub) Register(client *Client) {
	select {
	case <-h.done:
		h.closeClient(client)
		return
	default:
	}

	select {
	case h.register <- client:
	case <-h.done:
		h.closeClient(client)
	}
}

// Deliver sends data to a single client without blocking. It reports false
// if the client is gone or its buffer is full.
func (h *Hub) Deliver(client *Client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if client.closed {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Render encodes state for one tab. Used for the snapshot sent right after a
// subscribe.
func (h *Hub) Render(state domain.BoardState, tab domain.Direction) ([]byte, error) {
	return h.encode(state, tab)
}

func (h *Hub) fanout(state domain.BoardState) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	rendered := make(map[domain.Direction][]byte, 2)
	for client := range h.clients {
		tab := client.Tab()
		data, ok := rendered[tab]
		if !ok {
			var err error
			data, err = h.encode(state, tab)
			if err != nil {
				h.logger.Error("failed to encode board", "tab", tab, "error", err)
				data = nil
			}
			rendered[tab] = data
		}
		if data == nil {
			continue
		}

		select {
		case client.Send <- data:
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	client.closed = true
	close(client.Send)
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.closed = true
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
}

func (h *Hub) closeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return
	}
	client.closed = true
	close(client.Send)
}
