package ws

import (
	"encoding/json"
	"sync"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"go.uber.org/zap"
)

// Hub tracks live connections per user. Sends never block: a client whose
// buffer is full misses the push and catches up through the REST listing.
type Hub struct {
	clientsByUser map[string]map[*Client]struct{} // userID -> set of clients
	mu            sync.RWMutex
	log           *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clientsByUser: make(map[string]map[*Client]struct{}),
		log:           log,
	}
}

func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clientsByUser[c.UserID]; !ok {
		h.clientsByUser[c.UserID] = make(map[*Client]struct{})
	}
	h.clientsByUser[c.UserID][c] = struct{}{}
}

func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clientsByUser[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clientsByUser, c.UserID)
		}
	}
}

func (h *Hub) ConnectedClients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clientsByUser[userID])
}

type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// PushMessage sends m to every connection of userIDs.
func (h *Hub) PushMessage(m *domain.Message, userIDs ...string) {
	b, err := json.Marshal(envelope{Type: domain.EventTypeMessage, Payload: m})
	if err != nil {
		h.log.Error("marshal ws push", zap.Error(err))
		return
	}
	for _, id := range userIDs {
		h.SendToUser(id, b)
	}
}

func (h *Hub) SendToUser(userID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clientsByUser[userID] {
		select {
		case c.Send <- msg:
		default:
			h.log.Debug("ws client buffer full, dropping push", zap.String("user_id", userID))
		}
	}
}
