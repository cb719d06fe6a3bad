package ws

import (
	"encoding/json"
	"testing"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubPushesToEveryConnectionOfEachUser(t *testing.T) {
	h := NewHub(zap.NewNop())
	a1, a2 := NewClient(nil, "u1"), NewClient(nil, "u1")
	b := NewClient(nil, "u2")
	other := NewClient(nil, "u3")
	for _, c := range []*Client{a1, a2, b, other} {
		h.AddClient(c)
	}
	assert.Equal(t, 2, h.ConnectedClients("u1"))

	h.PushMessage(&domain.Message{ID: "m1", ConversationID: "c1", SenderID: "u1", Body: "hola"}, "u1", "u2")

	for _, c := range []*Client{a1, a2, b} {
		require.Len(t, c.Send, 1)
		var got struct {
			Type    string         `json:"type"`
			Payload domain.Message `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(<-c.Send, &got))
		assert.Equal(t, "message", got.Type)
		assert.Equal(t, "m1", got.Payload.ID)
		assert.Equal(t, "hola", got.Payload.Body)
	}
	assert.Empty(t, other.Send)
}

func TestHubRemoveClient(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := NewClient(nil, "u1")
	h.AddClient(c)
	h.RemoveClient(c)
	assert.Zero(t, h.ConnectedClients("u1"))

	h.PushMessage(&domain.Message{ID: "m1"}, "u1")
	assert.Empty(t, c.Send)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := NewClient(nil, "u1")
	h.AddClient(c)

	for i := 0; i < sendBuffer+10; i++ {
		h.SendToUser("u1", []byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)
}
