package ws

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type Client struct {
	Conn        *websocket.Conn
	UserID      string
	Send        chan []byte
	ConnectedAt time.Time
}

func NewClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		Conn:        conn,
		UserID:      userID,
		Send:        make(chan []byte, sendBuffer),
		ConnectedAt: time.Now().UTC(),
	}
}

// frameWriter is the write half of *websocket.Conn used by writePump.
type frameWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
}

// Handler serves the push-only socket. The JWT middleware runs before the
// upgrade and leaves the user id in Locals("user_id").
func Handler(h *Hub, log *zap.Logger) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		userID, _ := conn.Locals("user_id").(string)
		if userID == "" {
			_ = conn.Close()
			return
		}

		cli := NewClient(conn, userID)
		h.AddClient(cli)
		log.Debug("ws connected", zap.String("user_id", userID))

		cli.serve(conn, cli.readPump)

		h.RemoveClient(cli)
		_ = conn.Close()
		log.Debug("ws disconnected", zap.String("user_id", userID))
	}
}

// serve runs the writer alongside read and returns only after both have
// stopped. The conn is released when the handler returns, so no write may
// outlive this call.
func (c *Client) serve(w frameWriter, read func()) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		c.writePump(w, done)
	}()
	read()
	close(done)
	<-stopped
}

// readPump only consumes control frames; clients send messages over REST.
func (c *Client) readPump() {
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump(w frameWriter, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case b := <-c.Send:
			_ = w.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = w.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
