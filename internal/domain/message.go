package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxBodyLength is counted in Unicode code points, not bytes.
const MaxBodyLength = 150

type Message struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	Body           string    `bson:"body" json:"body"`
	SentAt         time.Time `bson:"sent_at" json:"sent_at"`
	Seq            int64     `bson:"seq" json:"seq"`
	Read           bool      `bson:"read" json:"read"`
}

// NormalizeBody trims body and enforces the length bounds.
func NormalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return "", ErrMessageTooLong
	}
	return body, nil
}

// MessageEvent is emitted after a message is stored so that the
// notification pipeline can fan it out to the recipient.
type MessageEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	RecipientID    string    `json:"recipientId"`
	SenderID       string    `json:"senderId"`
	MessageID      string    `json:"messageId"`
	SentAt         time.Time `json:"sentAt"`
}

const EventTypeMessage = "message"

func NewMessageEvent(m *Message, recipientID string) MessageEvent {
	return MessageEvent{
		Type:           EventTypeMessage,
		ConversationID: m.ConversationID,
		RecipientID:    recipientID,
		SenderID:       m.SenderID,
		MessageID:      m.ID,
		SentAt:         m.SentAt,
	}
}
