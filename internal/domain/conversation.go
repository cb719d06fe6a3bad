package domain

import (
	"strings"
	"time"
)

// Pair is an unordered pair of distinct user ids held in canonical order.
type Pair struct {
	Lo string
	Hi string
}

// NewPair normalizes a and b so that {a,b} and {b,a} yield the same Pair.
func NewPair(a, b string) (Pair, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" || a == b {
		return Pair{}, ErrInvalidParticipants
	}
	if b < a {
		a, b = b, a
	}
	return Pair{Lo: a, Hi: b}, nil
}

func (p Pair) Members() []string { return []string{p.Lo, p.Hi} }

// Other returns the member of p that is not userID.
func (p Pair) Other(userID string) (string, bool) {
	switch userID {
	case p.Lo:
		return p.Hi, true
	case p.Hi:
		return p.Lo, true
	}
	return "", false
}

type Conversation struct {
	ID             string    `bson:"_id" json:"id"`
	Participants   []string  `bson:"participants" json:"participants"`
	ParticipantLo  string    `bson:"participant_lo" json:"-"`
	ParticipantHi  string    `bson:"participant_hi" json:"-"`
	LastMessageID  *string   `bson:"last_message_id" json:"last_message_id"`
	LastMessageSeq int64     `bson:"last_message_seq" json:"-"`
	MessageSeq     int64     `bson:"message_seq" json:"-"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// NewConversation builds the record inserted on first contact between a pair.
func NewConversation(id string, p Pair, now time.Time) *Conversation {
	return &Conversation{
		ID:            id,
		Participants:  p.Members(),
		ParticipantLo: p.Lo,
		ParticipantHi: p.Hi,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (c *Conversation) Pair() Pair { return Pair{Lo: c.ParticipantLo, Hi: c.ParticipantHi} }

func (c *Conversation) HasParticipant(userID string) bool {
	_, ok := c.Pair().Other(userID)
	return ok
}

// Active reports whether at least one message has been appended.
func (c *Conversation) Active() bool { return c.LastMessageID != nil }

// Page is the limit/offset window used when listing conversations.
type Page struct {
	Limit  int64
	Offset int64
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
