package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrLastMessageNotUpdated means the message is stored but the owning
	// conversation still points at an older message.
	ErrLastMessageNotUpdated = errors.New("last message pointer not updated")
)

type ConversationStore interface {
	// UpsertConversation returns the single conversation for p, creating it
	// when absent. created reports whether this call inserted it.
	UpsertConversation(ctx context.Context, p domain.Pair, now time.Time) (conv *domain.Conversation, created bool, err error)
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string, page domain.Page) ([]*domain.Conversation, error)
}

type MessageStore interface {
	// AppendMessage assigns m.Seq and m.SentAt, stores m and advances the
	// conversation's last message pointer.
	AppendMessage(ctx context.Context, m *domain.Message, now time.Time) error
	// ListMessages returns up to limit messages after skipping the skip
	// newest ones, in chronological order.
	ListMessages(ctx context.Context, conversationID string, skip, limit int64) ([]*domain.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
	LatestMessage(ctx context.Context, conversationID string) (*domain.Message, error)
	// SetLastMessage moves the pointer to m unless a newer message is already referenced.
	SetLastMessage(ctx context.Context, m *domain.Message) error
}

type Store interface {
	ConversationStore
	MessageStore
}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
