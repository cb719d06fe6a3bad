package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/fathima-sithara/dm-service/internal/repository"
	"go.uber.org/zap"
)

// UserDirectory is the part of the user directory the registry consults
// before creating a conversation.
type UserDirectory interface {
	UserExists(ctx context.Context, id string) (bool, error)
	IsMutualFollow(ctx context.Context, a, b string) (bool, error)
}

type ConversationService struct {
	store   repository.ConversationStore
	dir     UserDirectory
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewConversationService(store repository.ConversationStore, dir UserDirectory, m *metrics.Metrics, log *zap.Logger) *ConversationService {
	return &ConversationService{store: store, dir: dir, metrics: m, log: log, now: time.Now}
}

// GetOrCreateConversation returns the conversation between userA and userB,
// creating it on first contact. Argument order does not matter.
func (s *ConversationService) GetOrCreateConversation(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	p, err := domain.NewPair(userA, userB)
	if err != nil {
		return nil, err
	}

	for _, id := range p.Members() {
		ok, err := s.dir.UserExists(ctx, id)
		if err != nil {
			return nil, domain.StorageError("user lookup", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
		}
	}

	mutual, err := s.dir.IsMutualFollow(ctx, p.Lo, p.Hi)
	if err != nil {
		return nil, domain.StorageError("follow lookup", err)
	}
	if !mutual {
		return nil, domain.ErrNotMutuallyConnected
	}

	c, created, err := s.store.UpsertConversation(ctx, p, s.now())
	if err != nil {
		return nil, domain.StorageError("upsert conversation", err)
	}
	if created {
		s.metrics.ConversationsCreated.Inc()
		s.log.Info("conversation created",
			zap.String("conversation_id", c.ID), zap.Strings("participants", c.Participants))
	}
	return c, nil
}

// ListConversationsForUser returns the conversations userID takes part in,
// most recently active first.
func (s *ConversationService) ListConversationsForUser(ctx context.Context, userID string, page domain.Page) ([]*domain.Conversation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidParticipants
	}
	convs, err := s.store.ListConversationsForUser(ctx, userID, page.Normalize())
	if err != nil {
		return nil, domain.StorageError("list conversations", err)
	}
	return convs, nil
}

// GetConversation returns the conversation only to one of its participants.
func (s *ConversationService) GetConversation(ctx context.Context, conversationID, actingUserID string) (*domain.Conversation, error) {
	c, err := loadConversation(ctx, s.store, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(actingUserID) {
		return nil, domain.ErrNotParticipant
	}
	return c, nil
}

func loadConversation(ctx context.Context, store repository.ConversationStore, id string) (*domain.Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrConversationNotFound
	}
	c, err := store.GetConversation(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, domain.StorageError("get conversation", err)
	}
	return c, nil
}
