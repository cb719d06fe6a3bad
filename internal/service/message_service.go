package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/fathima-sithara/dm-service/internal/repository"
	"go.uber.org/zap"
)

// Publisher hands message events to the notification pipeline. It must not
// block on the broker.
type Publisher interface {
	Publish(ctx context.Context, ev domain.MessageEvent) error
}

// Notifier pushes a stored message to the live connections of userIDs.
type Notifier interface {
	PushMessage(m *domain.Message, userIDs ...string)
}

type MessageService struct {
	store    repository.Store
	pub      Publisher
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewMessageService(store repository.Store, pub Publisher, notifier Notifier, m *metrics.Metrics, log *zap.Logger) *MessageService {
	return &MessageService{
		store:    store,
		pub:      pub,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

func (s *MessageService) AppendMessage(ctx context.Context, conversationID, senderID, body string) (*domain.Message, error) {
	body, err := domain.NormalizeBody(body)
	if err != nil {
		return nil, err
	}

	c, err := loadConversation(ctx, s.store, conversationID)
	if err != nil {
		return nil, err
	}
	recipient, ok := c.Pair().Other(senderID)
	if !ok {
		return nil, domain.ErrSenderNotParticipant
	}

	m := &domain.Message{ConversationID: c.ID, SenderID: senderID, Body: body}
	err = s.store.AppendMessage(ctx, m, s.now())
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrLastMessageNotUpdated):
		// stored and listable; RepairLastMessage fixes the pointer later
		s.log.Warn("last message pointer not updated",
			zap.String("conversation_id", c.ID), zap.String("message_id", m.ID), zap.Error(err))
	case errors.Is(err, repository.ErrNotFound):
		return nil, domain.ErrConversationNotFound
	default:
		return nil, domain.StorageError("append message", err)
	}

	s.metrics.MessagesAppended.Inc()
	s.dispatch(ctx, m, recipient, c.Participants)
	return m, nil
}

func (s *MessageService) dispatch(ctx context.Context, m *domain.Message, recipient string, participants []string) {
	if s.pub != nil {
		if err := s.pub.Publish(ctx, domain.NewMessageEvent(m, recipient)); err != nil {
			s.metrics.PublishFailures.Inc()
			s.log.Error("publish message event",
				zap.String("conversation_id", m.ConversationID), zap.String("message_id", m.ID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.PushMessage(m, participants...)
	}
}

// ListMessages returns one page counted from the newest message, oldest
// first. Reading marks the other participant's messages as read.
func (s *MessageService) ListMessages(ctx context.Context, conversationID, requestingUserID string, page, pageSize int) ([]*domain.Message, error) {
	c, err := s.participantConversation(ctx, conversationID, requestingUserID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = domain.DefaultPageSize
	}
	if pageSize > domain.MaxPageSize {
		pageSize = domain.MaxPageSize
	}

	if _, err := s.store.MarkRead(ctx, c.ID, requestingUserID); err != nil {
		return nil, domain.StorageError("mark read", err)
	}
	// a page past the int64 range cannot hold any message
	if int64(page-1) > math.MaxInt64/int64(pageSize) {
		return []*domain.Message{}, nil
	}
	skip := int64(page-1) * int64(pageSize)
	msgs, err := s.store.ListMessages(ctx, c.ID, skip, int64(pageSize))
	if err != nil {
		return nil, domain.StorageError("list messages", err)
	}
	return msgs, nil
}

// MarkAllRead flips every unread message written by the other participant
// and returns how many changed.
func (s *MessageService) MarkAllRead(ctx context.Context, conversationID, requestingUserID string) (int64, error) {
	c, err := s.participantConversation(ctx, conversationID, requestingUserID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.MarkRead(ctx, c.ID, requestingUserID)
	if err != nil {
		return 0, domain.StorageError("mark read", err)
	}
	return n, nil
}

// RepairLastMessage points the conversation at its newest stored message.
func (s *MessageService) RepairLastMessage(ctx context.Context, conversationID string) error {
	c, err := loadConversation(ctx, s.store, conversationID)
	if err != nil {
		return err
	}
	latest, err := s.store.LatestMessage(ctx, c.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domain.StorageError("latest message", err)
	}
	if err := s.store.SetLastMessage(ctx, latest); err != nil {
		return domain.StorageError("set last message", err)
	}
	s.log.Info("last message pointer repaired",
		zap.String("conversation_id", c.ID), zap.String("message_id", latest.ID))
	return nil
}

func (s *MessageService) participantConversation(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	c, err := loadConversation(ctx, s.store, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}
	return c, nil
}
