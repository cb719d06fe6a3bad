package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore keeps conversations and messages in process. It offers the
// same atomicity as MongoStore by serializing every operation.
type MemoryStore struct {
	mu     sync.Mutex
	byPair map[domain.Pair]string
	convs  map[string]*domain.Conversation
	msgs   map[string][]*domain.Message // conversationID -> msgs in seq order
	newID  func() string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byPair: make(map[domain.Pair]string),
		convs:  make(map[string]*domain.Conversation),
		msgs:   make(map[string][]*domain.Message),
		newID:  uuid.NewString,
	}
}

func (s *MemoryStore) UpsertConversation(_ context.Context, p domain.Pair, now time.Time) (*domain.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPair[p]; ok {
		return copyConv(s.convs[id]), false, nil
	}
	c := domain.NewConversation(s.newID(), p, now.UTC().Truncate(time.Millisecond))
	s.byPair[p] = c.ID
	s.convs[c.ID] = c
	return copyConv(c), true, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConv(c), nil
}

func (s *MemoryStore) ListConversationsForUser(_ context.Context, userID string, page domain.Page) ([]*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page = page.Normalize()
	all := []*domain.Conversation{}
	for _, c := range s.convs {
		if c.HasParticipant(userID) {
			all = append(all, copyConv(c))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID < all[j].ID
	})
	if page.Offset >= int64(len(all)) {
		return []*domain.Conversation{}, nil
	}
	end := page.Offset + page.Limit
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return all[page.Offset:end], nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, m *domain.Message, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[m.ConversationID]
	if !ok {
		return ErrNotFound
	}
	c.MessageSeq++
	m.Seq = c.MessageSeq
	m.SentAt = sentAt(now, c.UpdatedAt)
	if m.ID == "" {
		m.ID = s.newID()
	}
	stored := *m
	s.msgs[c.ID] = append(s.msgs[c.ID], &stored)
	s.setLastMessage(c, m)
	return nil
}

func (s *MemoryStore) SetLastMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.convs[m.ConversationID]; ok {
		s.setLastMessage(c, m)
	}
	return nil
}

func (s *MemoryStore) setLastMessage(c *domain.Conversation, m *domain.Message) {
	if c.LastMessageSeq >= m.Seq {
		return
	}
	id := m.ID
	c.LastMessageID = &id
	c.LastMessageSeq = m.Seq
	if m.SentAt.After(c.UpdatedAt) {
		c.UpdatedAt = m.SentAt
	}
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID string, skip, limit int64) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.msgs[conversationID]
	if skip < 0 {
		skip = 0
	}
	end := int64(len(msgs)) - skip
	if end <= 0 || limit <= 0 {
		return []*domain.Message{}, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]*domain.Message, 0, end-start)
	for _, m := range msgs[start:end] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, conversationID, readerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.msgs[conversationID] {
		if m.SenderID != readerID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) LatestMessage(_ context.Context, conversationID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.msgs[conversationID]
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	cp := *msgs[len(msgs)-1]
	return &cp, nil
}

// ConversationCount is used by tests to assert uniqueness.
func (s *MemoryStore) ConversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

func copyConv(c *domain.Conversation) *domain.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	if c.LastMessageID != nil {
		id := *c.LastMessageID
		cp.LastMessageID = &id
	}
	return &cp
}
