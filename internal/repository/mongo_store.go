package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 5 * time.Second

	// upsertAttempts bounds the retries after a duplicate key error on the
	// pair index. One retry is enough in practice: the winner's document is
	// committed before the loser's error is returned.
	upsertAttempts = 3
)

type MongoStore struct {
	client *mongo.Client
	convs  *mongo.Collection
	msgs   *mongo.Collection
	useTxn bool
	log    *zap.Logger

	newID        func() string
	pointerRetry func() backoff.BackOff
}

type MongoOptions struct {
	ConversationsCollection string
	MessagesCollection      string
	// Transactions wraps each append in a multi-document transaction.
	// Requires a replica set or sharded cluster.
	Transactions bool
}

func NewMongoStore(db *mongo.Database, opts MongoOptions, log *zap.Logger) *MongoStore {
	if opts.ConversationsCollection == "" {
		opts.ConversationsCollection = "conversations"
	}
	if opts.MessagesCollection == "" {
		opts.MessagesCollection = "messages"
	}
	return &MongoStore{
		client: db.Client(),
		convs:  db.Collection(opts.ConversationsCollection),
		msgs:   db.Collection(opts.MessagesCollection),
		useTxn: opts.Transactions,
		log:    log,
		newID:  uuid.NewString,
		pointerRetry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxElapsedTime = 2 * time.Second
			return backoff.WithMaxRetries(b, 4)
		},
	}
}

// EnsureIndexes creates the indexes the store relies on for correctness.
// pair_unique is what makes conversation creation race-safe.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.convs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "participant_lo", Value: 1}, {Key: "participant_hi", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("pair_unique"),
		},
		{
			Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("participants_updated_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("conversation indexes: %w", err)
	}
	_, err = s.msgs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: -1}},
			Options: options.Index().SetUnique(true).SetName("conversation_seq_unique"),
		},
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "read", Value: 1}},
			Options: options.Index().SetName("conversation_unread_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("message indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) UpsertConversation(ctx context.Context, p domain.Pair, now time.Time) (*domain.Conversation, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	id := s.newID()
	filter := bson.M{"participant_lo": p.Lo, "participant_hi": p.Hi}
	update := bson.M{"$setOnInsert": domain.NewConversation(id, p, now.UTC().Truncate(time.Millisecond))}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var lastErr error
	for attempt := 0; attempt < upsertAttempts; attempt++ {
		var c domain.Conversation
		err := s.convs.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
		if err == nil {
			return &c, c.ID == id, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, err
		}
		// a concurrent upsert for the same pair won; the next round finds it
		s.log.Debug("conversation upsert lost race",
			zap.String("lo", p.Lo), zap.String("hi", p.Hi), zap.Int("attempt", attempt))
		lastErr = err
	}
	return nil, false, lastErr
}

func (s *MongoStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var c domain.Conversation
	if err := s.convs.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) ListConversationsForUser(ctx context.Context, userID string, page domain.Page) ([]*domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(page.Offset).
		SetLimit(page.Limit)
	cur, err := s.convs.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Conversation{}
	for cur.Next(ctx) {
		var c domain.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (s *MongoStore) AppendMessage(ctx context.Context, m *domain.Message, now time.Time) error {
	if s.useTxn {
		return s.appendInTxn(ctx, m, now)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := s.insertSequenced(ctx, m, now); err != nil {
		return err
	}

	// The message is durable from here on. A failed pointer update is
	// retried, then reported without undoing the insert.
	op := func() error { return s.SetLastMessage(ctx, m) }
	if err := backoff.Retry(op, backoff.WithContext(s.pointerRetry(), ctx)); err != nil {
		return errors.Join(ErrLastMessageNotUpdated, err)
	}
	return nil
}

func (s *MongoStore) appendInTxn(ctx context.Context, m *domain.Message, now time.Time) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(context.Background())

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if err := s.insertSequenced(sc, m, now); err != nil {
			return nil, err
		}
		return nil, s.SetLastMessage(sc, m)
	})
	return err
}

// insertSequenced allocates the next seq from the conversation counter and
// inserts m with it.
func (s *MongoStore) insertSequenced(ctx context.Context, m *domain.Message, now time.Time) error {
	var c domain.Conversation
	err := s.convs.FindOneAndUpdate(ctx,
		bson.M{"_id": m.ConversationID},
		bson.M{"$inc": bson.M{"message_seq": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}

	m.Seq = c.MessageSeq
	m.SentAt = sentAt(now, c.UpdatedAt)
	if m.ID == "" {
		m.ID = s.newID()
	}
	if _, err := s.msgs.InsertOne(ctx, m); err != nil {
		s.log.Warn("message insert failed after seq allocation",
			zap.String("conversation_id", m.ConversationID), zap.Int64("seq", m.Seq), zap.Error(err))
		return err
	}
	return nil
}

func (s *MongoStore) SetLastMessage(ctx context.Context, m *domain.Message) error {
	_, err := s.convs.UpdateOne(ctx,
		bson.M{"_id": m.ConversationID, "last_message_seq": bson.M{"$lt": m.Seq}},
		bson.M{
			"$set": bson.M{"last_message_id": m.ID, "last_message_seq": m.Seq},
			"$max": bson.M{"updated_at": m.SentAt},
		},
	)
	return err
}

func (s *MongoStore) ListMessages(ctx context.Context, conversationID string, skip, limit int64) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	cur, err := s.msgs.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	// chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *MongoStore) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := s.msgs.UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "sender_id": bson.M{"$ne": readerID}, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) LatestMessage(ctx context.Context, conversationID string) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})
	var m domain.Message
	if err := s.msgs.FindOne(ctx, bson.M{"conversation_id": conversationID}, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// sentAt keeps timestamps non-decreasing within a conversation even when
// clocks of different instances disagree.
func sentAt(now, lastUpdate time.Time) time.Time {
	now = now.UTC().Truncate(time.Millisecond)
	if now.Before(lastUpdate) {
		return lastUpdate.UTC()
	}
	return now
}
