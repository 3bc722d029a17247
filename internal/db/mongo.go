package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/samirkhann/study-assistant/internal/models"
	"github.com/samirkhann/study-assistant/internal/utils"
)

// Mongo stores each conversation message as one document keyed by
// (conversation_id, seq); seq assignment happens under a per-conversation
// lock so the append log stays gap-free and ordered.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
	Messages *mongo.Collection

	locks *keyedMutex
}

type messageDoc struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	Seq            int64     `bson:"seq"`
	Role           string    `bson:"role"`
	Content        string    `bson:"content"`
	Timestamp      time.Time `bson:"timestamp"`
}

func NewMongo(ctx context.Context, cfg utils.MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo: uri is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	database := client.Database(cfg.Database)
	store := &Mongo{
		Client:   client,
		Database: database,
		Messages: database.Collection("messages"),
		locks:    newKeyedMutex(),
	}

	return store, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.Client.Disconnect(ctx)
}

func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	if m == nil || m.Database == nil {
		return fmt.Errorf("mongo: database not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.Messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure message index: %w", err)
	}

	return nil
}

func (m *Mongo) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := m.Messages.Find(ctx, bson.M{"conversation_id": conversationID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: load history: %w", err)
	}

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode history: %w", err)
	}

	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, models.Message{
			ID:        doc.ID,
			Role:      doc.Role,
			Content:   doc.Content,
			Timestamp: doc.Timestamp,
		})
	}

	return messages, nil
}

func (m *Mongo) Append(ctx context.Context, conversationID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	unlock := m.locks.Lock(conversationID)
	defer unlock()

	seq, err := m.lastSeq(ctx, conversationID)
	if err != nil {
		return err
	}

	docs := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		seq++
		docs = append(docs, messageDoc{
			ID:             messageID(msg),
			ConversationID: conversationID,
			Seq:            seq,
			Role:           msg.Role,
			Content:        msg.Content,
			Timestamp:      messageTimestamp(msg),
		})
	}

	if _, err := m.Messages.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongo: append messages: %w", err)
	}

	return nil
}

func (m *Mongo) Clear(ctx context.Context, conversationID string) error {
	if _, err := m.Messages.DeleteMany(ctx, bson.M{"conversation_id": conversationID}); err != nil {
		return fmt.Errorf("mongo: clear conversation: %w", err)
	}
	return nil
}

func (m *Mongo) lastSeq(ctx context.Context, conversationID string) (int64, error) {
	findOpts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})

	var last messageDoc
	err := m.Messages.FindOne(ctx, bson.M{"conversation_id": conversationID}, findOpts).Decode(&last)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("mongo: read last seq: %w", err)
	}

	return last.Seq, nil
}

func messageID(msg models.Message) string {
	if msg.ID != "" {
		return msg.ID
	}
	return uuid.NewString()
}

func messageTimestamp(msg models.Message) time.Time {
	if !msg.Timestamp.IsZero() {
		return msg.Timestamp
	}
	return time.Now().UTC()
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return 10 * time.Second
}
