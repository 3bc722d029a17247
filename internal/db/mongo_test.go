package db_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/samirkhann/study-assistant/internal/db"
	"github.com/samirkhann/study-assistant/internal/models"
	"github.com/samirkhann/study-assistant/internal/utils"
)

func TestMongoConversationRoundTrip(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping mongo integration test")
	}

	database := "study_assistant_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	cfg := utils.MongoConfig{
		URI:            uri,
		Database:       database,
		ConnectTimeout: 5 * time.Second,
	}

	store, err := db.NewMongo(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	defer func() {
		ctx := context.Background()
		store.Database.Drop(ctx)
		store.Close(ctx)
	}()

	if err := store.EnsureIndexes(context.Background()); err != nil {
		t.Fatalf("ensure indexes failed: %v", err)
	}

	ctx := context.Background()
	conversationID := uuid.NewString()

	messages, err := store.History(ctx, conversationID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(messages))
	}

	err = store.Append(ctx, conversationID,
		models.Message{Role: models.RoleUser, Content: "what is recursion?"},
		models.Message{Role: models.RoleAssistant, Content: "a function calling itself"},
	)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append(ctx, conversationID, models.Message{Role: models.RoleUser, Content: "give an example"}); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	messages, err = store.History(ctx, conversationID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Content != "what is recursion?" || messages[2].Content != "give an example" {
		t.Fatalf("history out of order: %+v", messages)
	}
	if messages[0].ID == "" || messages[0].Timestamp.IsZero() {
		t.Fatalf("expected stored message to carry id and timestamp: %+v", messages[0])
	}

	if err := store.Clear(ctx, conversationID); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	messages, err = store.History(ctx, conversationID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected empty history after clear, got %d messages", len(messages))
	}
}
