package db_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/samirkhann/study-assistant/internal/db"
	"github.com/samirkhann/study-assistant/internal/models"
)

func TestMemoryHistoryUnknownConversationIsEmpty(t *testing.T) {
	store := db.NewMemoryStore()

	messages, err := store.History(context.Background(), "never-written")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(messages))
	}
}

func TestMemoryAppendPreservesOrder(t *testing.T) {
	store := db.NewMemoryStore()
	ctx := context.Background()

	const n = 7
	for i := 0; i < n; i++ {
		msg := models.Message{Role: models.RoleUser, Content: fmt.Sprintf("message %d", i)}
		if err := store.Append(ctx, "conv", msg); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	messages, err := store.History(ctx, "conv")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(messages) != n {
		t.Fatalf("expected %d messages, got %d", n, len(messages))
	}
	for i, msg := range messages {
		want := fmt.Sprintf("message %d", i)
		if msg.Content != want {
			t.Fatalf("message %d: expected %q, got %q", i, want, msg.Content)
		}
	}
}

func TestMemoryClearEmptiesConversation(t *testing.T) {
	store := db.NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		msg := models.Message{Role: models.RoleUser, Content: fmt.Sprintf("message %d", i)}
		if err := store.Append(ctx, "conv", msg); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	if err := store.Clear(ctx, "conv"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	messages, err := store.History(ctx, "conv")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected empty history after clear, got %d messages", len(messages))
	}
}

func TestMemoryConversationsAreIndependent(t *testing.T) {
	store := db.NewMemoryStore()
	ctx := context.Background()

	if err := store.Append(ctx, "a", models.Message{Role: models.RoleUser, Content: "for a"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append(ctx, "b", models.Message{Role: models.RoleUser, Content: "for b"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Clear(ctx, "a"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	messages, err := store.History(ctx, "b")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "for b" {
		t.Fatalf("conversation b affected by operations on a: %+v", messages)
	}
}

func TestMemoryHistoryReturnsCopies(t *testing.T) {
	store := db.NewMemoryStore()
	ctx := context.Background()

	if err := store.Append(ctx, "conv", models.Message{Role: models.RoleUser, Content: "original"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	first, err := store.History(ctx, "conv")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	first[0].Content = "mutated"

	second, err := store.History(ctx, "conv")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if second[0].Content != "original" {
		t.Fatalf("store state mutated through returned slice: %q", second[0].Content)
	}
}

func TestMemoryConcurrentAppendsKeepPairsContiguous(t *testing.T) {
	store := db.NewMemoryStore()
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			err := store.Append(ctx, "conv",
				models.Message{Role: models.RoleUser, Content: fmt.Sprintf("question %d", i)},
				models.Message{Role: models.RoleAssistant, Content: fmt.Sprintf("answer %d", i)},
			)
			if err != nil {
				t.Errorf("append %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	messages, err := store.History(ctx, "conv")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(messages) != writers*2 {
		t.Fatalf("expected %d messages, got %d", writers*2, len(messages))
	}

	seen := make(map[string]bool, writers*2)
	for i := 0; i < len(messages); i += 2 {
		question, answer := messages[i], messages[i+1]
		if question.Role != models.RoleUser || answer.Role != models.RoleAssistant {
			t.Fatalf("pair at %d has roles %q/%q", i, question.Role, answer.Role)
		}
		if question.Content[len("question "):] != answer.Content[len("answer "):] {
			t.Fatalf("pair at %d interleaved: %q followed by %q", i, question.Content, answer.Content)
		}
		seen[question.Content] = true
		seen[answer.Content] = true
	}
	if len(seen) != writers*2 {
		t.Fatalf("expected %d distinct messages, got %d", writers*2, len(seen))
	}
}
