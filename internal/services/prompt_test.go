package services

import (
	"testing"

	"github.com/samirkhann/study-assistant/internal/models"
)

func TestBuildPromptEmptyHistory(t *testing.T) {
	prompt := BuildPrompt(nil, "What is recursion?")

	if len(prompt) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(prompt))
	}
	if prompt[0].Role != models.RoleSystem || prompt[0].Content == "" {
		t.Fatalf("expected leading system message, got %+v", prompt[0])
	}
	if prompt[1].Role != models.RoleUser || prompt[1].Content != "What is recursion?" {
		t.Fatalf("expected trailing user message, got %+v", prompt[1])
	}
}

func TestBuildPromptPreservesHistoryOrder(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleUser, Content: "first question"},
		{Role: models.RoleAssistant, Content: "first answer"},
		{Role: models.RoleUser, Content: "second question"},
	}

	prompt := BuildPrompt(history, "third question")

	if len(prompt) != len(history)+2 {
		t.Fatalf("expected %d messages, got %d", len(history)+2, len(prompt))
	}
	for i, msg := range history {
		got := prompt[i+1]
		if got.Role != msg.Role || got.Content != msg.Content {
			t.Fatalf("history entry %d changed: expected %+v, got %+v", i, msg, got)
		}
	}
	last := prompt[len(prompt)-1]
	if last.Role != models.RoleUser || last.Content != "third question" {
		t.Fatalf("expected trailing user message, got %+v", last)
	}
}

func TestBuildPromptDoesNotMutateHistory(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleUser, Content: "untouched"},
	}

	prompt := BuildPrompt(history, "new question")
	prompt[1].Content = "changed"

	if history[0].Content != "untouched" {
		t.Fatalf("input history mutated: %q", history[0].Content)
	}
}
