package services

import "github.com/samirkhann/study-assistant/internal/models"

// systemPersona is the fixed instruction every prompt opens with.
const systemPersona = "You are a patient study assistant. Explain concepts clearly and step by step, " +
	"use short examples where they help, and encourage the student to reason through " +
	"problems instead of handing over bare answers."

// ChatMessage mirrors OpenAI-compatible chat message payloads.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildPrompt assembles the exact message list sent to the inference
// gateway: the system persona, then history in original order, then the new
// user message. Pure; the input history is never modified. The result always
// holds len(history)+2 messages.
func BuildPrompt(history []models.Message, userText string) []ChatMessage {
	prompt := make([]ChatMessage, 0, len(history)+2)
	prompt = append(prompt, ChatMessage{Role: models.RoleSystem, Content: systemPersona})

	for _, msg := range history {
		prompt = append(prompt, ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	prompt = append(prompt, ChatMessage{Role: models.RoleUser, Content: userText})
	return prompt
}
