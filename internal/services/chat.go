package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/samirkhann/study-assistant/internal/utils"
)

// ChatService forwards assembled prompts to an OpenAI-compatible
// chat-completions endpoint and extracts the reply text.
type ChatService struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      httpDoer
	logger      *zap.SugaredLogger
}

// NewChatService constructs a ChatService initialized from cfg.
func NewChatService(cfg utils.GatewayConfig, logger *zap.SugaredLogger) *ChatService {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &ChatService{
		baseURL:     base,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      newHTTPClientWithTimeout(cfg.Timeout),
		logger:      logger,
	}
}

// GenerateReply sends prompt to the chat-completions endpoint and returns
// the generated text. The caller's ctx bounds the whole call; nothing is
// persisted here, so a cancelled request leaves no partial state behind.
func (s *ChatService) GenerateReply(ctx context.Context, prompt []ChatMessage) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("gateway api key is not configured")
	}
	if len(prompt) == 0 {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	payload := chatAPIRequest{
		Model:    s.model,
		Messages: prompt,
	}
	if s.temperature > 0 {
		payload.Temperature = s.temperature
	}
	if s.maxTokens > 0 {
		payload.MaxTokens = s.maxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	endpoint := s.baseURL + "/chat/completions"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+s.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("call chat api: %w", err)
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", buildGatewayAPIError(response.StatusCode, respBody)
	}

	var apiResp chatAPIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	if apiResp.Error != nil && apiResp.Error.Message != "" {
		return "", fmt.Errorf("gateway chat error: %s", apiResp.Error.Message)
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}

	reply := strings.TrimSpace(apiResp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("chat response contained an empty reply")
	}

	if apiResp.Usage != nil {
		s.logger.Debugw("chat completion finished",
			"model", s.model,
			"prompt_tokens", apiResp.Usage.PromptTokens,
			"completion_tokens", apiResp.Usage.CompletionTokens,
		)
	}

	return reply, nil
}

type chatAPIRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatAPIChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatAPIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatAPIResponse struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Created int64            `json:"created"`
	Choices []chatAPIChoice  `json:"choices"`
	Usage   *chatAPIUsage    `json:"usage"`
	Error   *gatewayAPIError `json:"error,omitempty"`
}
