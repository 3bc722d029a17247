package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/samirkhann/study-assistant/internal/db"
	"github.com/samirkhann/study-assistant/internal/models"
	"github.com/samirkhann/study-assistant/internal/services"
)

// DefaultConversationID is used whenever a request omits the conversation id.
const DefaultConversationID = "default"

// ReplyGenerator produces the assistant reply for an assembled prompt.
// *services.ChatService satisfies it; tests substitute fakes.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, prompt []services.ChatMessage) (string, error)
}

// ChatHandler dispatches the HTTP chat surface. It holds no request state of
// its own; everything lives in the conversation store.
type ChatHandler struct {
	store  db.ConversationStore
	chat   ReplyGenerator
	logger *zap.SugaredLogger
}

func NewChatHandler(store db.ConversationStore, chat ReplyGenerator, logger *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{store: store, chat: chat, logger: logger}
}

func (h *ChatHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.handleRoot)

	apiGroup := router.Group("/api")
	apiGroup.POST("/chat", h.handleChat)
	apiGroup.GET("/history", h.handleHistory)
	apiGroup.POST("/clear", h.handleClear)

	router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "not found")
	})
}

// CORSMiddleware advertises the allowed origins, methods and headers, and
// short-circuits preflight probes before any store or gateway work.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type clearRequest struct {
	ConversationID string `json:"conversationId"`
}

func (h *ChatHandler) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	conversationID := resolveConversationID(req.ConversationID)
	ctx := c.Request.Context()

	history, err := h.store.History(ctx, conversationID)
	if err != nil {
		h.logger.Warnw("failed to load history", "conversation_id", conversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation history"})
		return
	}

	prompt := services.BuildPrompt(history, message)

	reply, err := h.chat.GenerateReply(ctx, prompt)
	if err != nil {
		h.logger.Warnw("chat completion failed", "conversation_id", conversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chat completion failed"})
		return
	}

	// Persist the turn pair only after the gateway succeeded, in one Append,
	// so a failed or cancelled call never leaves an orphaned user turn.
	now := time.Now().UTC()
	err = h.store.Append(ctx, conversationID,
		models.Message{Role: models.RoleUser, Content: message, Timestamp: now},
		models.Message{Role: models.RoleAssistant, Content: reply, Timestamp: now},
	)
	if err != nil {
		h.logger.Errorw("failed to persist turn", "conversation_id", conversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"response":       reply,
		"conversationId": conversationID,
	})
}

func (h *ChatHandler) handleHistory(c *gin.Context) {
	conversationID := resolveConversationID(c.Query("id"))

	messages, err := h.store.History(c.Request.Context(), conversationID)
	if err != nil {
		h.logger.Warnw("failed to load history", "conversation_id", conversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation history"})
		return
	}

	if messages == nil {
		messages = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *ChatHandler) handleClear(c *gin.Context) {
	var req clearRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	conversationID := resolveConversationID(req.ConversationID)

	if err := h.store.Clear(c.Request.Context(), conversationID); err != nil {
		h.logger.Errorw("failed to clear conversation", "conversation_id", conversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) handleRoot(c *gin.Context) {
	banner := strings.Join([]string{
		"study-assistant api",
		"",
		"POST /api/chat     {message, conversationId?}",
		"GET  /api/history  ?id=<conversationId>",
		"POST /api/clear    {conversationId?}",
	}, "\n")
	c.String(http.StatusOK, banner)
}

func resolveConversationID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" {
		return DefaultConversationID
	}
	return id
}
