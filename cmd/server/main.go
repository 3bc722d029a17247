package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/samirkhann/study-assistant/internal/db"
	"github.com/samirkhann/study-assistant/internal/handlers"
	"github.com/samirkhann/study-assistant/internal/services"
	"github.com/samirkhann/study-assistant/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to build: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()

	store, cleanup, err := db.Open(ctx, cfg.History)
	if err != nil {
		sugar.Fatalw("failed to open history backend", "backend", cfg.History.Backend, "error", err)
	}
	defer cleanup()
	sugar.Infow("history backend ready", "backend", cfg.History.Backend)

	chatService := services.NewChatService(cfg.Gateway, sugar)

	router := setupRouter(store, chatService, sugar)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infow("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server crashed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("graceful shutdown failed", "error", err)
	}

	sugar.Info("server stopped cleanly")
}

func setupRouter(store db.ConversationStore, chat handlers.ReplyGenerator, sugar *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), handlers.CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	handlers.NewChatHandler(store, chat, sugar).RegisterRoutes(router)

	return router
}
