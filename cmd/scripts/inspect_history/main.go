package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/samirkhann/study-assistant/internal/db"
	"github.com/samirkhann/study-assistant/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}

	conversationID := "default"
	if len(os.Args) > 1 {
		conversationID = os.Args[1]
	}

	ctx := context.Background()
	store, cleanup, err := db.Open(ctx, cfg.History)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	messages, err := store.History(ctx, conversationID)
	if err != nil {
		panic(err)
	}

	fmt.Printf("conversation %q (%s backend, %d messages):\n", conversationID, cfg.History.Backend, len(messages))
	for i, msg := range messages {
		fmt.Printf("%3d. [%s] %s\n", i+1, msg.Role, msg.Content)
	}
}
