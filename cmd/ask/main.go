package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/ai"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/env"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/knowledge"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/logger"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/session"
)

// Asks one question against the configured corpus without any telephony.
// Useful for checking what the agent would say before wiring up a number.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: ask \"your question here\"")
		os.Exit(1)
	}
	question := strings.Join(os.Args[1:], " ")

	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init("warn", cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	fmt.Println("Building knowledge index...")
	loader := knowledge.NewLoader(logger.Log)

	var corpus string
	if cfg.WebsiteURL != "" {
		corpus, err = loader.LoadWebsite(cfg.WebsiteURL)
	} else {
		corpus, err = loader.LoadPath(cfg.CorpusPath)
	}
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}

	chunks := knowledge.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap).Split(corpus)
	embedder := knowledge.NewOpenAIEmbedder(cfg.OpenAIApiKey, cfg.EmbeddingModel)
	index := knowledge.NewIndex(embedder, logger.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := index.Build(ctx, chunks); err != nil {
		log.Fatalf("Failed to build index: %v", err)
	}
	fmt.Printf("Index ready: %d passages\n\n", index.Size())

	timeout := cfg.AITimeout()
	providers := []ai.Provider{}
	if cfg.GeminiApiKey != "" {
		providers = append(providers, ai.NewGeminiProvider(cfg.GeminiApiKey, cfg.GeminiModel, timeout, logger.Log))
	}
	providers = append(providers, ai.NewOpenAIProvider(cfg.OpenAIApiKey, cfg.OpenAIChatModel, cfg.OpenAIMaxTokens, timeout, logger.Log))
	manager := ai.NewManager(providers, logger.Log)

	sessions := session.NewStore(cfg.SessionTTL(), logger.Log)
	engine := ai.NewEngine(index, sessions, manager, cfg.RetrievalK, timeout, logger.Log)

	passages, err := index.Retrieve(ctx, question, cfg.RetrievalK)
	if err == nil {
		fmt.Println("Retrieved passages:")
		for i, p := range passages {
			preview := p.Content
			if len(preview) > 120 {
				preview = preview[:120] + "..."
			}
			fmt.Printf("  %d. (%.3f) %s\n", i+1, p.Score, preview)
		}
		fmt.Println()
	}

	reply := engine.Respond(ctx, "cli-session", question)
	fmt.Printf("Q: %s\n", question)
	fmt.Printf("A: %s\n", reply)
}
