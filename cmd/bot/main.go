// Command bot runs the question-answering pipeline behind a Telegram bot.
// It ingests the configured sources at startup; admins can trigger a
// re-ingestion with /reindex.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/issuepilot/issuepilot/internal/auth"
	"github.com/issuepilot/issuepilot/internal/chunk"
	"github.com/issuepilot/issuepilot/internal/core"
	"github.com/issuepilot/issuepilot/internal/embed"
	"github.com/issuepilot/issuepilot/internal/github"
	"github.com/issuepilot/issuepilot/internal/llm"
	"github.com/issuepilot/issuepilot/internal/localdocs"
	"github.com/issuepilot/issuepilot/internal/logger"
	"github.com/issuepilot/issuepilot/internal/pipeline"
	"github.com/issuepilot/issuepilot/internal/rag"
	"github.com/issuepilot/issuepilot/internal/telegram"
)

// Config represents the application configuration.
type Config struct {
	TelegramToken  string
	AdminUserIDs   string
	AllowedUserIDs string

	GitHubToken   string
	GitHubRepo    string // "owner/name"
	GitHubInclude string
	GitHubState   string
	LocalDocsDir  string

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	EmbeddingModel string
	EmbeddingDim   int

	OpenRouterAPIKey  string
	OpenRouterModel   string
	Temperature       float64
	MaxTokens         int
	RepetitionPenalty float64

	IndexBackend string // "milvus" or "memory"
	MilvusHost   string
	MilvusPort   string

	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// loadConfig loads configuration from environment variables.
func loadConfig() *Config {
	return &Config{
		TelegramToken:  os.Getenv("TG_BOT_TOKEN"),
		AdminUserIDs:   os.Getenv("ADMIN_USER_IDS"),
		AllowedUserIDs: os.Getenv("ALLOWED_USER_IDS"),

		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		GitHubRepo:    os.Getenv("GITHUB_REPO"),
		GitHubInclude: getEnvWithDefault("GITHUB_INCLUDE", "issues"),
		GitHubState:   getEnvWithDefault("GITHUB_STATE", "all"),
		LocalDocsDir:  os.Getenv("LOCAL_DOCS_DIR"),

		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		EmbeddingModel: getEnvWithDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:   getEnvInt("EMBEDDING_DIM", rag.DefaultEmbeddingDim),

		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getEnvWithDefault("OPENROUTER_MODEL", "meta-llama/llama-3-70b-instruct"),
		Temperature:       getEnvFloat("LLM_TEMPERATURE", 0),
		MaxTokens:         getEnvInt("LLM_MAX_TOKENS", 512),
		RepetitionPenalty: getEnvFloat("LLM_REPETITION_PENALTY", 1.1),

		IndexBackend: getEnvWithDefault("INDEX_BACKEND", "milvus"),
		MilvusHost:   getEnvWithDefault("MILVUS_HOST", "milvus"),
		MilvusPort:   getEnvWithDefault("MILVUS_PORT", "19530"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", chunk.DefaultMaxLength),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", chunk.DefaultOverlap),
		TopK:         getEnvInt("TOP_K", pipeline.DefaultTopK),
	}
}

// getEnvWithDefault gets an environment variable or returns a default value.
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// reindexer re-runs ingestion for every configured source.
type reindexer struct {
	p       *pipeline.Pipeline
	sources []core.DocumentSource
}

func (r *reindexer) Reindex(ctx context.Context) (int, error) {
	total := 0
	for _, source := range r.sources {
		n, err := r.p.IngestFrom(ctx, source)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger.Init(*debug)
	logger.Info("Starting bot...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Info("Warning: No .env file found or error loading it")
	}

	config := loadConfig()

	if logger.IsDebugEnabled() {
		logger.Debug("Configuration loaded: TelegramToken=%v, Repo=%s, OpenRouterModel=%s, IndexBackend=%s, MilvusHost=%s, MilvusPort=%s",
			config.TelegramToken != "", config.GitHubRepo, config.OpenRouterModel, config.IndexBackend, config.MilvusHost, config.MilvusPort)
	}

	// Validate required settings
	if config.TelegramToken == "" {
		logger.Error("TG_BOT_TOKEN environment variable is required")
		os.Exit(1)
	}
	if config.OpenAIAPIKey == "" {
		logger.Error("OPENAI_API_KEY environment variable is required")
		os.Exit(1)
	}
	if config.OpenRouterAPIKey == "" {
		logger.Error("OPENROUTER_API_KEY environment variable is required")
		os.Exit(1)
	}
	if config.GitHubRepo == "" && config.LocalDocsDir == "" {
		logger.Error("GITHUB_REPO or LOCAL_DOCS_DIR environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Initializing services...")

	policyService := auth.NewPolicyService(config.AdminUserIDs, config.AllowedUserIDs)

	embedder := embed.NewOpenAIEmbedder(embed.Config{
		APIKey:  config.OpenAIAPIKey,
		BaseURL: config.OpenAIBaseURL,
		Model:   config.EmbeddingModel,
		Dim:     config.EmbeddingDim,
	})

	var index core.VectorIndex
	switch config.IndexBackend {
	case "milvus":
		milvusAddr := config.MilvusHost + ":" + config.MilvusPort
		milvusIndex, err := rag.NewMilvusIndex(ctx, milvusAddr, config.EmbeddingDim)
		if err != nil {
			logger.Error("Failed to initialize Milvus index: %v", err)
			os.Exit(1)
		}
		index = milvusIndex
	case "memory":
		index = rag.NewMemoryIndex(config.EmbeddingDim)
	default:
		logger.Error("Unknown index backend %q", config.IndexBackend)
		os.Exit(1)
	}
	defer index.Close(context.Background())

	generator := llm.NewOpenRouterService(config.OpenRouterAPIKey, config.OpenRouterModel, llm.GenerationParams{
		Temperature:       config.Temperature,
		MaxTokens:         config.MaxTokens,
		RepetitionPenalty: config.RepetitionPenalty,
	})

	chunker := chunk.New(
		chunk.WithMaxLength(config.ChunkSize),
		chunk.WithOverlap(config.ChunkOverlap),
	)

	p := pipeline.New(chunker, embedder, index, generator, pipeline.WithTopK(config.TopK))

	var sources []core.DocumentSource
	if config.GitHubRepo != "" {
		owner, repo, ok := strings.Cut(config.GitHubRepo, "/")
		if !ok {
			logger.Error("GITHUB_REPO must be in owner/name form, got %q", config.GitHubRepo)
			os.Exit(1)
		}
		sources = append(sources, github.NewSource(ctx, github.Config{
			Owner:   owner,
			Repo:    repo,
			Token:   config.GitHubToken,
			Include: github.Include(config.GitHubInclude),
			State:   config.GitHubState,
		}))
	}
	if config.LocalDocsDir != "" {
		sources = append(sources, localdocs.NewSource(config.LocalDocsDir))
	}

	r := &reindexer{p: p, sources: sources}

	logger.Info("Ingesting documents...")
	n, err := r.Reindex(ctx)
	if err != nil {
		logger.Error("Initial ingestion failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Indexed %d segments", n)

	bot, err := telegram.NewBot(config.TelegramToken, p, r, policyService)
	if err != nil {
		logger.Error("Failed to initialize Telegram bot: %v", err)
		os.Exit(1)
	}

	logger.Info("Bot is running")
	go bot.Start(ctx)

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("Shutting down bot...")
	cancel()

	logger.Info("Bot has been shut down")
}
