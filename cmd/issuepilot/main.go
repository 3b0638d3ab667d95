// Command issuepilot ingests a GitHub repository's issues (and optionally a
// local docs directory) into a vector index, then answers one question from
// the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/issuepilot/issuepilot/internal/chunk"
	"github.com/issuepilot/issuepilot/internal/core"
	"github.com/issuepilot/issuepilot/internal/embed"
	"github.com/issuepilot/issuepilot/internal/github"
	"github.com/issuepilot/issuepilot/internal/llm"
	"github.com/issuepilot/issuepilot/internal/localdocs"
	"github.com/issuepilot/issuepilot/internal/logger"
	"github.com/issuepilot/issuepilot/internal/pipeline"
	"github.com/issuepilot/issuepilot/internal/rag"
)

// Config represents the application configuration.
type Config struct {
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

		IndexBackend: getEnvWithDefault("INDEX_BACKEND", "memory"),
		MilvusHost:   getEnvWithDefault("MILVUS_HOST", "localhost"),
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

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger.Init(*debug)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: issuepilot [-debug] <question>")
		os.Exit(2)
	}
	question := strings.Join(flag.Args(), " ")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Info("Warning: No .env file found or error loading it")
	}

	config := loadConfig()

	if config.GitHubRepo == "" && config.LocalDocsDir == "" {
		logger.Error("GITHUB_REPO or LOCAL_DOCS_DIR environment variable is required")
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

	ctx := context.Background()

	p, index, err := buildPipeline(ctx, config)
	if err != nil {
		logger.Error("Failed to initialize services: %v", err)
		os.Exit(1)
	}
	defer index.Close(ctx)

	n, err := ingest(ctx, p, config)
	if err != nil {
		logger.Error("Ingestion failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Indexed %d segments", n)

	answer, err := p.Answer(ctx, question)
	if err != nil {
		logger.Error("Failed to answer question: %v", err)
		os.Exit(1)
	}

	fmt.Println(answer)
}

// buildPipeline wires the chunker, embedder, index and generator together.
func buildPipeline(ctx context.Context, config *Config) (*pipeline.Pipeline, core.VectorIndex, error) {
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
			return nil, nil, fmt.Errorf("connect to Milvus at %s: %w", milvusAddr, err)
		}
		index = milvusIndex
	case "memory":
		index = rag.NewMemoryIndex(config.EmbeddingDim)
	default:
		return nil, nil, fmt.Errorf("unknown index backend %q", config.IndexBackend)
	}

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
	return p, index, nil
}

// ingest pulls documents from every configured source into the index.
func ingest(ctx context.Context, p *pipeline.Pipeline, config *Config) (int, error) {
	total := 0

	if config.GitHubRepo != "" {
		owner, repo, ok := strings.Cut(config.GitHubRepo, "/")
		if !ok {
			return 0, fmt.Errorf("GITHUB_REPO must be in owner/name form, got %q", config.GitHubRepo)
		}

		source := github.NewSource(ctx, github.Config{
			Owner:   owner,
			Repo:    repo,
			Token:   config.GitHubToken,
			Include: github.Include(config.GitHubInclude),
			State:   config.GitHubState,
		})

		n, err := p.IngestFrom(ctx, source)
		if err != nil {
			return 0, fmt.Errorf("ingest %s: %w", config.GitHubRepo, err)
		}
		total += n
	}

	if config.LocalDocsDir != "" {
		n, err := p.IngestFrom(ctx, localdocs.NewSource(config.LocalDocsDir))
		if err != nil {
			return 0, fmt.Errorf("ingest %s: %w", config.LocalDocsDir, err)
		}
		total += n
	}

	return total, nil
}
