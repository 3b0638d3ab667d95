// Package llm produces grounded answers through an OpenRouter-style
// chat-completion API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/issuepilot/issuepilot/internal/core"
	"github.com/issuepilot/issuepilot/internal/logger"
)

// DefaultBaseURL is the OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// GenerationParams are the numeric knobs exposed to callers.
type GenerationParams struct {
	// Temperature controls sampling randomness; 0 disables sampling and
	// makes repeated generations deterministic.
	Temperature float64

	// MaxTokens caps the completion length. Zero leaves the provider default.
	MaxTokens int

	// RepetitionPenalty discourages repeating tokens. Zero leaves the
	// provider default.
	RepetitionPenalty float64
}

// OpenRouterService implements core.Generator against the OpenRouter API.
type OpenRouterService struct {
	apiKey     string
	model      string
	baseURL    string
	params     GenerationParams
	httpClient *http.Client
}

// OpenRouterError represents an error response from the OpenRouter API.
type OpenRouterError struct {
	Error struct {
		Message  string `json:"message"`
		Code     int    `json:"code"`
		Metadata struct {
			Raw          string `json:"raw"`
			ProviderName string `json:"provider_name"`
		} `json:"metadata"`
	} `json:"error"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a request to the chat completion API.
type ChatRequest struct {
	Model             string    `json:"model"`
	Messages          []Message `json:"messages"`
	Temperature       float64   `json:"temperature"`
	MaxTokens         int       `json:"max_tokens,omitempty"`
	RepetitionPenalty float64   `json:"repetition_penalty,omitempty"`
}

// NewOpenRouterService creates a new instance of OpenRouterService.
func NewOpenRouterService(apiKey, model string, params GenerationParams) *OpenRouterService {
	return &OpenRouterService{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultBaseURL,
		params:  params,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // generous timeout for LLM responses
		},
	}
}

// SetBaseURL overrides the API root, for self-hosted gateways and tests.
func (s *OpenRouterService) SetBaseURL(url string) {
	s.baseURL = url
}

// Generate builds the answer prompt from the question and retrieved segments
// and runs one chat completion. No retry, no streaming.
func (s *OpenRouterService) Generate(ctx context.Context, question string, segments []core.Segment) (string, error) {
	messages := []Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: BuildUserPrompt(question, segments)},
	}

	reply, err := s.chatCompletion(ctx, messages)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// chatCompletion sends a chat completion request to OpenRouter and returns
// the first choice's message.
func (s *OpenRouterService) chatCompletion(ctx context.Context, messages []Message) (*Message, error) {
	url := s.baseURL + "/chat/completions"

	reqBody := ChatRequest{
		Model:             s.model,
		Messages:          messages,
		Temperature:       s.params.Temperature,
		MaxTokens:         s.params.MaxTokens,
		RepetitionPenalty: s.params.RepetitionPenalty,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	logger.Debug("Sending request to LLM '%s' with %d messages", s.model, len(messages))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// The API reports errors in the body regardless of status code.
	var apiErr OpenRouterError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		if apiErr.Error.Metadata.ProviderName != "" {
			return nil, fmt.Errorf("OpenRouter API error (%s): %s",
				apiErr.Error.Metadata.ProviderName, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("OpenRouter API error: %s (code: %d)",
			apiErr.Error.Message, apiErr.Error.Code)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenRouter API HTTP error (status %d): %s", resp.StatusCode, string(body))
	}

	var completion struct {
		Choices []struct {
			FinishReason string  `json:"finish_reason"`
			Message      Message `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage,omitempty"`
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("OpenRouter API returned no choices")
	}

	if completion.Usage.TotalTokens > 0 {
		logger.Info("LLM usage - prompt: %d, completion: %d, total: %d tokens. Finish reason: %s",
			completion.Usage.PromptTokens,
			completion.Usage.CompletionTokens,
			completion.Usage.TotalTokens,
			completion.Choices[0].FinishReason,
		)
	}

	return &completion.Choices[0].Message, nil
}
