package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

var _ port.Generator = (*OpenAIGenerator)(nil)

// Base URLs of OpenAI-compatible chat providers.
const (
	OpenAIBaseURL   = "https://api.openai.com/v1"
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	OllamaBaseURL   = "http://localhost:11434/v1"
)

type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIGenerator produces completions through an OpenAI-compatible
// /chat/completions endpoint. Each prompt is sent as a single user message.
type OpenAIGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client

	mu    sync.Mutex
	stats Stats
}

// Stats tracks generator usage.
type Stats struct {
	Calls       int
	InputChars  int
	OutputChars int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Temperature is always sent; 0 is a meaningful value here.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAIBaseURL
	}
	if cfg.APIKey == "" && cfg.BaseURL != OllamaBaseURL {
		return nil, fmt.Errorf("LLM API key: %w", domain.ErrCredentialMissing)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &OpenAIGenerator{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// NewProviderGenerator resolves a provider name to its base URL. A configured
// BaseURL overrides the provider default. Local providers need no API key
// wherever they run.
func NewProviderGenerator(provider string, cfg Config) (*OpenAIGenerator, error) {
	var baseURL string
	switch provider {
	case "openai", "":
		baseURL = OpenAIBaseURL
	case "deepseek":
		baseURL = DeepSeekBaseURL
	case "ollama", "local":
		baseURL = OllamaBaseURL
		if cfg.APIKey == "" {
			cfg.APIKey = "ollama"
		}
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: %w", provider, domain.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	return NewOpenAIGenerator(cfg)
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API returned status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	output := chatResp.Choices[0].Message.Content

	g.mu.Lock()
	g.stats.Calls++
	g.stats.InputChars += len(prompt)
	g.stats.OutputChars += len(output)
	g.mu.Unlock()

	return output, nil
}

func (g *OpenAIGenerator) ModelName() string {
	return g.model
}

func (g *OpenAIGenerator) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}
