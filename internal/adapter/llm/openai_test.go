package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func newChatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	var raw map[string]any

	srv := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello there"}}]}`))
	})

	gen, err := NewOpenAIGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-test"})
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), "Say hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)

	assert.Equal(t, "gpt-test", raw["model"])
	assert.Contains(t, raw, "temperature", "zero temperature is still sent")
	assert.Equal(t, 0.0, raw["temperature"])
	msgs := raw["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Say hello", msgs[0].(map[string]any)["content"])

	stats := gen.Stats()
	assert.Equal(t, 1, stats.Calls)
	assert.Equal(t, len("Say hello"), stats.InputChars)
	assert.Equal(t, len("Hello there"), stats.OutputChars)
}

func TestGenerate_APIError(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	gen, err := NewOpenAIGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "x")
	assert.ErrorContains(t, err, "rate limited")
}

func TestGenerate_StatusWithoutBody(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	gen, err := NewOpenAIGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "x")
	assert.ErrorContains(t, err, "status 502")
}

func TestGenerate_NoChoices(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	gen, err := NewOpenAIGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "x")
	assert.ErrorContains(t, err, "no response")
}

func TestGenerate_ContextCancelled(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	gen, err := NewOpenAIGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = gen.Generate(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewOpenAIGenerator_RequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator(Config{})
	assert.ErrorIs(t, err, domain.ErrCredentialMissing)
}

func TestNewProviderGenerator(t *testing.T) {
	gen, err := NewProviderGenerator("local", Config{Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, OllamaBaseURL, gen.baseURL)
	assert.Equal(t, "llama3", gen.ModelName())

	gen, err = NewProviderGenerator("ollama", Config{BaseURL: "http://gpu-box:11434/v1"})
	require.NoError(t, err, "ollama on another host needs no key either")
	assert.Equal(t, "http://gpu-box:11434/v1", gen.baseURL)

	_, err = NewProviderGenerator("openai", Config{BaseURL: "http://proxy:8080/v1"})
	assert.ErrorIs(t, err, domain.ErrCredentialMissing)

	_, err = NewProviderGenerator("nope", Config{APIKey: "k"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
