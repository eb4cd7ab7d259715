package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, func()) {
	t.Helper()
	server := httptest.NewServer(handler)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"

	client := NewOpenAIClientWithConfig(config, "gpt-3.5-turbo", 5*time.Second, zap.NewNop())
	return client, server.Close
}

func completionResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  "gpt-3.5-turbo",
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: content,
				},
			},
		},
	}
}

func TestAskReturnsFirstChoice(t *testing.T) {
	client, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("  Go is a programming language.  "))
	})
	defer cleanup()

	reply, err := client.Ask(context.Background(), "What is Go?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply != "Go is a programming language." {
		t.Errorf("Ask() = %q, want trimmed reply", reply)
	}
}

func TestAskEmptyChoices(t *testing.T) {
	client, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
		})
	})
	defer cleanup()

	_, err := client.Ask(context.Background(), "anything")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Ask() error = %v, want ErrEmptyResponse", err)
	}
}

func TestAskEmptyContent(t *testing.T) {
	client, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("   "))
	})
	defer cleanup()

	_, err := client.Ask(context.Background(), "anything")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Ask() error = %v, want ErrEmptyResponse", err)
	}
}

func TestAskServerError(t *testing.T) {
	client, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	})
	defer cleanup()

	_, err := client.Ask(context.Background(), "anything")
	if err == nil {
		t.Fatal("Ask() error = nil, want server error")
	}
}
