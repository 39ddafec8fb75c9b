package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenRouterRequiresKey(t *testing.T) {
	if _, err := NewOpenRouter(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestOpenRouterGenerate(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"model": "openai/gpt-4o-mini",
			"choices": []map[string]any{
				{
					"message":       map[string]string{"content": "hello there!"},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer server.Close()

	provider, err := NewOpenRouter(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	if err != nil {
		t.Fatalf("NewOpenRouter: %v", err)
	}
	defer provider.Close()

	resp, err := provider.Generate(context.Background(), GenerateRequest{
		Model: "openai/gpt-4o-mini",
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a friendly bear."},
			{Role: RoleUser, Content: "hi"},
		},
		MaxTokens: 300,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if resp.Text != "hello there!" {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.Model != "openai/gpt-4o-mini" {
		t.Errorf("unexpected model %q", resp.Model)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("unexpected finish reason %q", resp.FinishReason)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotBody.Model != "openai/gpt-4o-mini" || len(gotBody.Messages) != 2 {
		t.Errorf("unexpected request payload %+v", gotBody)
	}
	if gotBody.MaxTokens != 300 {
		t.Errorf("max_tokens not forwarded, got %d", gotBody.MaxTokens)
	}
}

func TestOpenRouterGenerateDefaultsTemperature(t *testing.T) {
	var gotTemp float64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		json.NewDecoder(r.Body).Decode(&body)
		gotTemp = body.Temperature
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer server.Close()

	provider, err := NewOpenRouter(
		WithAPIKey("k"),
		WithBaseURL(server.URL),
		WithTemperature(0.4),
	)
	if err != nil {
		t.Fatalf("NewOpenRouter: %v", err)
	}

	if _, err := provider.Generate(context.Background(), GenerateRequest{Model: "m"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotTemp != 0.4 {
		t.Errorf("expected configured temperature 0.4, got %v", gotTemp)
	}
}

func TestOpenRouterGenerateErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantRetryable bool
		wantMessage   string
	}{
		{
			name:          "model not found",
			status:        http.StatusNotFound,
			body:          `{"error": {"message": "model not found"}}`,
			wantRetryable: true,
			wantMessage:   "model not found",
		},
		{
			name:          "providers unavailable",
			status:        http.StatusOK,
			body:          `{"error": {"message": "No allowed providers are available for the selected model"}}`,
			wantRetryable: true,
			wantMessage:   "No allowed providers are available for the selected model",
		},
		{
			name:          "bad key",
			status:        http.StatusUnauthorized,
			body:          `{"error": {"message": "invalid key"}}`,
			wantRetryable: false,
			wantMessage:   "invalid key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider, err := NewOpenRouter(WithAPIKey("k"), WithBaseURL(server.URL))
			if err != nil {
				t.Fatalf("NewOpenRouter: %v", err)
			}

			_, err = provider.Generate(context.Background(), GenerateRequest{Model: "m"})
			if err == nil {
				t.Fatal("expected error")
			}

			var genErr *GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected GenerationError, got %T: %v", err, err)
			}
			if genErr.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", genErr.Retryable, tt.wantRetryable)
			}
			if genErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", genErr.Message, tt.wantMessage)
			}
		})
	}
}

func TestOpenRouterHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/models" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"data": []}`))
		}))
		defer server.Close()

		provider, _ := NewOpenRouter(WithAPIKey("k"), WithBaseURL(server.URL))
		if err := provider.Health(context.Background()); err != nil {
			t.Errorf("expected healthy, got %v", err)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		provider, _ := NewOpenRouter(WithAPIKey("k"), WithBaseURL(server.URL))
		if err := provider.Health(context.Background()); err == nil {
			t.Error("expected error for unauthorized key")
		}
	})
}
