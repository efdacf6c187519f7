package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-edu-go/internal/config"
)

type recordingWriter struct {
	tokens []string
}

func (w *recordingWriter) WriteToken(token string) error {
	w.tokens = append(w.tokens, token)
	return nil
}

func TestChatSendsTemperatureAndJSONFormat(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"reply\":\"こんにちは\"}"}}]}`))
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{APIKey: "test-key", BaseURL: server.URL + "/", Model: "gpt-4o"})
	temp := 0.7
	got, err := client.Chat(context.Background(), ChatRequest{
		Model:       "gpt-4o-mini",
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: &temp,
		JSONObject:  true,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got != `{"reply":"こんにちは"}` {
		t.Errorf("unexpected content %q", got)
	}
	if payload["model"] != "gpt-4o-mini" {
		t.Errorf("unexpected model %v", payload["model"])
	}
	if payload["temperature"] != 0.7 {
		t.Errorf("unexpected temperature %v", payload["temperature"])
	}
	format, _ := payload["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("unexpected response_format %v", payload["response_format"])
	}
	if _, ok := payload["stream"]; ok {
		t.Errorf("stream should be omitted on non-streaming calls")
	}
}

func TestChatReturnsErrorOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL})
	if _, err := client.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestChatReturnsErrorOnEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL})
	if _, err := client.Chat(context.Background(), ChatRequest{}); err != ErrEmptyChoices {
		t.Fatalf("expected ErrEmptyChoices, got %v", err)
	}
}

func TestStreamSkipsEmptyDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["stream"] != true {
			t.Errorf("expected stream=true, got %v", payload["stream"])
		}
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"role":"assistant"}}]}`,
			`{"choices":[{"delta":{"content":"こん"}}]}`,
			`{"choices":[{"delta":{"content":""}}]}`,
			`{"choices":[{"delta":{"content":"にちは"}}]}`,
			`{"choices":[]}`,
			`{"choices":[{"delta":{"content":"!"}}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprintf(w, "data: %s\n\n", `{"choices":[{"delta":{"content":"after done"}}]}`)
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL, Model: "gpt-4o"})
	writer := &recordingWriter{}
	if err := client.StreamChatMessages(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, writer); err != nil {
		t.Fatalf("StreamChatMessages failed: %v", err)
	}
	want := []string{"こん", "にちは", "!"}
	if len(writer.tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), writer.tokens)
	}
	for i := range want {
		if writer.tokens[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], writer.tokens[i])
		}
	}
}

func TestStreamHandlesMissingTrailingNewline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"last"}}]}`)
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL})
	writer := &recordingWriter{}
	if err := client.StreamChatMessages(context.Background(), "m", nil, writer); err != nil {
		t.Fatalf("StreamChatMessages failed: %v", err)
	}
	if len(writer.tokens) != 1 || writer.tokens[0] != "last" {
		t.Fatalf("unexpected tokens %v", writer.tokens)
	}
}
