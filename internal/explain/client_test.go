package explain

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestExplainStreamsChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Content != "x = 1" || req.Kind != "equation" || req.DocumentID != "doc-1" {
			t.Errorf("unexpected request payload: %+v", req)
		}
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"This ", "equation ", "sets x."} {
			w.Write([]byte(chunk))
			flusher.Flush()
		}
	}))
	defer server.Close()

	client, err := NewFromEnv(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}

	var deltas []string
	final, err := client.Explain(context.Background(), Request{
		Content:    "x = 1",
		DocumentID: "doc-1",
		Kind:       "equation",
	}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if final != "This equation sets x." {
		t.Fatalf("accumulated text mismatch: %q", final)
	}
	if len(deltas) == 0 {
		t.Fatal("handler should have received at least one delta")
	}
	if strings.Join(deltas, "") != final {
		t.Fatalf("deltas should concatenate to the final text: %q", strings.Join(deltas, ""))
	}
}

func TestExplainNon2xxIsStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewFromEnv(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	_, err = client.Explain(context.Background(), Request{Content: "x"}, nil)
	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected a StreamError, got %v", err)
	}
	if streamErr.Status != http.StatusBadGateway {
		t.Fatalf("status lost: %d", streamErr.Status)
	}
	if !strings.Contains(streamErr.Body, "model overloaded") {
		t.Fatalf("body lost: %q", streamErr.Body)
	}
}

func TestExplainEmptyStreamIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client, err := NewFromEnv(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	final, err := client.Explain(context.Background(), Request{Content: "x"}, nil)
	if err != nil {
		t.Fatalf("an empty 200 stream is a valid empty result: %v", err)
	}
	if final != "" {
		t.Fatalf("expected empty text, got %q", final)
	}
}

func TestExplainRejectsEmptyPayload(t *testing.T) {
	client, err := NewFromEnv(Config{Endpoint: "http://localhost:0"})
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if _, err := client.Explain(context.Background(), Request{Content: "  "}, nil); err == nil {
		t.Fatal("expected an error for empty content with no image")
	}
}

func TestChatSendsHistoryAndAnchor(t *testing.T) {
	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte("follow-up answer"))
	}))
	defer server.Close()

	client, err := NewFromEnv(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	final, err := client.Chat(context.Background(), ChatRequest{
		Messages:           []Message{{Role: RoleUser, Content: "why?"}},
		DocumentID:         "doc-1",
		Kind:               "text",
		InitialExplanation: "the first take",
	}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if final != "follow-up answer" {
		t.Fatalf("unexpected reply: %q", final)
	}
	if got.InitialExplanation != "the first take" || len(got.Messages) != 1 {
		t.Fatalf("anchor context not resent: %+v", got)
	}
}

func TestHandlerErrorStopsTheStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 100; i++ {
			w.Write([]byte("chunk "))
			flusher.Flush()
		}
	}))
	defer server.Close()

	client, err := NewFromEnv(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	stop := errors.New("stop")
	calls := 0
	_, err = client.Explain(context.Background(), Request{Content: "x"}, func(string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("handler error should surface: %v", err)
	}
	if calls != 1 {
		t.Fatalf("stream should stop after the handler errors, got %d calls", calls)
	}
}
