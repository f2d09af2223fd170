package stubserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/csheth/lectern/internal/explain"
)

func fakeOllama(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			w.Write([]byte(line + "\n"))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExplainStreamsFromOllama(t *testing.T) {
	ollama := fakeOllama(t,
		`{"response":"A residual ","done":false}`,
		`{"response":"connection adds x.","done":true}`,
	)

	dir := t.TempDir()
	server := httptest.NewServer(New(dir, WithDelay(0), WithOllama(ollama.URL, "test-model")).Router())
	t.Cleanup(server.Close)

	client, err := explain.NewFromEnv(explain.Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	var got strings.Builder
	_, err = client.Explain(context.Background(), explain.Request{
		Content:    "y = F(x) + x",
		DocumentID: "doc-1",
		Kind:       "equation",
	}, func(delta string) error {
		got.WriteString(delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if got.String() != "A residual connection adds x." {
		t.Fatalf("model deltas not forwarded, got %q", got.String())
	}
}

func TestExplainFallsBackWhenModelUnreachable(t *testing.T) {
	dir := t.TempDir()
	server := httptest.NewServer(New(dir, WithDelay(0), WithOllama("http://127.0.0.1:1", "test-model")).Router())
	t.Cleanup(server.Close)

	client, err := explain.NewFromEnv(explain.Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	var got strings.Builder
	_, err = client.Explain(context.Background(), explain.Request{
		Content:    "some passage",
		DocumentID: "doc-1",
		Kind:       "text",
	}, func(delta string) error {
		got.WriteString(delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if !strings.Contains(got.String(), "some passage") {
		t.Fatalf("canned fallback missing, got %q", got.String())
	}
}

func TestBuildPromptShapes(t *testing.T) {
	t.Parallel()
	first := buildPrompt(explainBody{Content: "E = mc^2", Kind: "equation"}, "document doc-1 with 2 records")
	if !strings.Contains(first, "E = mc^2") || !strings.Contains(first, "equation") {
		t.Fatalf("explain prompt missing payload: %q", first)
	}

	chat := buildPrompt(explainBody{
		Messages:           []explain.Message{{Role: "user", Content: "why squared?"}},
		InitialExplanation: "mass-energy equivalence",
	}, noContextSentinel)
	if !strings.Contains(chat, "why squared?") || !strings.Contains(chat, "mass-energy equivalence") {
		t.Fatalf("chat prompt missing history: %q", chat)
	}
}
