package stubserver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// ollamaGenerator streams explanation text from an Ollama-compatible
// /api/generate endpoint. lecternd uses it when a model is configured and
// falls back to the canned template otherwise.
type ollamaGenerator struct {
	host   string
	model  string
	client *http.Client
}

// WithOllama routes explanations through the given Ollama host and model.
func WithOllama(host, model string) Option {
	return func(s *Server) {
		s.generator = &ollamaGenerator{
			host:   strings.TrimRight(host, "/"),
			model:  model,
			client: &http.Client{Timeout: 2 * time.Minute},
		}
	}
}

func (g *ollamaGenerator) Name() string {
	return fmt.Sprintf("Ollama (%s)", g.model)
}

// Stream posts the prompt with streaming enabled and forwards each response
// delta to emit as it arrives.
func (g *ollamaGenerator) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	payload := map[string]any{
		"model":  g.model,
		"prompt": prompt,
		"stream": true,
	}
	buf, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.host+"/api/generate", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama API error: %s (%s)", resp.Status, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var delta struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
		}
		if err := sonic.Unmarshal(line, &delta); err != nil {
			return fmt.Errorf("ollama stream undecodable: %w", err)
		}
		if delta.Response != "" {
			if err := emit(delta.Response); err != nil {
				return err
			}
		}
		if delta.Done {
			return nil
		}
	}
	return scanner.Err()
}

// buildPrompt shapes the explain or chat request into one generate prompt.
func buildPrompt(body explainBody, docContext string) string {
	var b strings.Builder
	b.WriteString("You are explaining part of a scanned document to a reader.\n")
	b.WriteString("Document context: " + docContext + "\n")
	if len(body.Messages) == 0 {
		fmt.Fprintf(&b, "Explain this %s concisely for a careful reader:\n%s\n", orUnknown(body.Kind), body.Content)
		if body.ImageRef != "" {
			b.WriteString("It references the image at " + body.ImageRef + "\n")
		}
		return b.String()
	}
	if body.InitialExplanation != "" {
		b.WriteString("You previously explained: " + body.InitialExplanation + "\n")
	}
	b.WriteString("Conversation so far:\n")
	for _, msg := range body.Messages {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	b.WriteString("Answer the reader's last message.\n")
	return b.String()
}
