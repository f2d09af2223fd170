// Package explain streams explanations and chat replies for an activated
// content unit from the explanation endpoint.
package explain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const defaultStreamHTTPTimeout = 3 * time.Minute

// Request is the first-call body: explain this content.
type Request struct {
	Content    string `json:"content"`
	DocumentID string `json:"documentId"`
	Kind       string `json:"kind"`
	ImageRef   string `json:"imageRef,omitempty"`
}

// Message is one chat turn sent back as context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the follow-up body: the full turn history plus the
// original anchor payload and the initial explanation, resent every call.
type ChatRequest struct {
	Messages           []Message `json:"messages"`
	DocumentID         string    `json:"documentId"`
	Kind               string    `json:"kind"`
	ImageRef           string    `json:"imageRef,omitempty"`
	InitialExplanation string    `json:"initialExplanation"`
}

// StreamHandler receives each text chunk as it arrives.
type StreamHandler func(delta string) error

// Client streams explanations and chat answers.
type Client interface {
	Explain(ctx context.Context, req Request, handler StreamHandler) (string, error)
	Chat(ctx context.Context, req ChatRequest, handler StreamHandler) (string, error)
	Name() string
}

// StreamError is a non-2xx response from the endpoint. It is distinct from
// an empty stream: callers must render it as a failure, never as "no data".
type StreamError struct {
	Status int
	Body   string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("explain endpoint error: %d (%s)", e.Status, strings.TrimSpace(e.Body))
}

// Config describes how to reach the explanation endpoint.
type Config struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewFromEnv builds a client, falling back to LECTERN_EXPLAIN_ENDPOINT and
// then to the local dev server address.
func NewFromEnv(cfg Config) (Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if env := os.Getenv("LECTERN_EXPLAIN_ENDPOINT"); env != "" {
			endpoint = env
		} else {
			endpoint = "http://localhost:8787"
		}
	}
	return &httpClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   pickHTTPClient(cfg.HTTPClient),
	}, nil
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	// No per-request deadline beyond the outer timeout; the stream lives as
	// long as the model generates and the caller's context allows.
	return &http.Client{Timeout: defaultStreamHTTPTimeout}
}

type httpClient struct {
	endpoint string
	client   *http.Client
}

func (c *httpClient) Name() string {
	return fmt.Sprintf("explain (%s)", c.endpoint)
}

func (c *httpClient) Explain(ctx context.Context, req Request, handler StreamHandler) (string, error) {
	if strings.TrimSpace(req.Content) == "" && req.ImageRef == "" {
		return "", fmt.Errorf("nothing to explain: empty content and no image")
	}
	return c.stream(ctx, req, handler)
}

func (c *httpClient) Chat(ctx context.Context, req ChatRequest, handler StreamHandler) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("chat requires at least one message")
	}
	return c.stream(ctx, req, handler)
}

// stream posts the payload and pumps the chunked response body through the
// handler, returning the accumulated text.
func (c *httpClient) stream(ctx context.Context, payload any, handler StreamHandler) (string, error) {
	buf, err := sonic.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/explain", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var acc strings.Builder
	chunk := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			delta := string(chunk[:n])
			acc.WriteString(delta)
			if handler != nil {
				if herr := handler(delta); herr != nil {
					return acc.String(), herr
				}
			}
		}
		if err == io.EOF {
			return acc.String(), nil
		}
		if err != nil {
			return acc.String(), err
		}
	}
}
