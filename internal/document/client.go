package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const defaultFetchTimeout = 30 * time.Second

// Client fetches content records from the document store.
type Client struct {
	base   string
	client *http.Client
}

// ClientConfig describes how to reach the document store.
type ClientConfig struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient builds a store client, falling back to LECTERN_DOCUMENT_ENDPOINT
// when no endpoint is configured.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := cfg.Endpoint
	if base == "" {
		base = os.Getenv("LECTERN_DOCUMENT_ENDPOINT")
	}
	if base == "" {
		return nil, fmt.Errorf("no document endpoint configured")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Client{base: strings.TrimRight(base, "/"), client: httpClient}, nil
}

// Fetch returns all records for a document, ordered (page asc, id asc) by the
// store. An empty slice is a valid "still processing" response, not an error.
func (c *Client) Fetch(ctx context.Context, documentID string) ([]Record, error) {
	url := fmt.Sprintf("%s/documents/%s", c.base, documentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("document store error: %s (%s)", resp.Status, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := sonic.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode document records: %w", err)
	}
	return records, nil
}
