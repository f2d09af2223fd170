package document

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientFetchDecodesRecords(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"r1","page":1,"type":"components","content":{"components":[]},"page_width":612,"page_height":792},
			{"id":"r2","page":2,"type":"image","content":{"cdn_url":"http://cdn/a.png"},"group_id":"g1"}
		]`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	records, err := client.Fetch(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "/documents/doc-1" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].PageWidth != 612 || records[0].PageHeight != 792 {
		t.Fatalf("page geometry lost: %+v", records[0])
	}
	if records[1].GroupID != "g1" {
		t.Fatalf("group id lost: %+v", records[1])
	}
}

func TestClientFetchEmptyArrayIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	records, err := client.Fetch(context.Background(), "doc-processing")
	if err != nil {
		t.Fatalf("empty record set should not error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestClientFetchSurfacesStoreErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "document not found", http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Fetch(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error for a 404 response")
	} else if !strings.Contains(err.Error(), "document not found") {
		t.Fatalf("error should carry the response body: %v", err)
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	t.Setenv("LECTERN_DOCUMENT_ENDPOINT", "")
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected an error when no endpoint is configured")
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv("LECTERN_DOCUMENT_ENDPOINT", "http://store.local/")
	client, err := NewClient(ClientConfig{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.base != "http://store.local" {
		t.Fatalf("trailing slash should be trimmed: %q", client.base)
	}
}
