package document

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func TestDownloadCacheReusesFreshFile(t *testing.T) {
	t.Setenv(cacheEnvVar, t.TempDir())

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Etag", `"v1"`)
		_, _ = w.Write([]byte("%PDF-1.4\nHello"))
	}))
	t.Cleanup(server.Close)

	cache, err := NewDownloadCache(server.Client())
	if err != nil {
		t.Fatalf("NewDownloadCache: %v", err)
	}
	ctx := context.Background()

	path, err := cache.Fetch(ctx, server.URL+"/papers/attention.pdf")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cached file missing: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected single download, got %d hits", hits)
	}

	path2, err := cache.Fetch(ctx, server.URL+"/papers/attention.pdf")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if path != path2 {
		t.Fatalf("paths differ: %s vs %s", path, path2)
	}
	if hits != 1 {
		t.Fatalf("fresh cache entry should not re-download, total hits %d", hits)
	}
}

func TestDownloadCacheRevalidatesStaleEntry(t *testing.T) {
	t.Setenv(cacheEnvVar, t.TempDir())

	var conditional bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v2"` {
			conditional = true
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Etag", `"v2"`)
		_, _ = w.Write([]byte("%PDF-1.4\nBody"))
	}))
	t.Cleanup(server.Close)

	cache, err := NewDownloadCache(server.Client())
	if err != nil {
		t.Fatalf("NewDownloadCache: %v", err)
	}
	ctx := context.Background()

	path, err := cache.Fetch(ctx, server.URL+"/papers/stale.pdf")
	if err != nil {
		t.Fatalf("initial fetch: %v", err)
	}

	old := time.Now().Add(-(cacheTTL + time.Hour))
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if _, err := cache.Fetch(ctx, server.URL+"/papers/stale.pdf"); err != nil {
		t.Fatalf("conditional fetch: %v", err)
	}
	if !conditional {
		t.Fatal("stale entry should revalidate with If-None-Match")
	}
}

func TestDownloadCacheResumesPartialDownload(t *testing.T) {
	t.Setenv(cacheEnvVar, t.TempDir())

	var rangeHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader = r.Header.Get("Range")
		w.Header().Set("Etag", `"resume"`)
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("world"))
	}))
	t.Cleanup(server.Close)

	cache, err := NewDownloadCache(server.Client())
	if err != nil {
		t.Fatalf("NewDownloadCache: %v", err)
	}
	ctx := context.Background()
	key := cacheKey(server.URL + "/papers/partial.pdf")
	pdfPath, metaPath, partPath := cache.pathsFor(key)

	if err := os.WriteFile(partPath, []byte("hello "), 0o644); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	if err := writeMeta(metaPath, downloadMeta{ETag: `"resume"`}); err != nil {
		t.Fatalf("write meta: %v", err)
	}

	path, err := cache.Fetch(ctx, server.URL+"/papers/partial.pdf")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if path != pdfPath {
		t.Fatalf("unexpected path: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached pdf: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("resume failed, got %q", string(data))
	}
	if rangeHeader != fmt.Sprintf("bytes=%d-", len("hello ")) {
		t.Fatalf("expected range header, got %q", rangeHeader)
	}
	if _, err := os.Stat(partPath); !os.IsNotExist(err) {
		t.Fatalf("partial file should be gone after rename, err=%v", err)
	}
}

func TestCacheKeyNamesAndHashes(t *testing.T) {
	t.Parallel()
	if key := cacheKey("https://example.com/papers/attention.pdf"); key != "attention" {
		t.Fatalf("readable key expected, got %q", key)
	}
	key := cacheKey("https://example.com/")
	if key == "" || strings.ContainsAny(key, "/:") {
		t.Fatalf("fallback key should be a clean hash, got %q", key)
	}
}
