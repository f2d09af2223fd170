package document

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.json")
	data := `[{"id":"r1","page":1,"type":"text","content":"\"hello\""}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(records) != 1 || records[0].ID != "r1" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if got := PlainTextOf(records[0]); got != "hello" {
		t.Fatalf("PlainTextOf = %q, want hello", got)
	}
}

func TestLoadFileRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("garbage file should fail to load")
	}
}

func TestPlainTextOfFormattedFlattensMarkup(t *testing.T) {
	t.Parallel()
	blob := `<div><h2>Results</h2><p>First &amp; second paragraph.</p><p>Line one<br>line two</p></div>`
	raw, _ := json.Marshal(map[string]string{"content": blob})
	rec := Record{ID: "f1", Page: 1, Type: TypeFormatted, Content: raw}

	got := PlainTextOf(rec)
	if strings.ContainsAny(got, "<>") {
		t.Fatalf("markup survived flattening: %q", got)
	}
	if !strings.Contains(got, "First & second paragraph.") {
		t.Fatalf("entities should unescape, got %q", got)
	}
	if !strings.Contains(got, "Results\n\n") {
		t.Fatalf("block boundaries should become paragraph breaks, got %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("breaks should collapse, got %q", got)
	}
}

func TestPlainTextOfIgnoresOtherTypes(t *testing.T) {
	t.Parallel()
	rec := Record{ID: "c1", Page: 1, Type: TypeComponents, Content: json.RawMessage(`{"components":[]}`)}
	if got := PlainTextOf(rec); got != "" {
		t.Fatalf("components record has no plain text, got %q", got)
	}
}
