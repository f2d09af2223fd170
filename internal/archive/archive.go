// Package archive persists popup transcripts: the explained content, the
// final explanation, and any follow-up conversation, appended to a JSON
// archive file per reader.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

const entryTypeTranscript = "transcript"

type entryHeader struct {
	EntryType string `json:"entryType"`
}

// Turn is one chat message inside a transcript.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Transcript captures one explained unit and its conversation. Identity is
// (DocumentID, UnitID); appending to an existing identity merges turns.
type Transcript struct {
	EntryType   string    `json:"entryType"`
	DocumentID  string    `json:"documentId"`
	UnitID      string    `json:"unitId"`
	Kind        string    `json:"kind"`
	Content     string    `json:"content"`
	Explanation string    `json:"explanation,omitempty"`
	CapturedAt  time.Time `json:"capturedAt"`
	Turns       []Turn    `json:"turns,omitempty"`
}

// Append merges a transcript into the archive file, creating the file if
// necessary. An existing transcript for the same unit gains the new turns
// and keeps its original capture time.
func Append(path string, t Transcript) error {
	if path == "" || t.DocumentID == "" || t.UnitID == "" {
		return nil
	}
	if t.Explanation == "" && len(t.Turns) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	entries, err := loadEntries(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		entries = nil
	}

	t.EntryType = entryTypeTranscript
	if t.CapturedAt.IsZero() {
		t.CapturedAt = time.Now()
	}

	merged := false
	for i, raw := range entries {
		if entryType(raw) != entryTypeTranscript {
			continue
		}
		var existing Transcript
		if err := json.Unmarshal(raw, &existing); err != nil {
			return err
		}
		if existing.DocumentID != t.DocumentID || existing.UnitID != t.UnitID {
			continue
		}
		if t.Explanation != "" {
			existing.Explanation = t.Explanation
		}
		existing.Turns = append(existing.Turns, t.Turns...)
		raw, err := json.Marshal(existing)
		if err != nil {
			return err
		}
		entries[i] = raw
		merged = true
		break
	}
	if !merged {
		raw, err := json.Marshal(t)
		if err != nil {
			return err
		}
		entries = append(entries, raw)
	}
	return writeEntries(path, entries)
}

// Load returns every transcript in the archive. Entries of other types are
// skipped, so the file can be shared with future entry kinds.
func Load(path string) ([]Transcript, error) {
	entries, err := loadEntries(path)
	if err != nil {
		return nil, err
	}
	transcripts := make([]Transcript, 0, len(entries))
	for _, raw := range entries {
		if entryType(raw) != entryTypeTranscript {
			continue
		}
		var t Transcript
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		transcripts = append(transcripts, t)
	}
	return transcripts, nil
}

// ForDocument filters transcripts down to one document.
func ForDocument(path, documentID string) ([]Transcript, error) {
	all, err := Load(path)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if t.DocumentID == documentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func writeEntries(path string, entries []json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func loadEntries(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func entryType(raw json.RawMessage) string {
	var header entryHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return ""
	}
	return header.EntryType
}
