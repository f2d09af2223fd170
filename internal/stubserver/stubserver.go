// Package stubserver is a local stand-in for the document store and the
// explanation endpoint, serving fixture records and synthesized streamed
// explanations so the viewer can run without any backend.
package stubserver

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"github.com/csheth/lectern/internal/explain"
)

// noContextSentinel stands in for document context when the lookup fails;
// the explanation proceeds without it rather than failing.
const noContextSentinel = "(no document context available)"

// Server holds fixtures and streaming pace for the dev endpoints.
type Server struct {
	fixtures  string
	delay     time.Duration
	generator *ollamaGenerator
}

// Option configures the server.
type Option func(*Server)

// WithDelay sets the pause between streamed chunks; zero streams at once.
func WithDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

func New(fixturesDir string, opts ...Option) *Server {
	s := &Server{fixtures: fixturesDir, delay: 10 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router mounts the two dev endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/documents/{documentID}", s.handleDocument)
	r.Post("/explain", s.handleExplain)
	return r
}

// handleDocument serves <fixtures>/<id>.json verbatim. A missing fixture is
// an empty record set, the same "still processing" shape the real store
// returns before extraction lands.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		http.Error(w, "bad document id", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	data, err := os.ReadFile(filepath.Join(s.fixtures, id+".json"))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[stub] fixture %s: %v", id, err)
		}
		w.Write([]byte("[]"))
		return
	}
	w.Write(data)
}

// explainBody accepts both request shapes: the first explain call and the
// chat follow-up.
type explainBody struct {
	Content            string            `json:"content"`
	DocumentID         string            `json:"documentId"`
	Kind               string            `json:"kind"`
	ImageRef           string            `json:"imageRef"`
	Messages           []explain.Message `json:"messages"`
	InitialExplanation string            `json:"initialExplanation"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var body explainBody
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if body.Content == "" && body.ImageRef == "" && len(body.Messages) == 0 {
		http.Error(w, "nothing to explain", http.StatusBadRequest)
		return
	}

	docContext := s.contextFor(body.DocumentID)

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.generator != nil {
		var wrote bool
		err := s.generator.Stream(r.Context(), buildPrompt(body, docContext), func(delta string) error {
			if _, werr := w.Write([]byte(delta)); werr != nil {
				return werr
			}
			wrote = true
			if flusher != nil {
				flusher.Flush()
			}
			return nil
		})
		if err == nil || wrote {
			return
		}
		// Fall through to the canned template; an offline model should not
		// break the dev loop.
		log.Printf("[stub] %s unavailable: %v", s.generator.Name(), err)
	}

	text := synthesize(body, docContext)
	if flusher == nil {
		w.Write([]byte(text))
		return
	}
	for _, word := range strings.SplitAfter(text, " ") {
		if _, err := w.Write([]byte(word)); err != nil {
			return
		}
		flusher.Flush()
		if s.delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.delay):
			}
		}
	}
}

// contextFor loads a short document context from the fixture. Any failure
// degrades to the sentinel; an unavailable context service never blocks an
// explanation.
func (s *Server) contextFor(documentID string) string {
	if documentID == "" {
		return noContextSentinel
	}
	data, err := os.ReadFile(filepath.Join(s.fixtures, documentID+".json"))
	if err != nil {
		log.Printf("[stub] context for %s unavailable: %v", documentID, err)
		return noContextSentinel
	}
	var records []struct {
		Type string `json:"type"`
	}
	if err := sonic.Unmarshal(data, &records); err != nil {
		log.Printf("[stub] context for %s undecodable: %v", documentID, err)
		return noContextSentinel
	}
	return fmt.Sprintf("document %s with %d records", documentID, len(records))
}

func synthesize(body explainBody, docContext string) string {
	if len(body.Messages) > 0 {
		last := body.Messages[len(body.Messages)-1]
		return fmt.Sprintf(
			"Regarding %q: building on the earlier explanation (%s), within %s, the short answer is that the same reasoning applies.",
			last.Content, clip(body.InitialExplanation, 60), docContext)
	}
	subject := body.Content
	if subject == "" {
		subject = "the referenced figure " + body.ImageRef
	}
	return fmt.Sprintf(
		"This %s passage says: %s. In %s, it plays the role the surrounding section builds on.",
		orUnknown(body.Kind), clip(subject, 120), docContext)
}

func orUnknown(kind string) string {
	if kind == "" {
		return "unclassified"
	}
	return kind
}

func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(empty)"
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
