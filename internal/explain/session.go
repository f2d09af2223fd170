package explain

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBusy rejects a chat submission while a prior reply is still streaming.
var ErrBusy = errors.New("a reply is still streaming")

// errSessionClosed stops the chunk pump after the popup closed. The network
// stream may drain in the background; nothing reaches the renderer.
var errSessionClosed = errors.New("session closed")

// Role values for chat turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn in a popup's conversation. Seq increases
// strictly with submission order.
type ChatMessage struct {
	Seq       int
	Role      string
	Text      string
	Streaming bool
}

// Session owns the streaming state for one popup instance: the initial
// explanation, the chat log, and request dedup. A new popup gets a new
// session; nothing is shared across popups.
type Session struct {
	client   Client
	docID    string
	instance string
	debounce time.Duration

	mu       sync.Mutex
	fired    map[string]bool
	closed   bool
	inFlight bool
	seq      int
	messages []ChatMessage
	payload  Request
	initial  string
}

func NewSession(client Client, documentID, instance string) *Session {
	return &Session{
		client:   client,
		docID:    documentID,
		instance: instance,
		debounce: DefaultDebounce,
		fired:    map[string]bool{},
	}
}

// Instance identifies the popup open this session belongs to.
func (s *Session) Instance() string { return s.instance }

// Explain fires the initial explanation stream. At most one request goes
// out per distinct payload tuple within this session: a repeat call with
// the same content, kind, and image returns ok=false and no channel.
func (s *Session) Explain(ctx context.Context, content, kind, imageRef string) (<-chan Snapshot, bool) {
	req := Request{Content: content, DocumentID: s.docID, Kind: kind, ImageRef: imageRef}
	key := fingerprint(req.Content, req.DocumentID, req.Kind, req.ImageRef)

	s.mu.Lock()
	if s.closed || s.fired[key] {
		s.mu.Unlock()
		return nil, false
	}
	s.fired[key] = true
	s.inFlight = true
	s.payload = req
	s.mu.Unlock()

	co := NewCoalescer(s.debounce)
	go func() {
		final, err := s.client.Explain(ctx, req, s.pump(co))
		if errors.Is(err, errSessionClosed) {
			co.Stop()
			return
		}
		s.mu.Lock()
		s.inFlight = false
		if err == nil {
			s.initial = final
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			co.Stop()
			return
		}
		co.Finish(final, err)
	}()
	return co.Snapshots(), true
}

// Submit appends the user's turn immediately and streams the assistant's
// reply. Returns ErrBusy while a previous stream is still running.
func (s *Session) Submit(ctx context.Context, text string) (<-chan Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errSessionClosed
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.inFlight = true
	s.seq++
	s.messages = append(s.messages, ChatMessage{Seq: s.seq, Role: RoleUser, Text: text})
	s.seq++
	s.messages = append(s.messages, ChatMessage{Seq: s.seq, Role: RoleAssistant, Streaming: true})

	req := ChatRequest{
		DocumentID:         s.docID,
		Kind:               s.payload.Kind,
		ImageRef:           s.payload.ImageRef,
		InitialExplanation: s.initial,
	}
	for _, m := range s.messages {
		if m.Streaming {
			continue
		}
		req.Messages = append(req.Messages, Message{Role: m.Role, Content: m.Text})
	}
	s.mu.Unlock()

	co := NewCoalescer(s.debounce)
	go func() {
		final, err := s.client.Chat(ctx, req, s.pump(co))
		if errors.Is(err, errSessionClosed) {
			co.Stop()
			return
		}
		s.settleReply(final, err)
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			co.Stop()
			return
		}
		co.Finish(final, err)
	}()
	return co.Snapshots(), nil
}

// pump routes stream chunks into the coalescer until the session closes.
func (s *Session) pump(co *Coalescer) StreamHandler {
	return func(delta string) error {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return errSessionClosed
		}
		co.Add(delta)
		return nil
	}
}

// settleReply finalizes the streaming assistant turn with the full text,
// or removes the empty turn on failure.
func (s *Session) settleReply(final string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	last := len(s.messages) - 1
	if last < 0 || !s.messages[last].Streaming {
		return
	}
	if err != nil && final == "" {
		s.messages = s.messages[:last]
		return
	}
	s.messages[last].Text = final
	s.messages[last].Streaming = false
}

// Messages returns a copy of the chat log in submission order.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Initial returns the completed initial explanation, or "" while it is
// still streaming.
func (s *Session) Initial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initial
}

// Busy reports whether a stream is in flight; submissions are gated on it.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Close logically cancels the session: in-flight streams stop routing
// chunks and later calls are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s|", len(p), p)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
