package explain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeStream scripts the explanation endpoint: canned chunks, an optional
// gate that holds the stream open, and capture of the last chat request.
type fakeStream struct {
	chunks []string
	err    error
	gate   chan struct{}

	mu       sync.Mutex
	lastChat ChatRequest
	explains int
}

func (f *fakeStream) Name() string { return "fake" }

func (f *fakeStream) run(handler StreamHandler) (string, error) {
	var acc strings.Builder
	for i, chunk := range f.chunks {
		if f.gate != nil && i > 0 {
			<-f.gate
		}
		if handler != nil {
			if err := handler(chunk); err != nil {
				return acc.String(), err
			}
		}
		acc.WriteString(chunk)
	}
	return acc.String(), f.err
}

func (f *fakeStream) Explain(ctx context.Context, req Request, handler StreamHandler) (string, error) {
	f.mu.Lock()
	f.explains++
	f.mu.Unlock()
	return f.run(handler)
}

func (f *fakeStream) Chat(ctx context.Context, req ChatRequest, handler StreamHandler) (string, error) {
	f.mu.Lock()
	f.lastChat = req
	f.mu.Unlock()
	return f.run(handler)
}

func (f *fakeStream) explainCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.explains
}

func waitDone(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if snap.Done {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for the terminal snapshot")
		}
	}
}

func newTestSession(client Client) *Session {
	s := NewSession(client, "doc-1", "popup-1")
	s.debounce = time.Millisecond
	return s
}

func TestExplainFiresOncePerPayload(t *testing.T) {
	fake := &fakeStream{chunks: []string{"an ", "answer"}}
	s := newTestSession(fake)

	ch, ok := s.Explain(context.Background(), "some text", "text", "")
	if !ok {
		t.Fatal("first explain should fire")
	}
	snap := waitDone(t, ch)
	if snap.Text != "an answer" {
		t.Fatalf("accumulated text mismatch: %q", snap.Text)
	}

	if _, ok := s.Explain(context.Background(), "some text", "text", ""); ok {
		t.Fatal("identical payload must not re-issue the request")
	}
	if fake.explainCalls() != 1 {
		t.Fatalf("endpoint hit %d times for one payload", fake.explainCalls())
	}

	if _, ok := s.Explain(context.Background(), "other text", "text", ""); !ok {
		t.Fatal("a distinct payload should fire")
	}
}

func TestExplainDistinguishesTupleFields(t *testing.T) {
	fake := &fakeStream{chunks: []string{"x"}}
	s := newTestSession(fake)

	if _, ok := s.Explain(context.Background(), "same", "text", ""); !ok {
		t.Fatal("first explain should fire")
	}
	if _, ok := s.Explain(context.Background(), "same", "equation", ""); !ok {
		t.Fatal("same content with a different kind is a different payload")
	}
	if _, ok := s.Explain(context.Background(), "same", "text", "http://cdn/fig.png"); !ok {
		t.Fatal("adding an image ref makes a different payload")
	}
}

func TestSubmitAppendsOptimisticallyAndStreams(t *testing.T) {
	fake := &fakeStream{chunks: []string{"because ", "of physics"}}
	s := newTestSession(fake)

	ch, err := s.Submit(context.Background(), "why though?")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].Role != RoleUser || msgs[0].Text != "why though?" {
		t.Fatalf("user turn should appear immediately: %+v", msgs)
	}
	if msgs[1].Role != RoleAssistant || !msgs[1].Streaming {
		t.Fatalf("assistant placeholder should be streaming: %+v", msgs[1])
	}

	waitDone(t, ch)
	msgs = s.Messages()
	if msgs[1].Streaming || msgs[1].Text != "because of physics" {
		t.Fatalf("assistant turn should settle with the full reply: %+v", msgs[1])
	}
}

func TestSubmitSequenceStrictlyIncreasing(t *testing.T) {
	fake := &fakeStream{chunks: []string{"r"}}
	s := newTestSession(fake)

	for i := 0; i < 3; i++ {
		ch, err := s.Submit(context.Background(), "turn")
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		waitDone(t, ch)
	}
	msgs := s.Messages()
	if len(msgs) != 6 {
		t.Fatalf("expected 6 turns, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Seq <= msgs[i-1].Seq {
			t.Fatalf("sequence not strictly increasing at %d: %+v", i, msgs)
		}
	}
}

func TestSubmitGatedWhileStreaming(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakeStream{chunks: []string{"start", "end"}, gate: gate}
	s := newTestSession(fake)

	ch, err := s.Submit(context.Background(), "first")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Submit(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while streaming, got %v", err)
	}
	close(gate)
	waitDone(t, ch)

	if _, err := s.Submit(context.Background(), "third"); err != nil {
		t.Fatalf("gate should lift after the reply settles: %v", err)
	}
}

func TestChatResendsAnchorAndInitialExplanation(t *testing.T) {
	fake := &fakeStream{chunks: []string{"the explanation"}}
	s := newTestSession(fake)

	ch, ok := s.Explain(context.Background(), "anchor text", "equation", "http://cdn/e.png")
	if !ok {
		t.Fatal("explain should fire")
	}
	waitDone(t, ch)

	ch2, err := s.Submit(context.Background(), "tell me more")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitDone(t, ch2)

	fake.mu.Lock()
	got := fake.lastChat
	fake.mu.Unlock()
	if got.InitialExplanation != "the explanation" {
		t.Fatalf("initial explanation not resent: %+v", got)
	}
	if got.Kind != "equation" || got.ImageRef != "http://cdn/e.png" {
		t.Fatalf("anchor payload not resent: %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "tell me more" {
		t.Fatalf("history should carry the settled turns only: %+v", got.Messages)
	}
}

func TestFailedReplyRemovesPlaceholder(t *testing.T) {
	fake := &fakeStream{err: errors.New("model fell over")}
	s := newTestSession(fake)

	ch, err := s.Submit(context.Background(), "doomed")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap := waitDone(t, ch)
	if snap.Err == nil {
		t.Fatal("failure must surface on the terminal snapshot")
	}
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Role != RoleUser {
		t.Fatalf("empty assistant placeholder should be removed on failure: %+v", msgs)
	}
	if s.Busy() {
		t.Fatal("gate must lift after a failed reply")
	}
}

func TestCloseStopsRoutingSnapshots(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakeStream{chunks: []string{"first", "second"}, gate: gate}
	s := newTestSession(fake)

	ch, ok := s.Explain(context.Background(), "text", "text", "")
	if !ok {
		t.Fatal("explain should fire")
	}
	// Drain whatever arrives before close.
	time.Sleep(20 * time.Millisecond)
	for {
		select {
		case <-ch:
			continue
		default:
		}
		break
	}

	s.Close()
	close(gate)

	select {
	case snap := <-ch:
		t.Fatalf("no snapshot may arrive after close: %+v", snap)
	case <-time.After(100 * time.Millisecond):
	}
}
