package explain

import (
	"strings"
	"sync"
	"time"
)

// DefaultDebounce bounds how often streaming text is republished to the
// renderer. Deltas landing inside the window ride the next snapshot, so no
// snapshot is ever stale by more than one interval.
const DefaultDebounce = 35 * time.Millisecond

// Snapshot is the consumer-visible streaming state: everything accumulated
// so far, plus terminal flags. Err set means failure, which renders as an
// explicit error, never as an empty result.
type Snapshot struct {
	Text string
	Done bool
	Err  error
}

// Coalescer folds per-chunk deltas into debounced snapshots on a channel.
// Only the latest snapshot matters; a slow consumer sees stale ones
// replaced, not queued.
type Coalescer struct {
	interval time.Duration
	out      chan Snapshot

	mu      sync.Mutex
	acc     strings.Builder
	armed   bool
	stopped bool

	sendMu sync.Mutex
	sealed bool
}

func NewCoalescer(interval time.Duration) *Coalescer {
	if interval <= 0 {
		interval = DefaultDebounce
	}
	return &Coalescer{interval: interval, out: make(chan Snapshot, 1)}
}

// Snapshots delivers debounced state. The channel is never closed; a Done
// or Err snapshot is the terminal signal.
func (c *Coalescer) Snapshots() <-chan Snapshot { return c.out }

// Add accumulates a delta and arms the debounce timer if idle.
func (c *Coalescer) Add(delta string) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.acc.WriteString(delta)
	if c.armed {
		c.mu.Unlock()
		return
	}
	c.armed = true
	c.mu.Unlock()
	time.AfterFunc(c.interval, c.flush)
}

func (c *Coalescer) flush() {
	c.mu.Lock()
	c.armed = false
	if c.stopped {
		c.mu.Unlock()
		return
	}
	snap := Snapshot{Text: c.acc.String()}
	c.mu.Unlock()
	c.send(snap)
}

// Finish publishes the terminal snapshot immediately, bypassing the
// debounce. Later Add and Finish calls are no-ops.
func (c *Coalescer) Finish(text string, err error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if text != "" {
		c.acc.Reset()
		c.acc.WriteString(text)
	}
	snap := Snapshot{Text: c.acc.String(), Done: true, Err: err}
	c.mu.Unlock()
	c.send(snap)
}

// Stop silences the coalescer without a terminal snapshot; used when the
// popup closes mid-stream and nothing should reach the renderer anymore.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}

// send serializes publication so a late debounce flush can never displace
// the terminal snapshot.
func (c *Coalescer) send(snap Snapshot) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sealed {
		return
	}
	if snap.Done {
		c.sealed = true
	}
	for {
		select {
		case c.out <- snap:
			return
		default:
		}
		// Displace whatever the consumer has not read yet.
		select {
		case <-c.out:
		default:
		}
	}
}
