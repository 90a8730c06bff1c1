// Package actor implements the cooperative actor runtime: per-actor
// mailboxes, a registry tracking status and supervision, a deadlock
// sentinel, and a Runtime that schedules actors as goroutines under a
// golang.org/x/sync/errgroup.Group.
package actor

import (
	"sync"

	"github.com/kabudu/groklang/internal/value"
	"github.com/kabudu/groklang/internal/vmerr"
)

var errMailboxClosed = vmerr.New(vmerr.MailboxClosed, "mailbox closed")

// Mailbox is an unbounded FIFO queue owned by exactly one actor. Go has
// no unbounded channel, so the queue itself is a mutex-guarded slice;
// signal is a 1-buffered channel used only to wake a blocked receiver,
// never to carry the message itself — this keeps Send non-blocking
// regardless of how many messages are already queued.
type Mailbox struct {
	mu     sync.Mutex
	queue  []value.Value
	signal chan struct{}
	closed bool
}

// NewMailbox returns an empty, open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{signal: make(chan struct{}, 1)}
}

// Send enqueues v and never blocks. It reports an error only when the
// mailbox has already been closed (the owning actor is terminal); per
// the Send contract such a message is simply dropped, not retried.
func (m *Mailbox) Send(v value.Value) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errMailboxClosed
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
		// A wakeup is already pending; the receiver checks the queue
		// before every wait, so a second signal isn't needed.
	}
	return nil
}

// tryRecv pops the oldest queued value, if any.
func (m *Mailbox) tryRecv() (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return value.Value{}, false
	}
	v := m.queue[0]
	m.queue = m.queue[1:]
	return v, true
}

// Close marks the mailbox closed; further Sends are dropped.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// SignalChan returns the channel a receiver selects on to wake up and
// re-check the queue.
func (m *Mailbox) SignalChan() <-chan struct{} {
	return m.signal
}
