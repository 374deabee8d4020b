package serial

import "context"

// MessageQueue is a bounded FIFO of completed lines. Push never blocks: when
// the queue is full the new line is dropped and older lines are kept.
type MessageQueue struct {
	ch chan string
}

// NewMessageQueue returns a queue holding up to depth lines.
func NewMessageQueue(depth int) *MessageQueue {
	if depth < 1 {
		panic("serial: queue depth must be >= 1")
	}
	return &MessageQueue{ch: make(chan string, depth)}
}

// Push enqueues line and reports whether it was kept.
func (q *MessageQueue) Push(line string) bool {
	select {
	case q.ch <- line:
		return true
	default:
		return false
	}
}

// TryPop returns the oldest line without waiting.
func (q *MessageQueue) TryPop() (string, bool) {
	select {
	case line := <-q.ch:
		return line, true
	default:
		return "", false
	}
}

// Pop blocks until a line is available or ctx is done.
func (q *MessageQueue) Pop(ctx context.Context) (string, error) {
	select {
	case line := <-q.ch:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Len returns the number of pending lines.
func (q *MessageQueue) Len() int { return len(q.ch) }

// Cap returns the queue depth.
func (q *MessageQueue) Cap() int { return cap(q.ch) }
