package serial

import (
	"io"
	"log/slog"
	"sync"
)

// ReceivePolicy decides what happens to each byte the assembler takes out of
// the RX ring. It always runs in task context.
type ReceivePolicy interface {
	Receive(c byte)
}

func isTerminator(c byte) bool { return c == '\n' || c == '\r' }

// LineBuffer accumulates one line. A buffer of size M holds at most M-1
// bytes; the last slot is reserved for the terminator on the wire.
type LineBuffer struct {
	buf []byte
	n   int
}

// NewLineBuffer returns a buffer holding at most size-1 bytes.
func NewLineBuffer(size int) *LineBuffer {
	if size < 2 {
		panic("serial: line size must be >= 2")
	}
	return &LineBuffer{buf: make([]byte, size)}
}

// Append adds c and reports false when the line is already full.
func (l *LineBuffer) Append(c byte) bool {
	if l.n >= len(l.buf)-1 {
		return false
	}
	l.buf[l.n] = c
	l.n++
	return true
}

// Len returns the number of buffered bytes.
func (l *LineBuffer) Len() int { return l.n }

// String returns the buffered bytes as a string.
func (l *LineBuffer) String() string { return string(l.buf[:l.n]) }

// Reset discards the buffered bytes.
func (l *LineBuffer) Reset() { l.n = 0 }

// LinePolicy buffers bytes until a terminator and pushes the completed line
// into a MessageQueue. Consecutive terminators collapse; overflowing bytes are
// dropped and the truncated line is still delivered.
type LinePolicy struct {
	line      *LineBuffer
	queue     *MessageQueue
	indicator Indicator
	echo      io.Writer
	truncated bool

	stats  *counters
	logger *slog.Logger
}

// NewLinePolicy returns a policy assembling lines of up to size-1 bytes.
func NewLinePolicy(queue *MessageQueue, size int) *LinePolicy {
	return &LinePolicy{
		line:   NewLineBuffer(size),
		queue:  queue,
		stats:  &counters{},
		logger: slog.Default(),
	}
}

// WithIndicator toggles ind on every delivered line.
func (p *LinePolicy) WithIndicator(ind Indicator) *LinePolicy {
	p.indicator = ind
	return p
}

// WithEcho writes every stored byte and each line break back to w.
func (p *LinePolicy) WithEcho(w io.Writer) *LinePolicy {
	p.echo = w
	return p
}

// Receive handles one byte: terminators complete the line, anything else is
// appended or, past capacity, dropped.
func (p *LinePolicy) Receive(c byte) {
	if isTerminator(c) {
		if p.line.Len() == 0 {
			return
		}
		p.deliver()
		return
	}
	if !p.line.Append(c) {
		if !p.truncated {
			p.truncated = true
			p.stats.lineTruncated.Add(1)
		}
		return
	}
	if p.echo != nil {
		_, _ = p.echo.Write([]byte{c})
	}
}

func (p *LinePolicy) deliver() {
	msg := p.line.String()
	if p.truncated {
		p.logger.Debug("line truncated", "len", len(msg))
	}
	if p.queue.Push(msg) {
		p.stats.linesDelivered.Add(1)
	} else {
		p.stats.queueDropped.Add(1)
		p.logger.Debug("message queue full, line dropped", "line", msg)
	}
	if p.echo != nil {
		_, _ = io.WriteString(p.echo, "\r\n")
	}
	if p.indicator != nil {
		p.indicator.Toggle()
	}
	p.line.Reset()
	p.truncated = false
}

// EchoPolicy writes each received byte straight back and toggles the
// indicator. It is the diagnostic loopback mode; no lines are queued.
type EchoPolicy struct {
	w         io.Writer
	indicator Indicator
}

// NewEchoPolicy returns a policy echoing to w and toggling ind, if non-nil.
func NewEchoPolicy(w io.Writer, ind Indicator) *EchoPolicy {
	return &EchoPolicy{w: w, indicator: ind}
}

// Receive writes c back and toggles the indicator.
func (p *EchoPolicy) Receive(c byte) {
	_, _ = p.w.Write([]byte{c})
	if p.indicator != nil {
		p.indicator.Toggle()
	}
}

// Assembler drains the RX ring into a ReceivePolicy. Run may be called from
// the trigger worker and from Flush; mu keeps the ring with one consumer.
type Assembler struct {
	mu     sync.Mutex
	rx     *RingBuffer
	policy ReceivePolicy
	stats  *counters
}

// NewAssembler returns an assembler draining rx into policy.
func NewAssembler(rx *RingBuffer, policy ReceivePolicy) *Assembler {
	return &Assembler{rx: rx, policy: policy, stats: &counters{}}
}

// Run empties the RX ring and returns the number of bytes processed.
func (a *Assembler) Run() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.assemblyRuns.Add(1)
	n := 0
	for {
		c, ok := a.rx.GetByte()
		if !ok {
			return n
		}
		a.policy.Receive(c)
		n++
	}
}
