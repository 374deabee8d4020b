package serial

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// TxMode selects how bytes reach the device.
type TxMode string

const (
	// TxInterrupt queues bytes in the TX ring and lets the interrupt handler
	// move them one at a time.
	TxInterrupt TxMode = "interrupt"
	// TxPolled writes each byte straight to the device, waiting for it to
	// become ready. The TX ring is unused.
	TxPolled TxMode = "polled"
)

// Transmitter is the write side of the transport.
type Transmitter interface {
	Write(p []byte) (int, error)
	WriteString(s string) (int, error)
	Mode() TxMode
}

// irqTransmitter is the producer of the TX ring. mu serializes concurrent
// writers so the ring keeps a single producer; the interrupt handler never
// takes it.
type irqTransmitter struct {
	mu    sync.Mutex
	dev   Device
	tx    *RingBuffer
	armed *atomic.Bool
	stats *counters
}

// Write queues as much of p as fits. A short write returns ErrTxOverflow
// along with the accepted count and is not retried.
func (t *irqTransmitter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	t.mu.Lock()
	n := t.tx.Put(p)
	if n > 0 {
		t.armed.Store(true)
		t.dev.EnableTxIRQ()
	}
	t.mu.Unlock()

	if n < len(p) {
		t.stats.txShort.Add(1)
		return n, fmt.Errorf("%w: %d of %d bytes queued", ErrTxOverflow, n, len(p))
	}
	return n, nil
}

func (t *irqTransmitter) WriteString(s string) (int, error) { return t.Write([]byte(s)) }

func (t *irqTransmitter) Mode() TxMode { return TxInterrupt }

// polledTransmitter bypasses the TX ring entirely.
type polledTransmitter struct {
	mu    sync.Mutex
	ctx   context.Context
	dev   Device
	stats *counters
}

// Write blocks until every byte of p has been accepted by the device or the
// transport is closed.
func (t *polledTransmitter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, b := range p {
		for !t.dev.TxReady() {
			select {
			case <-t.ctx.Done():
				return i, ErrClosed
			default:
			}
			runtime.Gosched() // polite yield
		}
		t.dev.WriteTx(b)
		t.stats.txBytes.Add(1)
	}
	return len(p), nil
}

func (t *polledTransmitter) WriteString(s string) (int, error) { return t.Write([]byte(s)) }

func (t *polledTransmitter) Mode() TxMode { return TxPolled }
