package serial

import (
	"context"
	"sync"
)

// Host shim: an in-memory Device for tests and demos, no hardware.
//
// SimDevice models a UART with a bounded receive FIFO, a transmitter that
// can be stalled, and an interrupt line. The handler is raised by Service
// (synchronously, in the caller) or by Run (from its own goroutine).

const defaultSimFIFODepth = 32

type SimDevice struct {
	mu        sync.Mutex
	ready     bool
	fifo      []byte
	depth     int
	overruns  int
	sent      []byte
	txStalled bool

	irq *irqLine
}

// NewSimDevice returns a ready device with a 32-byte receive FIFO.
func NewSimDevice() *SimDevice {
	return &SimDevice{
		ready: true,
		depth: defaultSimFIFODepth,
		irq:   newIRQLine(),
	}
}

// ---------- test controls ----------

// SetReady controls what Ready reports.
func (d *SimDevice) SetReady(ok bool) {
	d.mu.Lock()
	d.ready = ok
	d.mu.Unlock()
}

// SetFIFODepth changes the receive FIFO depth.
func (d *SimDevice) SetFIFODepth(n int) {
	d.mu.Lock()
	d.depth = n
	d.mu.Unlock()
}

// Inject places bytes on the wire. Bytes that do not fit the receive FIFO
// are lost as hardware overruns. It returns the number that fit.
func (d *SimDevice) Inject(p []byte) int {
	d.mu.Lock()
	n := d.depth - len(d.fifo)
	if n > len(p) {
		n = len(p)
	}
	if n < 0 {
		n = 0
	}
	d.fifo = append(d.fifo, p[:n]...)
	d.overruns += len(p) - n
	d.mu.Unlock()
	d.irq.kick()
	return n
}

// Overruns returns the number of bytes Inject could not place.
func (d *SimDevice) Overruns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overruns
}

// Sent returns a copy of every byte written to the transmitter.
func (d *SimDevice) Sent() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.sent...)
}

// SetTxStalled makes TxReady report false until cleared.
func (d *SimDevice) SetTxStalled(stalled bool) {
	d.mu.Lock()
	d.txStalled = stalled
	d.mu.Unlock()
	if !stalled {
		d.irq.kick()
	}
}

// RxIRQEnabled reports whether RX notifications are on.
func (d *SimDevice) RxIRQEnabled() bool { return d.irq.rxOn.Load() }

// TxIRQEnabled reports whether TX notifications are on.
func (d *SimDevice) TxIRQEnabled() bool { return d.irq.txOn.Load() }

// ---------- Device ----------

// Ready reports the value last given to SetReady.
func (d *SimDevice) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// RxReady reports whether the receive FIFO holds a byte.
func (d *SimDevice) RxReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fifo) > 0
}

// ReadRx pops the oldest FIFO byte, or 0 when empty.
func (d *SimDevice) ReadRx() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.fifo) == 0 {
		return 0
	}
	b := d.fifo[0]
	d.fifo = d.fifo[1:]
	return b
}

// TxReady is false while the transmitter is stalled.
func (d *SimDevice) TxReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.txStalled
}

// WriteTx records b as sent.
func (d *SimDevice) WriteTx(b byte) {
	d.mu.Lock()
	d.sent = append(d.sent, b)
	d.mu.Unlock()
}

// EnableRxIRQ turns on receive notifications.
func (d *SimDevice) EnableRxIRQ() { d.irq.enableRx() }

// DisableRxIRQ turns off receive notifications.
func (d *SimDevice) DisableRxIRQ() { d.irq.disableRx() }

// EnableTxIRQ turns on transmit-ready notifications.
func (d *SimDevice) EnableTxIRQ() { d.irq.enableTx() }

// DisableTxIRQ turns off transmit-ready notifications.
func (d *SimDevice) DisableTxIRQ() { d.irq.disableTx() }

// SetIRQHandler installs the interrupt handler; nil removes it.
func (d *SimDevice) SetIRQHandler(fn func()) { d.irq.setHandler(fn) }

// ---------- interrupt line ----------

// Fire raises the interrupt once, whether or not an event is pending.
func (d *SimDevice) Fire() { d.irq.raise() }

// Service raises the interrupt until no enabled event is pending and returns
// the number of invocations.
func (d *SimDevice) Service() int { return d.irq.service(d.RxReady, d.TxReady) }

// Run services the interrupt line from its own goroutine until ctx is done.
func (d *SimDevice) Run(ctx context.Context) {
	d.irq.loop(ctx.Done(), d.RxReady, d.TxReady)
}
