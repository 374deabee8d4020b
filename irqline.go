package serial

import (
	"sync"
	"sync/atomic"
)

// irqLine is the software interrupt controller shared by the host-side
// devices. It holds the RX/TX enable bits and the registered handler, and
// raises the handler while an enabled event is pending. Handler invocations
// are serialized by mu.
type irqLine struct {
	rxOn    atomic.Bool
	txOn    atomic.Bool
	handler atomic.Pointer[func()]

	mu   sync.Mutex
	wake chan struct{} // coalesced "re-evaluate pending events"
}

func newIRQLine() *irqLine {
	return &irqLine{wake: make(chan struct{}, 1)}
}

func (l *irqLine) setHandler(fn func()) {
	if fn == nil {
		l.handler.Store(nil)
		return
	}
	l.handler.Store(&fn)
}

func (l *irqLine) enableRx()  { l.rxOn.Store(true); l.kick() }
func (l *irqLine) disableRx() { l.rxOn.Store(false) }
func (l *irqLine) enableTx()  { l.txOn.Store(true); l.kick() }
func (l *irqLine) disableTx() { l.txOn.Store(false) }

func (l *irqLine) kick() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// raise invokes the handler once, if one is installed.
func (l *irqLine) raise() bool {
	fn := l.handler.Load()
	if fn == nil {
		return false
	}
	l.mu.Lock()
	(*fn)()
	l.mu.Unlock()
	return true
}

// service raises the handler until neither enabled source has an event and
// returns the number of invocations.
func (l *irqLine) service(rxPending, txPending func() bool) int {
	n := 0
	for {
		pending := (l.rxOn.Load() && rxPending()) || (l.txOn.Load() && txPending())
		if !pending || !l.raise() {
			return n
		}
		n++
	}
}

// loop services the line on every wake until done is closed.
func (l *irqLine) loop(done <-chan struct{}, rxPending, txPending func() bool) {
	for {
		l.service(rxPending, txPending)
		select {
		case <-done:
			return
		case <-l.wake:
		}
	}
}
