package serial

import "errors"

var (
	// ErrDeviceNotReady is returned by Start when the device reports not ready.
	ErrDeviceNotReady    = errors.New("serial: device not ready")
	// ErrIndicatorNotReady is returned by Start when the indicator is not ready.
	ErrIndicatorNotReady = errors.New("serial: indicator not ready")
	// ErrTxOverflow reports a short interrupt-mode write.
	ErrTxOverflow        = errors.New("serial: tx buffer full, write truncated")
	// ErrClosed is returned by every operation after Close.
	ErrClosed            = errors.New("serial: transport closed")
	// ErrNotStarted is returned by writes issued before a successful Start.
	ErrNotStarted        = errors.New("serial: transport not started")
)

// Device is the hardware side of the transport. Implementations raise the
// registered handler whenever an enabled event is pending: a received byte
// with RX notifications on, or transmit readiness with TX notifications on.
// Handler invocations must never overlap; the handler is the interrupt
// context of the transport.
type Device interface {
	Ready() bool

	RxReady() bool
	ReadRx() byte

	TxReady() bool
	WriteTx(b byte)

	EnableRxIRQ()
	DisableRxIRQ()
	EnableTxIRQ()
	DisableTxIRQ()

	SetIRQHandler(fn func())
}

// Indicator is an optional status output toggled on received lines.
type Indicator interface {
	Toggle()
}

// readier is implemented by indicators that can report readiness.
type readier interface {
	Ready() bool
}

// IndicatorFunc adapts a plain function to Indicator.
type IndicatorFunc func()

// Toggle calls f.
func (f IndicatorFunc) Toggle() { f() }
