package serial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	tarm "github.com/tarm/serial"
)

const (
	portFIFODepth          = 64
	defaultPortReadTimeout = 50 * time.Millisecond
)

// PortDevice adapts a github.com/tarm/serial port, which only offers
// blocking Read and Write, to the Device model. A reader goroutine plays the
// receiver hardware: it fills a bounded FIFO (overflow is counted as overrun)
// and wakes the interrupt line. The transmitter is always ready; WriteTx
// blocks until the OS accepts the byte.
type PortDevice struct {
	port   *tarm.Port
	config DeviceConfig

	fifo     chan byte
	overruns atomic.Uint32

	irq       *irqLine
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	err       atomic.Pointer[error]
}

// OpenPort opens cfg.Path through tarm/serial with 8N1 framing.
func OpenPort(cfg DeviceConfig) (*PortDevice, error) {
	timeout := time.Duration(cfg.ReadTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultPortReadTimeout
	}
	port, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Path,
		Baud:        cfg.BaudRate,
		Parity:      tarm.ParityNone,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	return newPortDevice(port, cfg), nil
}

func newPortDevice(port *tarm.Port, cfg DeviceConfig) *PortDevice {
	d := &PortDevice{
		port:   port,
		config: cfg,
		fifo:   make(chan byte, portFIFODepth),
		irq:    newIRQLine(),
		done:   make(chan struct{}),
	}
	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.receive()
	}()
	go func() {
		defer d.wg.Done()
		d.irq.loop(d.done, d.RxReady, d.TxReady)
	}()
	return d
}

func (d *PortDevice) receive() {
	buf := make([]byte, portFIFODepth)
	for {
		select {
		case <-d.done:
			return
		default:
		}
		n, err := d.port.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			select {
			case <-d.done:
			default:
				d.fail(err)
			}
			return
		}
		for _, b := range buf[:n] {
			select {
			case d.fifo <- b:
			default:
				d.overruns.Add(1)
			}
		}
		if n > 0 {
			d.irq.kick()
		}
	}
}

func (d *PortDevice) fail(err error) {
	d.err.CompareAndSwap(nil, &err)
}

// ---------- Device ----------

func (d *PortDevice) Ready() bool {
	select {
	case <-d.done:
		return false
	default:
		return d.Err() == nil
	}
}

func (d *PortDevice) RxReady() bool { return len(d.fifo) > 0 }

func (d *PortDevice) ReadRx() byte {
	select {
	case b := <-d.fifo:
		return b
	default:
		return 0
	}
}

func (d *PortDevice) TxReady() bool { return true }

func (d *PortDevice) WriteTx(b byte) {
	if _, err := d.port.Write([]byte{b}); err != nil {
		d.fail(err)
	}
}

func (d *PortDevice) EnableRxIRQ()            { d.irq.enableRx() }
func (d *PortDevice) DisableRxIRQ()           { d.irq.disableRx() }
func (d *PortDevice) EnableTxIRQ()            { d.irq.enableTx() }
func (d *PortDevice) DisableTxIRQ()           { d.irq.disableTx() }
func (d *PortDevice) SetIRQHandler(fn func()) { d.irq.setHandler(fn) }

// Overruns returns the number of bytes lost to a full receive FIFO.
func (d *PortDevice) Overruns() uint32 { return d.overruns.Load() }

// Err returns the first port error, if any.
func (d *PortDevice) Err() error {
	if p := d.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Close stops the reader and the interrupt loop and closes the port.
// Safe to call multiple times; subsequent calls are no-ops.
func (d *PortDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		err = d.port.Close()
		d.wg.Wait()
	})
	return err
}
