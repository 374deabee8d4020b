//go:build linux

package serial

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// termiosFIFODepth mirrors a typical UART receive FIFO. One read(2) fills it;
// the handler drains it before the next poll.
const termiosFIFODepth = 64

// TermiosDevice drives a Linux tty as a Device. A poll loop acts as the
// interrupt controller: it waits on the port (POLLIN when RX notifications
// are enabled, POLLOUT when TX notifications are enabled) and on a self-pipe
// used to re-evaluate the enable bits, and raises the handler from its own
// goroutine.
type TermiosDevice struct {
	fd        int
	file      *os.File
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
	config    DeviceConfig
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd

	// Receive FIFO, touched only by the poll loop goroutine.
	fifo    [termiosFIFODepth]byte
	fifoN   int
	fifoOff int

	rxOn    atomic.Bool
	txOn    atomic.Bool
	closed  atomic.Bool
	wakes   atomic.Uint32 // self-pipe writes
	handler atomic.Pointer[func()]
	err     atomic.Pointer[error]
}

// OpenTermios opens cfg.Path in raw, low-latency mode and starts the poll
// loop. No handler runs until SetIRQHandler and an Enable call.
func OpenTermios(cfg DeviceConfig) (*TermiosDevice, error) {
	fd, err := syscall.Open(cfg.Path, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8

	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baudToUnix(cfg.BaudRate)

	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("set termios: %w", err)
	}

	// Blocking writes; reads only happen after poll reports POLLIN.
	syscall.SetNonblock(fd, false)

	// Non-blocking self-pipe: a full pipe already guarantees a wake-up.
	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}

	d := &TermiosDevice{
		fd:     fd,
		file:   os.NewFile(uintptr(fd), cfg.Path),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		config: cfg,
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
	}
	go d.loop()
	return d, nil
}

// ---------- Device ----------

func (d *TermiosDevice) Ready() bool {
	select {
	case <-d.exited:
		return false
	default:
		return true
	}
}

// RxReady and ReadRx are only meaningful inside the handler.
func (d *TermiosDevice) RxReady() bool { return d.fifoOff < d.fifoN }

func (d *TermiosDevice) ReadRx() byte {
	if d.fifoOff >= d.fifoN {
		return 0
	}
	b := d.fifo[d.fifoOff]
	d.fifoOff++
	return b
}

// TxReady reports whether the tty would accept a byte without blocking.
func (d *TermiosDevice) TxReady() bool {
	pfd := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(pfd, 0)
	return err == nil && n > 0 && pfd[0].Revents&unix.POLLOUT != 0
}

func (d *TermiosDevice) WriteTx(b byte) {
	if _, err := d.file.Write([]byte{b}); err != nil {
		d.fail(err)
	}
}

// The poll loop only needs waking when an enable bit actually changes.
func (d *TermiosDevice) EnableRxIRQ()  { d.setIRQ(&d.rxOn, true) }
func (d *TermiosDevice) DisableRxIRQ() { d.setIRQ(&d.rxOn, false) }
func (d *TermiosDevice) EnableTxIRQ()  { d.setIRQ(&d.txOn, true) }
func (d *TermiosDevice) DisableTxIRQ() { d.setIRQ(&d.txOn, false) }

func (d *TermiosDevice) setIRQ(bit *atomic.Bool, on bool) {
	if bit.Swap(on) != on {
		d.wake()
	}
}

func (d *TermiosDevice) SetIRQHandler(fn func()) {
	if fn == nil {
		d.handler.Store(nil)
		return
	}
	d.handler.Store(&fn)
}

// Done is closed when the poll loop has exited, after Close or a port error.
func (d *TermiosDevice) Done() <-chan struct{} { return d.exited }

// Err returns the error that stopped the poll loop, if any.
func (d *TermiosDevice) Err() error {
	if p := d.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Close stops the poll loop and closes the port.
// Safe to call multiple times; subsequent calls are no-ops.
func (d *TermiosDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		d.wake()
		<-d.exited
		d.closed.Store(true)
		if d.file != nil {
			err = d.file.Close() // also closes fd
		}
		unix.Close(d.pipeR)
		unix.Close(d.pipeW)
	})
	return err
}

// ---------- poll loop ----------

func (d *TermiosDevice) wake() {
	if d.closed.Load() {
		return
	}
	d.wakes.Add(1)
	unix.Write(d.pipeW, []byte{1})
}

func (d *TermiosDevice) fail(err error) {
	d.err.CompareAndSwap(nil, &err)
}

func (d *TermiosDevice) loop() {
	defer close(d.exited)
	var scratch [32]byte
	for {
		var events int16
		if d.rxOn.Load() {
			events |= unix.POLLIN
		}
		if d.txOn.Load() {
			events |= unix.POLLOUT
		}
		pfd := []unix.PollFd{
			{Fd: int32(d.fd), Events: events},
			{Fd: int32(d.pipeR), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(pfd, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			d.fail(err)
			return
		}
		select {
		case <-d.done:
			return
		default:
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			for {
				if n, _ := unix.Read(d.pipeR, scratch[:]); n <= 0 {
					break
				}
			}
		}

		rev := pfd[0].Revents
		if rev&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 && rev&unix.POLLIN == 0 {
			d.fail(fmt.Errorf("serial port %s hung up", d.config.Path))
			return
		}
		if rev&unix.POLLIN != 0 {
			n, err := unix.Read(d.fd, d.fifo[:])
			if err != nil || n == 0 {
				if err == nil {
					err = fmt.Errorf("serial port %s closed", d.config.Path)
				}
				d.fail(err)
				return
			}
			d.fifoN, d.fifoOff = n, 0
		}

		fn := d.handler.Load()
		if fn != nil && (d.RxReady() || rev&unix.POLLOUT != 0) {
			(*fn)()
		}
		// Bytes the handler left behind are overrun.
		d.fifoN, d.fifoOff = 0, 0
		if d.Err() != nil {
			return
		}
	}
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	default:
		return unix.B115200 // fallback
	}
}
