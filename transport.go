package serial

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Transport owns every buffer of one serial line: the TX and RX rings, the
// message queue, the assembler and its trigger. The device calls back into it
// from interrupt context; everything else runs in task context.
type Transport struct {
	cfg       Config
	dev       Device
	indicator Indicator
	logger    *slog.Logger

	tx    *RingBuffer
	rx    *RingBuffer
	queue *MessageQueue

	asm     *Assembler
	trigger *Trigger
	writer  Transmitter

	armed   atomic.Bool // TX notifications armed
	started atomic.Bool
	stats counters

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
	startErr  error
}

// New builds a transport around dev. Nothing touches the device until Start.
func New(dev Device, cfg Config) (*Transport, error) {
	Normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		cfg:       cfg,
		dev:       dev,
		indicator: cfg.Indicator,
		logger:    cfg.Logger,
		tx:        NewRingBuffer(cfg.TxBufferSize),
		rx:        NewRingBuffer(cfg.RxBufferSize),
		queue:     NewMessageQueue(cfg.QueueDepth),
		ctx:       ctx,
		cancel:    cancel,
	}

	switch cfg.TxMode {
	case TxPolled:
		t.writer = &polledTransmitter{ctx: ctx, dev: dev, stats: &t.stats}
	default:
		t.writer = &irqTransmitter{dev: dev, tx: t.tx, armed: &t.armed, stats: &t.stats}
	}

	var policy ReceivePolicy
	switch {
	case cfg.NewPolicy != nil:
		policy = cfg.NewPolicy(t.queue, t.writer)
	case cfg.Policy == PolicyEcho:
		policy = NewEchoPolicy(t.writer, t.indicator)
	default:
		lp := NewLinePolicy(t.queue, cfg.LineSize).WithIndicator(t.indicator)
		if cfg.Echo {
			lp.WithEcho(t.writer)
		}
		lp.stats = &t.stats
		lp.logger = t.logger
		policy = lp
	}

	t.asm = NewAssembler(t.rx, policy)
	t.asm.stats = &t.stats
	t.trigger = NewTrigger(cfg.Period(), func() { t.asm.Run() })
	t.trigger.coalesced = func() { t.stats.triggerCoalesced.Add(1) }
	return t, nil
}

// Start checks that the device and indicator are ready, installs the
// interrupt handler and starts the periodic assembler. A readiness failure is
// fatal; the transport must not be used afterwards.
func (t *Transport) Start() error {
	if t.ctx.Err() != nil {
		return ErrClosed
	}
	t.startOnce.Do(func() {
		t.startErr = t.start()
	})
	return t.startErr
}

func (t *Transport) start() error {
	if t.dev == nil || !t.dev.Ready() {
		return fmt.Errorf("start: %w", ErrDeviceNotReady)
	}
	if r, ok := t.indicator.(readier); ok && !r.Ready() {
		return fmt.Errorf("start: %w", ErrIndicatorNotReady)
	}

	t.tx.Reset()
	t.rx.Reset()
	t.armed.Store(false)

	t.dev.SetIRQHandler(t.handleInterrupt)
	t.dev.EnableRxIRQ()
	t.dev.DisableTxIRQ()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.trigger.Run(t.ctx)
	}()

	t.logger.Info("serial transport started",
		"tx_mode", string(t.cfg.TxMode),
		"policy", t.cfg.Policy,
		"period", t.cfg.Period(),
		"line_size", t.cfg.LineSize,
	)
	t.started.Store(true)
	return nil
}

// Write sends p through the configured transmitter. In interrupt mode a
// short count comes back with ErrTxOverflow; the caller may retry the rest.
// Writes before a successful Start fail with ErrNotStarted.
func (t *Transport) Write(p []byte) (int, error) {
	if t.ctx.Err() != nil {
		return 0, ErrClosed
	}
	if !t.started.Load() {
		return 0, ErrNotStarted
	}
	n, err := t.writer.Write(p)
	if err != nil {
		t.logger.Debug("serial write short", "accepted", n, "requested", len(p), "err", err)
	}
	return n, err
}

// WriteString is Write for text.
func (t *Transport) WriteString(s string) (int, error) { return t.Write([]byte(s)) }

// ReadLine blocks until a line is available, ctx is done or the transport is
// closed.
func (t *Transport) ReadLine(ctx context.Context) (string, error) {
	if line, ok := t.queue.TryPop(); ok {
		return line, nil
	}
	select {
	case line := <-t.queue.ch:
		return line, nil
	case <-t.ctx.Done():
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// TryReadLine returns a pending line without waiting.
func (t *Transport) TryReadLine() (string, bool) { return t.queue.TryPop() }

// Flush runs the assembler now instead of waiting for the next tick and
// returns the number of bytes it consumed.
func (t *Transport) Flush() int { return t.asm.Run() }

// Drain blocks until the TX ring is empty and TX notifications are disarmed.
// In polled mode there is nothing buffered and it returns immediately.
func (t *Transport) Drain(ctx context.Context) error {
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		if t.tx.IsEmpty() && !t.armed.Load() {
			return nil
		}
		select {
		case <-tick.C:
		case <-t.ctx.Done():
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TxArmed reports whether the interrupt handler is being asked to transmit.
func (t *Transport) TxArmed() bool { return t.armed.Load() }

// TxMode returns the transmit mode chosen at construction.
func (t *Transport) TxMode() TxMode { return t.writer.Mode() }

// Pending returns the number of queued lines.
func (t *Transport) Pending() int { return t.queue.Len() }

// Stats returns a copy of the counters.
func (t *Transport) Stats() Stats { return t.stats.snapshot() }

// Close stops the assembler and masks device notifications. Safe to call
// multiple times; subsequent calls are no-ops.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.wg.Wait()
		if t.dev != nil {
			t.dev.DisableRxIRQ()
			t.dev.DisableTxIRQ()
		}
		t.logger.Info("serial transport stopped")
	})
	return nil
}
