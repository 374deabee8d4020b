package serial

// handleInterrupt is the interrupt context of the transport. It moves at most
// one byte from the TX ring to the device and drains whatever the device has
// received into the RX ring. It never blocks, never allocates and never logs;
// everything it loses is counted.
func (t *Transport) handleInterrupt() {
	t.stats.irqCount.Add(1)

	// TX path (interrupt-driven mode only). An empty ring always disarms, so a
	// stale enable left by a racing writer cannot keep the line asserted.
	if t.cfg.TxMode == TxInterrupt && t.dev.TxReady() {
		if b, ok := t.tx.GetByte(); ok {
			t.dev.WriteTx(b)
			t.stats.txBytes.Add(1)
			if t.tx.IsEmpty() {
				t.disarmTx()
			}
		} else {
			t.disarmTx()
		}
	}

	// RX path: drain the device FIFO.
	stored := false
	for t.dev.RxReady() {
		c := t.dev.ReadRx()
		if !t.rx.PutByte(c) {
			t.stats.rxDropped.Add(1)
			continue
		}
		t.stats.rxBytes.Add(1)
		stored = true
	}
	if stored {
		t.stats.observeRx(t.rx.Len())
		if t.cfg.KickOnReceive {
			t.trigger.Kick()
		}
	}
}

// disarmTx stops TX-ready notifications. A writer may have published bytes
// between the emptiness check and the disable; re-check and re-arm so those
// bytes are not stranded until the next Write.
func (t *Transport) disarmTx() {
	t.armed.Store(false)
	t.dev.DisableTxIRQ()
	if !t.tx.IsEmpty() {
		t.armed.Store(true)
		t.dev.EnableTxIRQ()
	}
}
