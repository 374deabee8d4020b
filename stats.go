package serial

import "sync/atomic"

// Stats holds transport counters since Start.
type Stats struct {
	// Interrupt side
	IRQCount    uint32 `json:"irq_count"`     // handler invocations
	RxBytes     uint32 `json:"rx_bytes"`      // bytes stored in the RX ring
	RxDropped   uint32 `json:"rx_dropped"`    // bytes lost to a full RX ring
	RxHighWater uint32 `json:"rx_high_water"` // max RX ring occupancy seen
	TxBytes     uint32 `json:"tx_bytes"`      // bytes handed to the device

	// Task side
	TxShort          uint32 `json:"tx_short"`          // writes only partly accepted
	LinesDelivered   uint32 `json:"lines_delivered"`   // lines pushed to the queue
	LineTruncated    uint32 `json:"line_truncated"`    // lines that lost bytes to overflow
	QueueDropped     uint32 `json:"queue_dropped"`     // lines lost to a full queue
	AssemblyRuns     uint32 `json:"assembly_runs"`     // assembler passes
	TriggerCoalesced uint32 `json:"trigger_coalesced"` // requests merged into a pending one
}

type counters struct {
	irqCount    atomic.Uint32
	rxBytes     atomic.Uint32
	rxDropped   atomic.Uint32
	rxHighWater atomic.Uint32
	txBytes     atomic.Uint32

	txShort          atomic.Uint32
	linesDelivered   atomic.Uint32
	lineTruncated    atomic.Uint32
	queueDropped     atomic.Uint32
	assemblyRuns     atomic.Uint32
	triggerCoalesced atomic.Uint32
}

func (c *counters) observeRx(used int) {
	u := uint32(used)
	for {
		hw := c.rxHighWater.Load()
		if u <= hw {
			return
		}
		if c.rxHighWater.CompareAndSwap(hw, u) {
			return
		}
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		IRQCount:    c.irqCount.Load(),
		RxBytes:     c.rxBytes.Load(),
		RxDropped:   c.rxDropped.Load(),
		RxHighWater: c.rxHighWater.Load(),
		TxBytes:     c.txBytes.Load(),

		TxShort:          c.txShort.Load(),
		LinesDelivered:   c.linesDelivered.Load(),
		LineTruncated:    c.lineTruncated.Load(),
		QueueDropped:     c.queueDropped.Load(),
		AssemblyRuns:     c.assemblyRuns.Load(),
		TriggerCoalesced: c.triggerCoalesced.Load(),
	}
}
