package serial

import "sync/atomic"

// RingBuffer is a fixed-capacity circular byte FIFO shared by exactly one
// producer and one consumer. The producer only moves tail, the consumer only
// moves head, and count is published atomically after the data copy, so
// neither side needs a lock and neither side ever blocks.
type RingBuffer struct {
	buf   []byte
	head  uint32 // next read position, owned by the consumer
	tail  uint32 // next write position, owned by the producer
	count atomic.Uint32
}

// NewRingBuffer returns a ring buffer holding up to size bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		panic("serial: ring buffer size must be >= 1")
	}
	return &RingBuffer{buf: make([]byte, size)}
}

// Cap returns the capacity in bytes.
func (rb *RingBuffer) Cap() int { return len(rb.buf) }

// Len returns the number of occupied slots.
func (rb *RingBuffer) Len() int { return int(rb.count.Load()) }

// Free returns the number of bytes the producer can still put.
func (rb *RingBuffer) Free() int { return len(rb.buf) - rb.Len() }

// IsEmpty reports whether there is nothing to get.
func (rb *RingBuffer) IsEmpty() bool { return rb.Len() == 0 }

// IsFull reports whether Put would accept nothing.
func (rb *RingBuffer) IsFull() bool { return rb.Len() == len(rb.buf) }

// Put copies as many bytes of p as fit and returns how many were accepted.
// A short count is the caller's problem; Put never waits for space.
func (rb *RingBuffer) Put(p []byte) int {
	n := rb.Free()
	if n > len(p) {
		n = len(p)
	}
	if n == 0 {
		return 0
	}
	size := uint32(len(rb.buf))
	t := rb.tail
	first := int(size - t)
	if first > n {
		first = n
	}
	copy(rb.buf[t:], p[:first])
	copy(rb.buf, p[first:n])
	rb.tail = (t + uint32(n)) % size
	rb.count.Add(uint32(n)) // publish
	return n
}

// PutByte stores one byte. It returns false when the buffer is full.
func (rb *RingBuffer) PutByte(b byte) bool {
	if rb.IsFull() {
		return false
	}
	rb.buf[rb.tail] = b
	rb.tail = (rb.tail + 1) % uint32(len(rb.buf))
	rb.count.Add(1)
	return true
}

// Get copies up to len(p) bytes into p and returns the number read.
// It returns 0 when the buffer is empty.
func (rb *RingBuffer) Get(p []byte) int {
	n := rb.Len()
	if n > len(p) {
		n = len(p)
	}
	if n == 0 {
		return 0
	}
	size := uint32(len(rb.buf))
	h := rb.head
	first := int(size - h)
	if first > n {
		first = n
	}
	copy(p, rb.buf[h:h+uint32(first)])
	copy(p[first:n], rb.buf)
	rb.head = (h + uint32(n)) % size
	rb.count.Add(^uint32(n - 1)) // release
	return n
}

// GetByte removes one byte. It returns (0, false) when the buffer is empty.
func (rb *RingBuffer) GetByte() (byte, bool) {
	if rb.IsEmpty() {
		return 0, false
	}
	v := rb.buf[rb.head]
	rb.head = (rb.head + 1) % uint32(len(rb.buf))
	rb.count.Add(^uint32(0))
	return v, true
}

// Reset empties the buffer. It is only safe before the producer and consumer
// start running.
func (rb *RingBuffer) Reset() {
	rb.head, rb.tail = 0, 0
	rb.count.Store(0)
}
