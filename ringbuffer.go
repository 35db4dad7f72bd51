package serial

import (
	"go.uber.org/atomic"
	"golang.org/x/sys/cpu"
)

// RxBufferSize is the number of slots in the receive ring. One slot is always
// left empty, so at most RxBufferSize-1 unread bytes can be held.
const RxBufferSize = 128

// RingBuffer is a fixed-capacity single-producer/single-consumer byte queue.
//
// The producer (the receive interrupt) is the only writer of tail and only
// compares against head. The consumer is the only writer of head and only
// reads tail. Each index is published with a single atomic store, and the
// slot is written before tail moves past it, so the two sides never need a
// lock between them.
type RingBuffer struct {
	head atomic.Uint32
	_    cpu.CacheLinePad
	tail atomic.Uint32
	_    cpu.CacheLinePad
	buf  [RxBufferSize]byte
}

// Put appends b. If the buffer is full b is discarded and Put returns false;
// bytes already queued are never overwritten. Producer side only.
func (rb *RingBuffer) Put(b byte) bool {
	t := rb.tail.Load()
	next := (t + 1) % RxBufferSize
	if next == rb.head.Load() {
		return false
	}
	rb.buf[t] = b
	rb.tail.Store(next)
	return true
}

// Get removes and returns the oldest byte. Consumer side only.
func (rb *RingBuffer) Get() (byte, bool) {
	h := rb.head.Load()
	if h == rb.tail.Load() {
		return 0, false
	}
	b := rb.buf[h]
	rb.head.Store((h + 1) % RxBufferSize)
	return b, true
}

// Len returns the number of unread bytes.
func (rb *RingBuffer) Len() int {
	return int((RxBufferSize + rb.tail.Load() - rb.head.Load()) % RxBufferSize)
}

// Cap returns the usable capacity.
func (rb *RingBuffer) Cap() int {
	return RxBufferSize - 1
}

// Reset empties the buffer. The producer must be quiesced (interrupts masked).
func (rb *RingBuffer) Reset() {
	rb.head.Store(0)
	rb.tail.Store(0)
}
