package serial

import (
	"sync"

	"go.uber.org/atomic"
)

// interruptLine emulates a receive interrupt for host bindings. A reader
// goroutine calls raise for every byte it takes off the wire; raise loads
// the data register and runs the handler under the global mask, one byte
// per invocation, the way an ISR would see it.
type interruptLine struct {
	mask    sync.Mutex
	handler func()
	armed   atomic.Bool
	enabled atomic.Bool

	rdr  byte
	rxne bool
}

func (l *interruptLine) MaskInterrupts()   { l.mask.Lock() }
func (l *interruptLine) UnmaskInterrupts() { l.mask.Unlock() }

// arm installs handler. Callers hold the mask.
func (l *interruptLine) arm(handler func()) {
	l.handler = handler
	l.rxne = false
	l.armed.Store(handler != nil)
}

// disarm drops the handler. Callers hold the mask.
func (l *interruptLine) disarm() {
	l.armed.Store(false)
	l.enabled.Store(false)
	l.handler = nil
	l.rxne = false
}

// raise delivers b. live is re-checked under the mask so a reader that
// outlived its session cannot touch the next one. It reports whether a
// handler ran and acknowledged the byte.
func (l *interruptLine) raise(b byte, live func() bool) bool {
	l.mask.Lock()
	defer l.mask.Unlock()
	if !live() || !l.armed.Load() || !l.enabled.Load() || l.handler == nil {
		return false
	}
	l.rdr = b
	l.rxne = true
	l.handler()
	return !l.rxne
}

func (l *interruptLine) ReceiveByte() byte { return l.rdr }

func (l *interruptLine) ClearReceivePending() { l.rxne = false }
