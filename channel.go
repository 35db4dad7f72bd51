package serial

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	// DefaultTimeout is the read timeout, in milliseconds, of a new Channel.
	DefaultTimeout uint16 = 1000

	// Unavailable is returned by the int-valued read operations when the
	// channel is not started or, for Read, when the timeout elapsed.
	Unavailable = -1
)

// Channel is a buffered serial port on top of a Peripheral. Received bytes
// are queued by the receive interrupt; reads pop them with a spin-wait
// bounded by the channel timeout. Writes go straight to the peripheral and
// block until each byte is accepted.
//
// A Channel serves one consumer goroutine. The receive interrupt is the only
// other party touching its state.
type Channel struct {
	periph  Peripheral
	clock   Clock
	log     zerolog.Logger
	newline []byte

	rx      RingBuffer
	started atomic.Bool
	timeout atomic.Uint32
	line    atomic.Pointer[LineConfig]

	stats counters
}

// Option configures a Channel.
type Option func(*Channel)

// WithClock replaces the system millisecond clock.
func WithClock(c Clock) Option {
	return func(ch *Channel) { ch.clock = c }
}

// WithLogger sets the lifecycle logger. The receive path never logs.
func WithLogger(l zerolog.Logger) Option {
	return func(ch *Channel) { ch.log = l }
}

// WithLineEnding sets the terminator Println appends. Default "\n".
func WithLineEnding(eol []byte) Option {
	return func(ch *Channel) { ch.newline = append([]byte(nil), eol...) }
}

// NewChannel returns a stopped channel bound to p.
func NewChannel(p Peripheral, opts ...Option) *Channel {
	ch := &Channel{
		periph:  p,
		clock:   NewSystemClock(),
		log:     zerolog.Nop(),
		newline: []byte{'\n'},
	}
	ch.timeout.Store(uint32(DefaultTimeout))
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// Begin starts the channel at baud with 8 data bits, 1 stop bit, no parity.
func (c *Channel) Begin(baud uint32) error {
	return c.BeginCustom(baud, WordLength8, StopBits1, ParityNone)
}

// BeginCustom configures the peripheral and starts the channel. Any bytes
// left from a previous session are discarded. A started channel is ended
// first.
func (c *Channel) BeginCustom(baud uint32, wordLength WordLength, stopBits StopBits, parity Parity) (err error) {
	lc := LineConfig{BaudRate: baud, WordLength: wordLength, StopBits: stopBits, Parity: parity}
	if err := lc.Validate(); err != nil {
		return err
	}
	if c.started.Load() {
		if err := c.End(); err != nil {
			c.log.Warn().Err(err).Msg("ending previous session")
		}
	}

	gate, _ := c.periph.(ClockGate)
	pins, _ := c.periph.(PinController)
	irq, _ := c.periph.(InterruptMasker)

	if gate != nil {
		gate.EnablePeripheralClock()
	}
	if irq != nil {
		irq.MaskInterrupts()
	}
	if pins != nil {
		pins.InitPins()
	}

	masked := irq != nil
	defer func() {
		if err == nil {
			return
		}
		if pins != nil {
			pins.ReleasePins()
		}
		if masked {
			irq.UnmaskInterrupts()
		}
		if gate != nil {
			gate.DisablePeripheralClock()
		}
		c.log.Error().Err(err).Stringer("line", lc).Msg("serial begin failed")
	}()

	if err = c.periph.Teardown(); err != nil {
		return fmt.Errorf("resetting peripheral: %w", err)
	}
	if err = c.periph.Configure(baud, wordLength, stopBits, parity); err != nil {
		return fmt.Errorf("configuring peripheral: %w", err)
	}
	if err = c.periph.EnableReceiveInterrupt(c.receiveISR); err != nil {
		return fmt.Errorf("enabling receive interrupt: %w", err)
	}

	c.rx.Reset()
	c.line.Store(&lc)

	if masked {
		irq.UnmaskInterrupts()
		masked = false
	}
	if err = c.periph.Enable(); err != nil {
		if irq != nil {
			irq.MaskInterrupts()
			masked = true
		}
		if terr := c.periph.Teardown(); terr != nil {
			err = errors.Join(err, terr)
		}
		return fmt.Errorf("enabling peripheral: %w", err)
	}
	c.started.Store(true)

	c.log.Info().Stringer("line", lc).Msg("serial started")
	return nil
}

// End stops the peripheral and the channel. Unread bytes are discarded.
// Ending a stopped channel does nothing.
func (c *Channel) End() error {
	if !c.started.Load() {
		return nil
	}

	gate, _ := c.periph.(ClockGate)
	pins, _ := c.periph.(PinController)
	irq, _ := c.periph.(InterruptMasker)

	if irq != nil {
		irq.MaskInterrupts()
	}
	var errs []error
	if err := c.periph.Disable(); err != nil {
		errs = append(errs, fmt.Errorf("disabling peripheral: %w", err))
	}
	if err := c.periph.Teardown(); err != nil {
		errs = append(errs, fmt.Errorf("tearing down peripheral: %w", err))
	}
	if pins != nil {
		pins.ReleasePins()
	}
	if gate != nil {
		gate.DisablePeripheralClock()
	}
	c.started.Store(false)
	if irq != nil {
		irq.UnmaskInterrupts()
	}

	ev := c.log.Info()
	if dropped := c.stats.dropped.Load(); dropped > 0 {
		ev = c.log.Warn().Uint64("dropped", dropped)
	}
	ev.Uint64("received", c.stats.received.Load()).Msg("serial stopped")

	return errors.Join(errs...)
}

// Started reports whether Begin has succeeded and End has not been called since.
func (c *Channel) Started() bool {
	return c.started.Load()
}

// SetTimeout sets the read timeout in milliseconds. With a timeout of 0 the
// ring is still polled once, so Read returns a byte that is already buffered
// and Unavailable otherwise.
func (c *Channel) SetTimeout(ms uint16) {
	c.timeout.Store(uint32(ms))
}

// Timeout returns the read timeout in milliseconds.
func (c *Channel) Timeout() uint16 {
	return uint16(c.timeout.Load())
}

// receiveISR moves one byte from the peripheral into the ring. When the ring
// is full the new byte is dropped and the queued ones are kept.
func (c *Channel) receiveISR() {
	b := c.periph.ReceiveByte()
	if c.rx.Put(b) {
		c.stats.received.Inc()
	} else {
		c.stats.dropped.Inc()
	}
	c.periph.ClearReceivePending()
}

// Available returns the number of unread bytes, or Unavailable when the
// channel is not started.
func (c *Channel) Available() int {
	if !c.started.Load() {
		return Unavailable
	}
	return c.rx.Len()
}

// pop spins on the ring until a byte arrives or the timeout elapses. The
// ring is polled at least once.
func (c *Channel) pop() (byte, bool) {
	timeout := c.timeout.Load()
	start := c.clock.Millis()
	for {
		if b, ok := c.rx.Get(); ok {
			return b, true
		}
		if c.clock.Millis()-start >= timeout {
			c.stats.timeouts.Inc()
			return 0, false
		}
	}
}

// Read returns the next received byte as 0-255. It busy-waits up to the
// channel timeout and returns Unavailable if nothing arrived or the channel
// is not started.
func (c *Channel) Read() int {
	if !c.started.Load() {
		return Unavailable
	}
	b, ok := c.pop()
	if !ok {
		return Unavailable
	}
	return int(b)
}

// ReadByte implements io.ByteReader with the same waiting rules as Read.
func (c *Channel) ReadByte() (byte, error) {
	if !c.started.Load() {
		return 0, ErrNotStarted
	}
	b, ok := c.pop()
	if !ok {
		return 0, ErrTimeout
	}
	return b, nil
}

// ReadBytes fills buf, stopping early when a read times out. It returns the
// number of bytes stored, or Unavailable when the channel is not started.
func (c *Channel) ReadBytes(buf []byte) int {
	if !c.started.Load() {
		return Unavailable
	}
	for i := range buf {
		v := c.Read()
		if v < 0 {
			return i
		}
		buf[i] = byte(v)
	}
	return len(buf)
}

// ReadBytesUntil is ReadBytes that also stops after storing delim. The
// returned count includes the delimiter.
func (c *Channel) ReadBytesUntil(buf []byte, delim byte) int {
	return c.readUntil(buf, func(b byte) bool { return b == delim })
}

// ReadString reads a NUL-terminated string into buf. The NUL is stored and
// counted.
func (c *Channel) ReadString(buf []byte) int {
	return c.ReadBytesUntil(buf, 0)
}

// ReadStringUntil reads into buf until a NUL or delim is stored.
func (c *Channel) ReadStringUntil(buf []byte, delim byte) int {
	return c.readUntil(buf, func(b byte) bool { return b == 0 || b == delim })
}

func (c *Channel) readUntil(buf []byte, stop func(byte) bool) int {
	if !c.started.Load() {
		return Unavailable
	}
	for i := range buf {
		v := c.Read()
		if v < 0 {
			return i
		}
		buf[i] = byte(v)
		if stop(buf[i]) {
			return i + 1
		}
	}
	return len(buf)
}

// WriteByte waits for the transmit register to empty, then sends b. It
// returns ErrNotStarted, without touching the peripheral, when the channel
// is not started.
func (c *Channel) WriteByte(b byte) error {
	if !c.started.Load() {
		return ErrNotStarted
	}
	for !c.periph.TransmitEmpty() {
	}
	if err := c.periph.SendByte(b); err != nil {
		return err
	}
	c.stats.written.Inc()
	return nil
}

// Write implements io.Writer. Every byte is handed to the peripheral before
// Write returns.
func (c *Channel) Write(p []byte) (int, error) {
	if !c.started.Load() {
		return 0, ErrNotStarted
	}
	for i, b := range p {
		if err := c.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// Print writes p and returns the number of bytes sent.
func (c *Channel) Print(p []byte) int {
	n, err := c.Write(p)
	if err != nil && !errors.Is(err, ErrNotStarted) {
		c.log.Debug().Err(err).Int("written", n).Msg("print interrupted")
	}
	return n
}

// PrintString writes s.
func (c *Channel) PrintString(s string) int {
	return c.Print([]byte(s))
}

// Println writes p followed by the line ending.
func (c *Channel) Println(p []byte) int {
	if !c.started.Load() {
		return 0
	}
	n := c.Print(p)
	if n < len(p) {
		return n
	}
	return n + c.Print(c.newline)
}
