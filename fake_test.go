package serial

// fakePeripheral records every call the channel makes and lets a test play
// the receive interrupt with inject.
type fakePeripheral struct {
	calls []string

	handler func()
	enabled bool
	masked  bool
	rdr     byte
	pending bool

	sent     []byte
	busy     int // TransmitEmpty returns false this many times per byte
	txPolls  int
	txChecks int

	configured   LineConfig
	configureErr error
	enableErr    error
	sendErr      error
}

func (f *fakePeripheral) record(name string) { f.calls = append(f.calls, name) }

func (f *fakePeripheral) Configure(baud uint32, wl WordLength, sb StopBits, pa Parity) error {
	f.record("Configure")
	if f.configureErr != nil {
		return f.configureErr
	}
	f.configured = LineConfig{BaudRate: baud, WordLength: wl, StopBits: sb, Parity: pa}
	return nil
}

func (f *fakePeripheral) EnableReceiveInterrupt(h func()) error {
	f.record("EnableReceiveInterrupt")
	f.handler = h
	return nil
}

func (f *fakePeripheral) Enable() error {
	f.record("Enable")
	if f.enableErr != nil {
		return f.enableErr
	}
	f.enabled = true
	return nil
}

func (f *fakePeripheral) Disable() error {
	f.record("Disable")
	f.enabled = false
	return nil
}

func (f *fakePeripheral) Teardown() error {
	f.record("Teardown")
	f.handler = nil
	f.enabled = false
	return nil
}

func (f *fakePeripheral) SendByte(b byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, b)
	return nil
}

func (f *fakePeripheral) TransmitEmpty() bool {
	f.txChecks++
	f.txPolls++
	if f.txPolls <= f.busy {
		return false
	}
	f.txPolls = 0
	return true
}

func (f *fakePeripheral) ReceiveByte() byte { return f.rdr }

func (f *fakePeripheral) ClearReceivePending() { f.pending = false }

func (f *fakePeripheral) EnablePeripheralClock()  { f.record("EnablePeripheralClock") }
func (f *fakePeripheral) DisablePeripheralClock() { f.record("DisablePeripheralClock") }
func (f *fakePeripheral) InitPins()               { f.record("InitPins") }
func (f *fakePeripheral) ReleasePins()            { f.record("ReleasePins") }

func (f *fakePeripheral) MaskInterrupts() {
	f.record("MaskInterrupts")
	f.masked = true
}

func (f *fakePeripheral) UnmaskInterrupts() {
	f.record("UnmaskInterrupts")
	f.masked = false
}

// inject raises the receive interrupt for each byte. Bytes arriving while the
// peripheral is off or masked are lost, as on hardware.
func (f *fakePeripheral) inject(bs ...byte) {
	for _, b := range bs {
		if f.handler == nil || !f.enabled || f.masked {
			continue
		}
		f.rdr = b
		f.pending = true
		f.handler()
	}
}

func (f *fakePeripheral) resetCalls() { f.calls = nil }

// stepClock advances by step on every reading.
type stepClock struct {
	now   uint32
	step  uint32
	reads int
}

func (c *stepClock) Millis() uint32 {
	v := c.now
	c.now += c.step
	c.reads++
	return v
}

func newTestChannel(opts ...Option) (*Channel, *fakePeripheral, *stepClock) {
	fp := &fakePeripheral{}
	clk := &stepClock{step: 1}
	ch := NewChannel(fp, append([]Option{WithClock(clk)}, opts...)...)
	return ch, fp, clk
}
