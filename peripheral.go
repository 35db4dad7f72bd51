package serial

// Peripheral is the UART binding a Channel drives. Implementations own the
// device; the Channel owns the receive buffer.
//
// The receive side behaves like a hardware data register: whenever a byte
// arrives the binding calls the handler registered with
// EnableReceiveInterrupt, and the handler fetches the byte with ReceiveByte
// and acknowledges it with ClearReceivePending. Handlers run to completion
// and are never invoked concurrently with each other.
type Peripheral interface {
	// Configure applies rate and framing. Called with interrupts masked.
	Configure(baudRate uint32, wordLength WordLength, stopBits StopBits, parity Parity) error
	// EnableReceiveInterrupt arms the receive-not-empty source.
	EnableReceiveInterrupt(handler func()) error
	// Enable starts the transmitter and receiver.
	Enable() error
	// Disable stops the transmitter and receiver.
	Disable() error
	// Teardown returns the peripheral to its reset state.
	Teardown() error

	// SendByte loads b into the transmit register.
	SendByte(b byte) error
	// TransmitEmpty reports whether the transmit register can take a byte.
	TransmitEmpty() bool
	// ReceiveByte returns the byte in the receive register.
	ReceiveByte() byte
	// ClearReceivePending acknowledges the receive interrupt.
	ClearReceivePending()
}

// ClockGate is implemented by bindings whose peripheral sits behind a clock
// enable.
type ClockGate interface {
	EnablePeripheralClock()
	DisablePeripheralClock()
}

// PinController is implemented by bindings that own the TX/RX pins.
// InitPins drives TX push-pull and pulls RX up; ReleasePins floats both.
type PinController interface {
	InitPins()
	ReleasePins()
}

// InterruptMasker is implemented by bindings that can hold off receive
// interrupt delivery. MaskInterrupts does not return while a handler is
// running.
type InterruptMasker interface {
	MaskInterrupts()
	UnmaskInterrupts()
}
