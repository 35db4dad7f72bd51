package serial

import (
	"errors"
	"fmt"
	"sync"
	"time"

	gobug "go.bug.st/serial"
)

// allow tests to override external dependencies
var (
	openBugst    = func(name string, mode *gobug.Mode) (bugstHandle, error) { return gobug.Open(name, mode) }
	getPortsList = gobug.GetPortsList
)

// bugstPollInterval bounds how long the reader sits in Read before it
// notices Teardown.
const bugstPollInterval = 50 * time.Millisecond

// bugstHandle is the subset of go.bug.st/serial.Port used by BugstPort.
type bugstHandle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Drain() error
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// BugstPort binds a Channel to a serial device through go.bug.st/serial, so
// it works wherever that package does (Linux, macOS, Windows, BSD).
type BugstPort struct {
	interruptLine

	device string

	mu   sync.Mutex
	sess *bugstSession
}

type bugstSession struct {
	port     bugstHandle
	done     chan struct{}
	stopOnce sync.Once
	reading  bool
}

// NewBugstPort returns an unopened binding for device (e.g. COM3 or /dev/ttyACM0).
func NewBugstPort(device string) *BugstPort {
	return &BugstPort{device: device}
}

// AvailablePorts lists the serial devices present on the system.
func AvailablePorts() ([]string, error) {
	ports, err := getPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}

// Device returns the device name.
func (p *BugstPort) Device() string { return p.device }

// bugstMode maps line settings onto a go.bug.st mode.
func bugstMode(baudRate uint32, wordLength WordLength, stopBits StopBits, parity Parity) (*gobug.Mode, error) {
	mode := &gobug.Mode{
		BaudRate: int(baudRate),
		DataBits: int(wordLength),
	}
	switch stopBits {
	case StopBits1:
		mode.StopBits = gobug.OneStopBit
	case StopBits1Half:
		mode.StopBits = gobug.OnePointFiveStopBits
	case StopBits2:
		mode.StopBits = gobug.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: %s stop bits", ErrUnsupported, stopBits)
	}
	switch parity {
	case ParityNone:
		mode.Parity = gobug.NoParity
	case ParityOdd:
		mode.Parity = gobug.OddParity
	case ParityEven:
		mode.Parity = gobug.EvenParity
	case ParityMark:
		mode.Parity = gobug.MarkParity
	case ParitySpace:
		mode.Parity = gobug.SpaceParity
	default:
		return nil, fmt.Errorf("%w: parity %s", ErrUnsupported, parity)
	}
	return mode, nil
}

// Configure opens the device with the requested mode. Stale input is
// discarded.
func (p *BugstPort) Configure(baudRate uint32, wordLength WordLength, stopBits StopBits, parity Parity) error {
	mode, err := bugstMode(baudRate, wordLength, stopBits, parity)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess != nil {
		return errors.New("serial: port already configured")
	}

	h, err := openBugst(p.device, mode)
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}
	if err := h.SetReadTimeout(bugstPollInterval); err != nil {
		return errors.Join(err, h.Close())
	}
	if err := h.ResetInputBuffer(); err != nil {
		return errors.Join(err, h.Close())
	}
	p.sess = &bugstSession{port: h, done: make(chan struct{})}
	return nil
}

// EnableReceiveInterrupt installs handler and starts the reader goroutine.
func (p *BugstPort) EnableReceiveInterrupt(handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.sess
	if s == nil {
		return ErrPortClosed
	}
	p.arm(handler)
	if !s.reading {
		s.reading = true
		go p.readLoop(s)
	}
	return nil
}

func (p *BugstPort) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == nil {
		return ErrPortClosed
	}
	p.enabled.Store(true)
	return nil
}

func (p *BugstPort) Disable() error {
	p.enabled.Store(false)
	return nil
}

// Teardown stops the reader and closes the port.
func (p *BugstPort) Teardown() error {
	p.mu.Lock()
	s := p.sess
	p.sess = nil
	reading := s != nil && s.reading
	p.mu.Unlock()

	p.disarm()
	if s == nil {
		return nil
	}
	s.stopOnce.Do(func() { close(s.done) })
	if !reading {
		return s.port.Close()
	}
	return nil
}

// SendByte writes b and waits for it to leave the OS buffer.
func (p *BugstPort) SendByte(b byte) error {
	p.mu.Lock()
	s := p.sess
	p.mu.Unlock()
	if s == nil {
		return ErrPortClosed
	}
	n, err := s.port.Write([]byte{b})
	if err != nil {
		return err
	}
	if n != 1 {
		return errors.New("serial: short write")
	}
	return s.port.Drain()
}

// TransmitEmpty is always true: SendByte drains before it returns.
func (p *BugstPort) TransmitEmpty() bool { return true }

func (p *BugstPort) readLoop(s *bugstSession) {
	defer s.port.Close()

	live := func() bool {
		select {
		case <-s.done:
			return false
		default:
			return true
		}
	}

	buf := make([]byte, 256)
	for live() {
		n, err := s.port.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			p.raise(b, live)
		}
	}
}
