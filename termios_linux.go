//go:build linux

package serial

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// TermiosPort is a Linux tty bound as a Channel peripheral. The device is
// opened raw by Configure and closed by Teardown; in between a reader
// goroutine waits in poll(2) and raises the receive interrupt for every byte
// read. A self-pipe makes the reader killable.
type TermiosPort struct {
	interruptLine

	device string

	mu   sync.Mutex
	sess *termiosSession
}

type termiosSession struct {
	fd    int
	pipeR int
	pipeW int

	done    chan struct{}
	reading bool

	mu      sync.Mutex
	stopped bool
	closed  bool
}

// NewTermiosPort returns an unopened binding for device, e.g. /dev/ttyUSB0.
func NewTermiosPort(device string) *TermiosPort {
	return &TermiosPort{device: device}
}

func newTermiosPeripheral(device string) (Peripheral, error) {
	return NewTermiosPort(device), nil
}

// Device returns the tty path.
func (p *TermiosPort) Device() string { return p.device }

// Configure opens the tty if needed and applies raw mode with the requested
// rate and framing.
func (p *TermiosPort) Configure(baudRate uint32, wordLength WordLength, stopBits StopBits, parity Parity) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess != nil {
		return applyTermios(p.sess.fd, baudRate, wordLength, stopBits, parity)
	}
	s, err := openTermios(p.device)
	if err != nil {
		return err
	}
	if err := applyTermios(s.fd, baudRate, wordLength, stopBits, parity); err != nil {
		s.close()
		return err
	}
	p.sess = s
	return nil
}

func openTermios(device string) (*termiosSession, error) {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}
	return &termiosSession{
		fd:    fd,
		pipeR: pipeFds[0],
		pipeW: pipeFds[1],
		done:  make(chan struct{}),
	}, nil
}

func applyTermios(fd int, baudRate uint32, wordLength WordLength, stopBits StopBits, parity Parity) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	if err := setLine(termios, baudRate, wordLength, stopBits, parity); err != nil {
		return err
	}
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}

	// Turn back into blocking mode now that config is done
	if err := unix.SetNonblock(fd, false); err != nil {
		return fmt.Errorf("set blocking: %w", err)
	}
	return nil
}

// setLine puts termios in raw mode with the given rate and framing.
func setLine(termios *unix.Termios, baudRate uint32, wordLength WordLength, stopBits StopBits, parity Parity) error {
	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag |= unix.CREAD | unix.CLOCAL

	size, err := csize(wordLength)
	if err != nil {
		return err
	}
	termios.Cflag &^= unix.CSIZE
	termios.Cflag |= size

	switch stopBits {
	case StopBits1:
		termios.Cflag &^= unix.CSTOPB
	case StopBits2:
		termios.Cflag |= unix.CSTOPB
	default:
		return fmt.Errorf("%w: %s stop bits", ErrUnsupported, stopBits)
	}

	termios.Cflag &^= unix.PARENB | unix.PARODD | unix.CMSPAR
	termios.Iflag &^= unix.INPCK
	switch parity {
	case ParityNone:
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	case ParityMark:
		termios.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
	case ParitySpace:
		termios.Cflag |= unix.PARENB | unix.CMSPAR
	default:
		return fmt.Errorf("%w: parity %s", ErrUnsupported, parity)
	}
	if parity != ParityNone {
		termios.Iflag |= unix.INPCK
	}

	baud, err := baudToUnix(baudRate)
	if err != nil {
		return err
	}
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud
	termios.Ispeed = baud
	termios.Ospeed = baud

	// Set VMIN=1, VTIME=0 for immediate reads
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
	return nil
}

func csize(wl WordLength) (uint32, error) {
	switch wl {
	case WordLength5:
		return unix.CS5, nil
	case WordLength6:
		return unix.CS6, nil
	case WordLength7:
		return unix.CS7, nil
	case WordLength8:
		return unix.CS8, nil
	}
	return 0, fmt.Errorf("%w: %d data bits", ErrUnsupported, wl)
}

func baudToUnix(baud uint32) (uint32, error) {
	switch baud {
	case 1200:
		return unix.B1200, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 921600:
		return unix.B921600, nil
	}
	return 0, fmt.Errorf("%w: baud rate %d", ErrUnsupported, baud)
}

// EnableReceiveInterrupt installs handler and starts the reader goroutine.
func (p *TermiosPort) EnableReceiveInterrupt(handler func()) error {
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

func (p *TermiosPort) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == nil {
		return ErrPortClosed
	}
	p.enabled.Store(true)
	return nil
}

func (p *TermiosPort) Disable() error {
	p.enabled.Store(false)
	return nil
}

// Teardown stops the reader and closes the tty. A running reader closes its
// own descriptors on the way out.
func (p *TermiosPort) Teardown() error {
	p.mu.Lock()
	s := p.sess
	p.sess = nil
	reading := s != nil && s.reading
	p.mu.Unlock()

	p.disarm()
	if s == nil {
		return nil
	}
	s.stop()
	if !reading {
		return s.close()
	}
	return nil
}

// SendByte writes b to the tty. The descriptor is blocking, so the call
// returns once the kernel has taken the byte.
func (p *TermiosPort) SendByte(b byte) error {
	p.mu.Lock()
	s := p.sess
	p.mu.Unlock()
	if s == nil {
		return ErrPortClosed
	}
	return s.withFd(func(fd int) error {
		for {
			n, err := unix.Write(fd, []byte{b})
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				return fmt.Errorf("write %s: %w", p.device, err)
			}
			if n == 1 {
				return nil
			}
		}
	})
}

// TransmitEmpty reports whether the driver output queue has drained.
func (p *TermiosPort) TransmitEmpty() bool {
	p.mu.Lock()
	s := p.sess
	p.mu.Unlock()
	if s == nil {
		return true
	}
	empty := true
	s.withFd(func(fd int) error {
		n, err := unix.IoctlGetInt(fd, unix.TIOCOUTQ)
		empty = err != nil || n == 0
		return nil
	})
	return empty
}

// readLoop waits on the tty and the self-pipe, and raises the receive
// interrupt once per byte read.
func (p *TermiosPort) readLoop(s *termiosSession) {
	defer s.close()

	buf := make([]byte, 256)
	for {
		// Use poll to wait for data or kill signal
		pfd := []unix.PollFd{
			{Fd: int32(s.fd), Events: unix.POLLIN},
			{Fd: int32(s.pipeR), Events: unix.POLLIN},
		}
		_, err := unix.Poll(pfd, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil || !s.live() {
			return
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			return
		}
		if pfd[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 && pfd[0].Revents&unix.POLLIN == 0 {
			return
		}
		if pfd[0].Revents&unix.POLLIN != 0 {
			n, err := unix.Read(s.fd, buf)
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			if err != nil || n == 0 {
				return
			}
			for _, b := range buf[:n] {
				p.raise(b, s.live)
			}
		}
	}
}

func (s *termiosSession) live() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *termiosSession) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
	if !s.closed {
		// Wake up poll using self-pipe
		unix.Write(s.pipeW, []byte{1})
	}
}

// withFd runs fn on the tty descriptor unless the session already closed it.
func (s *termiosSession) withFd(fn func(fd int) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrPortClosed
	}
	return fn(s.fd)
}

// close releases the descriptors. The reader calls it on exit, Teardown calls
// it when no reader was started; whichever comes second is a no-op.
func (s *termiosSession) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := unix.Close(s.fd)
	unix.Close(s.pipeR)
	unix.Close(s.pipeW)
	return err
}
