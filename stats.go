package serial

import "go.uber.org/atomic"

type counters struct {
	received atomic.Uint64
	dropped  atomic.Uint64
	written  atomic.Uint64
	timeouts atomic.Uint64
}

// Stats is a point-in-time copy of a channel's counters. Counters survive
// End and Begin; they describe the channel, not a session.
type Stats struct {
	Started       bool       `json:"started"`
	Line          LineConfig `json:"line"`
	Buffered      int        `json:"buffered"`
	BytesReceived uint64     `json:"bytes_received"`
	BytesDropped  uint64     `json:"bytes_dropped"`
	BytesWritten  uint64     `json:"bytes_written"`
	ReadTimeouts  uint64     `json:"read_timeouts"`
}

// Stats returns the current counters. Dropped bytes are the ones the receive
// interrupt discarded because the ring was full.
func (c *Channel) Stats() Stats {
	s := Stats{
		Started:       c.started.Load(),
		BytesReceived: c.stats.received.Load(),
		BytesDropped:  c.stats.dropped.Load(),
		BytesWritten:  c.stats.written.Load(),
		ReadTimeouts:  c.stats.timeouts.Load(),
	}
	if lc := c.line.Load(); lc != nil {
		s.Line = *lc
	}
	if s.Started {
		s.Buffered = c.rx.Len()
	}
	return s
}
