package serial

import "time"

// Clock is a monotonic millisecond counter. It wraps modulo 2^32; callers
// compare elapsed time with unsigned subtraction.
type Clock interface {
	Millis() uint32
}

// SystemClock counts milliseconds since it was created, using the runtime's
// monotonic clock.
type SystemClock struct {
	epoch time.Time
}

// NewSystemClock returns a clock starting at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{epoch: time.Now()}
}

func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.epoch).Milliseconds())
}
