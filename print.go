package serial

import (
	"math"
	"strconv"
)

// FloatPrecision is the number of fractional digits PrintFloat emits.
const FloatPrecision = 4

// maxDigits is the longest decimal rendering of a 64-bit integer, sign included.
const maxDigits = 20

// PrintInt writes v in decimal.
func (c *Channel) PrintInt(v int64) int {
	var buf [maxDigits]byte
	return c.Print(strconv.AppendInt(buf[:0], v, 10))
}

// PrintUint writes v in decimal.
func (c *Channel) PrintUint(v uint64) int {
	var buf [maxDigits]byte
	return c.Print(strconv.AppendUint(buf[:0], v, 10))
}

// PrintFloat writes v with FloatPrecision fractional digits. Digits past the
// precision are cut off, not rounded: 1.99999 prints as 1.9999, never 2.0000.
// The scaled fraction is printed as a plain integer without leading zeros, so
// 1.05 prints as 1.500 and 3.0 as 3.0.
// NaN and infinities print as nan, inf and -inf; magnitudes that do not fit
// an int64 print as ovf.
func (c *Channel) PrintFloat(v float64) int {
	if !c.started.Load() {
		return 0
	}
	switch {
	case math.IsNaN(v):
		return c.PrintString("nan")
	case math.IsInf(v, 1):
		return c.PrintString("inf")
	case math.IsInf(v, -1):
		return c.PrintString("-inf")
	}

	var buf [2*maxDigits + 2]byte
	out := buf[:0]
	if math.Signbit(v) && v != 0 {
		out = append(out, '-')
		v = -v
	}
	if v >= math.MaxInt64 {
		return c.PrintString("ovf")
	}

	intg := uint64(v)
	frac := uint64((v - float64(intg)) * math.Pow10(FloatPrecision))

	out = strconv.AppendUint(out, intg, 10)
	out = append(out, '.')
	out = strconv.AppendUint(out, frac, 10)
	return c.Print(out)
}
