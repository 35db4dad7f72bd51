package serial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func alive() bool { return true }

func TestInterruptLine_Raise(t *testing.T) {
	var l interruptLine
	var got []byte
	handler := func() {
		got = append(got, l.ReceiveByte())
		l.ClearReceivePending()
	}

	// not armed
	require.False(t, l.raise('a', alive))

	l.MaskInterrupts()
	l.arm(handler)
	l.UnmaskInterrupts()

	// armed but peripheral disabled
	require.False(t, l.raise('b', alive))

	l.enabled.Store(true)
	require.True(t, l.raise('c', alive))
	require.True(t, l.raise('d', alive))
	require.False(t, l.raise('e', func() bool { return false }))
	require.Equal(t, "cd", string(got))

	l.MaskInterrupts()
	l.disarm()
	l.UnmaskInterrupts()
	require.False(t, l.raise('f', alive))
	require.Equal(t, "cd", string(got))
}

func TestInterruptLine_Unacknowledged(t *testing.T) {
	var l interruptLine
	l.MaskInterrupts()
	l.arm(func() {})
	l.UnmaskInterrupts()
	l.enabled.Store(true)

	require.False(t, l.raise('x', alive))
	require.Equal(t, byte('x'), l.ReceiveByte())
}
