//go:build !linux

package serial

import "fmt"

func newTermiosPeripheral(string) (Peripheral, error) {
	return nil, fmt.Errorf("%w: termios driver requires linux", ErrUnsupported)
}
