// Package serial provides a buffered serial channel in the style of the
// classic microcontroller "Serial" object: an interrupt-fed receive ring,
// timeout-bounded reads, and blocking writes.
//
// A Channel drives a Peripheral. The peripheral raises a receive interrupt
// for every incoming byte and the channel's handler stores it in a
// fixed-size ring (RxBufferSize slots, one kept empty). When the ring is full
// the incoming byte is dropped and older unread bytes are kept. Reads pop
// from the ring, spinning until a byte shows up or the channel timeout
// (DefaultTimeout, 1000 ms) elapses. Writes wait for the transmit register
// to empty and hand the peripheral one byte at a time; there is no output
// buffer.
//
// Features:
//   - Lock-free single-producer/single-consumer receive ring
//   - Arduino-style Read/ReadBytes/ReadBytesUntil/ReadString API with -1 sentinels
//   - io.Writer and io.ByteReader adapters
//   - Linux termios binding with a killable poll(2) reader (TermiosPort)
//   - Portable binding over go.bug.st/serial (BugstPort)
//   - Injectable Clock and Peripheral for deterministic tests
//
// The int-returning operations report "not started" and "timed out" as
// Unavailable (-1). A Channel is meant for one consumer goroutine.
//
// Example usage:
//
//	ch := serial.NewChannel(serial.NewTermiosPort("/dev/ttyUSB0"))
//	if err := ch.Begin(115200); err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.End()
//
//	ch.Println([]byte("C,START"))
//
//	buf := make([]byte, 64)
//	n := ch.ReadBytesUntil(buf, '\n')
//	if n > 0 {
//	    fmt.Printf("Received: %q\n", buf[:n])
//	}
package serial
