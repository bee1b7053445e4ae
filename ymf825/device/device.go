// Package device provides access to an FTDI MPSSE USB bridge.
//
// A Device is a raw byte pipe to the bridge's command processor: writes carry
// MPSSE commands, reads return the bytes clocked in by read commands. Each
// backend wraps one native USB library; the transport above never sees it.
package device

import (
	"errors"
	"io"
)

// Device is the capability the transport needs from a USB bridge.
type Device interface {
	io.ReadWriteCloser

	// QueueStatus returns the number of bytes waiting in the receive queue.
	QueueStatus() (int, error)

	// Purge discards everything in the receive queue.
	Purge() error
}

// FTDI identifiers of the FT232H.
const (
	VendorID  = 0x0403
	ProductID = 0x6014
)

// Bit modes accepted by SetBitMode.
const (
	bitModeReset = 0x00
	bitModeMPSSE = 0x02
)

// MPSSE opcodes understood by the bridge.
const (
	OpSetLowBank       = 0x80
	OpSetHighBank      = 0x82
	OpReadLowBank      = 0x81
	OpReadHighBank     = 0x83
	OpSPIWrite         = 0x11 // bytes out on -ve edge, MSB first
	OpSPIReadWrite     = 0x31 // bytes out on -ve edge, in on +ve edge, MSB first
	OpLoopbackOff      = 0x85
	OpSetClockDivisor  = 0x86
	OpSendImmediate    = 0x87
	OpDisableDivBy5    = 0x8A
	OpDisable3Phase    = 0x8D
	OpDisableAdaptive  = 0x97
	OpBadCommandMarker = 0xFA
)

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("device closed")
