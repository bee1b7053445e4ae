//go:build !libusb

package device

import (
	"fmt"
	"log/slog"
)

// LibUSB stub for when libusb is not available
type LibUSB struct {
	Device
}

// OpenLibUSB always fails in builds without the libusb tag.
func OpenLibUSB(*slog.Logger) (*LibUSB, error) {
	return nil, fmt.Errorf("libusb backend not available - compile with -tags libusb and install libusb-1.0 development files")
}
