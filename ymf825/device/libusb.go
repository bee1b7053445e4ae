//go:build libusb

package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/gousb"
)

// FTDI vendor requests (SIO) used over a raw libusb handle.
const (
	sioReset        = 0x00
	sioSetLatency   = 0x09
	sioSetBitMode   = 0x0B
	sioResetSIO     = 0
	sioPurgeRX      = 1
	sioPurgeTX      = 2
	ftdiInterfaceA  = 1
	ftdiStatusBytes = 2
	requestOut      = gousb.ControlVendor | gousb.ControlDevice | gousb.ControlOut
)

// LibUSB is a bridge driven directly through libusb bulk endpoints.
//
// The FTDI chip prefixes every IN packet with two modem status bytes; they
// are stripped here and the payload kept in rx so QueueStatus can report it.
type LibUSB struct {
	mu     sync.Mutex
	ctx    *gousb.Context
	dev    *gousb.Device
	done   func()
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	rx     []byte
	closed bool
	logger *slog.Logger
}

// OpenLibUSB opens the first FT232H and switches it to MPSSE mode.
func OpenLibUSB(logger *slog.Logger) (*LibUSB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(VendorID, ProductID)
	if err != nil || dev == nil {
		ctx.Close()
		if err == nil {
			err = errors.New("no FT232H found")
		}
		return nil, fmt.Errorf("libusb: %v", err)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("libusb: failed to detach kernel driver: %v", err)
	}
	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("libusb: failed to claim interface: %v", err)
	}
	u := &LibUSB{ctx: ctx, dev: dev, done: done, logger: logger}
	if u.in, err = intf.InEndpoint(1); err == nil {
		u.out, err = intf.OutEndpoint(2)
	}
	if err == nil {
		err = u.initMPSSE()
	}
	if err != nil {
		u.release()
		return nil, fmt.Errorf("libusb: %v", err)
	}
	logger.Info("libusb: opened bridge", "vid", fmt.Sprintf("%04x", VendorID), "pid", fmt.Sprintf("%04x", ProductID))
	return u, nil
}

func (u *LibUSB) control(request uint8, value uint16) error {
	_, err := u.dev.Control(requestOut, request, value, ftdiInterfaceA, nil)
	return err
}

func (u *LibUSB) initMPSSE() error {
	steps := []struct {
		request uint8
		value   uint16
	}{
		{sioReset, sioResetSIO},
		{sioReset, sioPurgeRX},
		{sioReset, sioPurgeTX},
		{sioSetLatency, 1},
		{sioSetBitMode, bitModeReset << 8},
		{sioSetBitMode, bitModeMPSSE << 8},
	}
	for _, s := range steps {
		if err := u.control(s.request, s.value); err != nil {
			return err
		}
	}
	time.Sleep(50 * time.Millisecond)
	return nil
}

func (u *LibUSB) Write(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return 0, ErrClosed
	}
	return u.out.Write(p)
}

// fill pulls whatever the bridge has pending into rx.
func (u *LibUSB) fill() error {
	size := u.in.Desc.MaxPacketSize
	buf := make([]byte, size*4)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	n, err := u.in.ReadContext(ctx, buf)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && n == 0 {
		return err
	}
	for off := 0; off < n; off += size {
		end := min(off+size, n)
		if end-off > ftdiStatusBytes {
			u.rx = append(u.rx, buf[off+ftdiStatusBytes:end]...)
		}
	}
	return nil
}

func (u *LibUSB) Read(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return 0, ErrClosed
	}
	if len(u.rx) < len(p) {
		if err := u.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, u.rx)
	u.rx = u.rx[n:]
	return n, nil
}

func (u *LibUSB) QueueStatus() (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return 0, ErrClosed
	}
	if err := u.fill(); err != nil {
		return 0, err
	}
	return len(u.rx), nil
}

func (u *LibUSB) Purge() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return ErrClosed
	}
	u.rx = nil
	return u.control(sioReset, sioPurgeRX)
}

func (u *LibUSB) release() {
	u.done()
	u.dev.Close()
	u.ctx.Close()
}

func (u *LibUSB) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil
	}
	u.closed = true
	u.release()
	u.logger.Info("libusb: closed bridge")
	return nil
}

var _ Device = (*LibUSB)(nil)
