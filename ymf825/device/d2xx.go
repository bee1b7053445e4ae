package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/d2xx"
)

// D2XX is a bridge opened through FTDI's proprietary D2XX driver.
type D2XX struct {
	mu     sync.Mutex
	h      d2xx.Handle
	index  int
	closed bool
	logger *slog.Logger
}

// toErr converts a d2xx status into an error, nil on success.
func toErr(op string, e d2xx.Err) error {
	if e == 0 {
		return nil
	}
	return fmt.Errorf("d2xx: %s: %s", op, e.String())
}

// CountD2XX returns the number of FTDI devices visible to the D2XX driver.
func CountD2XX() (int, error) {
	if !d2xx.Available {
		return 0, errors.New("d2xx: driver not available in this build")
	}
	n, e := d2xx.CreateDeviceInfoList()
	if err := toErr("CreateDeviceInfoList", e); err != nil {
		return 0, err
	}
	return n, nil
}

// OpenD2XX opens the bridge at index and switches it to MPSSE mode.
func OpenD2XX(index int, logger *slog.Logger) (*D2XX, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !d2xx.Available {
		return nil, errors.New("d2xx: driver not available in this build")
	}
	h, e := d2xx.Open(index)
	if err := toErr("Open", e); err != nil {
		return nil, err
	}
	d := &D2XX{h: h, index: index, logger: logger}
	if err := d.initMPSSE(); err != nil {
		h.Close()
		return nil, err
	}
	logger.Info("d2xx: opened bridge", "index", index)
	return d, nil
}

func (d *D2XX) initMPSSE() error {
	if err := toErr("ResetDevice", d.h.ResetDevice()); err != nil {
		return err
	}
	if err := toErr("SetUSBParameters", d.h.SetUSBParameters(65536, 65536)); err != nil {
		return err
	}
	if err := toErr("SetChars", d.h.SetChars(0, false, 0, false)); err != nil {
		return err
	}
	if err := toErr("SetTimeouts", d.h.SetTimeouts(5000, 5000)); err != nil {
		return err
	}
	if err := toErr("SetLatencyTimer", d.h.SetLatencyTimer(1)); err != nil {
		return err
	}
	if err := toErr("SetBitMode", d.h.SetBitMode(0, bitModeReset)); err != nil {
		return err
	}
	if err := toErr("SetBitMode", d.h.SetBitMode(0, bitModeMPSSE)); err != nil {
		return err
	}
	// the MPSSE engine needs a moment before it accepts commands
	time.Sleep(50 * time.Millisecond)
	return d.purgeLocked()
}

func (d *D2XX) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}
	written := 0
	for written < len(p) {
		n, e := d.h.Write(p[written:])
		if err := toErr("Write", e); err != nil {
			return written, err
		}
		if n == 0 {
			return written, errors.New("d2xx: Write made no progress")
		}
		written += n
	}
	return written, nil
}

func (d *D2XX) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}
	n, e := d.h.Read(p)
	return n, toErr("Read", e)
}

func (d *D2XX) QueueStatus() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}
	n, e := d.h.GetQueueStatus()
	return int(n), toErr("GetQueueStatus", e)
}

// Purge drains the receive queue by reading it; D2XX's purge call is not
// exposed by the wrapper.
func (d *D2XX) Purge() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	return d.purgeLocked()
}

func (d *D2XX) purgeLocked() error {
	var buf [512]byte
	for {
		n, e := d.h.GetQueueStatus()
		if err := toErr("GetQueueStatus", e); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		chunk := buf[:]
		if int(n) < len(chunk) {
			chunk = chunk[:n]
		}
		if _, e := d.h.Read(chunk); e != 0 {
			return toErr("Read", e)
		}
	}
}

func (d *D2XX) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.logger.Info("d2xx: closed bridge", "index", d.index)
	return toErr("Close", d.h.Close())
}

var _ Device = (*D2XX)(nil)
