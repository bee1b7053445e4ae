// Package driver exposes the YMF825 register set as typed methods and
// serializes groups of writes into sections.
//
// A Driver sits on top of a Transport. Register setters queue writes and,
// unless section mode is enabled, flush them right away. With section mode
// enabled, writes made inside a Section are delivered in one flush and never
// interleave with another goroutine's section.
package driver

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/valerio/go-ymf825/ymf825/board"
	"github.com/valerio/go-ymf825/ymf825/timing"
)

// Transport is what the driver needs from the bridge.
type Transport interface {
	Write(address byte, data ...byte) error
	BurstWrite(address byte, data []byte, offset, count int) error
	Read(address byte) (byte, error)
	Flush() error
	SetTarget(target board.TargetChip) error
	Target() board.TargetChip
	InvokeHardwareReset() error
	Chips() *board.Addressor
	Close() error
}

// Driver drives one set of YMF825 chips.
type Driver struct {
	t Transport

	// section state
	lock        chan struct{}
	mu          sync.Mutex // guards owner
	owner       *Section
	sectionMode atomic.Bool
	entered     atomic.Int64

	// settings
	logger  *slog.Logger
	sleeper timing.Sleeper
	dvdd33  bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.logger = l } }

// WithSleeper replaces the sleeper used for section settle delays.
func WithSleeper(s timing.Sleeper) Option { return func(d *Driver) { d.sleeper = s } }

// WithPowerRail selects the DRV_SEL value written by ResetSoftware: true for
// a 3.3 V supply, false (the default) for 5 V.
func WithPowerRail(dvdd33 bool) Option { return func(d *Driver) { d.dvdd33 = dvdd33 } }

// New wraps t and targets every chip on the board.
func New(t Transport, opts ...Option) (*Driver, error) {
	d := &Driver{
		t:       t,
		lock:    make(chan struct{}, 1),
		logger:  slog.Default(),
		sleeper: timing.NewRealSleeper(),
	}
	for _, opt := range opts {
		opt(d)
	}

	target := t.Chips().All()
	if target == board.None {
		target = board.Board0
	}
	if err := t.SetTarget(target); err != nil {
		return nil, err
	}
	return d, nil
}

// Chips returns the addressor of the underlying board.
func (d *Driver) Chips() *board.Addressor {
	return d.t.Chips()
}

// Write queues raw bytes to a register. Nothing is flushed.
func (d *Driver) Write(address byte, data ...byte) error {
	return d.t.Write(address, data...)
}

// BurstWrite queues data[offset:offset+count] to a register. Nothing is flushed.
func (d *Driver) BurstWrite(address byte, data []byte, offset, count int) error {
	return d.t.BurstWrite(address, data, offset, count)
}

// Read returns a register of the currently targeted chip.
// It fails when ctx holds a locked section.
func (d *Driver) Read(ctx context.Context, address byte) (byte, error) {
	if err := d.checkNotOwner(ctx); err != nil {
		return 0, err
	}
	return d.t.Read(address)
}

// Flush sends queued writes.
func (d *Driver) Flush() error {
	return d.t.Flush()
}

// SetTarget selects the chips subsequent writes go to.
func (d *Driver) SetTarget(target board.TargetChip) error {
	return d.t.SetTarget(target)
}

// Target returns the selected chips.
func (d *Driver) Target() board.TargetChip {
	return d.t.Target()
}

// InvokeHardwareReset pulses the IC pin of every chip.
func (d *Driver) InvokeHardwareReset() error {
	return d.t.InvokeHardwareReset()
}

// Close releases the transport.
func (d *Driver) Close() error {
	return d.t.Close()
}

func (d *Driver) flushUnlessSectioned() error {
	if d.sectionMode.Load() {
		return nil
	}
	return d.t.Flush()
}
