// Package transport frames YMF825 register traffic as MPSSE commands.
//
// Writes are queued into a command buffer, each wrapped in its own
// chip-select assert/deassert, and sent to the bridge in one USB write on
// Flush. Reads flush, clock two bytes in and poll the receive queue.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/valerio/go-ymf825/ymf825/addr"
	"github.com/valerio/go-ymf825/ymf825/bit"
	"github.com/valerio/go-ymf825/ymf825/board"
	"github.com/valerio/go-ymf825/ymf825/device"
	"github.com/valerio/go-ymf825/ymf825/fault"
	"github.com/valerio/go-ymf825/ymf825/timing"
)

var (
	// ErrDisposed is returned by every operation after Close.
	ErrDisposed = fmt.Errorf("transport disposed: %w", fault.ErrCommunication)
	// ErrNoTarget is returned when no chip-select target is configured.
	ErrNoTarget = fmt.Errorf("no chip-select target: %w", fault.ErrCommunication)
	// ErrReadTimeout is returned when a read reply never shows up.
	ErrReadTimeout = fmt.Errorf("read reply timed out: %w", fault.ErrCommunication)
)

const (
	// MaxBurst is the largest payload one SPI command can carry.
	MaxBurst = 0xFFFF

	initialBufferSize = 4096
	readReplyLen      = 2

	// sckPins are ADBUS0 (SCK) and ADBUS1 (MOSI), always outputs.
	sckPins = 0x03

	// DefaultReadTimeout bounds the wait for a read reply.
	DefaultReadTimeout = time.Second
)

// Transport owns a bridge and its outbound command buffer.
type Transport struct {
	mu     sync.Mutex
	dev    device.Device
	cfg    board.Config
	chips  *board.Addressor
	buf    []byte
	n      int
	banks  [2]bank
	target board.TargetChip
	csPins uint8
	closed bool

	// settings
	logger       *slog.Logger
	sleeper      timing.Sleeper
	readTimeout  time.Duration
	pollInterval time.Duration
}

type bank struct {
	value, direction byte
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(t *Transport) { t.logger = l } }

// WithSleeper replaces the sleeper used for reset pulses and read polling.
func WithSleeper(s timing.Sleeper) Option { return func(t *Transport) { t.sleeper = s } }

// WithReadTimeout bounds the wait for a read reply. Zero waits forever.
func WithReadTimeout(d time.Duration) Option { return func(t *Transport) { t.readTimeout = d } }

// WithPollInterval sets the wait between receive queue polls.
func WithPollInterval(d time.Duration) Option { return func(t *Transport) { t.pollInterval = d } }

// New configures the bridge's MPSSE engine and GPIO banks for cfg.
// The transport owns dev from now on and closes it in Close.
func New(dev device.Device, cfg board.Config, opts ...Option) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	chips, err := cfg.Addressor()
	if err != nil {
		return nil, err
	}

	t := &Transport{
		dev:          dev,
		cfg:          cfg,
		chips:        chips,
		buf:          make([]byte, initialBufferSize),
		logger:       slog.Default(),
		sleeper:      timing.NewRealSleeper(),
		readTimeout:  DefaultReadTimeout,
		pollInterval: timing.PollInterval,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.banks[0].direction = sckPins
	t.setupPin(cfg.ChipSelect)
	t.setupPin(cfg.Reset)
	if !cfg.ChipSelect.ActiveHigh {
		t.bank(cfg.ChipSelect.HighBank).value |= cfg.ChipSelect.Value
	}

	div := cfg.ClockDivisor
	t.append(device.OpDisableDivBy5, device.OpDisableAdaptive, device.OpDisable3Phase,
		device.OpSetClockDivisor, bit.Low(div), bit.High(div), device.OpLoopbackOff)
	t.queueGPIO(false, t.banks[0].value, t.banks[0].direction)
	t.queueGPIO(true, t.banks[1].value, t.banks[1].direction)
	if err := t.flushLocked(); err != nil {
		return nil, err
	}

	t.logger.Info("transport: ready", "board", cfg.Name, "chips", chips.Chips(), "sck_divisor", div)
	return t, nil
}

func (t *Transport) setupPin(p board.Pin) {
	t.bank(p.HighBank).direction |= p.Direction
}

func (t *Transport) bank(high bool) *bank {
	if high {
		return &t.banks[1]
	}
	return &t.banks[0]
}

// Chips returns the addressor built from the board's chip-select pins.
func (t *Transport) Chips() *board.Addressor {
	return t.chips
}

// SetTarget selects the chips subsequent writes and reads go to.
func (t *Transport) SetTarget(target board.TargetChip) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrDisposed
	}
	pins, err := t.chips.Resolve(target)
	if err != nil {
		return err
	}
	t.target = target
	t.csPins = pins
	return nil
}

// Target returns the currently selected chips.
func (t *Transport) Target() board.TargetChip {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// reserve grows the buffer so n more bytes fit, keeping queued bytes.
func (t *Transport) reserve(n int) {
	if t.n+n <= len(t.buf) {
		return
	}
	size := max(2*len(t.buf), t.n+n)
	grown := make([]byte, size)
	copy(grown, t.buf[:t.n])
	t.buf = grown
}

func (t *Transport) append(b ...byte) {
	t.reserve(len(b))
	t.n += copy(t.buf[t.n:], b)
}

// queueGPIO appends a set-bank command.
func (t *Transport) queueGPIO(high bool, value, direction byte) {
	op := byte(device.OpSetLowBank)
	if high {
		op = device.OpSetHighBank
	}
	t.append(op, value, direction)
}

// chipSelect queues the chip-select pins asserted or released.
func (t *Transport) chipSelect(assert bool) {
	cs := t.cfg.ChipSelect
	b := *t.bank(cs.HighBank)
	if assert == cs.ActiveHigh {
		b.value |= t.csPins
	} else {
		b.value &^= t.csPins
	}
	t.queueGPIO(cs.HighBank, b.value, b.direction)
}

// queueSPI appends one framed SPI command carrying the address and payload.
func (t *Transport) queueSPI(op byte, address byte, payload []byte) {
	length := len(payload) // payload bytes + address - 1
	t.reserve(3 + 3 + 1 + len(payload) + 3)
	t.chipSelect(true)
	t.append(op, byte(length), byte(length>>8), address)
	t.append(payload...)
	t.chipSelect(false)
}

func (t *Transport) usable() error {
	if t.closed {
		return ErrDisposed
	}
	if t.csPins == 0 {
		return ErrNoTarget
	}
	return nil
}

// Write queues a write of data to consecutive bytes of register address.
func (t *Transport) Write(address byte, data ...byte) error {
	if len(data) == 0 || len(data) > MaxBurst {
		return fault.Range("write length", len(data), 1, MaxBurst)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.usable(); err != nil {
		return err
	}
	t.queueSPI(device.OpSPIWrite, address, data)
	return nil
}

// BurstWrite queues data[offset:offset+count] as one write to address.
func (t *Transport) BurstWrite(address byte, data []byte, offset, count int) error {
	if count <= 0 || count > MaxBurst {
		return fault.Range("burst length", count, 1, MaxBurst)
	}
	if offset < 0 || offset+count > len(data) {
		return fmt.Errorf("burst window [%d, %d) outside %d bytes: %w", offset, offset+count, len(data), fault.ErrOutOfRange)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.usable(); err != nil {
		return err
	}
	t.queueSPI(device.OpSPIWrite, address, data[offset:offset+count])
	return nil
}

// Flush sends the queued commands to the bridge.
func (t *Transport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrDisposed
	}
	return t.flushLocked()
}

func (t *Transport) flushLocked() error {
	t.append(device.OpSendImmediate)
	frame := t.buf[:t.n]
	if t.logger.Enabled(context.Background(), slog.LevelDebug) {
		t.logger.Debug("transport: flush", "len", len(frame), "frame", fmt.Sprintf("% X", frame))
	}
	if _, err := t.dev.Write(frame); err != nil {
		// keep the buffer so the caller can inspect or retry
		t.n--
		return fault.Comm("flush", err)
	}
	t.n = 0
	return nil
}

// Pending returns a copy of the queued, not yet flushed commands.
func (t *Transport) Pending() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.buf[:t.n]...)
}

// Read returns the value of register address on the single selected chip.
func (t *Transport) Read(address byte) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.usable(); err != nil {
		return 0, err
	}
	// MISO is shared, two selected chips would drive it against each other
	if bit.Count(t.csPins) != 1 {
		return 0, fault.Invalid(fmt.Sprintf("read from %v needs exactly one chip selected", t.target))
	}

	if err := t.flushLocked(); err != nil {
		return 0, err
	}
	if err := t.dev.Purge(); err != nil {
		return 0, fault.Comm("purge", err)
	}
	t.queueSPI(device.OpSPIReadWrite, address|addr.ReadFlag, []byte{0x00})
	if err := t.flushLocked(); err != nil {
		return 0, err
	}

	if err := t.waitReply(readReplyLen); err != nil {
		return 0, err
	}
	reply := make([]byte, readReplyLen)
	for got := 0; got < readReplyLen; {
		n, err := t.dev.Read(reply[got:])
		if err != nil {
			return 0, fault.Comm("read", err)
		}
		got += n
	}
	return reply[1], nil
}

func (t *Transport) waitReply(want int) error {
	var deadline time.Time
	if t.readTimeout > 0 {
		deadline = time.Now().Add(t.readTimeout)
	}
	for {
		n, err := t.dev.QueueStatus()
		if err != nil {
			return fault.Comm("queue status", err)
		}
		if n >= want {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ErrReadTimeout
		}
		t.sleeper.Sleep(t.pollInterval)
	}
}

// InvokeHardwareReset pulses the IC pin low, high, low with 2 ms between steps.
func (t *Transport) InvokeHardwareReset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrDisposed
	}
	ic := t.cfg.Reset
	b := t.bank(ic.HighBank)
	for i, level := range []bool{false, true, false} {
		if level {
			b.value |= ic.Value
		} else {
			b.value &^= ic.Value
		}
		t.queueGPIO(ic.HighBank, b.value, b.direction)
		if err := t.flushLocked(); err != nil {
			return err
		}
		if i < 2 {
			t.sleeper.Sleep(timing.ResetPulse)
		}
	}
	t.logger.Info("transport: hardware reset")
	return nil
}

// Close releases the bridge. Later calls fail with ErrDisposed.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.buf = nil
	t.n = 0
	err := t.dev.Close()
	t.logger.Info("transport: closed")
	if err != nil && !errors.Is(err, device.ErrClosed) {
		return fault.Comm("close", err)
	}
	return nil
}
