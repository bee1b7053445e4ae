package device

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/valerio/go-ymf825/ymf825/addr"
	"github.com/valerio/go-ymf825/ymf825/board"
)

// Sim emulates an FT232H in MPSSE mode with YMF825 chips on its chip-select
// pins. Decoded SPI traffic updates one register file per chip and reads are
// answered from it, so the whole stack can run without hardware.
type Sim struct {
	mu     sync.Mutex
	cfg    board.Config
	pins   []uint8 // chip-select pin per chip slot
	banks  [2]gpioBank
	chips  []*simChip
	rx     []byte
	writes [][]byte
	resets []bool // IC pin level after each change
	closed bool

	// settings
	hardwareID byte
	stallReads bool
	logger     *slog.Logger
}

type gpioBank struct {
	value, direction byte
}

type simChip struct {
	regs   [256]byte
	bursts map[uint8][][]byte
}

// SimOption configures a Sim.
type SimOption func(*Sim)

// WithSimLogger sets the logger used for decoded traffic.
func WithSimLogger(l *slog.Logger) SimOption { return func(s *Sim) { s.logger = l } }

// WithHardwareID sets the value every chip returns from the ID register.
func WithHardwareID(id byte) SimOption { return func(s *Sim) { s.hardwareID = id } }

// WithStalledReads makes read commands produce no reply, as a bridge with a
// disconnected MISO line would.
func WithStalledReads() SimOption { return func(s *Sim) { s.stallReads = true } }

// NewSim creates a simulated bridge wired as described by cfg.
func NewSim(cfg board.Config, opts ...SimOption) *Sim {
	s := &Sim{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range uint8(8) {
		if cfg.ChipSelect.Value&(1<<i) != 0 {
			s.pins = append(s.pins, 1<<i)
			s.chips = append(s.chips, &simChip{})
		}
	}
	for _, c := range s.chips {
		c.reset(s.hardwareID)
	}
	return s
}

func (c *simChip) reset(id byte) {
	c.regs = [256]byte{}
	c.regs[addr.HardwareID] = id
	c.bursts = map[uint8][][]byte{}
}

// Write decodes and executes a buffer of MPSSE commands.
func (s *Sim) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	s.writes = append(s.writes, append([]byte(nil), p...))

	for i := 0; i < len(p); {
		op := p[i]
		switch op {
		case OpSetLowBank, OpSetHighBank:
			if i+2 >= len(p) {
				return i, fmt.Errorf("sim: truncated GPIO command at %d", i)
			}
			s.setBank(op == OpSetHighBank, p[i+1], p[i+2])
			i += 3
		case OpReadLowBank:
			s.rx = append(s.rx, s.banks[0].value)
			i++
		case OpReadHighBank:
			s.rx = append(s.rx, s.banks[1].value)
			i++
		case OpSPIWrite, OpSPIReadWrite:
			if i+2 >= len(p) {
				return i, fmt.Errorf("sim: truncated SPI header at %d", i)
			}
			n := (int(p[i+1]) | int(p[i+2])<<8) + 1
			if i+3+n > len(p) {
				return i, fmt.Errorf("sim: SPI payload of %d bytes truncated at %d", n, i)
			}
			s.spi(op == OpSPIReadWrite, p[i+3:i+3+n])
			i += 3 + n
		case OpSetClockDivisor:
			i += 3
		case OpSendImmediate, OpLoopbackOff, OpDisableDivBy5, OpDisable3Phase, OpDisableAdaptive:
			i++
		default:
			s.logger.Warn("sim: bad MPSSE command", "opcode", fmt.Sprintf("0x%02X", op))
			s.rx = append(s.rx, OpBadCommandMarker, op)
			i++
		}
	}
	return len(p), nil
}

func (s *Sim) setBank(high bool, value, direction byte) {
	b := 0
	if high {
		b = 1
	}
	s.banks[b] = gpioBank{value: value, direction: direction}

	if s.cfg.Reset.Value != 0 && s.cfg.Reset.HighBank == high {
		level := value&s.cfg.Reset.Value != 0
		if n := len(s.resets); n == 0 || s.resets[n-1] != level {
			s.resets = append(s.resets, level)
			// the chips restart on every rising edge of IC
			if level && n > 0 {
				for _, c := range s.chips {
					c.reset(s.hardwareID)
				}
			}
		}
	}
}

// selected returns the chips whose chip-select pin is asserted.
func (s *Sim) selected() []*simChip {
	bank := s.banks[0]
	if s.cfg.ChipSelect.HighBank {
		bank = s.banks[1]
	}
	var out []*simChip
	for i, pin := range s.pins {
		level := bank.value&pin != 0
		if level == s.cfg.ChipSelect.ActiveHigh {
			out = append(out, s.chips[i])
		}
	}
	return out
}

func (s *Sim) spi(duplex bool, data []byte) {
	chips := s.selected()
	a := data[0] &^ addr.ReadFlag
	isRead := data[0]&addr.ReadFlag != 0

	if duplex {
		if s.stallReads {
			return
		}
		value := byte(0xFF) // MISO idles high with nothing selected
		if len(chips) > 0 {
			value = chips[0].regs[a]
		}
		if len(chips) > 1 {
			s.logger.Warn("sim: read with several chips selected", "chips", len(chips))
		}
		reply := make([]byte, len(data))
		for i := 1; i < len(reply); i++ {
			if isRead {
				reply[i] = value
			}
		}
		s.rx = append(s.rx, reply...)
		return
	}

	if len(chips) == 0 {
		s.logger.Debug("sim: SPI write with no chip selected", "addr", fmt.Sprintf("0x%02X", a))
		return
	}
	if isRead {
		return
	}

	payload := data[1:]
	s.logger.Debug("sim: write", "reg", addr.Name(a), "addr", fmt.Sprintf("0x%02X", a), "len", len(payload), "chips", len(chips))
	for _, c := range chips {
		c.write(a, payload)
	}
}

func (c *simChip) write(a uint8, payload []byte) {
	if len(payload) == 0 || addr.IsReadOnly(a) {
		return
	}
	if !addr.IsBurst(a) {
		c.regs[a] = payload[len(payload)-1]
		return
	}

	c.bursts[a] = append(c.bursts[a], append([]byte(nil), payload...))
	if a >= addr.EqualizerBand0 && a <= addr.EqualizerBand2 && len(payload) == addr.EqualizerBandBytes {
		band := int(a - addr.EqualizerBand0)
		copy(c.regs[int(addr.EqualizerReadback)+band*addr.EqualizerBandBytes:], payload)
	}
}

// Read drains bytes from the receive queue.
func (s *Sim) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	n := copy(p, s.rx)
	s.rx = s.rx[n:]
	return n, nil
}

// QueueStatus returns the number of reply bytes not yet read.
func (s *Sim) QueueStatus() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	return len(s.rx), nil
}

// Purge drops pending reply bytes.
func (s *Sim) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.rx = nil
	return nil
}

// Close marks the device closed. Further calls fail with ErrClosed.
func (s *Sim) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Chips returns the number of simulated chips.
func (s *Sim) Chips() int {
	return len(s.chips)
}

// Registers returns a copy of the register file of the chip in slot.
func (s *Sim) Registers(slot int) [256]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chips[slot].regs
}

// Bursts returns every payload burst-written to register a of the chip in slot.
func (s *Sim) Bursts(slot int, a uint8) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out [][]byte
	for _, b := range s.chips[slot].bursts[a] {
		out = append(out, append([]byte(nil), b...))
	}
	return out
}

// Writes returns a copy of every buffer passed to Write, in order.
func (s *Sim) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(s.writes))
	for i, w := range s.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// ClearWrites forgets the recorded write buffers.
func (s *Sim) ClearWrites() {
	s.mu.Lock()
	s.writes = nil
	s.mu.Unlock()
}

// ResetLevels returns the IC pin level after each change, oldest first.
func (s *Sim) ResetLevels() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.resets...)
}

var _ Device = (*Sim)(nil)
