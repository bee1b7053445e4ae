// Package board describes how YMF825 chips are wired to the USB bridge.
//
// A Config is data only: chip-select pins, the IC (reset) pin and the SPI
// clock divisor. Board variants are presets or TOML files, not types.
package board

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/valerio/go-ymf825/ymf825/fault"
)

// Pin describes a group of GPIO pins on one of the bridge's two 8-bit banks.
type Pin struct {
	// HighBank selects the high (ACBUS) bank instead of the low (ADBUS) one.
	HighBank bool `toml:"high_bank"`
	// Value is the pin mask. For chip select, each set bit is one chip.
	Value uint8 `toml:"value"`
	// Direction is OR'ed into the bank direction byte (1 = output).
	Direction uint8 `toml:"direction"`
	// ActiveHigh inverts the default active-low polarity.
	ActiveHigh bool `toml:"active_high"`
}

// Config is the wiring of one board.
type Config struct {
	Name string `toml:"name"`
	// ChipSelect carries one pin per chip.
	ChipSelect Pin `toml:"chip_select"`
	// Reset is the IC pin shared by every chip.
	Reset Pin `toml:"reset"`
	// ClockDivisor sets SCK = 60 MHz / ((1 + divisor) * 2).
	ClockDivisor uint16 `toml:"clock_divisor"`
}

// DefaultClockDivisor gives a 10 MHz SPI clock, the chip's maximum.
const DefaultClockDivisor = 2

// Validate checks the configuration for pin conflicts.
func (c Config) Validate() error {
	if c.ChipSelect.Value == 0 {
		return fmt.Errorf("board %q: no chip-select pins: %w", c.Name, fault.ErrOutOfRange)
	}
	if c.ChipSelect.Direction&c.ChipSelect.Value != c.ChipSelect.Value {
		return fmt.Errorf("board %q: chip-select pins must be outputs: %w", c.Name, fault.ErrOutOfRange)
	}
	if c.Reset.Direction&c.Reset.Value != c.Reset.Value {
		return fmt.Errorf("board %q: reset pin must be an output: %w", c.Name, fault.ErrOutOfRange)
	}
	if !c.ChipSelect.HighBank && c.ChipSelect.Value&spiPins != 0 {
		return fmt.Errorf("board %q: chip select overlaps SCK/MOSI/MISO: %w", c.Name, fault.ErrOutOfRange)
	}
	if c.ChipSelect.HighBank == c.Reset.HighBank && c.ChipSelect.Value&c.Reset.Value != 0 {
		return fmt.Errorf("board %q: reset pin overlaps chip select: %w", c.Name, fault.ErrOutOfRange)
	}
	_, err := NewAddressor(c.ChipSelect.Value)
	return err
}

// Addressor builds the chip addressor for the configured chip-select pins.
func (c Config) Addressor() (*Addressor, error) {
	return NewAddressor(c.ChipSelect.Value)
}

// spiPins are ADBUS0-2 (SCK, MOSI, MISO), owned by the MPSSE engine.
const spiPins = 0x07

var presets = map[string]Config{
	// single chip: CS on ADBUS3, IC on ACBUS0
	"ymf825board": {
		Name:         "ymf825board",
		ChipSelect:   Pin{Value: 0x08, Direction: 0x08},
		Reset:        Pin{HighBank: true, Value: 0x01, Direction: 0x01},
		ClockDivisor: DefaultClockDivisor,
	},
	// stereo pair: left on ADBUS3, right on ADBUS4
	"ymf825board-stereo": {
		Name:         "ymf825board-stereo",
		ChipSelect:   Pin{Value: 0x18, Direction: 0x18},
		Reset:        Pin{HighBank: true, Value: 0x01, Direction: 0x01},
		ClockDivisor: DefaultClockDivisor,
	},
}

// Preset returns a built-in board configuration by name.
func Preset(name string) (Config, error) {
	c, ok := presets[strings.ToLower(name)]
	if !ok {
		return Config{}, fmt.Errorf("unknown board %q (have %s): %w", name, strings.Join(Presets(), ", "), fault.ErrOutOfRange)
	}
	return c, nil
}

// Presets lists the built-in board names.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Load reads a board configuration from a TOML file.
//
//	name = "custom"
//	clock_divisor = 2
//	[chip_select]
//	value = 0x18
//	direction = 0x18
//	[reset]
//	high_bank = true
//	value = 0x01
//	direction = 0x01
func Load(path string) (Config, error) {
	c := Config{ClockDivisor: DefaultClockDivisor}
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read board file %s: %v", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("board file %s: unknown key %s: %w", path, undecoded[0], fault.ErrOutOfRange)
	}
	if c.Name == "" {
		c.Name = path
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
