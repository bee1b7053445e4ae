// Package tone encodes FM voice definitions into the YMF825 contents format.
//
// A Collection holds the 16 tone slots of the chip. Exporting it produces
// the blob burst-written to the contents register:
//
//	[0x80+N] [30 bytes x N] [0x80 0x03 0x81 0x80]
//
// where N is the number of tones sent, counted from slot 0.
package tone

import (
	"fmt"

	"github.com/valerio/go-ymf825/ymf825/bit"
	"github.com/valerio/go-ymf825/ymf825/fault"
)

const (
	// Operators is the number of operators per tone.
	Operators = 4
	// Size is the number of bytes one tone occupies.
	Size = 2 + Operators*OperatorSize
	// Slots is the number of tones the chip holds.
	Slots = 16

	headerBase = 0x80
)

var footer = [4]byte{0x80, 0x03, 0x81, 0x80}

func checkWindow(buf []byte, offset, n int) error {
	if offset < 0 || offset+n > len(buf) {
		return fmt.Errorf("need %d bytes at offset %d of a %d byte buffer: %w", n, offset, len(buf), fault.ErrOutOfRange)
	}
	return nil
}

// Parameter is one tone: header fields plus four owned operators.
type Parameter struct {
	basicOctave int
	lfo         int
	algorithm   int

	Operators [Operators]Operator
}

func (p *Parameter) BasicOctave() int  { return p.basicOctave }
func (p *Parameter) LfoFrequency() int { return p.lfo }
func (p *Parameter) Algorithm() int    { return p.algorithm }

// SetBasicOctave sets BO (0-3).
func (p *Parameter) SetBasicOctave(v int) error { return set(&p.basicOctave, "basic octave", v, 3) }

// SetLfoFrequency sets LFO (0-3).
func (p *Parameter) SetLfoFrequency(v int) error { return set(&p.lfo, "lfo frequency", v, 3) }

// SetAlgorithm sets ALG (0-7).
func (p *Parameter) SetAlgorithm(v int) error { return set(&p.algorithm, "algorithm", v, 7) }

// Export packs the tone into buf[offset:offset+30].
func (p *Parameter) Export(buf []byte, offset int) error {
	if err := checkWindow(buf, offset, Size); err != nil {
		return err
	}
	buf[offset] = bit.Field(p.basicOctave, 2, 0)
	buf[offset+1] = bit.Field(p.lfo, 2, 6) | bit.Field(p.algorithm, 3, 0)
	for i := range p.Operators {
		if err := p.Operators[i].Export(buf, offset+2+i*OperatorSize); err != nil {
			return err
		}
	}
	return nil
}

// Import unpacks a 30 byte tone block.
func (p *Parameter) Import(buf []byte, offset int) error {
	if err := checkWindow(buf, offset, Size); err != nil {
		return err
	}
	p.basicOctave = int(bit.ExtractBits(buf[offset], 1, 0))
	p.lfo = int(bit.ExtractBits(buf[offset+1], 7, 6))
	p.algorithm = int(bit.ExtractBits(buf[offset+1], 2, 0))
	for i := range p.Operators {
		if err := p.Operators[i].Import(buf, offset+2+i*OperatorSize); err != nil {
			return err
		}
	}
	return nil
}

// Collection is the bank of 16 tones loaded into the chip.
type Collection struct {
	tones [Slots]*Parameter
}

// NewCollection returns a collection of 16 zeroed tones.
func NewCollection() *Collection {
	c := &Collection{}
	for i := range c.tones {
		c.tones[i] = &Parameter{}
	}
	return c
}

// Tone returns the tone in slot i.
func (c *Collection) Tone(i int) (*Parameter, error) {
	if i < 0 || i >= Slots {
		return nil, fault.Range("tone number", i, 0, Slots-1)
	}
	return c.tones[i], nil
}

// ExportSize returns the blob length for tones 0..target.
func ExportSize(target int) int {
	return 1 + Size*(target+1) + len(footer)
}

// Export writes the contents blob for tones 0..target to buf at offset and
// returns the number of bytes written. Arguments are validated before any
// byte is written.
func (c *Collection) Export(buf []byte, offset, target int) (int, error) {
	if target < 0 || target >= Slots {
		return 0, fault.Range("target tone number", target, 0, Slots-1)
	}
	n := ExportSize(target)
	if err := checkWindow(buf, offset, n); err != nil {
		return 0, err
	}

	buf[offset] = headerBase + byte(target+1)
	pos := offset + 1
	for i := 0; i <= target; i++ {
		if err := c.tones[i].Export(buf, pos); err != nil {
			return 0, err
		}
		pos += Size
	}
	copy(buf[pos:], footer[:])
	return n, nil
}

// Bytes returns the contents blob for tones 0..target.
func (c *Collection) Bytes(target int) ([]byte, error) {
	if target < 0 || target >= Slots {
		return nil, fault.Range("target tone number", target, 0, Slots-1)
	}
	buf := make([]byte, ExportSize(target))
	if _, err := c.Export(buf, 0, target); err != nil {
		return nil, err
	}
	return buf, nil
}
