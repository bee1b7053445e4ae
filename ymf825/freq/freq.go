// Package freq converts between notes, frequencies and the YMF825 FNUM/BLOCK
// pitch representation, and turns envelope rates into times.
//
// Everything here is pure.
package freq

import (
	"math"

	"github.com/valerio/go-ymf825/ymf825/fault"
)

const (
	// MaxBlock is the highest octave selector the chip accepts.
	MaxBlock = 6
	// MaxFnum is the largest 10-bit FNUM.
	MaxFnum = 1023
	// MaxKey is the highest MIDI key number.
	MaxKey = 127

	// MultiplierSteps is the resolution of the frequency multiplier fraction.
	MultiplierSteps = 512
	maxMultiplier   = 4*MultiplierSteps - 1

	tableBlock = 3
	// keyOffset makes key 60 land on block 3.
	keyOffset = 2
)

// idealFnum holds the FNUM of each semitone at block 3, starting at key 48.
var idealFnum = func() [12]float64 {
	var t [12]float64
	for i := range t {
		hz := 440 * math.Pow(2, float64(48+i-69)/12)
		t[i] = CalcFnum(hz, tableBlock)
	}
	return t
}()

// CalcFnum returns the FNUM producing freqHz at the given block.
func CalcFnum(freqHz float64, block int) float64 {
	return math.Pow(2, float64(13-block)) * freqHz / 375.0
}

// CalcFrequency returns the frequency produced by fnum at the given block.
func CalcFrequency(fnum float64, block int) float64 {
	return 375.0 * math.Pow(2, float64(block-13)) * fnum
}

// Pitch is a key expressed in chip units.
type Pitch struct {
	// Fnum is the unrounded FNUM, at most MaxFnum.
	Fnum float64
	// Block is the octave selector, 0-6.
	Block int
	// Correction is the ratio between the wanted frequency and the one the
	// rounded FNUM produces. Apply it through the frequency multiplier.
	Correction float64
}

// Register returns Fnum rounded to the value written to the chip.
func (p Pitch) Register() int {
	return int(math.Round(p.Fnum))
}

// FnumAndBlock maps a MIDI key to FNUM and BLOCK. Keys that fall outside
// the block range are folded back by scaling FNUM by a power of two.
func FnumAndBlock(key int) (Pitch, error) {
	if key < 0 || key > MaxKey {
		return Pitch{}, fault.Range("key", key, 0, MaxKey)
	}

	block := key/12 - keyOffset
	mod := 1.0
	switch {
	case block < 0:
		mod = math.Pow(2, float64(block))
		block = 0
	case block > MaxBlock:
		mod = math.Pow(2, float64(block-MaxBlock))
		block = MaxBlock
	}

	fnum := math.Min(idealFnum[key%12]*mod, MaxFnum)
	rounded := math.Round(fnum)
	return Pitch{
		Fnum:       fnum,
		Block:      block,
		Correction: CalcFrequency(fnum, block) / CalcFrequency(rounded, block),
	}, nil
}

// ConvertForFrequencyMultiplier quantizes m to 1/512 steps and splits it into
// the integer (0-3) and fraction (0-511) register fields.
func ConvertForFrequencyMultiplier(m float64) (integer, fraction int, err error) {
	if !(m >= 0 && m < 4) {
		return 0, 0, fault.Range("frequency multiplier", m, 0.0, "4 (exclusive)")
	}
	q := min(int(math.Round(m*MultiplierSteps)), maxMultiplier)
	return q / MultiplierSteps, q % MultiplierSteps, nil
}

// CalcRof returns the envelope rate offset for a note.
func CalcRof(ksr bool, block, basicOctave, fnum int) int {
	if !ksr {
		return (block + basicOctave) / 2
	}
	rof := (block + basicOctave) * 2
	if fnum >= 512 {
		rof++
	}
	return rof
}
