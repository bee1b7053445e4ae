package board

import (
	"fmt"
	"slices"

	"github.com/valerio/go-ymf825/ymf825/bit"
	"github.com/valerio/go-ymf825/ymf825/fault"
)

// Addressor maps a TargetChip to the chip-select pins to assert.
//
// Every set bit of the chip-select pin value is one physical chip, numbered
// from the lowest bit up. Only single chips and pairs are registered: a
// combination of three or more chips resolves only if a pair happens to
// produce it, which never happens with distinct pins.
type Addressor struct {
	pins  map[TargetChip]uint8
	chips []uint8 // pin bit per slot
}

// NewAddressor enumerates the chips reachable through csPins.
func NewAddressor(csPins uint8) (*Addressor, error) {
	if n := bit.Count(csPins); n > MaxChips {
		return nil, fault.Range("chip-select pin count", n, 0, MaxChips)
	}

	a := &Addressor{pins: map[TargetChip]uint8{None: 0}}
	for i := range uint8(8) {
		if bit.IsSet(i, csPins) {
			a.chips = append(a.chips, 1<<i)
		}
	}

	for i, pi := range a.chips {
		for j, pj := range a.chips {
			flag := TargetChip(1<<i) | TargetChip(1<<j)
			if _, ok := a.pins[flag]; !ok {
				a.pins[flag] = pi | pj
			}
		}
	}
	return a, nil
}

// Resolve returns the OR of the chip-select pins participating in t.
func (a *Addressor) Resolve(t TargetChip) (uint8, error) {
	pins, ok := a.pins[t]
	if !ok {
		return 0, fmt.Errorf("target %v is not addressable: %w", t, fault.ErrOutOfRange)
	}
	return pins, nil
}

// Chips returns the number of physical chips found.
func (a *Addressor) Chips() int {
	return len(a.chips)
}

// All returns the target made of every chip, when it is addressable.
func (a *Addressor) All() TargetChip {
	all := TargetChip(1<<len(a.chips)) - 1
	if _, ok := a.pins[all]; ok {
		return all
	}
	return None
}

// Targets lists every addressable combination in ascending order.
func (a *Addressor) Targets() []TargetChip {
	out := make([]TargetChip, 0, len(a.pins))
	for t := range a.pins {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
