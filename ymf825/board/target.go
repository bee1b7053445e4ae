package board

import (
	"strings"

	"github.com/valerio/go-ymf825/ymf825/bit"
	"github.com/valerio/go-ymf825/ymf825/fault"
)

// TargetChip is a set of physical chip slots a transaction is addressed to.
type TargetChip uint8

const (
	// None selects no chip.
	None TargetChip = 0
	// Board0 is the first chip found in the chip-select pin value.
	Board0 TargetChip = 1 << (iota - 1)
	Board1
	Board2
	Board3
	Board4
)

// MaxChips is the number of chip slots a TargetChip can address.
const MaxChips = 5

const targetMask TargetChip = Board0 | Board1 | Board2 | Board3 | Board4

// NewTargetChip converts a raw bitset, rejecting bits without a chip slot.
func NewTargetChip(v uint8) (TargetChip, error) {
	if TargetChip(v)&^targetMask != 0 {
		return None, fault.Range("target chip", v, 0, uint8(targetMask))
	}
	return TargetChip(v), nil
}

// Has reports whether every chip in other is part of t.
func (t TargetChip) Has(other TargetChip) bool {
	return t&other == other
}

// Count returns the number of chips in the set.
func (t TargetChip) Count() int {
	return bit.Count(uint8(t))
}

// Chips splits the set into its single-chip members, lowest slot first.
func (t TargetChip) Chips() []TargetChip {
	var out []TargetChip
	for i := range MaxChips {
		c := TargetChip(1 << i)
		if t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Index returns the slot number of a single-chip target, or -1.
func (t TargetChip) Index() int {
	if t.Count() != 1 {
		return -1
	}
	for i := range MaxChips {
		if t == TargetChip(1<<i) {
			return i
		}
	}
	return -1
}

func (t TargetChip) String() string {
	if t == None {
		return "None"
	}
	names := []string{"Board0", "Board1", "Board2", "Board3", "Board4"}
	var parts []string
	for i, n := range names {
		if t.Has(TargetChip(1 << i)) {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}
