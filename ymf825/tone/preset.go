package tone

// Default returns a plain two operator tone: operator 2 modulates operator 1
// a little, operators 3 and 4 are silent. It is what the CLI plays when no
// other tone is loaded.
func Default() *Parameter {
	p := &Parameter{}
	mustSet(p.SetBasicOctave(1))
	mustSet(p.SetAlgorithm(0))

	carrier := &p.Operators[0]
	mustSet(carrier.SetAttackRate(15))
	mustSet(carrier.SetDecayRate(2))
	mustSet(carrier.SetSustainLevel(4))
	mustSet(carrier.SetSustainRate(0))
	mustSet(carrier.SetReleaseRate(5))
	mustSet(carrier.SetMagnificationOfFrequency(1))

	mod := &p.Operators[1]
	mustSet(mod.SetAttackRate(15))
	mustSet(mod.SetDecayRate(4))
	mustSet(mod.SetSustainLevel(8))
	mustSet(mod.SetReleaseRate(7))
	mustSet(mod.SetTotalLevel(32))
	mustSet(mod.SetMagnificationOfFrequency(1))
	mustSet(mod.SetFeedbackLevel(2))

	for i := 2; i < Operators; i++ {
		mustSet(p.Operators[i].SetTotalLevel(63))
		mustSet(p.Operators[i].SetReleaseRate(15))
	}
	return p
}

func mustSet(err error) {
	if err != nil {
		panic(err)
	}
}
