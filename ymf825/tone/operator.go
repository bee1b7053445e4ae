package tone

import (
	"github.com/valerio/go-ymf825/ymf825/bit"
	"github.com/valerio/go-ymf825/ymf825/fault"
)

// OperatorSize is the number of bytes one operator occupies in a tone block.
const OperatorSize = 7

// Operator holds the parameters of one FM operator.
// Numeric fields can only be changed through their setters, which reject
// out of range values and leave the field untouched.
type Operator struct {
	sustainRate  int
	releaseRate  int
	decayRate    int
	attackRate   int
	sustainLevel int
	totalLevel   int
	keyScaling   int
	amDepth      int
	vibratoDepth int
	multiplier   int
	detune       int
	waveShape    int
	feedback     int

	IgnoreKeyOff              bool // XOF
	EnableKeyScaleSensitivity bool // KSR
	EnableAmplitudeModulation bool // EAM
	EnableVibrato             bool // EVB
}

func set(field *int, name string, v, hi int) error {
	if v < 0 || v > hi {
		return fault.Range(name, v, 0, hi)
	}
	*field = v
	return nil
}

func (o *Operator) SustainRate() int  { return o.sustainRate }
func (o *Operator) ReleaseRate() int  { return o.releaseRate }
func (o *Operator) DecayRate() int    { return o.decayRate }
func (o *Operator) AttackRate() int   { return o.attackRate }
func (o *Operator) SustainLevel() int { return o.sustainLevel }
func (o *Operator) TotalLevel() int   { return o.totalLevel }
func (o *Operator) KeyScalingLevel() int {
	return o.keyScaling
}
func (o *Operator) AmplitudeModulationDepth() int { return o.amDepth }
func (o *Operator) VibratoDepth() int             { return o.vibratoDepth }
func (o *Operator) MagnificationOfFrequency() int { return o.multiplier }
func (o *Operator) Detune() int                   { return o.detune }
func (o *Operator) WaveShape() int                { return o.waveShape }
func (o *Operator) FeedbackLevel() int            { return o.feedback }

// SetSustainRate sets SR (0-15).
func (o *Operator) SetSustainRate(v int) error { return set(&o.sustainRate, "sustain rate", v, 15) }

// SetReleaseRate sets RR (0-15).
func (o *Operator) SetReleaseRate(v int) error { return set(&o.releaseRate, "release rate", v, 15) }

// SetDecayRate sets DR (0-15).
func (o *Operator) SetDecayRate(v int) error { return set(&o.decayRate, "decay rate", v, 15) }

// SetAttackRate sets AR (0-15).
func (o *Operator) SetAttackRate(v int) error { return set(&o.attackRate, "attack rate", v, 15) }

// SetSustainLevel sets SL (0-15).
func (o *Operator) SetSustainLevel(v int) error {
	return set(&o.sustainLevel, "sustain level", v, 15)
}

// SetTotalLevel sets TL (0-63), the operator attenuation.
func (o *Operator) SetTotalLevel(v int) error { return set(&o.totalLevel, "total level", v, 63) }

// SetKeyScalingLevel sets KSL (0-3).
func (o *Operator) SetKeyScalingLevel(v int) error {
	return set(&o.keyScaling, "key scaling level", v, 3)
}

// SetAmplitudeModulationDepth sets DAM (0-3).
func (o *Operator) SetAmplitudeModulationDepth(v int) error {
	return set(&o.amDepth, "amplitude modulation depth", v, 3)
}

// SetVibratoDepth sets DVB (0-3).
func (o *Operator) SetVibratoDepth(v int) error { return set(&o.vibratoDepth, "vibrato depth", v, 3) }

// SetMagnificationOfFrequency sets MULTI (0-15).
func (o *Operator) SetMagnificationOfFrequency(v int) error {
	return set(&o.multiplier, "magnification of frequency", v, 15)
}

// SetDetune sets DT (0-7).
func (o *Operator) SetDetune(v int) error { return set(&o.detune, "detune", v, 7) }

// SetWaveShape sets WS (0-31).
func (o *Operator) SetWaveShape(v int) error { return set(&o.waveShape, "wave shape", v, 31) }

// SetFeedbackLevel sets FB (0-7).
func (o *Operator) SetFeedbackLevel(v int) error { return set(&o.feedback, "feedback level", v, 7) }

// Export packs the operator into buf[offset:offset+7].
//
//	b0: SR[7:4] XOF[3] KSR[0]
//	b1: RR[7:4] DR[3:0]
//	b2: AR[7:4] SL[3:0]
//	b3: TL[7:2] KSL[1:0]
//	b4: DAM[6:5] EAM[4] DVB[2:1] EVB[0]
//	b5: MULTI[7:4] DT[2:0]
//	b6: WS[7:3] FB[2:0]
func (o *Operator) Export(buf []byte, offset int) error {
	if err := checkWindow(buf, offset, OperatorSize); err != nil {
		return err
	}
	b := buf[offset : offset+OperatorSize]
	b[0] = bit.Field(o.sustainRate, 4, 4) | bit.Flag(o.IgnoreKeyOff, 3) | bit.Flag(o.EnableKeyScaleSensitivity, 0)
	b[1] = bit.Field(o.releaseRate, 4, 4) | bit.Field(o.decayRate, 4, 0)
	b[2] = bit.Field(o.attackRate, 4, 4) | bit.Field(o.sustainLevel, 4, 0)
	b[3] = bit.Field(o.totalLevel, 6, 2) | bit.Field(o.keyScaling, 2, 0)
	b[4] = bit.Field(o.amDepth, 2, 5) | bit.Flag(o.EnableAmplitudeModulation, 4) |
		bit.Field(o.vibratoDepth, 2, 1) | bit.Flag(o.EnableVibrato, 0)
	b[5] = bit.Field(o.multiplier, 4, 4) | bit.Field(o.detune, 3, 0)
	b[6] = bit.Field(o.waveShape, 5, 3) | bit.Field(o.feedback, 3, 0)
	return nil
}

// Import unpacks a 7 byte operator block. Bits without a field are ignored.
func (o *Operator) Import(buf []byte, offset int) error {
	if err := checkWindow(buf, offset, OperatorSize); err != nil {
		return err
	}
	b := buf[offset : offset+OperatorSize]
	*o = Operator{
		sustainRate:  int(bit.ExtractBits(b[0], 7, 4)),
		releaseRate:  int(bit.ExtractBits(b[1], 7, 4)),
		decayRate:    int(bit.ExtractBits(b[1], 3, 0)),
		attackRate:   int(bit.ExtractBits(b[2], 7, 4)),
		sustainLevel: int(bit.ExtractBits(b[2], 3, 0)),
		totalLevel:   int(bit.ExtractBits(b[3], 7, 2)),
		keyScaling:   int(bit.ExtractBits(b[3], 1, 0)),
		amDepth:      int(bit.ExtractBits(b[4], 6, 5)),
		vibratoDepth: int(bit.ExtractBits(b[4], 2, 1)),
		multiplier:   int(bit.ExtractBits(b[5], 7, 4)),
		detune:       int(bit.ExtractBits(b[5], 2, 0)),
		waveShape:    int(bit.ExtractBits(b[6], 7, 3)),
		feedback:     int(bit.ExtractBits(b[6], 2, 0)),

		IgnoreKeyOff:              bit.IsSet(3, b[0]),
		EnableKeyScaleSensitivity: bit.IsSet(0, b[0]),
		EnableAmplitudeModulation: bit.IsSet(4, b[4]),
		EnableVibrato:             bit.IsSet(0, b[4]),
	}
	return nil
}
