package driver

import (
	"context"
	"fmt"

	"github.com/valerio/go-ymf825/ymf825/addr"
	"github.com/valerio/go-ymf825/ymf825/bit"
	"github.com/valerio/go-ymf825/ymf825/board"
	"github.com/valerio/go-ymf825/ymf825/eq"
	"github.com/valerio/go-ymf825/ymf825/fault"
	"github.com/valerio/go-ymf825/ymf825/tone"
)

// AnalogBlock is the set of analog blocks held in power-down (AP0-AP3).
type AnalogBlock uint8

const (
	AP0 AnalogBlock = 1 << iota // VREF
	AP1                         // speaker amplifier
	AP2                         // speaker output
	AP3                         // DAC

	analogBlockMask = AP0 | AP1 | AP2 | AP3
)

// NewAnalogBlock converts a raw register value, rejecting undefined bits.
func NewAnalogBlock(v uint8) (AnalogBlock, error) {
	if AnalogBlock(v)&^analogBlockMask != 0 {
		return 0, fault.Range("analog block", v, 0, uint8(analogBlockMask))
	}
	return AnalogBlock(v), nil
}

// SequencerSetting is the bitset of the sequencer control register.
type SequencerSetting uint8

const (
	Start SequencerSetting = 1 << iota
	RFifo
	RSeq
	RepSq
	RFifoR
	AllEgReset
	AllMute
	AllKeyOff
)

// NewSequencerSetting converts a raw register value. Every bit is defined.
func NewSequencerSetting(v uint8) (SequencerSetting, error) {
	return SequencerSetting(v), nil
}

func (d *Driver) write(a, v byte) error {
	if err := d.t.Write(a, v); err != nil {
		return fmt.Errorf("failed to write %s: %w", addr.Name(a), err)
	}
	return d.flushUnlessSectioned()
}

func (d *Driver) write2(a, v0, b, v1 byte) error {
	if err := d.t.Write(a, v0); err != nil {
		return fmt.Errorf("failed to write %s: %w", addr.Name(a), err)
	}
	if err := d.t.Write(b, v1); err != nil {
		return fmt.Errorf("failed to write %s: %w", addr.Name(b), err)
	}
	return d.flushUnlessSectioned()
}

func (d *Driver) SetClockEnable(enable bool) error {
	return d.write(addr.ClockEnable, bit.Flag(enable, 0))
}

func (d *Driver) SetAlternateReset(reset bool) error {
	return d.write(addr.AlternateReset, bit.Flag(reset, 7))
}

func (d *Driver) SetAnalogBlockPowerDown(blocks AnalogBlock) error {
	return d.write(addr.AnalogBlockPowerDown, uint8(blocks&analogBlockMask))
}

// SetGain sets the speaker amplifier gain (0-3).
func (d *Driver) SetGain(gain int) error {
	return d.write(addr.Gain, bit.Field(gain, 2, 0))
}

func (d *Driver) SetSequencerSetting(s SequencerSetting) error {
	return d.write(addr.SequencerSetting, uint8(s))
}

// SetSequencerVolume sets SQ_VOL (0-31), DIR_SQ and the 9 bit sequence SIZE.
func (d *Driver) SetSequencerVolume(volume int, interpolate bool, size int) error {
	return d.write2(
		addr.SequencerVolume, bit.Field(volume, 5, 3)|bit.Flag(interpolate, 1)|bit.Field(size>>8, 1, 0),
		addr.SequencerSize, bit.Field(size, 8, 0))
}

// SetVoiceNumber selects the voice (0-15) the per voice registers apply to.
func (d *Driver) SetVoiceNumber(voice int) error {
	return d.write(addr.VoiceNumber, bit.Field(voice, 4, 0))
}

// SetVoiceVolume sets VoVol (0-31).
func (d *Driver) SetVoiceVolume(volume int) error {
	return d.write(addr.VoiceVolume, bit.Field(volume, 5, 2))
}

// SetFnumAndBlock sets the 10 bit FNUM and 3 bit BLOCK of the selected voice.
func (d *Driver) SetFnumAndBlock(fnum, block int) error {
	return d.write2(
		addr.FnumBlockHigh, bit.Field(fnum>>7, 3, 3)|bit.Field(block, 3, 0),
		addr.FnumLow, bit.Field(fnum, 7, 0))
}

func (d *Driver) SetToneFlag(toneNumber int, keyOn, mute, egReset bool) error {
	return d.write(addr.ToneFlag,
		bit.Flag(keyOn, 6)|bit.Flag(mute, 5)|bit.Flag(egReset, 4)|bit.Field(toneNumber, 4, 0))
}

// SetChannelVolume sets ChVol (0-31) and DIR_CV.
func (d *Driver) SetChannelVolume(volume int, interpolate bool) error {
	return d.write(addr.ChannelVolume, bit.Field(volume, 5, 2)|bit.Flag(interpolate, 0))
}

// SetVibratoModulation sets XVB (0-7).
func (d *Driver) SetVibratoModulation(depth int) error {
	return d.write(addr.VibratoModulation, bit.Field(depth, 3, 0))
}

// SetFrequencyMultiplier sets INT (0-3) and the 9 bit FRAC of the selected voice.
func (d *Driver) SetFrequencyMultiplier(integer, fraction int) error {
	return d.write2(
		addr.FrequencyMultiplierInt, bit.Field(integer, 2, 3)|bit.Field(fraction>>6, 3, 0),
		addr.FrequencyMultiplierFrc, bit.Field(fraction, 6, 1))
}

func (d *Driver) SetMuteInterpolation(enable bool) error {
	return d.write(addr.MuteInterpolation, bit.Flag(enable, 0))
}

// SetSequencerTimeUnit sets the 14 bit MS_S.
func (d *Driver) SetSequencerTimeUnit(unit int) error {
	return d.write2(
		addr.SequencerTimeUnitHigh, bit.Field(unit>>7, 7, 0),
		addr.SequencerTimeUnitLow, bit.Field(unit, 7, 0))
}

// SetMasterVolume sets MASTER_VOL (0-63).
func (d *Driver) SetMasterVolume(volume int) error {
	return d.write(addr.MasterVolume, bit.Field(volume, 6, 2))
}

func (d *Driver) SetSoftReset(value byte) error {
	return d.write(addr.SoftReset, value)
}

// SetInterpolation sets DADJT and the mute, channel volume and master volume
// interpolation times (0-3 each).
func (d *Driver) SetInterpolation(dadjt bool, mute, channelVolume, masterVolume int) error {
	return d.write(addr.Interpolation,
		bit.Flag(dadjt, 6)|bit.Field(mute, 2, 4)|bit.Field(channelVolume, 2, 2)|bit.Field(masterVolume, 2, 0))
}

func (d *Driver) SetLfoReset(reset bool) error {
	return d.write(addr.LfoReset, bit.Flag(reset, 0))
}

// SetPowerRailSelection sets DRV_SEL: true for a 3.3 V supply.
func (d *Driver) SetPowerRailSelection(dvdd33 bool) error {
	return d.write(addr.PowerRail, bit.Flag(dvdd33, 0))
}

func (d *Driver) SetSoftwareTest(value byte) error {
	return d.write(addr.SoftwareTest, value)
}

// SetEqualizer loads one of the three biquad bands. coefficients holds b0,
// b1, b2, a1, a2 as produced by the eq package.
func (d *Driver) SetEqualizer(band int, coefficients []float64) error {
	if band < 0 || band >= addr.EqualizerBands {
		return fault.Range("equalizer band", band, 0, addr.EqualizerBands-1)
	}
	var c eq.Coefficients
	if len(coefficients) != len(c) {
		return fault.Range("coefficient count", len(coefficients), len(c), len(c))
	}
	copy(c[:], coefficients)
	payload, err := c.Bytes()
	if err != nil {
		return err
	}

	a := addr.EqualizerBand0 + uint8(band)
	if err := d.t.BurstWrite(a, payload, 0, len(payload)); err != nil {
		return fmt.Errorf("failed to write %s: %w", addr.Name(a), err)
	}
	return d.flushUnlessSectioned()
}

// WriteContentsData sends tones 0..targetTone of c to the contents register.
func (d *Driver) WriteContentsData(c *tone.Collection, targetTone int) error {
	blob, err := c.Bytes(targetTone)
	if err != nil {
		return err
	}
	if err := d.t.BurstWrite(addr.ContentsData, blob, 0, len(blob)); err != nil {
		return fmt.Errorf("failed to write contents: %w", err)
	}
	return d.flushUnlessSectioned()
}

func (d *Driver) readRegister(ctx context.Context, target board.TargetChip, a byte) (byte, error) {
	var v byte
	err := d.Section(ctx, target, func(context.Context) error {
		var err error
		v, err = d.t.Read(a)
		return err
	}, 0)
	return v, err
}

// HardwareID reads the ID register of one chip.
func (d *Driver) HardwareID(ctx context.Context, target board.TargetChip) (byte, error) {
	return d.readRegister(ctx, target, addr.HardwareID)
}

// SoftwareTest reads back the test register of one chip.
func (d *Driver) SoftwareTest(ctx context.Context, target board.TargetChip) (byte, error) {
	return d.readRegister(ctx, target, addr.SoftwareTest)
}

// EqualizerCoefficients reads the coefficients loaded in one band of one chip.
func (d *Driver) EqualizerCoefficients(ctx context.Context, target board.TargetChip, band int) (eq.Coefficients, error) {
	if band < 0 || band >= addr.EqualizerBands {
		return eq.Coefficients{}, fault.Range("equalizer band", band, 0, addr.EqualizerBands-1)
	}

	raw := make([]byte, addr.EqualizerBandBytes)
	base := addr.EqualizerReadback + uint8(band*addr.EqualizerBandBytes)
	err := d.Section(ctx, target, func(context.Context) error {
		for i := range raw {
			v, err := d.t.Read(base + uint8(i))
			if err != nil {
				return err
			}
			raw[i] = v
		}
		return nil
	}, 0)
	if err != nil {
		return eq.Coefficients{}, err
	}
	return eq.Decode(raw)
}
