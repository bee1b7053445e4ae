package addr

// System control registers
// Reference: YMF825 (SD-1) application manual, control register map.
const (
	// CLKE (bit 0) enables the internal clock.
	ClockEnable uint8 = 0x00
	// ALRST (bit 7) holds every block except the interface in reset.
	AlternateReset uint8 = 0x01
	// AP0-AP3 (bits 0-3) power down the analog blocks.
	AnalogBlockPowerDown uint8 = 0x02
	// GAIN (bits 0-1) sets the speaker amplifier gain.
	Gain uint8 = 0x03
	// ID is the read-only hardware identification register.
	HardwareID uint8 = 0x04
)

// Sequencer and contents registers
const (
	// ContentsData is the burst target for the tone parameter blob.
	ContentsData uint8 = 0x07
	// SequencerSetting holds AllKeyOff/AllMute/AllEgRst/R_FIFOR/REP_SQ/R_SEQ/R_FIFO/START.
	SequencerSetting uint8 = 0x08
	SequencerVolume  uint8 = 0x09 // SQ_VOL bits 7-3, DIR_SQ bit 1, SIZE[8] bit 0
	SequencerSize    uint8 = 0x0A // SIZE[7:0]

	// MS_S[13:7] and MS_S[6:0], the sequencer time unit.
	SequencerTimeUnitHigh uint8 = 0x17
	SequencerTimeUnitLow  uint8 = 0x18
)

// Per voice control registers. They apply to the voice selected in VoiceNumber.
const (
	VoiceNumber            uint8 = 0x0B // CRGD_VNO bits 0-3
	VoiceVolume            uint8 = 0x0C // VoVol bits 6-2
	FnumBlockHigh          uint8 = 0x0D // FNUM[9:7] bits 5-3, BLOCK bits 2-0
	FnumLow                uint8 = 0x0E // FNUM[6:0] bits 6-0
	ToneFlag               uint8 = 0x0F // KeyOn bit 6, Mute bit 5, EG_RST bit 4, ToneNum bits 3-0
	ChannelVolume          uint8 = 0x10 // ChVol bits 6-2, DIR_CV bit 0
	VibratoModulation      uint8 = 0x11 // XVB bits 2-0
	FrequencyMultiplierInt uint8 = 0x12 // INT bits 4-3, FRAC[8:6] bits 2-0
	FrequencyMultiplierFrc uint8 = 0x13 // FRAC[5:0] bits 6-1
	MuteInterpolation      uint8 = 0x14 // DIR_MT bit 0
)

// Global output registers
const (
	MasterVolume uint8 = 0x19 // MASTER_VOL bits 7-2
	// SoftReset takes a raw byte, see SoftResetMagic.
	SoftReset uint8 = 0x1A
	// Interpolation holds DADJT bit 6, MUTE_ITIME bits 5-4, CHVOL_ITIME bits 3-2, MVOL_ITIME bits 1-0.
	Interpolation uint8 = 0x1B
	LfoReset      uint8 = 0x1C // LFO_RST bit 0
	PowerRail     uint8 = 0x1D // DRV_SEL bit 0
)

// Equalizer registers
const (
	// EqualizerBand0..2 are burst targets taking 15 coefficient bytes each.
	EqualizerBand0 uint8 = 0x20
	EqualizerBand1 uint8 = 0x21
	EqualizerBand2 uint8 = 0x22

	// EqualizerReadback is the first of 45 read-only coefficient registers,
	// 15 per band, laid out in the same order as the burst payload.
	EqualizerReadback uint8 = 0x23
	EqualizerReadEnd  uint8 = 0x4F

	EqualizerBands     = 3
	EqualizerBandBytes = 15
)

// SoftwareTest is a scratch register that reads back what was written to it.
const SoftwareTest uint8 = 0x50

// ReadFlag is OR'ed into the address byte of an SPI read.
const ReadFlag uint8 = 0x80

// SoftResetMagic is the value the power-on sequence writes to SoftReset.
// Its meaning is not documented; it must be sent as is.
const SoftResetMagic uint8 = 0xA3

// Last is the highest defined register address.
const Last = SoftwareTest

// IsBurst reports whether the register takes a multi-byte payload.
func IsBurst(a uint8) bool {
	return a == ContentsData || (a >= EqualizerBand0 && a <= EqualizerBand2)
}

// IsReadOnly reports whether writes to the register are ignored by the chip.
func IsReadOnly(a uint8) bool {
	return a == HardwareID || (a >= EqualizerReadback && a <= EqualizerReadEnd)
}

// Name returns a short mnemonic for a register, used in logs and dumps.
func Name(a uint8) string {
	if n, ok := names[a]; ok {
		return n
	}
	if a >= EqualizerReadback && a <= EqualizerReadEnd {
		return "EQ_READ"
	}
	return "-"
}

var names = map[uint8]string{
	ClockEnable:            "CLKE",
	AlternateReset:         "ALRST",
	AnalogBlockPowerDown:   "AP",
	Gain:                   "GAIN",
	HardwareID:             "ID",
	ContentsData:           "CONTENTS",
	SequencerSetting:       "SEQ",
	SequencerVolume:        "SQ_VOL",
	SequencerSize:          "SQ_SIZE",
	VoiceNumber:            "CRGD_VNO",
	VoiceVolume:            "VoVol",
	FnumBlockHigh:          "FNUM_H/BLOCK",
	FnumLow:                "FNUM_L",
	ToneFlag:               "TONE",
	ChannelVolume:          "ChVol",
	VibratoModulation:      "XVB",
	FrequencyMultiplierInt: "INT",
	FrequencyMultiplierFrc: "FRAC",
	MuteInterpolation:      "DIR_MT",
	SequencerTimeUnitHigh:  "MS_S_H",
	SequencerTimeUnitLow:   "MS_S_L",
	MasterVolume:           "MASTER_VOL",
	SoftReset:              "SFTRST",
	Interpolation:          "ITIME",
	LfoReset:               "LFO_RST",
	PowerRail:              "DRV_SEL",
	EqualizerBand0:         "EQ0",
	EqualizerBand1:         "EQ1",
	EqualizerBand2:         "EQ2",
	SoftwareTest:           "TEST",
}
