package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-ymf825/ymf825/addr"
	"github.com/valerio/go-ymf825/ymf825/board"
	"github.com/valerio/go-ymf825/ymf825/device"
	"github.com/valerio/go-ymf825/ymf825/eq"
	"github.com/valerio/go-ymf825/ymf825/fault"
	"github.com/valerio/go-ymf825/ymf825/freq"
	"github.com/valerio/go-ymf825/ymf825/timing"
	"github.com/valerio/go-ymf825/ymf825/tone"
	"github.com/valerio/go-ymf825/ymf825/transport"
)

var _ Transport = (*transport.Transport)(nil)

const testHardwareID = 0x81

func newDriver(t *testing.T, opts ...Option) (*Driver, *device.Sim, *timing.Recorder) {
	t.Helper()
	cfg, err := board.Preset("ymf825board-stereo")
	require.NoError(t, err)
	sim := device.NewSim(cfg, device.WithHardwareID(testHardwareID))
	tr, err := transport.New(sim, cfg, transport.WithSleeper(timing.NewNoOpSleeper()))
	require.NoError(t, err)

	rec := &timing.Recorder{}
	d, err := New(tr, append([]Option{WithSleeper(rec)}, opts...)...)
	require.NoError(t, err)
	sim.ClearWrites()
	return d, sim, rec
}

// regWrite is one SPI write decoded from a flushed frame.
type regWrite struct {
	addr byte
	data []byte
}

func decode(frame []byte) []regWrite {
	var out []regWrite
	for i := 0; i < len(frame); {
		switch frame[i] {
		case device.OpSetLowBank, device.OpSetHighBank:
			i += 3
		case device.OpSPIWrite, device.OpSPIReadWrite:
			n := (int(frame[i+1]) | int(frame[i+2])<<8) + 1
			out = append(out, regWrite{addr: frame[i+3], data: frame[i+4 : i+3+n]})
			i += 3 + n
		default:
			i++
		}
	}
	return out
}

func TestNewTargetsAllChips(t *testing.T) {
	d, _, _ := newDriver(t)
	assert.Equal(t, board.Board0|board.Board1, d.Target())
	assert.Equal(t, 2, d.Chips().Chips())
	assert.False(t, d.SectionModeEnabled())
}

func TestSettersMaskAndFlush(t *testing.T) {
	tests := []struct {
		name  string
		set   func(d *Driver) error
		regs  []byte
		wants []byte
	}{
		{"clock enable", func(d *Driver) error { return d.SetClockEnable(true) }, []byte{addr.ClockEnable}, []byte{0x01}},
		{"alternate reset", func(d *Driver) error { return d.SetAlternateReset(true) }, []byte{addr.AlternateReset}, []byte{0x80}},
		{"analog blocks", func(d *Driver) error { return d.SetAnalogBlockPowerDown(0xFF) }, []byte{addr.AnalogBlockPowerDown}, []byte{0x0F}},
		{"gain masked", func(d *Driver) error { return d.SetGain(7) }, []byte{addr.Gain}, []byte{0x03}},
		{"sequencer", func(d *Driver) error { return d.SetSequencerSetting(AllKeyOff | Start) }, []byte{addr.SequencerSetting}, []byte{0x81}},
		{"sequencer volume", func(d *Driver) error { return d.SetSequencerVolume(31, true, 0x1FF) },
			[]byte{addr.SequencerVolume, addr.SequencerSize}, []byte{0xFB, 0xFF}},
		{"voice number masked", func(d *Driver) error { return d.SetVoiceNumber(17) }, []byte{addr.VoiceNumber}, []byte{0x01}},
		{"voice volume", func(d *Driver) error { return d.SetVoiceVolume(31) }, []byte{addr.VoiceVolume}, []byte{0x7C}},
		{"fnum and block", func(d *Driver) error { return d.SetFnumAndBlock(683, 5) },
			[]byte{addr.FnumBlockHigh, addr.FnumLow}, []byte{0x2D, 0x2B}},
		{"tone flag", func(d *Driver) error { return d.SetToneFlag(3, true, false, true) }, []byte{addr.ToneFlag}, []byte{0x53}},
		{"channel volume", func(d *Driver) error { return d.SetChannelVolume(31, true) }, []byte{addr.ChannelVolume}, []byte{0x7D}},
		{"vibrato masked", func(d *Driver) error { return d.SetVibratoModulation(9) }, []byte{addr.VibratoModulation}, []byte{0x01}},
		{"frequency multiplier", func(d *Driver) error { return d.SetFrequencyMultiplier(1, 300) },
			[]byte{addr.FrequencyMultiplierInt, addr.FrequencyMultiplierFrc}, []byte{0x0C, 0x58}},
		{"mute interpolation", func(d *Driver) error { return d.SetMuteInterpolation(true) }, []byte{addr.MuteInterpolation}, []byte{0x01}},
		{"time unit", func(d *Driver) error { return d.SetSequencerTimeUnit(0x2000) },
			[]byte{addr.SequencerTimeUnitHigh, addr.SequencerTimeUnitLow}, []byte{0x40, 0x00}},
		{"master volume masked", func(d *Driver) error { return d.SetMasterVolume(0xFF) }, []byte{addr.MasterVolume}, []byte{0xFC}},
		{"soft reset", func(d *Driver) error { return d.SetSoftReset(addr.SoftResetMagic) }, []byte{addr.SoftReset}, []byte{0xA3}},
		{"interpolation", func(d *Driver) error { return d.SetInterpolation(true, 1, 2, 3) }, []byte{addr.Interpolation}, []byte{0x5B}},
		{"lfo reset", func(d *Driver) error { return d.SetLfoReset(true) }, []byte{addr.LfoReset}, []byte{0x01}},
		{"power rail", func(d *Driver) error { return d.SetPowerRailSelection(true) }, []byte{addr.PowerRail}, []byte{0x01}},
		{"software test", func(d *Driver) error { return d.SetSoftwareTest(0xA5) }, []byte{addr.SoftwareTest}, []byte{0xA5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sim, _ := newDriver(t)
			require.NoError(t, tt.set(d))

			require.Len(t, sim.Writes(), 1, "flushed once")
			for slot := range 2 {
				regs := sim.Registers(slot)
				for i, a := range tt.regs {
					assert.Equal(t, tt.wants[i], regs[a], "chip %d %s", slot, addr.Name(a))
				}
			}
		})
	}
}

func TestBitsetConstructors(t *testing.T) {
	ab, err := NewAnalogBlock(0x05)
	require.NoError(t, err)
	assert.Equal(t, AP0|AP2, ab)
	_, err = NewAnalogBlock(0x10)
	assert.ErrorIs(t, err, fault.ErrOutOfRange)

	s, err := NewSequencerSetting(0xF6)
	require.NoError(t, err)
	assert.Equal(t, AllKeyOff|AllMute|AllEgReset|RFifoR|RSeq|RFifo, s)
}

func TestReads(t *testing.T) {
	d, _, _ := newDriver(t)
	ctx := context.Background()

	id, err := d.HardwareID(ctx, board.Board1)
	require.NoError(t, err)
	assert.Equal(t, byte(testHardwareID), id)

	require.NoError(t, d.SetSoftwareTest(0x5A))
	v, err := d.SoftwareTest(ctx, board.Board0)
	require.NoError(t, err)
	assert.Equal(t, byte(0x5A), v)
	assert.Equal(t, board.Board0|board.Board1, d.Target(), "target restored after the read")

	_, err = d.HardwareID(ctx, board.None)
	assert.ErrorIs(t, err, fault.ErrInvalidOperation, "two chips cannot be read at once")

	require.NoError(t, d.SetTarget(board.Board1))
	v, err = d.Read(ctx, addr.HardwareID)
	require.NoError(t, err)
	assert.Equal(t, byte(testHardwareID), v)
}

func TestSetEqualizer(t *testing.T) {
	d, sim, _ := newDriver(t)
	ctx := context.Background()

	lp, err := eq.Lowpass(1000, 0.7071067811865476)
	require.NoError(t, err)

	assert.ErrorIs(t, d.SetEqualizer(3, lp[:]), fault.ErrOutOfRange)
	assert.ErrorIs(t, d.SetEqualizer(-1, lp[:]), fault.ErrOutOfRange)
	assert.ErrorIs(t, d.SetEqualizer(0, lp[:4]), fault.ErrOutOfRange)
	assert.ErrorIs(t, d.SetEqualizer(0, []float64{9, 0, 0, 0, 0}), fault.ErrOutOfRange)
	assert.Empty(t, sim.Writes(), "nothing sent on validation errors")

	require.NoError(t, d.SetEqualizer(1, lp[:]))
	bursts := sim.Bursts(0, addr.EqualizerBand1)
	require.Len(t, bursts, 1)
	assert.Len(t, bursts[0], addr.EqualizerBandBytes)

	back, err := d.EqualizerCoefficients(ctx, board.Board1, 1)
	require.NoError(t, err)
	for i := range lp {
		assert.InDelta(t, lp[i], back[i], 1.0/(1<<eq.FractionBits))
	}

	_, err = d.EqualizerCoefficients(ctx, board.Board0, 3)
	assert.ErrorIs(t, err, fault.ErrOutOfRange)
}

func TestWriteContentsData(t *testing.T) {
	d, sim, _ := newDriver(t)
	c := tone.NewCollection()
	first, err := c.Tone(0)
	require.NoError(t, err)
	*first = *tone.Default()

	require.NoError(t, d.WriteContentsData(c, 0))
	bursts := sim.Bursts(1, addr.ContentsData)
	require.Len(t, bursts, 1)
	assert.Len(t, bursts[0], 35)
	assert.Equal(t, byte(0x81), bursts[0][0])

	assert.ErrorIs(t, d.WriteContentsData(c, 16), fault.ErrOutOfRange)
}

func TestKeyOnKeyOff(t *testing.T) {
	d, sim, _ := newDriver(t)
	ctx := context.Background()

	require.NoError(t, d.KeyOn(ctx, 2, 69, 0))
	regs := sim.Registers(0)

	p, err := freq.FnumAndBlock(69)
	require.NoError(t, err)
	fnum := p.Register()
	integer, fraction, err := freq.ConvertForFrequencyMultiplier(p.Correction)
	require.NoError(t, err)

	assert.Equal(t, byte(2), regs[addr.VoiceNumber])
	assert.Equal(t, byte((fnum>>7)<<3|p.Block), regs[addr.FnumBlockHigh])
	assert.Equal(t, byte(fnum&0x7F), regs[addr.FnumLow])
	assert.Equal(t, byte(integer<<3|fraction>>6), regs[addr.FrequencyMultiplierInt])
	assert.Equal(t, byte(0x40), regs[addr.ToneFlag])

	require.NoError(t, d.KeyOff(ctx, 2, 0))
	assert.Equal(t, byte(0x00), sim.Registers(1)[addr.ToneFlag])

	require.NoError(t, d.AllKeyOff(ctx))
	assert.Equal(t, byte(0x00), sim.Registers(0)[addr.SequencerSetting])

	assert.ErrorIs(t, d.KeyOn(ctx, 16, 60, 0), fault.ErrOutOfRange)
	assert.ErrorIs(t, d.KeyOn(ctx, 0, 128, 0), fault.ErrOutOfRange)
	assert.ErrorIs(t, d.KeyOff(ctx, 0, 16), fault.ErrOutOfRange)
}

func TestKeyOnIsOneFlushInSectionMode(t *testing.T) {
	d, sim, _ := newDriver(t)
	d.EnableSectionMode()

	require.NoError(t, d.KeyOn(context.Background(), 0, 60, 1))
	writes := sim.Writes()
	require.Len(t, writes, 1)
	assert.Len(t, decode(writes[0]), 7)
}

func TestDriverClose(t *testing.T) {
	d, _, _ := newDriver(t)
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.SetGain(1), transport.ErrDisposed)
	assert.ErrorIs(t, d.Flush(), fault.ErrCommunication)
	_, err := d.HardwareID(context.Background(), board.Board0)
	assert.ErrorIs(t, err, fault.ErrCommunication)
}

func TestInvokeHardwareResetPassThrough(t *testing.T) {
	d, sim, _ := newDriver(t)
	require.NoError(t, d.InvokeHardwareReset())
	assert.Equal(t, []bool{false, true, false}, sim.ResetLevels())
}

func TestRawWritePassThrough(t *testing.T) {
	d, sim, _ := newDriver(t)
	require.NoError(t, d.Write(addr.Gain, 0x02))
	require.NoError(t, d.BurstWrite(addr.ContentsData, []byte{9, 1, 2}, 1, 2))
	assert.Empty(t, sim.Writes(), "raw writes are not flushed")

	require.NoError(t, d.Flush())
	assert.Equal(t, byte(0x02), sim.Registers(0)[addr.Gain])
	assert.Equal(t, [][]byte{{1, 2}}, sim.Bursts(1, addr.ContentsData))
}

func TestResetSoftwareSequence(t *testing.T) {
	d, sim, rec := newDriver(t)
	d.EnableSectionMode()
	require.NoError(t, d.ResetSoftware(context.Background()))

	assert.Equal(t, []time.Duration{
		time.Millisecond, time.Millisecond, 30 * time.Millisecond, 21 * time.Millisecond,
	}, rec.Delays())

	writes := sim.Writes()
	require.Len(t, writes, 5, "one flush per step")
	expected := [][]regWrite{
		{{addr.PowerRail, []byte{0x00}}, {addr.AnalogBlockPowerDown, []byte{0x0E}}},
		{{addr.ClockEnable, []byte{0x01}}, {addr.AlternateReset, []byte{0x00}}, {addr.SoftReset, []byte{0xA3}}},
		{{addr.SoftReset, []byte{0x00}}},
		{
			{addr.AnalogBlockPowerDown, []byte{0x04}}, {addr.AnalogBlockPowerDown, []byte{0x00}},
			{addr.MasterVolume, []byte{0xF0}}, {addr.Interpolation, []byte{0x3F}},
			{addr.MuteInterpolation, []byte{0x00}}, {addr.Gain, []byte{0x01}},
			{addr.SequencerSetting, []byte{0xF6}},
		},
		{
			{addr.SequencerSetting, []byte{0x00}}, {addr.SequencerVolume, []byte{0xF8}},
			{addr.SequencerSize, []byte{0x00}}, {addr.SequencerTimeUnitHigh, []byte{0x40}},
			{addr.SequencerTimeUnitLow, []byte{0x00}},
		},
	}
	for i, w := range writes {
		assert.Equal(t, expected[i], decode(w), "step %d", i+1)
	}
	assert.Equal(t, int64(5), d.SectionsEntered())

	for slot := range 2 {
		regs := sim.Registers(slot)
		assert.Equal(t, byte(0xF0), regs[addr.MasterVolume])
		assert.Equal(t, byte(0x01), regs[addr.ClockEnable])
		assert.Equal(t, byte(0x40), regs[addr.SequencerTimeUnitHigh])
	}
}

func TestResetSoftwareWithoutSectionMode(t *testing.T) {
	d, sim, rec := newDriver(t, WithPowerRail(true))
	require.NoError(t, d.ResetSoftware(context.Background()))

	assert.Len(t, rec.Delays(), 4)
	assert.Greater(t, len(sim.Writes()), 5, "every write flushed on its own")
	assert.Equal(t, byte(0x01), sim.Registers(1)[addr.PowerRail])
	assert.Equal(t, byte(0xF8), sim.Registers(1)[addr.SequencerVolume])
}
