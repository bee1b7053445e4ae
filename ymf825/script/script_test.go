package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-ymf825/ymf825/addr"
	"github.com/valerio/go-ymf825/ymf825/board"
	"github.com/valerio/go-ymf825/ymf825/device"
	"github.com/valerio/go-ymf825/ymf825/driver"
	"github.com/valerio/go-ymf825/ymf825/fault"
	"github.com/valerio/go-ymf825/ymf825/timing"
	"github.com/valerio/go-ymf825/ymf825/transport"
)

func newEngine(t *testing.T) (*Engine, *driver.Driver, *device.Sim, *timing.Recorder) {
	t.Helper()
	cfg, err := board.Preset("ymf825board-stereo")
	require.NoError(t, err)
	sim := device.NewSim(cfg, device.WithHardwareID(0x81))
	tr, err := transport.New(sim, cfg, transport.WithSleeper(timing.NewNoOpSleeper()))
	require.NoError(t, err)
	d, err := driver.New(tr, driver.WithSleeper(timing.NewNoOpSleeper()))
	require.NoError(t, err)

	rec := &timing.Recorder{}
	e := New(d, WithSleeper(rec))
	t.Cleanup(e.Close)
	return e, d, sim, rec
}

func TestWriteAndRead(t *testing.T) {
	e, _, sim, _ := newEngine(t)
	err := e.Run(context.Background(), "rw", `
		local chip = require("ymf825")
		chip.write(0x50, 0x3C)
		chip.flush()
		chip.target(chip.Board1)
		assert(chip.read(0x50) == 0x3C, "loopback")
		assert(chip.id(chip.Board0) == 0x81, "id")
		assert(chip.target() == chip.Board1, "target kept")
	`)
	require.NoError(t, err)
	assert.Equal(t, byte(0x3C), sim.Registers(0)[addr.SoftwareTest])
}

func TestBurstAndSection(t *testing.T) {
	e, d, sim, _ := newEngine(t)
	err := e.Run(context.Background(), "burst", `
		local chip = require("ymf825")
		chip.section_mode(true)
		chip.section(function()
			chip.burst(0x07, {0x81, 1, 2, 3})
			chip.write(0x03, 2)
		end, chip.Board0, 5)
	`)
	require.NoError(t, err)
	assert.True(t, d.SectionModeEnabled())
	assert.Equal(t, [][]byte{{0x81, 1, 2, 3}}, sim.Bursts(0, addr.ContentsData))
	assert.Empty(t, sim.Bursts(1, addr.ContentsData))
	assert.Equal(t, byte(0x02), sim.Registers(0)[addr.Gain])
	assert.Equal(t, board.Board0|board.Board1, d.Target())
}

func TestReadInsideSectionFails(t *testing.T) {
	e, _, _, _ := newEngine(t)
	err := e.Run(context.Background(), "nested", `
		local chip = require("ymf825")
		chip.section_mode(true)
		chip.section(function()
			chip.id(chip.Board0)
		end)
	`)
	assert.ErrorIs(t, err, fault.ErrInvalidOperation)
}

func TestNotesEqAndSleep(t *testing.T) {
	e, _, sim, rec := newEngine(t)
	err := e.Run(context.Background(), "notes", `
		local chip = require("ymf825")
		chip.reset()
		chip.master_volume(40)
		chip.eq(0, "lowpass", {cutoff = 4000, q = 0.8})
		chip.note_on(0, 69, 0)
		chip.sleep(250)
		chip.note_off(0)
		chip.all_off()
	`)
	require.NoError(t, err)

	regs := sim.Registers(1)
	assert.Equal(t, byte(40<<2), regs[addr.MasterVolume])
	assert.Equal(t, byte(0x00), regs[addr.ToneFlag])
	assert.Len(t, sim.Bursts(1, addr.EqualizerBand0), 1)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, rec.Delays())
}

func TestErrorsKeepTheirKind(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind error
	}{
		{"read from two chips", `require("ymf825").read(0x04)`, fault.ErrInvalidOperation},
		{"unknown target", `require("ymf825").target(0x40)`, fault.ErrOutOfRange},
		{"bad eq band", `require("ymf825").eq(3, "flat")`, fault.ErrOutOfRange},
		{"unknown filter", `require("ymf825").eq(0, "comb")`, fault.ErrOutOfRange},
		{"bad key", `require("ymf825").note_on(0, 200)`, fault.ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _, _ := newEngine(t)
			assert.ErrorIs(t, e.Run(context.Background(), tt.name, tt.src), tt.kind)
		})
	}
}

func TestLuaErrors(t *testing.T) {
	e, _, _, _ := newEngine(t)
	err := e.Run(context.Background(), "bad", `require("ymf825").write(0x03, 300)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a byte")

	err = e.Run(context.Background(), "syntax", `this is not lua`)
	assert.Error(t, err)
}

func TestRunFileCancelled(t *testing.T) {
	e, _, _, _ := newEngine(t)
	path := filepath.Join(t.TempDir(), "loop.lua")
	require.NoError(t, os.WriteFile(path, []byte(`while true do end`), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.RunFile(ctx, path)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestToneLoading(t *testing.T) {
	e, _, sim, _ := newEngine(t)
	err := e.Run(context.Background(), "tones", `
		local chip = require("ymf825")
		local block = chip.tone(0)
		assert(#block == 30, "default block size")
		block[2] = 0x45 -- lfo 1, algorithm 5
		local again = chip.tone(1, block)
		assert(again[2] == 0x45, "imported block")
		chip.load_tones(1)
	`)
	require.NoError(t, err)

	bursts := sim.Bursts(0, addr.ContentsData)
	require.Len(t, bursts, 1)
	blob := bursts[0]
	require.Len(t, blob, 1+2*30+4)
	assert.Equal(t, byte(0x82), blob[0])
	assert.Equal(t, blob[1+2:1+30], blob[31+2:31+30], "slot 1 copies the operators of slot 0")
	assert.Equal(t, byte(0x45), blob[31+1])
}

func TestToneErrors(t *testing.T) {
	e, _, _, _ := newEngine(t)
	assert.ErrorIs(t, e.Run(context.Background(), "slot", `require("ymf825").tone(16)`), fault.ErrOutOfRange)
	assert.ErrorIs(t, e.Run(context.Background(), "short", `require("ymf825").tone(0, {1, 2, 3})`), fault.ErrOutOfRange)
	assert.ErrorIs(t, e.Run(context.Background(), "load", `require("ymf825").load_tones(16)`), fault.ErrOutOfRange)
}
