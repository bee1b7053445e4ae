package transport

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/valerio/go-ymf825/ymf825/addr"
	"github.com/valerio/go-ymf825/ymf825/board"
	"github.com/valerio/go-ymf825/ymf825/device"
	"github.com/valerio/go-ymf825/ymf825/fault"
	"github.com/valerio/go-ymf825/ymf825/timing"
)

func newStereo(t *testing.T, opts ...device.SimOption) (*Transport, *device.Sim, *timing.Recorder) {
	t.Helper()
	cfg, err := board.Preset("ymf825board-stereo")
	require.NoError(t, err)
	sim := device.NewSim(cfg, opts...)
	rec := &timing.Recorder{}
	tr, err := New(sim, cfg, WithSleeper(rec), WithReadTimeout(50*time.Millisecond), WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	sim.ClearWrites()
	return tr, sim, rec
}

func TestNewConfiguresBridge(t *testing.T) {
	cfg, err := board.Preset("ymf825board-stereo")
	require.NoError(t, err)
	sim := device.NewSim(cfg)
	_, err = New(sim, cfg)
	require.NoError(t, err)

	writes := sim.Writes()
	require.Len(t, writes, 1)
	expected := []byte{
		device.OpDisableDivBy5, device.OpDisableAdaptive, device.OpDisable3Phase,
		device.OpSetClockDivisor, 0x02, 0x00, device.OpLoopbackOff,
		device.OpSetLowBank, 0x18, 0x1B, // CS idle high, SCK/MOSI/CS outputs
		device.OpSetHighBank, 0x00, 0x01, // IC low, output
		device.OpSendImmediate,
	}
	assert.Equal(t, expected, writes[0])
}

func TestWriteFraming(t *testing.T) {
	tr, sim, _ := newStereo(t)
	require.NoError(t, tr.SetTarget(board.Board0))
	require.NoError(t, tr.Write(addr.MasterVolume, 0xF0))

	expected := []byte{
		device.OpSetLowBank, 0x10, 0x1B,
		device.OpSPIWrite, 0x01, 0x00, addr.MasterVolume, 0xF0,
		device.OpSetLowBank, 0x18, 0x1B,
	}
	assert.Equal(t, expected, tr.Pending())
	assert.Empty(t, sim.Writes(), "nothing is sent before Flush")

	require.NoError(t, tr.Flush())
	assert.Empty(t, tr.Pending())
	writes := sim.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, append(expected, device.OpSendImmediate), writes[0])
	assert.Equal(t, byte(0xF0), sim.Registers(0)[addr.MasterVolume])
	assert.Equal(t, byte(0x00), sim.Registers(1)[addr.MasterVolume])
}

func TestWriteBothChips(t *testing.T) {
	tr, sim, _ := newStereo(t)
	require.NoError(t, tr.SetTarget(board.Board0|board.Board1))
	require.NoError(t, tr.Write(addr.Gain, 0x02))
	require.NoError(t, tr.Flush())

	assert.Equal(t, byte(0x02), sim.Registers(0)[addr.Gain])
	assert.Equal(t, byte(0x02), sim.Registers(1)[addr.Gain])
	assert.Empty(t, tr.Pending(), "buffer cleared")
}

func TestBurstWrite(t *testing.T) {
	tr, sim, _ := newStereo(t)
	require.NoError(t, tr.SetTarget(board.Board1))

	data := []byte{0xAA, 1, 2, 3, 4, 0xBB}
	require.NoError(t, tr.BurstWrite(addr.ContentsData, data, 1, 4))
	pending := tr.Pending()
	assert.Equal(t, []byte{device.OpSPIWrite, 0x04, 0x00, addr.ContentsData, 1, 2, 3, 4}, pending[3:11])

	require.NoError(t, tr.Flush())
	assert.Equal(t, [][]byte{{1, 2, 3, 4}}, sim.Bursts(1, addr.ContentsData))
}

func TestBurstWriteValidation(t *testing.T) {
	tr, _, _ := newStereo(t)
	require.NoError(t, tr.SetTarget(board.Board0))
	data := make([]byte, 8)

	tests := []struct {
		name          string
		offset, count int
	}{
		{"zero length", 0, 0},
		{"negative offset", -1, 2},
		{"past the end", 4, 5},
		{"over the cap", 0, MaxBurst + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tr.BurstWrite(addr.ContentsData, data, tt.offset, tt.count)
			assert.ErrorIs(t, err, fault.ErrOutOfRange)
		})
	}
	assert.Empty(t, tr.Pending(), "nothing queued on validation errors")
	assert.ErrorIs(t, tr.Write(addr.Gain), fault.ErrOutOfRange)
}

func TestBufferGrowthKeepsBytes(t *testing.T) {
	tr, sim, _ := newStereo(t)
	require.NoError(t, tr.SetTarget(board.Board0))

	big := make([]byte, 3*initialBufferSize)
	for i := range big {
		big[i] = byte(i)
	}
	require.NoError(t, tr.Write(addr.SoftwareTest, 0x11))
	require.NoError(t, tr.BurstWrite(addr.ContentsData, big, 0, len(big)))
	require.NoError(t, tr.Write(addr.SoftwareTest, 0x22))

	pending := tr.Pending()
	assert.Equal(t, 11+(10+len(big))+11, len(pending))
	assert.Equal(t, byte(0x11), pending[7])
	require.NoError(t, tr.Flush())

	assert.Equal(t, [][]byte{big}, sim.Bursts(0, addr.ContentsData))
	assert.Equal(t, byte(0x22), sim.Registers(0)[addr.SoftwareTest])
}

func TestNoTarget(t *testing.T) {
	tr, _, _ := newStereo(t)
	err := tr.Write(addr.Gain, 1)
	assert.ErrorIs(t, err, ErrNoTarget)
	assert.ErrorIs(t, err, fault.ErrCommunication)

	_, err = tr.Read(addr.HardwareID)
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestSetTargetUnknown(t *testing.T) {
	tr, _, _ := newStereo(t)
	assert.ErrorIs(t, tr.SetTarget(board.Board3), fault.ErrOutOfRange)
	assert.Equal(t, board.None, tr.Target())
}

func TestRead(t *testing.T) {
	tr, sim, _ := newStereo(t, device.WithHardwareID(0x5A))
	require.NoError(t, tr.SetTarget(board.Board1))
	require.NoError(t, tr.Write(addr.SoftwareTest, 0x3C))

	v, err := tr.Read(addr.SoftwareTest)
	require.NoError(t, err)
	assert.Equal(t, byte(0x3C), v, "pending writes are flushed before the read")

	id, err := tr.Read(addr.HardwareID)
	require.NoError(t, err)
	assert.Equal(t, byte(0x5A), id)

	last := sim.Writes()[len(sim.Writes())-1]
	assert.True(t, bytes.Contains(last, []byte{device.OpSPIReadWrite, 0x01, 0x00, addr.HardwareID | addr.ReadFlag, 0x00}))
}

func TestReadNeedsSingleChip(t *testing.T) {
	tr, _, _ := newStereo(t)
	require.NoError(t, tr.SetTarget(board.Board0|board.Board1))

	_, err := tr.Read(addr.HardwareID)
	assert.ErrorIs(t, err, fault.ErrInvalidOperation)
}

func TestReadTimeout(t *testing.T) {
	cfg, err := board.Preset("ymf825board")
	require.NoError(t, err)
	sim := device.NewSim(cfg, device.WithStalledReads())
	tr, err := New(sim, cfg, WithReadTimeout(20*time.Millisecond), WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, tr.SetTarget(board.Board0))

	start := time.Now()
	_, err = tr.Read(addr.HardwareID)
	assert.ErrorIs(t, err, ErrReadTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestInvokeHardwareReset(t *testing.T) {
	tr, sim, rec := newStereo(t)
	require.NoError(t, tr.InvokeHardwareReset())

	assert.Equal(t, []time.Duration{2 * time.Millisecond, 2 * time.Millisecond}, rec.Delays())
	assert.Equal(t, []bool{false, true, false}, sim.ResetLevels())

	writes := sim.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, []byte{device.OpSetHighBank, 0x01, 0x01, device.OpSendImmediate}, writes[1])
}

func TestClose(t *testing.T) {
	tr, sim, _ := newStereo(t)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	assert.ErrorIs(t, tr.Flush(), ErrDisposed)
	assert.ErrorIs(t, tr.Write(addr.Gain, 1), ErrDisposed)
	assert.ErrorIs(t, tr.SetTarget(board.Board0), ErrDisposed)
	assert.ErrorIs(t, tr.InvokeHardwareReset(), ErrDisposed)
	_, err := tr.Read(addr.Gain)
	assert.ErrorIs(t, err, fault.ErrCommunication)

	_, err = sim.QueueStatus()
	assert.ErrorIs(t, err, device.ErrClosed)
}

type failingDevice struct {
	device.Device
}

func (failingDevice) Write([]byte) (int, error) { return 0, errors.New("usb stall") }

func TestFlushFailure(t *testing.T) {
	cfg, err := board.Preset("ymf825board")
	require.NoError(t, err)
	_, err = New(failingDevice{}, cfg)
	assert.ErrorIs(t, err, fault.ErrCommunication)
}

func TestConcurrentWritesStayWhole(t *testing.T) {
	tr, _, _ := newStereo(t)
	require.NoError(t, tr.SetTarget(board.Board0))

	var g errgroup.Group
	for i := range 8 {
		g.Go(func() error {
			block := bytes.Repeat([]byte{byte(i)}, 64)
			return tr.BurstWrite(addr.ContentsData, block, 0, len(block))
		})
	}
	require.NoError(t, g.Wait())

	pending := tr.Pending()
	const frameLen = 3 + 4 + 64 + 3
	require.Len(t, pending, 8*frameLen)
	for f := range 8 {
		payload := pending[f*frameLen+7 : f*frameLen+7+64]
		assert.Equal(t, bytes.Repeat(payload[:1], 64), payload, "frame %d interleaved", f)
	}
}
