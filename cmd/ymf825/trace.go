package main

import (
	"log/slog"

	"github.com/valerio/go-ymf825/ymf825/device"
	"github.com/valerio/go-ymf825/ymf825/disasm"
)

// tracedDevice logs the decoded form of every buffer written to the bridge.
type tracedDevice struct {
	device.Device
	logger *slog.Logger
	frames int
}

func (t *tracedDevice) Write(p []byte) (int, error) {
	for _, line := range disasm.Disassemble(p) {
		t.logger.Debug("mpsse", "frame", t.frames, "at", line.Offset, "op", line.Instruction)
	}
	t.frames++
	return t.Device.Write(p)
}
