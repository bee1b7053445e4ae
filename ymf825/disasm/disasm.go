// Package disasm turns MPSSE command buffers back into readable lines, with
// SPI payloads decoded as YMF825 register accesses.
package disasm

import (
	"fmt"
	"strings"

	"github.com/valerio/go-ymf825/ymf825/addr"
	"github.com/valerio/go-ymf825/ymf825/device"
)

// DisassemblyLine is a single decoded MPSSE command.
type DisassemblyLine struct {
	Offset      int
	Instruction string
	Length      int
}

func (l DisassemblyLine) String() string {
	return fmt.Sprintf("%04X  %s", l.Offset, l.Instruction)
}

// instructionLengths holds the size of every fixed length opcode.
var instructionLengths = map[byte]int{
	device.OpSetLowBank:      3,
	device.OpSetHighBank:     3,
	device.OpReadLowBank:     1,
	device.OpReadHighBank:    1,
	device.OpLoopbackOff:     1,
	device.OpSetClockDivisor: 3,
	device.OpSendImmediate:   1,
	device.OpDisableDivBy5:   1,
	device.OpDisable3Phase:   1,
	device.OpDisableAdaptive: 1,
}

var instructionTemplates = map[byte]string{
	device.OpSetLowBank:      "SET LOW  value=%08b dir=%08b",
	device.OpSetHighBank:     "SET HIGH value=%08b dir=%08b",
	device.OpReadLowBank:     "GET LOW",
	device.OpReadHighBank:    "GET HIGH",
	device.OpLoopbackOff:     "LOOPBACK OFF",
	device.OpSetClockDivisor: "CLOCK DIV %d",
	device.OpSendImmediate:   "SEND IMMEDIATE",
	device.OpDisableDivBy5:   "DIV5 OFF",
	device.OpDisable3Phase:   "3PHASE OFF",
	device.OpDisableAdaptive: "ADAPTIVE OFF",
}

// DisassembleAt decodes the command starting at offset of buf.
func DisassembleAt(buf []byte, offset int) DisassemblyLine {
	op := buf[offset]
	rest := len(buf) - offset

	if op == device.OpSPIWrite || op == device.OpSPIReadWrite {
		if rest < 3 {
			return DisassemblyLine{Offset: offset, Instruction: "SPI ??", Length: rest}
		}
		n := (int(buf[offset+1]) | int(buf[offset+2])<<8) + 1
		if rest < 3+n {
			return DisassemblyLine{Offset: offset, Instruction: fmt.Sprintf("SPI ?? (%d of %d bytes)", rest-3, n), Length: rest}
		}
		return DisassemblyLine{
			Offset:      offset,
			Instruction: spi(op == device.OpSPIReadWrite, buf[offset+3:offset+3+n]),
			Length:      3 + n,
		}
	}

	length, ok := instructionLengths[op]
	if !ok {
		return DisassemblyLine{Offset: offset, Instruction: fmt.Sprintf("DB 0x%02X", op), Length: 1}
	}
	if rest < length {
		return DisassemblyLine{Offset: offset, Instruction: fmt.Sprintf("0x%02X ??", op), Length: rest}
	}

	template := instructionTemplates[op]
	var instruction string
	switch {
	case op == device.OpSetClockDivisor:
		instruction = fmt.Sprintf(template, int(buf[offset+1])|int(buf[offset+2])<<8)
	case length == 3:
		instruction = fmt.Sprintf(template, buf[offset+1], buf[offset+2])
	default:
		instruction = template
	}
	return DisassemblyLine{Offset: offset, Instruction: instruction, Length: length}
}

func spi(duplex bool, data []byte) string {
	a := data[0] &^ addr.ReadFlag
	name := addr.Name(a)

	if data[0]&addr.ReadFlag != 0 {
		mode := "SPI READ "
		if !duplex {
			mode = "SPI READ (no clock in) "
		}
		return fmt.Sprintf("%s%s [0x%02X]", mode, name, a)
	}

	payload := data[1:]
	switch {
	case len(payload) == 0:
		return fmt.Sprintf("SPI WRITE %s [0x%02X] (empty)", name, a)
	case addr.IsBurst(a):
		return fmt.Sprintf("SPI BURST %s [0x%02X] %d bytes", name, a, len(payload))
	default:
		values := make([]string, len(payload))
		for i, v := range payload {
			values[i] = fmt.Sprintf("0x%02X", v)
		}
		return fmt.Sprintf("SPI WRITE %s [0x%02X] = %s", name, a, strings.Join(values, " "))
	}
}

// Disassemble decodes every command in buf.
func Disassemble(buf []byte) []DisassemblyLine {
	var lines []DisassemblyLine
	for offset := 0; offset < len(buf); {
		line := DisassembleAt(buf, offset)
		lines = append(lines, line)
		offset += line.Length
	}
	return lines
}
