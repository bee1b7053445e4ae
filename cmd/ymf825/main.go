package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/valerio/go-ymf825/ymf825/transport"
)

func main() {
	app := cli.NewApp()
	app.Name = "ymf825"
	app.Description = "Drive YMF825 FM synthesizer boards through an FTDI MPSSE bridge"
	app.Usage = "ymf825 [global options] <command> [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "board",
			Usage:  "Board preset (ymf825board, ymf825board-stereo)",
			Value:  "ymf825board",
			EnvVar: "YMF825_BOARD",
		},
		cli.StringFlag{
			Name:  "board-config",
			Usage: "Path to a TOML board definition, overrides --board",
		},
		cli.StringFlag{
			Name:   "backend",
			Usage:  "USB backend: d2xx, libusb (needs the libusb build tag) or sim",
			Value:  "d2xx",
			EnvVar: "YMF825_BACKEND",
		},
		cli.IntFlag{
			Name:   "device-index",
			Usage:  "Index of the FTDI device to open with the d2xx backend",
			EnvVar: "YMF825_DEVICE",
		},
		cli.DurationFlag{
			Name:  "read-timeout",
			Usage: "How long to wait for a register read reply (0 = forever)",
			Value: transport.DefaultReadTimeout,
		},
		cli.BoolFlag{
			Name:  "dvdd33",
			Usage: "Board is powered from 3.3 V instead of 5 V",
		},
		cli.BoolFlag{
			Name:  "section-mode",
			Usage: "Batch register writes into exclusive sections",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
		cli.BoolFlag{
			Name:  "trace",
			Usage: "Disassemble every MPSSE command sent to the bridge (implies --verbose)",
		},
	}
	app.Before = setupLogging
	app.Commands = []cli.Command{
		{
			Name:   "devices",
			Usage:  "Count FTDI devices visible to the D2XX driver",
			Action: listDevices,
		},
		{
			Name:   "targets",
			Usage:  "List the chip combinations the board can address",
			Action: listTargets,
		},
		{
			Name:   "reset",
			Usage:  "Hardware reset followed by the power-on register sequence",
			Action: resetChips,
		},
		{
			Name:   "id",
			Usage:  "Read the hardware ID of every chip",
			Action: readIDs,
		},
		{
			Name:   "selftest",
			Usage:  "Write and read back the test register of every chip concurrently",
			Action: selfTest,
		},
		{
			Name:      "note",
			Usage:     "Play a note with the built-in tone",
			ArgsUsage: "[MIDI key]",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "voice", Usage: "Voice to play on (0-15)"},
				cli.DurationFlag{Name: "duration", Usage: "How long to hold the key", Value: 500 * time.Millisecond},
				cli.IntFlag{Name: "volume", Usage: "Master volume (0-63)", Value: 60},
			},
			Action: playNote,
		},
		{
			Name:  "eq",
			Usage: "Design an equalizer band and load it",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "band", Usage: "Equalizer band (0-2)"},
				cli.StringFlag{Name: "kind", Usage: "Filter kind", Value: "flat"},
				cli.Float64Flag{Name: "cutoff", Usage: "Cutoff or center frequency in Hz", Value: 1000},
				cli.Float64Flag{Name: "q", Usage: "Quality factor", Value: 0.7071067811865476},
				cli.Float64Flag{Name: "bandwidth", Usage: "Bandwidth in octaves", Value: 1},
				cli.Float64Flag{Name: "gain", Usage: "Gain in dB for shelving and peaking filters"},
				cli.BoolFlag{Name: "dry-run", Usage: "Only print the coefficients"},
			},
			Action: loadEqualizer,
		},
		{
			Name:  "dump",
			Usage: "Read and print the register file of one chip",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "chip", Usage: "Chip slot to read (0-4)"},
			},
			Action: dumpRegisters,
		},
		{
			Name:      "script",
			Usage:     "Run a Lua script against the board",
			ArgsUsage: "<script.lua>",
			Action:    runScript,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running ymf825", "error", err)
		os.Exit(1)
	}
}

func setupLogging(c *cli.Context) error {
	level := slog.LevelInfo
	if c.GlobalBool("verbose") || c.GlobalBool("trace") {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	return nil
}
