package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli"

	"github.com/valerio/go-ymf825/ymf825/board"
	"github.com/valerio/go-ymf825/ymf825/device"
	"github.com/valerio/go-ymf825/ymf825/driver"
	"github.com/valerio/go-ymf825/ymf825/timing"
	"github.com/valerio/go-ymf825/ymf825/transport"
)

// session is an opened board ready for register traffic.
type session struct {
	cfg board.Config
	d   *driver.Driver
}

func loadBoard(c *cli.Context) (board.Config, error) {
	if path := c.GlobalString("board-config"); path != "" {
		return board.Load(path)
	}
	return board.Preset(c.GlobalString("board"))
}

func openDevice(c *cli.Context, cfg board.Config, logger *slog.Logger) (device.Device, timing.Sleeper, error) {
	switch backend := c.GlobalString("backend"); backend {
	case "d2xx":
		dev, err := device.OpenD2XX(c.GlobalInt("device-index"), logger)
		return dev, timing.NewRealSleeper(), err
	case "libusb":
		dev, err := device.OpenLibUSB(logger)
		return dev, timing.NewRealSleeper(), err
	case "sim":
		return device.NewSim(cfg, device.WithSimLogger(logger)), timing.NewNoOpSleeper(), nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q, want d2xx, libusb or sim", backend)
	}
}

func openSession(c *cli.Context) (*session, error) {
	logger := slog.Default()
	cfg, err := loadBoard(c)
	if err != nil {
		return nil, err
	}

	dev, sleeper, err := openDevice(c, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge: %w", err)
	}
	if c.GlobalBool("trace") {
		dev = &tracedDevice{Device: dev, logger: logger}
	}

	tr, err := transport.New(dev, cfg,
		transport.WithLogger(logger),
		transport.WithSleeper(sleeper),
		transport.WithReadTimeout(c.GlobalDuration("read-timeout")),
	)
	if err != nil {
		dev.Close()
		return nil, err
	}

	d, err := driver.New(tr,
		driver.WithLogger(logger),
		driver.WithSleeper(sleeper),
		driver.WithPowerRail(c.GlobalBool("dvdd33")),
	)
	if err != nil {
		tr.Close()
		return nil, err
	}
	if c.GlobalBool("section-mode") {
		d.EnableSectionMode()
	}

	slog.Info("Opened board", "board", cfg.Name, "backend", c.GlobalString("backend"), "chips", d.Chips().Chips())
	return &session{cfg: cfg, d: d}, nil
}

func (s *session) Close() {
	if err := s.d.Close(); err != nil {
		slog.Warn("Failed to close board", "error", err)
	}
}
