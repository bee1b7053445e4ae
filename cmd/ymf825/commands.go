package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/valerio/go-ymf825/ymf825/addr"
	"github.com/valerio/go-ymf825/ymf825/board"
	"github.com/valerio/go-ymf825/ymf825/device"
	"github.com/valerio/go-ymf825/ymf825/eq"
	"github.com/valerio/go-ymf825/ymf825/script"
	"github.com/valerio/go-ymf825/ymf825/tone"
)

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func hex(v byte) string { return fmt.Sprintf("0x%02X", v) }

func listDevices(c *cli.Context) error {
	n, err := device.CountD2XX()
	if err != nil {
		return err
	}
	fmt.Println(newTable("Backend", "Devices").Row("d2xx", strconv.Itoa(n)))
	return nil
}

func listTargets(c *cli.Context) error {
	cfg, err := loadBoard(c)
	if err != nil {
		return err
	}
	chips, err := cfg.Addressor()
	if err != nil {
		return err
	}

	t := newTable("Target", "Chip-select pins")
	for _, target := range chips.Targets() {
		pins, err := chips.Resolve(target)
		if err != nil {
			return err
		}
		t.Row(target.String(), fmt.Sprintf("0b%08b", pins))
	}
	fmt.Println(styles.title.Render(cfg.Name))
	fmt.Println(t)
	return nil
}

func resetChips(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := interruptible()
	defer cancel()

	if err := s.d.InvokeHardwareReset(); err != nil {
		return err
	}
	if err := s.d.ResetSoftware(ctx); err != nil {
		return err
	}
	fmt.Println(styles.ok.Render("reset done"))
	return nil
}

func readIDs(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := interruptible()
	defer cancel()

	t := newTable("Chip", "Hardware ID")
	for _, chip := range s.d.Chips().All().Chips() {
		id, err := s.d.HardwareID(ctx, chip)
		if err != nil {
			return fmt.Errorf("failed to read %v: %w", chip, err)
		}
		t.Row(chip.String(), hex(id))
	}
	fmt.Println(t)
	return nil
}

func selfTest(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := interruptible()
	defer cancel()

	// reads switch the target, so concurrent callers need exclusive sections
	s.d.EnableSectionMode()
	chips := s.d.Chips().All().Chips()
	results := make([]string, len(chips))

	g, ctx := errgroup.WithContext(ctx)
	for i, chip := range chips {
		g.Go(func() error {
			pattern := byte(0xA5 ^ i)
			err := s.d.Section(ctx, chip, func(context.Context) error {
				return s.d.SetSoftwareTest(pattern)
			}, 0)
			if err != nil {
				return err
			}
			got, err := s.d.SoftwareTest(ctx, chip)
			if err != nil {
				return err
			}
			if got != pattern {
				results[i] = styles.fail.Render(fmt.Sprintf("wrote %s read %s", hex(pattern), hex(got)))
				return nil
			}
			results[i] = styles.ok.Render("ok")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	t := newTable("Chip", "Loopback")
	for i, chip := range chips {
		t.Row(chip.String(), results[i])
	}
	fmt.Println(t)
	return nil
}

func playNote(c *cli.Context) error {
	key := 60
	if c.NArg() > 0 {
		k, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return fmt.Errorf("invalid key %q: %v", c.Args().Get(0), err)
		}
		key = k
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := interruptible()
	defer cancel()

	tones := tone.NewCollection()
	first, err := tones.Tone(0)
	if err != nil {
		return err
	}
	*first = *tone.Default()

	if err := s.d.ResetSoftware(ctx); err != nil {
		return err
	}
	if err := s.d.SetMasterVolume(c.Int("volume")); err != nil {
		return err
	}
	if err := s.d.WriteContentsData(tones, 0); err != nil {
		return err
	}

	voice := c.Int("voice")
	if err := s.d.KeyOn(ctx, voice, key, 0); err != nil {
		return err
	}
	slog.Info("Key on", "key", key, "voice", voice, "duration", c.Duration("duration"))
	select {
	case <-time.After(c.Duration("duration")):
	case <-ctx.Done():
	}
	return s.d.KeyOff(context.Background(), voice, 0)
}

func loadEqualizer(c *cli.Context) error {
	coefficients, err := eq.Design(c.String("kind"), eq.Params{
		Cutoff:    c.Float64("cutoff"),
		Q:         c.Float64("q"),
		Bandwidth: c.Float64("bandwidth"),
		Gain:      c.Float64("gain"),
	})
	if err != nil {
		return err
	}

	t := newTable("Coefficient", "Value", "Register")
	for i, name := range []string{"b0", "b1", "b2", "a1", "a2"} {
		raw, err := eq.ToRegisterFormat(coefficients[i])
		cell := fmt.Sprintf("0x%06X", raw)
		if err != nil {
			cell = styles.fail.Render("out of range")
		}
		t.Row(name, strconv.FormatFloat(coefficients[i], 'f', 8, 64), cell)
	}
	fmt.Println(t)
	if c.Bool("dry-run") {
		return nil
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.d.SetEqualizer(c.Int("band"), coefficients[:])
}

func dumpRegisters(c *cli.Context) error {
	slot := c.Int("chip")
	if slot < 0 || slot >= board.MaxChips {
		return fmt.Errorf("chip slot %d outside [0, %d]", slot, board.MaxChips-1)
	}
	chip := board.TargetChip(1 << slot)

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := interruptible()
	defer cancel()

	prev := s.d.Target()
	if err := s.d.SetTarget(chip); err != nil {
		return err
	}
	defer s.d.SetTarget(prev)

	t := newTable("Address", "Register", "Value")
	for a := 0; a <= int(addr.Last); a++ {
		if addr.IsBurst(byte(a)) {
			continue
		}
		v, err := s.d.Read(ctx, byte(a))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", hex(byte(a)), err)
		}
		t.Row(hex(byte(a)), addr.Name(byte(a)), hex(v))
	}
	fmt.Println(styles.title.Render(chip.String()))
	fmt.Println(t)
	return nil
}

func runScript(c *cli.Context) error {
	if c.NArg() == 0 {
		cli.ShowCommandHelp(c, "script")
		return errors.New("no script path provided")
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := interruptible()
	defer cancel()

	e := script.New(s.d)
	defer e.Close()
	return e.RunFile(ctx, c.Args().Get(0))
}
