package driver

import (
	"context"
	"time"

	"github.com/valerio/go-ymf825/ymf825/addr"
	"github.com/valerio/go-ymf825/ymf825/board"
)

// resetStep is one section of the power-on sequence and the time the chip
// needs after it.
type resetStep struct {
	run    func(d *Driver) error
	settle time.Duration
}

var resetSequence = []resetStep{
	{
		run: func(d *Driver) error {
			return chain(
				func() error { return d.SetPowerRailSelection(d.dvdd33) },
				func() error { return d.SetAnalogBlockPowerDown(AP1 | AP2 | AP3) },
			)
		},
		settle: time.Millisecond,
	},
	{
		run: func(d *Driver) error {
			return chain(
				func() error { return d.SetClockEnable(true) },
				func() error { return d.SetAlternateReset(false) },
				func() error { return d.SetSoftReset(addr.SoftResetMagic) },
			)
		},
		settle: time.Millisecond,
	},
	{
		run:    func(d *Driver) error { return d.SetSoftReset(0x00) },
		settle: 30 * time.Millisecond,
	},
	{
		run: func(d *Driver) error {
			return chain(
				func() error { return d.SetAnalogBlockPowerDown(AP2) },
				func() error { return d.SetAnalogBlockPowerDown(0) },
				func() error { return d.SetMasterVolume(60) },
				func() error { return d.SetInterpolation(false, 3, 3, 3) },
				func() error { return d.SetMuteInterpolation(false) },
				func() error { return d.SetGain(1) },
				func() error {
					return d.SetSequencerSetting(AllKeyOff | AllMute | AllEgReset | RFifoR | RSeq | RFifo)
				},
			)
		},
		settle: 21 * time.Millisecond,
	},
	{
		run: func(d *Driver) error {
			return chain(
				func() error { return d.SetSequencerSetting(0) },
				func() error { return d.SetSequencerVolume(31, false, 0) },
				func() error { return d.SetSequencerTimeUnit(0x40 << 7) },
			)
		},
	},
}

func chain(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// ResetSoftware runs the power-on register sequence on the current target.
// It must not be called from inside a section.
func (d *Driver) ResetSoftware(ctx context.Context) error {
	if err := d.checkNotOwner(ctx); err != nil {
		return err
	}

	for _, step := range resetSequence {
		err := d.Section(ctx, board.None, func(context.Context) error {
			return step.run(d)
		}, step.settle)
		if err != nil {
			return err
		}
	}
	d.logger.Info("driver: software reset done", "target", d.Target(), "dvdd33", d.dvdd33)
	return nil
}
