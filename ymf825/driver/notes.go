package driver

import (
	"context"

	"github.com/valerio/go-ymf825/ymf825/board"
	"github.com/valerio/go-ymf825/ymf825/fault"
	"github.com/valerio/go-ymf825/ymf825/freq"
)

const (
	// Voices is the number of voices each chip plays at once.
	Voices = 16

	defaultVoiceVolume = 31
)

func checkVoice(voice, toneNumber int) error {
	if voice < 0 || voice >= Voices {
		return fault.Range("voice", voice, 0, Voices-1)
	}
	if toneNumber < 0 || toneNumber >= Voices {
		return fault.Range("tone", toneNumber, 0, Voices-1)
	}
	return nil
}

// KeyOn starts MIDI key on voice using a loaded tone. The FNUM rounding
// error is compensated through the voice's frequency multiplier.
func (d *Driver) KeyOn(ctx context.Context, voice, key, toneNumber int) error {
	if err := checkVoice(voice, toneNumber); err != nil {
		return err
	}
	p, err := freq.FnumAndBlock(key)
	if err != nil {
		return err
	}
	integer, fraction, err := freq.ConvertForFrequencyMultiplier(p.Correction)
	if err != nil {
		return err
	}

	return d.Section(ctx, board.None, func(context.Context) error {
		return chain(
			func() error { return d.SetVoiceNumber(voice) },
			func() error { return d.SetVoiceVolume(defaultVoiceVolume) },
			func() error { return d.SetFrequencyMultiplier(integer, fraction) },
			func() error { return d.SetFnumAndBlock(p.Register(), p.Block) },
			func() error { return d.SetToneFlag(toneNumber, true, false, false) },
		)
	}, 0)
}

// KeyOff releases voice.
func (d *Driver) KeyOff(ctx context.Context, voice, toneNumber int) error {
	if err := checkVoice(voice, toneNumber); err != nil {
		return err
	}
	return d.Section(ctx, board.None, func(context.Context) error {
		return chain(
			func() error { return d.SetVoiceNumber(voice) },
			func() error { return d.SetToneFlag(toneNumber, false, false, false) },
		)
	}, 0)
}

// AllKeyOff releases every voice through the sequencer register.
func (d *Driver) AllKeyOff(ctx context.Context) error {
	return d.Section(ctx, board.None, func(context.Context) error {
		return chain(
			func() error { return d.SetSequencerSetting(AllKeyOff) },
			func() error { return d.SetSequencerSetting(0) },
		)
	}, 0)
}
