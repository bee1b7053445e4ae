package driver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/valerio/go-ymf825/ymf825/board"
	"github.com/valerio/go-ymf825/ymf825/fault"
)

// ErrSectionHeld is returned when a context that holds the section lock
// tries to take it again or to read.
var ErrSectionHeld = fault.Invalid("context already holds the section lock")

// ownerKey marks a context as running inside a section of one driver.
type ownerKey struct{ d *Driver }

// Section is one batch of writes. Obtain it with BeginSection and always
// call End, typically deferred.
type Section struct {
	d       *Driver
	ctx     context.Context
	prev    board.TargetChip
	swapped bool
	ended   atomic.Bool
}

// EnableSectionMode makes sections exclusive and stops per-write flushing.
func (d *Driver) EnableSectionMode() {
	d.sectionMode.Store(true)
}

// DisableSectionMode restores per-write flushing. A section holding the lock
// loses it; its End still flushes and restores the target.
func (d *Driver) DisableSectionMode() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sectionMode.Store(false)
	if d.owner != nil {
		d.logger.Warn("driver: section lock released by DisableSectionMode")
		d.owner = nil
		<-d.lock
	}
}

// SectionModeEnabled reports whether sections are exclusive.
func (d *Driver) SectionModeEnabled() bool {
	return d.sectionMode.Load()
}

// SectionsEntered returns how many sections have been started.
func (d *Driver) SectionsEntered() int64 {
	return d.entered.Load()
}

func (d *Driver) ownsLock(ctx context.Context) bool {
	s, ok := ctx.Value(ownerKey{d}).(*Section)
	if !ok {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.owner == s
}

func (d *Driver) checkNotOwner(ctx context.Context) error {
	if d.ownsLock(ctx) {
		return ErrSectionHeld
	}
	return nil
}

// BeginSection starts a section. In section mode it waits for the lock or for
// ctx to be done. A target other than None is selected for the duration of
// the section.
//
// Pass Section.Context to driver calls made inside the section.
func (d *Driver) BeginSection(ctx context.Context, target board.TargetChip) (*Section, error) {
	if err := d.checkNotOwner(ctx); err != nil {
		return nil, err
	}

	s := &Section{d: d}
	if d.sectionMode.Load() {
		select {
		case d.lock <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		d.mu.Lock()
		d.owner = s
		d.mu.Unlock()
	}
	d.entered.Add(1)
	s.ctx = context.WithValue(ctx, ownerKey{d}, s)

	if target != board.None {
		prev := d.t.Target()
		if err := d.t.SetTarget(target); err != nil {
			d.release(s)
			s.ended.Store(true)
			return nil, err
		}
		s.prev = prev
		s.swapped = true
	}

	d.logger.Debug("driver: section begin", "target", target)
	return s, nil
}

// Context returns the context marking calls as made from inside s.
func (s *Section) Context() context.Context {
	return s.ctx
}

// End flushes, sleeps for settle, restores the previous target and releases
// the lock. The lock is released even if flushing fails. Calls after the
// first do nothing.
func (s *Section) End(settle time.Duration) error {
	if !s.ended.CompareAndSwap(false, true) {
		return nil
	}
	d := s.d
	defer d.release(s)

	err := d.t.Flush()
	if settle > 0 {
		d.sleeper.Sleep(settle)
	}
	if s.swapped {
		err = errors.Join(err, d.t.SetTarget(s.prev))
	}
	d.logger.Debug("driver: section end", "settle", settle, "err", err)
	return err
}

func (d *Driver) release(s *Section) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.owner == s {
		d.owner = nil
		<-d.lock
	}
}

// Section runs fn inside a section and ends it on every path.
func (d *Driver) Section(ctx context.Context, target board.TargetChip, fn func(ctx context.Context) error, settle time.Duration) error {
	s, err := d.BeginSection(ctx, target)
	if err != nil {
		return err
	}
	defer s.End(0)

	err = fn(s.Context())
	return errors.Join(err, s.End(settle))
}
