// Package script runs Lua programs against a driver.
//
// Scripts load the module with
//
//	local chip = require("ymf825")
//
// and call its functions, which map one to one onto driver operations.
// Register addresses and values are plain integers.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/valerio/go-ymf825/ymf825/board"
	"github.com/valerio/go-ymf825/ymf825/driver"
	"github.com/valerio/go-ymf825/ymf825/eq"
	"github.com/valerio/go-ymf825/ymf825/timing"
	"github.com/valerio/go-ymf825/ymf825/tone"
)

// ModuleName is the name scripts require.
const ModuleName = "ymf825"

// Engine is a Lua state bound to one driver. It is not safe for concurrent use.
type Engine struct {
	d     *driver.Driver
	L     *lua.LState
	ctx   context.Context
	tones *tone.Collection

	// lastErr is the driver error behind the most recent Lua error, so
	// callers can still classify it with errors.Is.
	lastErr error

	// settings
	logger  *slog.Logger
	sleeper timing.Sleeper
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the Lua print and log functions.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithSleeper replaces the sleeper behind the Lua sleep function.
func WithSleeper(s timing.Sleeper) Option { return func(e *Engine) { e.sleeper = s } }

// New creates an engine with the standard Lua libraries and the ymf825 module.
func New(d *driver.Driver, opts ...Option) *Engine {
	e := &Engine{
		d:       d,
		tones:   tone.NewCollection(),
		L:       lua.NewState(),
		ctx:     context.Background(),
		logger:  slog.Default(),
		sleeper: timing.NewRealSleeper(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.L.PreloadModule(ModuleName, e.load)
	e.L.SetGlobal("print", e.L.NewFunction(e.print))
	return e
}

// Close releases the Lua state. The driver is left open.
func (e *Engine) Close() {
	e.L.Close()
}

// Run executes src. name is used in error messages.
func (e *Engine) Run(ctx context.Context, name, src string) error {
	return e.run(ctx, name, func() error { return e.L.DoString(src) })
}

// RunFile executes the script at path.
func (e *Engine) RunFile(ctx context.Context, path string) error {
	return e.run(ctx, path, func() error { return e.L.DoFile(path) })
}

func (e *Engine) run(ctx context.Context, name string, do func() error) error {
	e.ctx = ctx
	e.lastErr = nil
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()

	start := time.Now()
	if err := do(); err != nil {
		if e.lastErr != nil {
			return fmt.Errorf("script %s: %w", name, e.lastErr)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("script %s: %w", name, ctx.Err())
		}
		return fmt.Errorf("script %s: %v", name, err)
	}
	e.logger.Debug("script: done", "name", name, "elapsed", time.Since(start))
	return nil
}

func (e *Engine) load(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"write":         e.write,
		"burst":         e.burst,
		"read":          e.read,
		"flush":         e.flush,
		"target":        e.target,
		"section":       e.section,
		"section_mode":  e.sectionMode,
		"reset":         e.reset,
		"hw_reset":      e.hwReset,
		"id":            e.id,
		"note_on":       e.noteOn,
		"note_off":      e.noteOff,
		"all_off":       e.allOff,
		"master_volume": e.masterVolume,
		"eq":            e.equalizer,
		"tone":          e.tone,
		"load_tones":    e.loadTones,
		"sleep":         e.sleep,
	})
	for _, t := range []board.TargetChip{board.Board0, board.Board1, board.Board2, board.Board3, board.Board4} {
		mod.RawSetString(t.String(), lua.LNumber(t))
	}
	L.Push(mod)
	return 1
}

// check raises a Lua error for err and remembers it.
func (e *Engine) check(L *lua.LState, err error) {
	if err == nil {
		return
	}
	e.lastErr = err
	L.RaiseError("%v", err)
}

func checkByte(L *lua.LState, n int) byte {
	v := L.CheckInt(n)
	if v < 0 || v > 0xFF {
		L.ArgError(n, fmt.Sprintf("%d is not a byte", v))
	}
	return byte(v)
}

func (e *Engine) print(L *lua.LState) int {
	args := make([]any, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		args = append(args, L.Get(i).String())
	}
	e.logger.Info("script: " + fmt.Sprint(args...))
	return 0
}

// write(addr, value, ...)
func (e *Engine) write(L *lua.LState) int {
	a := checkByte(L, 1)
	data := make([]byte, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		data = append(data, checkByte(L, i))
	}
	e.check(L, e.d.Write(a, data...))
	return 0
}

// burst(addr, {bytes})
func (e *Engine) burst(L *lua.LState) int {
	a := checkByte(L, 1)
	tbl := L.CheckTable(2)
	data := make([]byte, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		v, ok := tbl.RawGetInt(i).(lua.LNumber)
		if !ok || v < 0 || v > 0xFF {
			L.ArgError(2, fmt.Sprintf("element %d is not a byte", i))
		}
		data = append(data, byte(v))
	}
	e.check(L, e.d.BurstWrite(a, data, 0, len(data)))
	return 0
}

// read(addr) -> value
func (e *Engine) read(L *lua.LState) int {
	v, err := e.d.Read(e.ctx, checkByte(L, 1))
	e.check(L, err)
	L.Push(lua.LNumber(v))
	return 1
}

func (e *Engine) flush(L *lua.LState) int {
	e.check(L, e.d.Flush())
	return 0
}

// target([mask]) -> mask
func (e *Engine) target(L *lua.LState) int {
	if L.GetTop() >= 1 {
		t, err := board.NewTargetChip(checkByte(L, 1))
		e.check(L, err)
		e.check(L, e.d.SetTarget(t))
	}
	L.Push(lua.LNumber(e.d.Target()))
	return 1
}

// section(fn, [target], [settle_ms])
func (e *Engine) section(L *lua.LState) int {
	fn := L.CheckFunction(1)
	t, err := board.NewTargetChip(uint8(L.OptInt(2, 0)))
	e.check(L, err)
	settle := time.Duration(L.OptNumber(3, 0) * lua.LNumber(time.Millisecond))

	outer := e.ctx
	err = e.d.Section(outer, t, func(ctx context.Context) error {
		e.ctx = ctx
		defer func() { e.ctx = outer }()
		return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
	}, settle)
	if err != nil {
		if e.lastErr == nil {
			e.lastErr = err
		}
		L.RaiseError("%v", err)
	}
	return 0
}

// section_mode([enabled]) -> enabled
func (e *Engine) sectionMode(L *lua.LState) int {
	if L.GetTop() >= 1 {
		if L.CheckBool(1) {
			e.d.EnableSectionMode()
		} else {
			e.d.DisableSectionMode()
		}
	}
	L.Push(lua.LBool(e.d.SectionModeEnabled()))
	return 1
}

func (e *Engine) reset(L *lua.LState) int {
	e.check(L, e.d.ResetSoftware(e.ctx))
	return 0
}

func (e *Engine) hwReset(L *lua.LState) int {
	e.check(L, e.d.InvokeHardwareReset())
	return 0
}

// id(target) -> hardware id
func (e *Engine) id(L *lua.LState) int {
	t, err := board.NewTargetChip(checkByte(L, 1))
	e.check(L, err)
	v, err := e.d.HardwareID(e.ctx, t)
	e.check(L, err)
	L.Push(lua.LNumber(v))
	return 1
}

// note_on(voice, key, [tone])
func (e *Engine) noteOn(L *lua.LState) int {
	e.check(L, e.d.KeyOn(e.ctx, L.CheckInt(1), L.CheckInt(2), L.OptInt(3, 0)))
	return 0
}

// note_off(voice, [tone])
func (e *Engine) noteOff(L *lua.LState) int {
	e.check(L, e.d.KeyOff(e.ctx, L.CheckInt(1), L.OptInt(2, 0)))
	return 0
}

func (e *Engine) allOff(L *lua.LState) int {
	e.check(L, e.d.AllKeyOff(e.ctx))
	return 0
}

func (e *Engine) masterVolume(L *lua.LState) int {
	e.check(L, e.d.SetMasterVolume(L.CheckInt(1)))
	return 0
}

// eq(band, kind, {cutoff=, q=, bandwidth=, gain=})
func (e *Engine) equalizer(L *lua.LState) int {
	band := L.CheckInt(1)
	kind := L.CheckString(2)
	p := eq.Params{Q: 0.7071067811865476, Bandwidth: 1}
	if opts, ok := L.Get(3).(*lua.LTable); ok {
		field := func(name string, def float64) float64 {
			if v, ok := opts.RawGetString(name).(lua.LNumber); ok {
				return float64(v)
			}
			return def
		}
		p.Cutoff = field("cutoff", p.Cutoff)
		p.Q = field("q", p.Q)
		p.Bandwidth = field("bandwidth", p.Bandwidth)
		p.Gain = field("gain", p.Gain)
	}

	c, err := eq.Design(kind, p)
	e.check(L, err)
	e.check(L, e.d.SetEqualizer(band, c[:]))
	return 0
}

// sleep(ms)
func (e *Engine) sleep(L *lua.LState) int {
	ms := L.CheckNumber(1)
	e.sleeper.Sleep(time.Duration(float64(ms) * float64(time.Millisecond)))
	return 0
}

// tone(slot, [{30 bytes}]) -> {30 bytes}
//
// With a table, decodes it into the tone slot. Without one, the slot is reset
// to the built-in default tone. Returns the slot's encoded block either way.
func (e *Engine) tone(L *lua.LState) int {
	p, err := e.tones.Tone(L.CheckInt(1))
	e.check(L, err)

	if tbl, ok := L.Get(2).(*lua.LTable); ok {
		buf := make([]byte, tbl.Len())
		for i := range buf {
			v, ok := tbl.RawGetInt(i + 1).(lua.LNumber)
			if !ok || v < 0 || v > 0xFF {
				L.ArgError(2, fmt.Sprintf("element %d is not a byte", i+1))
			}
			buf[i] = byte(v)
		}
		var decoded tone.Parameter
		e.check(L, decoded.Import(buf, 0))
		*p = decoded
	} else {
		*p = *tone.Default()
	}

	out := make([]byte, tone.Size)
	e.check(L, p.Export(out, 0))
	result := L.NewTable()
	for _, b := range out {
		result.Append(lua.LNumber(b))
	}
	L.Push(result)
	return 1
}

// load_tones(last_slot) sends slots 0..last_slot to the chips.
func (e *Engine) loadTones(L *lua.LState) int {
	e.check(L, e.d.WriteContentsData(e.tones, L.CheckInt(1)))
	return 0
}
