// Package eq designs the biquad sections of the YMF825 output equalizer and
// encodes them in the chip's fixed-point format.
//
// Designs follow the RBJ audio EQ cookbook at a 48 kHz sample rate. A
// Coefficients value holds b0, b1, b2, a1, a2 divided by a0, with a1 and a2
// negated because the chip adds the feedback terms.
package eq

import (
	"fmt"
	"math"
	"sort"

	"github.com/valerio/go-ymf825/ymf825/fault"
)

const (
	// SampleRate is the rate the equalizer runs at.
	SampleRate = 48000.0
	// Nyquist is the highest accepted cutoff.
	Nyquist = SampleRate / 2
)

// Coefficients is one biquad section: b0, b1, b2, a1, a2.
type Coefficients [5]float64

// Flat returns the pass-through section.
func Flat() Coefficients {
	return Coefficients{1, 0, 0, 0, 0}
}

type biquad struct {
	b0, b1, b2, a0, a1, a2 float64
}

func (f biquad) normalize() Coefficients {
	return Coefficients{f.b0 / f.a0, f.b1 / f.a0, f.b2 / f.a0, -f.a1 / f.a0, -f.a2 / f.a0}
}

func checkCutoff(cutoff float64) error {
	if !(cutoff >= 0 && cutoff <= Nyquist) {
		return fault.Range("cutoff", cutoff, 0.0, Nyquist)
	}
	return nil
}

func checkNonNegative(name string, v float64) error {
	if !(v >= 0) {
		return fmt.Errorf("%s = %v, want >= 0: %w", name, v, fault.ErrOutOfRange)
	}
	return nil
}

func omega(cutoff float64) (cos, sin float64) {
	w0 := 2 * math.Pi * cutoff / SampleRate
	return math.Cos(w0), math.Sin(w0)
}

// alphaQ validates cutoff and q and returns cos(w0) and alpha.
func alphaQ(cutoff, q float64) (float64, float64, error) {
	if err := checkCutoff(cutoff); err != nil {
		return 0, 0, err
	}
	if err := checkNonNegative("q", q); err != nil {
		return 0, 0, err
	}
	cos, sin := omega(cutoff)
	return cos, sin / (2 * q), nil
}

// alphaBW is alphaQ for a bandwidth given in octaves.
func alphaBW(cutoff, bandwidth float64) (float64, float64, error) {
	if err := checkCutoff(cutoff); err != nil {
		return 0, 0, err
	}
	if err := checkNonNegative("bandwidth", bandwidth); err != nil {
		return 0, 0, err
	}
	w0 := 2 * math.Pi * cutoff / SampleRate
	cos, sin := omega(cutoff)
	return cos, sin * math.Sinh(math.Ln2/2*bandwidth*w0/sin), nil
}

// Lowpass returns a second order low-pass section.
func Lowpass(cutoff, q float64) (Coefficients, error) {
	cos, alpha, err := alphaQ(cutoff, q)
	if err != nil {
		return Coefficients{}, err
	}
	return biquad{
		b0: (1 - cos) / 2, b1: 1 - cos, b2: (1 - cos) / 2,
		a0: 1 + alpha, a1: -2 * cos, a2: 1 - alpha,
	}.normalize(), nil
}

// Highpass returns a second order high-pass section.
func Highpass(cutoff, q float64) (Coefficients, error) {
	cos, alpha, err := alphaQ(cutoff, q)
	if err != nil {
		return Coefficients{}, err
	}
	return biquad{
		b0: (1 + cos) / 2, b1: -(1 + cos), b2: (1 + cos) / 2,
		a0: 1 + alpha, a1: -2 * cos, a2: 1 - alpha,
	}.normalize(), nil
}

// Bandpass returns a constant 0 dB peak band-pass section. bandwidth is in
// octaves.
func Bandpass(cutoff, bandwidth float64) (Coefficients, error) {
	cos, alpha, err := alphaBW(cutoff, bandwidth)
	if err != nil {
		return Coefficients{}, err
	}
	return biquad{
		b0: alpha, b1: 0, b2: -alpha,
		a0: 1 + alpha, a1: -2 * cos, a2: 1 - alpha,
	}.normalize(), nil
}

// Bandstop returns a notch section. bandwidth is in octaves.
func Bandstop(cutoff, bandwidth float64) (Coefficients, error) {
	cos, alpha, err := alphaBW(cutoff, bandwidth)
	if err != nil {
		return Coefficients{}, err
	}
	return biquad{
		b0: 1, b1: -2 * cos, b2: 1,
		a0: 1 + alpha, a1: -2 * cos, a2: 1 - alpha,
	}.normalize(), nil
}

// Allpass returns an all-pass section.
func Allpass(cutoff, q float64) (Coefficients, error) {
	cos, alpha, err := alphaQ(cutoff, q)
	if err != nil {
		return Coefficients{}, err
	}
	return biquad{
		b0: 1 - alpha, b1: -2 * cos, b2: 1 + alpha,
		a0: 1 + alpha, a1: -2 * cos, a2: 1 - alpha,
	}.normalize(), nil
}

// Peaking returns a peaking section with gain in dB. bandwidth is in octaves.
func Peaking(cutoff, bandwidth, gain float64) (Coefficients, error) {
	cos, alpha, err := alphaBW(cutoff, bandwidth)
	if err != nil {
		return Coefficients{}, err
	}
	a := math.Pow(10, gain/40)
	return biquad{
		b0: 1 + alpha*a, b1: -2 * cos, b2: 1 - alpha*a,
		a0: 1 + alpha/a, a1: -2 * cos, a2: 1 - alpha/a,
	}.normalize(), nil
}

// LowShelf returns a low shelving section with gain in dB.
func LowShelf(cutoff, q, gain float64) (Coefficients, error) {
	cos, alpha, err := alphaQ(cutoff, q)
	if err != nil {
		return Coefficients{}, err
	}
	a := math.Pow(10, gain/40)
	s := 2 * math.Sqrt(a) * alpha
	return biquad{
		b0: a * ((a + 1) - (a-1)*cos + s),
		b1: 2 * a * ((a - 1) - (a+1)*cos),
		b2: a * ((a + 1) - (a-1)*cos - s),
		a0: (a + 1) + (a-1)*cos + s,
		a1: -2 * ((a - 1) + (a+1)*cos),
		a2: (a + 1) + (a-1)*cos - s,
	}.normalize(), nil
}

// HighShelf returns a high shelving section with gain in dB.
func HighShelf(cutoff, q, gain float64) (Coefficients, error) {
	cos, alpha, err := alphaQ(cutoff, q)
	if err != nil {
		return Coefficients{}, err
	}
	a := math.Pow(10, gain/40)
	s := 2 * math.Sqrt(a) * alpha
	return biquad{
		b0: a * ((a + 1) + (a-1)*cos + s),
		b1: -2 * a * ((a - 1) + (a+1)*cos),
		b2: a * ((a + 1) + (a-1)*cos - s),
		a0: (a + 1) - (a-1)*cos + s,
		a1: 2 * ((a - 1) - (a+1)*cos),
		a2: (a + 1) - (a-1)*cos - s,
	}.normalize(), nil
}

// Params carries every design argument; each design reads the ones it needs.
type Params struct {
	Cutoff    float64
	Q         float64
	Bandwidth float64
	Gain      float64
}

var designs = map[string]func(Params) (Coefficients, error){
	"flat":      func(Params) (Coefficients, error) { return Flat(), nil },
	"lowpass":   func(p Params) (Coefficients, error) { return Lowpass(p.Cutoff, p.Q) },
	"highpass":  func(p Params) (Coefficients, error) { return Highpass(p.Cutoff, p.Q) },
	"bandpass":  func(p Params) (Coefficients, error) { return Bandpass(p.Cutoff, p.Bandwidth) },
	"bandstop":  func(p Params) (Coefficients, error) { return Bandstop(p.Cutoff, p.Bandwidth) },
	"lowshelf":  func(p Params) (Coefficients, error) { return LowShelf(p.Cutoff, p.Q, p.Gain) },
	"highshelf": func(p Params) (Coefficients, error) { return HighShelf(p.Cutoff, p.Q, p.Gain) },
	"peaking":   func(p Params) (Coefficients, error) { return Peaking(p.Cutoff, p.Bandwidth, p.Gain) },
	"allpass":   func(p Params) (Coefficients, error) { return Allpass(p.Cutoff, p.Q) },
}

// Design builds the section named by kind.
func Design(kind string, p Params) (Coefficients, error) {
	fn, ok := designs[kind]
	if !ok {
		return Coefficients{}, fmt.Errorf("unknown filter %q, want one of %v: %w", kind, Kinds(), fault.ErrOutOfRange)
	}
	return fn(p)
}

// Kinds lists the names Design accepts.
func Kinds() []string {
	kinds := make([]string, 0, len(designs))
	for k := range designs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
