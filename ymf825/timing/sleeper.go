package timing

import (
	"sync"
	"time"
)

// Sleeper waits for the settle delays the chip and the bridge need.
type Sleeper interface {
	// Sleep blocks for d. A zero or negative duration returns immediately.
	Sleep(d time.Duration)
}

// NewRealSleeper returns a sleeper backed by time.Sleep.
func NewRealSleeper() Sleeper {
	return realSleeper{}
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// NewNoOpSleeper returns a sleeper that never waits (for simulated devices).
func NewNoOpSleeper() Sleeper {
	return &noOpSleeper{}
}

type noOpSleeper struct{}

func (n *noOpSleeper) Sleep(time.Duration) {}

// Recorder is a sleeper that records requested delays without waiting.
type Recorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

// Sleep records d.
func (r *Recorder) Sleep(d time.Duration) {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
}

// Delays returns a copy of every recorded delay in call order.
func (r *Recorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// Reset forgets the recorded delays.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.delays = r.delays[:0]
	r.mu.Unlock()
}

// Hardware settle delays.
const (
	// ResetPulse is the wait after each IC pin transition of a hardware reset.
	ResetPulse = 2 * time.Millisecond

	// PollInterval is the default wait between receive queue polls.
	PollInterval = 100 * time.Microsecond
)
