// Package watchdog implements the timeout-driven stop-signal emitter of
// spec §4.4: a background timekeeper samples a last-kick timestamp and
// fires a callback exactly once if it goes stale, optionally pulsing a
// hardware line so an external watchdog can be chained.
package watchdog

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/Benergy80/Kuka-Jetson-Conversion/gpio"
	"github.com/Benergy80/Kuka-Jetson-Conversion/logging"
)

// Watchdog samples a last-kick timestamp and fires its callback once if the
// gap since the last kick exceeds Timeout.
type Watchdog struct {
	Timeout time.Duration
	OnFire  func()

	clock   clock.Clock
	hwLine  gpio.Chip
	hwPin   gpio.Line
	hasHW   bool
	lastKick atomic.Int64 // unix nanos, via clock
	fired   atomic.Bool
	started atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
	logger  logging.Logger
}

// Option configures a Watchdog at construction time.
type Option func(*Watchdog)

// WithClock injects a clock source, used in tests to control time
// deterministically instead of sleeping for real.
func WithClock(c clock.Clock) Option {
	return func(w *Watchdog) { w.clock = c }
}

// WithHardwareLine chains kick() to a pulsed hardware I/O line so an
// external hardware watchdog sees activity too (spec §4.4).
func WithHardwareLine(chip gpio.Chip, line gpio.Line) Option {
	return func(w *Watchdog) { w.hwLine = chip; w.hwPin = line; w.hasHW = true }
}

// New builds a Watchdog with the given timeout and fire callback.
func New(timeout time.Duration, onFire func(), logger logging.Logger, opts ...Option) *Watchdog {
	w := &Watchdog{
		Timeout: timeout,
		OnFire:  onFire,
		clock:   clock.New(),
		logger:  logger,
		stop:    make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	w.lastKick.Store(w.clock.Now().UnixNano())
	return w
}

// Start begins the background timekeeper. Starting twice is a no-op
// (idempotent), per spec §4.4.
func (w *Watchdog) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	w.Kick()
	// Poll at a fraction of the timeout so the fire deadline is detected
	// promptly without busy-looping. The ticker is created here, before
	// Start returns, so a clock advanced right after Start is observed.
	pollEvery := w.Timeout / 4
	if pollEvery <= 0 {
		pollEvery = time.Millisecond
	}
	ticker := w.clock.Ticker(pollEvery)
	w.wg.Add(1)
	go w.run(ticker)
}

// Stop halts the background timekeeper.
func (w *Watchdog) Stop() {
	if !w.started.CompareAndSwap(true, false) {
		return
	}
	close(w.stop)
	w.wg.Wait()
}

// Kick records that the control loop is alive. Safe to call at high
// frequency; O(1).
func (w *Watchdog) Kick() {
	w.lastKick.Store(w.clock.Now().UnixNano())
	if w.hasHW {
		if err := w.hwLine.Pulse(w.hwPin); err != nil && w.logger != nil {
			w.logger.Warnw("watchdog: failed to pulse hardware line", "error", err)
		}
	}
}

func (w *Watchdog) run(ticker *clock.Ticker) {
	defer w.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			last := time.Unix(0, w.lastKick.Load())
			if w.clock.Now().Sub(last) > w.Timeout {
				if w.fired.CompareAndSwap(false, true) {
					if w.logger != nil {
						w.logger.Errorw("watchdog timeout", "timeout", w.Timeout)
					}
					if w.OnFire != nil {
						w.OnFire()
					}
				}
				return
			}
		}
	}
}

// Fired reports whether the watchdog has already fired.
func (w *Watchdog) Fired() bool { return w.fired.Load() }
