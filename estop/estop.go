// Package estop implements the latched two-phase emergency-stop protocol
// of spec §4.5: trigger asserts a fail-safe hardware output and notifies
// callbacks; acknowledge records operator intent; reset clears the latch
// only once acknowledged and the hardware input reads safe.
package estop

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/Benergy80/Kuka-Jetson-Conversion/gpio"
	"github.com/Benergy80/Kuka-Jetson-Conversion/logging"
)

// Source is one member of the closed set of E-stop trigger sources.
type Source string

// The closed set of E-stop sources (spec §4.5).
const (
	HardwareButton   Source = "HardwareButton"
	SoftwareLimit    Source = "SoftwareLimit"
	WatchdogTimeout  Source = "WatchdogTimeout"
	CommunicationLoss Source = "CommunicationLoss"
	SafetyMonitor    Source = "SafetyMonitor"
	OperatorCommand  Source = "OperatorCommand"
)

// Event is delivered to callbacks on every successful trigger.
type Event struct {
	Source    Source
	Reason    string
	Timestamp time.Time
}

// Callback is notified synchronously on trigger; it must not block.
type Callback func(Event)

// Coordinator is the latched E-stop state machine.
type Coordinator struct {
	mu          sync.Mutex
	latched     atomic.Bool
	acked       bool
	triggeredAt time.Time
	source      Source
	reason      string

	chip      gpio.Chip
	inputLine gpio.Line
	outputLine gpio.Line

	clk    clock.Clock
	logger logging.Logger

	callbacksMu sync.Mutex
	callbacks   []Callback
}

// New builds a Coordinator wired to the given GPIO chip's E-stop input and
// output lines.
func New(chip gpio.Chip, logger logging.Logger) *Coordinator {
	return &Coordinator{
		chip:       chip,
		inputLine:  gpio.EstopInput,
		outputLine: gpio.EstopOutput,
		clk:        clock.New(),
		logger:     logger,
	}
}

// WithClock overrides the time source, for deterministic timing tests.
func (c *Coordinator) WithClock(clk clock.Clock) *Coordinator {
	c.clk = clk
	return c
}

// OnEvent registers a callback, invoked synchronously from the triggering
// goroutine. Callback registries are append-only; removal is not
// supported mid-dispatch (spec §5).
func (c *Coordinator) OnEvent(cb Callback) {
	c.callbacksMu.Lock()
	defer c.callbacksMu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

// Trigger latches the stop condition, asserts the (active-low) hardware
// output, records the trigger time, and notifies callbacks. Repeated
// triggers while latched are no-ops. Returns the elapsed wall time spent in
// this call, in milliseconds; implementations must keep this under 50ms.
func (c *Coordinator) Trigger(source Source, reason string) float64 {
	start := c.clk.Now()

	c.mu.Lock()
	alreadyLatched := c.latched.Load()
	if !alreadyLatched {
		c.latched.Store(true)
		c.acked = false
		c.triggeredAt = start
		c.source = source
		c.reason = reason
	}
	c.mu.Unlock()

	if alreadyLatched {
		return c.clk.Since(start).Seconds() * 1000
	}

	// Active-low output: driving it false asserts the stop condition.
	if c.chip != nil {
		if err := c.chip.Write(c.outputLine, false); err != nil && c.logger != nil {
			c.logger.Errorw("estop: failed to assert hardware output", "error", err)
		}
	}

	c.dispatch(Event{Source: source, Reason: reason, Timestamp: start})

	if c.logger != nil {
		c.logger.Errorw("estop triggered", "source", source, "reason", reason)
	}

	return c.clk.Since(start).Seconds() * 1000
}

func (c *Coordinator) dispatch(evt Event) {
	c.callbacksMu.Lock()
	cbs := make([]Callback, len(c.callbacks))
	copy(cbs, c.callbacks)
	c.callbacksMu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil && c.logger != nil {
					c.logger.Errorw("estop: callback panicked", "panic", r)
				}
			}()
			cb(evt)
		}()
	}
}

// Acknowledge records operator intent to clear the latch. Allowed only
// while latched.
func (c *Coordinator) Acknowledge() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.latched.Load() {
		return false
	}
	c.acked = true
	return true
}

// hardwareSafe reads the E-stop input line; any communication failure is
// treated as "pressed" (fail-safe), per spec §4.5.
func (c *Coordinator) hardwareSafe() bool {
	if c.chip == nil {
		return true
	}
	v, err := c.chip.Read(c.inputLine)
	if err != nil {
		if c.logger != nil {
			c.logger.Warnw("estop: hardware input read failed, treating as pressed", "error", err)
		}
		return false
	}
	// Active-low input: high means not pressed, i.e. safe.
	return v
}

// Reset clears the latch and releases the hardware line, but only if the
// latch has been acknowledged and the hardware input currently reads safe.
func (c *Coordinator) Reset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.latched.Load() {
		return false
	}
	if !c.acked {
		return false
	}
	if !c.hardwareSafe() {
		return false
	}
	c.latched.Store(false)
	c.acked = false
	if c.chip != nil {
		if err := c.chip.Write(c.outputLine, true); err != nil && c.logger != nil {
			c.logger.Errorw("estop: failed to release hardware output", "error", err)
		}
	}
	return true
}

// IsTriggered reports whether the latch is currently set.
func (c *Coordinator) IsTriggered() bool { return c.latched.Load() }

// TriggerSource returns the source of the most recent trigger.
func (c *Coordinator) TriggerSource() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// PollHardwareInput checks the hardware input on demand; if it reads
// pressed, it triggers with source HardwareButton. Meant to be called from
// an edge-triggered interrupt handler or a polling loop.
func (c *Coordinator) PollHardwareInput() error {
	if c.chip == nil {
		return errors.New("estop: no gpio chip configured")
	}
	if !c.hardwareSafe() {
		c.Trigger(HardwareButton, "hardware estop input asserted")
	}
	return nil
}
