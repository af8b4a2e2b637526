//go:build linux

package gpio

import (
	"sync"

	mkchgpio "github.com/mkch/gpio"
	"github.com/pkg/errors"
)

// realChip drives actual hardware lines through github.com/mkch/gpio's
// sysfs-backed pins. Output lines (ESTOP_OUTPUT, WATCHDOG, status LEDs) are
// opened for output; input lines (ESTOP_INPUT, ENABLE_INPUT, HOME_SENSOR_*)
// are opened for input.
type realChip struct {
	mu   sync.Mutex
	pins PinMap
	open map[Line]*mkchgpio.Pin
}

var outputLines = map[Line]bool{
	EstopOutput: true,
	Watchdog:    true,
	SafetyOK:    true,
	MLActive:    true,
	GCodeActive: true,
}

func newRealChip(pins PinMap) (*realChip, error) {
	rc := &realChip{pins: pins, open: make(map[Line]*mkchgpio.Pin, len(pins))}
	for line, number := range pins {
		dir := mkchgpio.ModeInput
		if outputLines[line] {
			dir = mkchgpio.ModeOutput
		}
		pin, err := mkchgpio.OpenPin(number, dir)
		if err != nil {
			rc.Close()
			return nil, errors.Wrapf(err, "opening gpio line %s on pin %d", line, number)
		}
		rc.open[line] = pin
	}
	return rc, nil
}

func (r *realChip) Read(line Line) (bool, error) {
	r.mu.Lock()
	pin, ok := r.open[line]
	r.mu.Unlock()
	if !ok {
		return true, errors.Errorf("gpio: unconfigured line %s", line)
	}
	v, err := pin.Value()
	if err != nil {
		// Fail-safe: a communication failure reading an input is reported
		// as the asserted/pressed level by the caller (estop coordinator),
		// not inferred here.
		return false, errors.Wrapf(err, "reading gpio line %s", line)
	}
	return v != 0, nil
}

func (r *realChip) Write(line Line, high bool) error {
	r.mu.Lock()
	pin, ok := r.open[line]
	r.mu.Unlock()
	if !ok {
		return errors.Errorf("gpio: unconfigured line %s", line)
	}
	val := 0
	if high {
		val = 1
	}
	if err := pin.SetValue(val); err != nil {
		return errors.Wrapf(err, "writing gpio line %s", line)
	}
	return nil
}

func (r *realChip) Pulse(line Line) error {
	if err := r.Write(line, true); err != nil {
		return err
	}
	return r.Write(line, false)
}

func (r *realChip) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, pin := range r.open {
		if err := pin.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.open = map[Line]*mkchgpio.Pin{}
	return firstErr
}
