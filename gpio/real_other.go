//go:build !linux

package gpio

import "github.com/pkg/errors"

// newRealChip is unavailable off Linux; non-Linux builds must use GPIO
// simulation.
func newRealChip(pins PinMap) (Chip, error) {
	return nil, errors.New("gpio: real hardware chip requires linux")
}
