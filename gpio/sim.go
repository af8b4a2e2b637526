package gpio

import "sync"

// simChip is the fallback implementation used when no hardware is attached
// (config GPIOSimulation flag), matching spec §9's guidance that the
// executor must not branch on which implementation it holds.
type simChip struct {
	mu     sync.Mutex
	pins   PinMap
	levels map[Line]bool
}

func newSimChip(pins PinMap) *simChip {
	levels := make(map[Line]bool, len(pins))
	// Inputs default to the safe/inactive level: active-low lines read
	// high (not pressed/not faulted) until a test or operator flips them.
	for line := range pins {
		levels[line] = true
	}
	return &simChip{pins: pins, levels: levels}
}

func (s *simChip) Read(line Line) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.levels[line]
	if !ok {
		return true, nil
	}
	return v, nil
}

func (s *simChip) Write(line Line, high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[line] = high
	return nil
}

func (s *simChip) Pulse(line Line) error {
	if err := s.Write(line, true); err != nil {
		return err
	}
	return s.Write(line, false)
}

func (s *simChip) Close() error { return nil }

// SetInputForTest forces an input line's level, used by tests driving the
// simulated E-stop button or home sensors.
func (s *simChip) SetInputForTest(line Line, high bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[line] = high
}

// AsSim exposes the test-only input-forcing hook when the Chip returned by
// New happens to be simulated.
func AsSim(c Chip) (interface{ SetInputForTest(Line, bool) }, bool) {
	s, ok := c.(*simChip)
	return s, ok
}
