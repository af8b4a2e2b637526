package fieldbus

// SimTransport is an in-process Transport simulating slaveCount drives that
// echo back whatever output PDO they were sent, unmodified except that a
// test may inject a fault via SetNextInput/SetNextErr. It exists so the executor
// and Master can be exercised without real field-bus hardware, matching the
// gpio package's real/sim split for the same reason.
type SimTransport struct {
	slaveCount int
	closed     bool

	nextIn  [][6]byte
	nextErr error
}

// NewSimTransport returns a SimTransport reporting slaveCount slaves.
func NewSimTransport(slaveCount int) *SimTransport {
	return &SimTransport{slaveCount: slaveCount}
}

// Scan reports the configured slave count.
func (s *SimTransport) Scan() (int, error) { return s.slaveCount, nil }

// ConfigurePDO is a no-op in simulation.
func (s *SimTransport) ConfigurePDO() error { return nil }

// SetNetworkState is a no-op in simulation; every requested transition
// succeeds.
func (s *SimTransport) SetNetworkState(NetworkState) error { return nil }

// SetNextInput arranges for the next ExchangePDO call to return in instead
// of echoing the output frames, for tests that need to drive a specific
// status/position response.
func (s *SimTransport) SetNextInput(in [][6]byte) { s.nextIn = in }

// SetNextErr arranges for the next ExchangePDO call to fail with err.
func (s *SimTransport) SetNextErr(err error) { s.nextErr = err }

// ExchangePDO echoes the output frames back as input frames unless a test
// has queued an override via SetNextInput/SetNextErr.
func (s *SimTransport) ExchangePDO(out [][6]byte) ([][6]byte, error) {
	if s.nextErr != nil {
		err := s.nextErr
		s.nextErr = nil
		return nil, err
	}
	if s.nextIn != nil {
		in := s.nextIn
		s.nextIn = nil
		return in, nil
	}
	in := make([][6]byte, len(out))
	copy(in, out)
	return in, nil
}

// Close marks the transport closed.
func (s *SimTransport) Close() error {
	s.closed = true
	return nil
}
