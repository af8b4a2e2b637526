// Package fieldbus implements the field-bus master lifecycle and cyclic PDO
// exchange of spec §4.12: network-wide state coordination
// (Init -> PreOp -> SafeOp -> Op) plus rolling cycle-time statistics.
package fieldbus

import (
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/atomic"

	"github.com/Benergy80/Kuka-Jetson-Conversion/ctlerr"
	"github.com/Benergy80/Kuka-Jetson-Conversion/logging"
)

// NetworkState is one member of the field-bus master's whole-network
// lifecycle (spec §4.12/§6).
type NetworkState int

// The closed set of network states.
const (
	Init NetworkState = iota
	PreOp
	SafeOp
	Op
)

func (s NetworkState) String() string {
	switch s {
	case Init:
		return "Init"
	case PreOp:
		return "PreOp"
	case SafeOp:
		return "SafeOp"
	case Op:
		return "Op"
	}
	return "Unknown"
}

// statsWindow is the rolling sample count over which cycle-time statistics
// are computed (spec §4.12: "rolling 1,000-sample window").
const statsWindow = 1000

// Stats is a snapshot of cycle-time statistics over the rolling window.
type Stats struct {
	Mean   time.Duration
	Max    time.Duration
	Min    time.Duration
	StdDev time.Duration
	Count  int
}

// Transport is the underlying bus transport: a single transactional
// output-then-input exchange across every slave's PDO. Implementations are
// provided for a real field-bus NIC and for simulation; the master treats
// either as the opaque bounded-time collaborator of spec §4.12.
type Transport interface {
	// Scan enumerates slaves present on the bus.
	Scan() (slaveCount int, err error)
	// ConfigurePDO maps the cyclic process-data layout for every slave.
	ConfigurePDO() error
	// SetNetworkState commands a whole-network state transition.
	SetNetworkState(NetworkState) error
	// ExchangePDO performs one transactional output-then-input cycle,
	// writing out and returning the corresponding input frames.
	ExchangePDO(out [][6]byte) (in [][6]byte, err error)
	// Close releases transport resources.
	Close() error
}

// Master coordinates field-bus lifecycle and cyclic exchange.
type Master struct {
	transport Transport
	logger    logging.Logger

	state      NetworkState
	slaveCount int

	samples []time.Duration
	head    int
	full    bool

	lastCycleErr atomic.Bool
}

// NewMaster returns a Master in Init state over the given transport.
func NewMaster(transport Transport, logger logging.Logger) *Master {
	return &Master{
		transport: transport,
		logger:    logger,
		state:     Init,
		samples:   make([]time.Duration, statsWindow),
	}
}

// State returns the master's current network state.
func (m *Master) State() NetworkState { return m.state }

// SlaveCount returns the number of slaves discovered by the last Scan.
func (m *Master) SlaveCount() int { return m.slaveCount }

// Bringup drives the full lifecycle of spec §4.12:
// Init -> scan -> configure_pdo -> PreOp -> SafeOp -> Op -> start_cyclic.
// It returns once the network is in Op and ready for cyclic exchange.
func (m *Master) Bringup() error {
	count, err := m.transport.Scan()
	if err != nil {
		return ctlerr.Wrap(ctlerr.BusProtocol, err, "field-bus scan failed")
	}
	m.slaveCount = count

	if err := m.transport.ConfigurePDO(); err != nil {
		return ctlerr.Wrap(ctlerr.BusProtocol, err, "PDO configuration failed")
	}

	for _, target := range []NetworkState{PreOp, SafeOp, Op} {
		if err := m.transport.SetNetworkState(target); err != nil {
			return ctlerr.Wrap(ctlerr.BusProtocol, err, "state transition to "+target.String()+" failed")
		}
		m.state = target
	}
	return nil
}

// ExchangePDO performs one cyclic output-then-input exchange, recording its
// wall-clock duration into the rolling cycle-time window. A bus error is
// classified as BusTimeout, surfaced to the executor for emergency-stop
// promotion per spec §7.
func (m *Master) ExchangePDO(out [][6]byte) ([][6]byte, error) {
	start := time.Now()
	in, err := m.transport.ExchangePDO(out)
	m.recordCycle(time.Since(start))
	m.lastCycleErr.Store(err != nil)
	if err != nil {
		return nil, ctlerr.Wrap(ctlerr.BusTimeout, err, "PDO exchange failed")
	}
	return in, nil
}

// LastCycleErrored reports whether the most recent ExchangePDO call
// failed, a lock-free flag callers can poll without racing the executor's
// exclusive ownership of bus I/O (spec §5).
func (m *Master) LastCycleErrored() bool { return m.lastCycleErr.Load() }

func (m *Master) recordCycle(d time.Duration) {
	m.samples[m.head] = d
	m.head++
	if m.head >= len(m.samples) {
		m.head = 0
		m.full = true
	}
}

// CycleStats computes mean/max/min/stddev over the rolling window via
// montanaflynn/stats.
func (m *Master) CycleStats() Stats {
	n := m.head
	if m.full {
		n = len(m.samples)
	}
	if n == 0 {
		return Stats{}
	}

	data := make(stats.Float64Data, n)
	for i := 0; i < n; i++ {
		data[i] = float64(m.samples[i])
	}

	mean, _ := stats.Mean(data)
	max, _ := stats.Max(data)
	min, _ := stats.Min(data)
	stddev, _ := stats.StandardDeviation(data)

	return Stats{
		Mean:   time.Duration(mean),
		Max:    time.Duration(max),
		Min:    time.Duration(min),
		StdDev: time.Duration(stddev),
		Count:  n,
	}
}

// Degraded reports whether cycle-time health has fallen outside the
// per-cycle timing budget of spec §5 (bus exchange <= 400us of the 1ms
// cycle), used by diagnostics to flag a bus that is eating into the
// executor's slack without yet missing the watchdog deadline outright.
func (m *Master) Degraded(budget time.Duration) bool {
	s := m.CycleStats()
	if s.Count == 0 {
		return false
	}
	return s.Max > budget
}

// Close tears down the transport.
func (m *Master) Close() error {
	return m.transport.Close()
}
