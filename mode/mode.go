// Package mode implements the set-point source arbitrator of spec §4.10:
// a fixed transition graph between Idle/GCode/MlAutonomous/Manual/EStop,
// with EStop reachable from every state and only leavable via an
// acknowledged reset. The graph is declared with github.com/soypat/go-maquina,
// whose Permit/AlwaysPermit model is exactly the "tagged enum with explicit
// transition table" shape spec §9's design notes call for.
package mode

import (
	"io"
	"sync"
	"time"

	"github.com/soypat/go-maquina"

	"github.com/Benergy80/Kuka-Jetson-Conversion/logging"
)

// Mode is one member of the closed ControlMode set (spec §3).
type Mode string

// The closed set of control modes.
const (
	Idle         Mode = "Idle"
	GCode        Mode = "GCode"
	MlAutonomous Mode = "MlAutonomous"
	Manual       Mode = "Manual"
	EStop        Mode = "EStop"
)

// Transition is the record delivered to subscribers on every mode change
// (spec §4.10).
type Transition struct {
	From      Mode
	To        Mode
	Timestamp time.Time
	Reason    string
}

// Subscriber receives transition records synchronously; errors are logged
// but do not abort the transition.
type Subscriber func(Transition) error

// triggerTo returns the dedicated trigger for transitioning into mode.
// A distinct trigger per destination (rather than one shared "request"
// trigger) keeps maquina's Permit resolution unambiguous when a state
// such as Idle fans out to more than one legal destination.
func triggerTo(m Mode) maquina.Trigger {
	return maquina.Trigger("to:" + string(m))
}

const estopTrigger maquina.Trigger = "estop"

// shared is the singleton data threaded through every maquina.State so
// guards and the manager can read/write the "current mode" without a
// second source of truth.
type shared struct {
	mode Mode
}

// Manager arbitrates the legal mode graph.
type Manager struct {
	mu     sync.Mutex
	sm     *maquina.StateMachine[*shared]
	states map[Mode]*maquina.State[*shared]
	data   *shared
	logger logging.Logger

	subsMu sync.Mutex
	subs   []Subscriber
}

// NewManager builds a Manager starting in Idle, wired with the fixed
// transition graph of spec §4.10.
func NewManager(logger logging.Logger) *Manager {
	data := &shared{mode: Idle}

	states := map[Mode]*maquina.State[*shared]{
		Idle:         maquina.NewState("Idle", data),
		GCode:        maquina.NewState("GCode", data),
		MlAutonomous: maquina.NewState("MlAutonomous", data),
		Manual:       maquina.NewState("Manual", data),
		EStop:        maquina.NewState("EStop", data),
	}

	states[Idle].Permit(triggerTo(GCode), states[GCode])
	states[Idle].Permit(triggerTo(MlAutonomous), states[MlAutonomous])
	states[Idle].Permit(triggerTo(Manual), states[Manual])
	states[GCode].Permit(triggerTo(Idle), states[Idle])
	states[MlAutonomous].Permit(triggerTo(Idle), states[Idle])
	states[MlAutonomous].Permit(triggerTo(GCode), states[GCode])
	states[Manual].Permit(triggerTo(Idle), states[Idle])
	// EStop -> Idle is only legal after acknowledge; gated in
	// RequestModeChange rather than as a maquina guard, since
	// acknowledgement lives in the estop package, not in mode state.
	states[EStop].Permit(triggerTo(Idle), states[Idle])

	sm := maquina.NewStateMachine(states[Idle])
	// EStop is reachable from every state (spec §4.10): AlwaysPermit
	// bypasses the per-state transition table entirely.
	sm.AlwaysPermit(estopTrigger, states[EStop])

	return &Manager{sm: sm, states: states, data: data, logger: logger}
}

// Current returns the current mode.
func (m *Manager) Current() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.mode
}

// Subscribe registers a subscriber notified synchronously on every
// transition.
func (m *Manager) Subscribe(s Subscriber) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.subs = append(m.subs, s)
}

// RequestModeChange attempts a transition to newMode. A request for EStop
// is accepted from every other mode and goes through TriggerEStop. Any
// other request is rejected (returns false) if the edge is missing from the
// fixed graph, or if it targets Idle from EStop without estopAcked being
// true (the caller passes the estop coordinator's acknowledged state).
func (m *Manager) RequestModeChange(newMode Mode, reason string, estopAcked bool) bool {
	if newMode == EStop {
		if m.Current() == EStop {
			return false
		}
		m.TriggerEStop(reason)
		return true
	}
	m.mu.Lock()
	from := m.data.mode
	if from == EStop && newMode == Idle && !estopAcked {
		m.mu.Unlock()
		return false
	}
	if _, ok := m.states[newMode]; !ok {
		m.mu.Unlock()
		return false
	}
	if err := m.sm.FireBg(triggerTo(newMode), m.data); err != nil {
		m.mu.Unlock()
		return false
	}
	m.data.mode = newMode
	m.mu.Unlock()

	m.notify(Transition{From: from, To: newMode, Timestamp: time.Now(), Reason: reason})
	return true
}

// TriggerEStop bypasses the transition table entirely, per spec §4.10.
func (m *Manager) TriggerEStop(reason string) {
	m.mu.Lock()
	from := m.data.mode
	if from == EStop {
		m.mu.Unlock()
		return
	}
	if err := m.sm.FireBg(estopTrigger, m.data); err != nil && m.logger != nil {
		m.logger.Warnw("mode: estop trigger rejected by state machine", "error", err)
	}
	m.data.mode = EStop
	m.mu.Unlock()

	m.notify(Transition{From: from, To: EStop, Timestamp: time.Now(), Reason: reason})
}

func (m *Manager) notify(t Transition) {
	m.subsMu.Lock()
	subs := make([]Subscriber, len(m.subs))
	copy(subs, m.subs)
	m.subsMu.Unlock()

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil && m.logger != nil {
					m.logger.Errorw("mode: subscriber panicked", "panic", r)
				}
			}()
			if err := s(t); err != nil && m.logger != nil {
				m.logger.Warnw("mode: subscriber returned error", "error", err)
			}
		}()
	}
}

// WriteDOT exports the legal mode graph as a DOT graph via
// maquina.WriteDOT, for operator documentation of the state machine.
func (m *Manager) WriteDOT(w io.Writer) error {
	return maquina.WriteDOT(w, m.sm)
}
