// Package safety composes the limit envelope, collision envelope,
// watchdog, and E-stop coordinator into the single SAFE/WARNING/FAULT/ESTOP
// verdict of spec §4.6.
package safety

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/Benergy80/Kuka-Jetson-Conversion/collision"
	"github.com/Benergy80/Kuka-Jetson-Conversion/estop"
	"github.com/Benergy80/Kuka-Jetson-Conversion/limits"
	"github.com/Benergy80/Kuka-Jetson-Conversion/logging"
	"github.com/Benergy80/Kuka-Jetson-Conversion/watchdog"
)

// State is the composed safety verdict.
type State int

// The closed set of safety states (spec §3).
const (
	Safe State = iota
	Warning
	Fault
	EStop
)

func (s State) String() string {
	switch s {
	case Safe:
		return "Safe"
	case Warning:
		return "Warning"
	case Fault:
		return "Fault"
	case EStop:
		return "EStop"
	default:
		return "Unknown"
	}
}

// ViolationKind is one member of the closed SafetyViolation kind set.
type ViolationKind string

// The closed set of violation kinds (spec §3).
const (
	KindPositionMin ViolationKind = "PositionMin"
	KindPositionMax ViolationKind = "PositionMax"
	KindVelocity    ViolationKind = "Velocity"
	KindTorque      ViolationKind = "Torque"
	KindWorkspace   ViolationKind = "Workspace"
	KindCollision   ViolationKind = "Collision"
	KindWatchdog    ViolationKind = "Watchdog"
	KindEStop       ViolationKind = "EStop"
)

// Violation is one detected SafetyViolation (spec §3).
type Violation struct {
	ID        string
	Kind      ViolationKind
	Joint     int // NoJoint (-1) when not joint-specific
	Measured  float64
	Limit     float64
	Timestamp time.Time
	Message   string
}

// NoJoint indicates a violation not tied to one joint.
const NoJoint = -1

// ViolationCallback is fanned out synchronously for every new violation. A
// misbehaving callback may not corrupt monitor state or raise to its
// caller (spec §4.6).
type ViolationCallback func(Violation)

// softMarginFraction is the 5% soft-margin fraction used by check_runtime.
const softMarginFraction = 0.05

// positionalMarginRad is the ~3 degree positional soft margin (spec §4.6).
const positionalMarginRad = 3.0 * 3.14159265358979323846 / 180.0

// Monitor composes C2-C5 into one verdict.
type Monitor struct {
	Limits     *limits.Envelope
	Collision  *collision.Envelope
	ToolRadius float64
	Watchdog   *watchdog.Watchdog
	EStop      *estop.Coordinator

	logger logging.Logger

	mu               sync.Mutex
	state            State
	watchdogReported bool

	callbacksMu sync.Mutex
	callbacks   []ViolationCallback
}

// NewMonitor builds a Monitor composing the limit envelope (C2), collision
// envelope (C3), watchdog (C4), and E-stop coordinator (C5), per spec §2's
// C2,C3,C4,C5 -> C6 dependency graph. wd may be nil if the caller runs
// without a watchdog (e.g. a dry-run or unit test).
func NewMonitor(l *limits.Envelope, c *collision.Envelope, toolRadius float64, wd *watchdog.Watchdog, es *estop.Coordinator, logger logging.Logger) *Monitor {
	m := &Monitor{Limits: l, Collision: c, ToolRadius: toolRadius, Watchdog: wd, EStop: es, logger: logger, state: Safe}
	if es != nil {
		es.OnEvent(func(estop.Event) {
			m.mu.Lock()
			m.state = EStop
			m.mu.Unlock()
		})
	}
	return m
}

// OnViolation registers a callback invoked synchronously for every
// violation raised by ValidateCommand or CheckRuntime.
func (m *Monitor) OnViolation(cb ViolationCallback) {
	m.callbacksMu.Lock()
	defer m.callbacksMu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

func (m *Monitor) fanOut(violations []Violation) {
	m.callbacksMu.Lock()
	cbs := make([]ViolationCallback, len(m.callbacks))
	copy(cbs, m.callbacks)
	m.callbacksMu.Unlock()

	for _, v := range violations {
		for _, cb := range cbs {
			func() {
				defer func() { recover() }()
				cb(v)
			}()
		}
	}
}

// State returns the current composed safety state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// ValidateCommand is used before a command is dispatched: it accumulates
// every C2 violation of target_pos (and, if given, target_vel/target_torque)
// into a vector; a non-empty vector marks the monitor Fault and returns
// (invalid, violations).
func (m *Monitor) ValidateCommand(targetPos []float64, targetVel, targetTorque []float64) (valid bool, violations []Violation) {
	var merr error
	now := time.Now()

	for _, b := range m.Limits.CheckPositionBreaches(targetPos) {
		kind := KindPositionMax
		boundWord := "above max"
		if b.Min {
			kind = KindPositionMin
			boundWord = "below min"
		}
		msg := fmt.Sprintf("joint %d: position %.6f %s %.6f", b.Joint, b.Measured, boundWord, b.Limit)
		v := Violation{ID: uuid.NewString(), Kind: kind, Joint: b.Joint, Measured: b.Measured, Limit: b.Limit, Timestamp: now, Message: msg}
		violations = append(violations, v)
		merr = multierr.Append(merr, errors.New(msg))
	}
	if targetVel != nil {
		if ok, msg := m.Limits.CheckVelocity(targetVel); !ok {
			v := Violation{ID: uuid.NewString(), Kind: KindVelocity, Joint: NoJoint, Timestamp: now, Message: msg}
			violations = append(violations, v)
			merr = multierr.Append(merr, errors.New(msg))
		}
	}
	if targetTorque != nil {
		if ok, msg := m.Limits.CheckTorque(targetTorque); !ok {
			v := Violation{ID: uuid.NewString(), Kind: KindTorque, Joint: NoJoint, Timestamp: now, Message: msg}
			violations = append(violations, v)
			merr = multierr.Append(merr, errors.New(msg))
		}
	}

	if len(violations) > 0 {
		m.setState(Fault)
		m.fanOut(violations)
		if m.logger != nil {
			m.logger.Errorw("validate_command rejected", "error", merr)
		}
		return false, violations
	}
	return true, nil
}

// CheckRuntime is called every cycle with the current joint state. A soft
// margin (5% of each limit, plus ~3deg positional margin) raises Warning;
// a hard breach raises Fault. This is a pure verdict: it does not itself
// stop the drives.
func (m *Monitor) CheckRuntime(pos, vel, torque []float64) State {
	if m.EStop != nil && m.EStop.IsTriggered() {
		m.setState(EStop)
		return EStop
	}

	if m.Watchdog != nil && m.Watchdog.Fired() {
		m.mu.Lock()
		firstReport := !m.watchdogReported
		m.watchdogReported = true
		m.state = EStop
		m.mu.Unlock()
		if firstReport {
			m.fanOut([]Violation{{ID: uuid.NewString(), Kind: KindWatchdog, Joint: NoJoint, Timestamp: time.Now(), Message: "watchdog timeout"}})
		}
		return EStop
	}

	var violations []Violation
	now := time.Now()
	worst := Safe

	for i := range pos {
		if i >= len(m.Limits.Limits) {
			break
		}
		l := m.Limits.Limits[i]
		if pos[i] < l.PosMin {
			violations = append(violations, Violation{ID: uuid.NewString(), Kind: KindPositionMin, Joint: i, Measured: pos[i], Limit: l.PosMin, Timestamp: now, Message: "hard position breach"})
			worst = Fault
			continue
		}
		if pos[i] > l.PosMax {
			violations = append(violations, Violation{ID: uuid.NewString(), Kind: KindPositionMax, Joint: i, Measured: pos[i], Limit: l.PosMax, Timestamp: now, Message: "hard position breach"})
			worst = Fault
			continue
		}
		margin := positionalMarginRad
		if pos[i] < l.PosMin+margin {
			violations = append(violations, Violation{ID: uuid.NewString(), Kind: KindPositionMin, Joint: i, Measured: pos[i], Limit: l.PosMin, Timestamp: now, Message: "soft position margin"})
			if worst < Warning {
				worst = Warning
			}
		} else if pos[i] > l.PosMax-margin {
			violations = append(violations, Violation{ID: uuid.NewString(), Kind: KindPositionMax, Joint: i, Measured: pos[i], Limit: l.PosMax, Timestamp: now, Message: "soft position margin"})
			if worst < Warning {
				worst = Warning
			}
		}
	}

	for i := range vel {
		if i >= len(m.Limits.Limits) {
			break
		}
		l := m.Limits.Limits[i]
		av := absf(vel[i])
		if av > l.VelMax {
			violations = append(violations, Violation{ID: uuid.NewString(), Kind: KindVelocity, Joint: i, Measured: vel[i], Limit: l.VelMax, Timestamp: now, Message: "hard velocity breach"})
			worst = Fault
		} else if av > l.VelMax*(1-softMarginFraction) {
			violations = append(violations, Violation{ID: uuid.NewString(), Kind: KindVelocity, Joint: i, Measured: vel[i], Limit: l.VelMax, Timestamp: now, Message: "soft velocity margin"})
			if worst < Warning {
				worst = Warning
			}
		}
	}

	for i := range torque {
		if i >= len(m.Limits.Limits) {
			break
		}
		l := m.Limits.Limits[i]
		at := absf(torque[i])
		if at > l.TorqueMax {
			violations = append(violations, Violation{ID: uuid.NewString(), Kind: KindTorque, Joint: i, Measured: torque[i], Limit: l.TorqueMax, Timestamp: now, Message: "hard torque breach"})
			worst = Fault
		} else if at > l.TorqueMax*(1-softMarginFraction) {
			violations = append(violations, Violation{ID: uuid.NewString(), Kind: KindTorque, Joint: i, Measured: torque[i], Limit: l.TorqueMax, Timestamp: now, Message: "soft torque margin"})
			if worst < Warning {
				worst = Warning
			}
		}
	}

	if m.Collision != nil && len(pos) >= 3 {
		p := collision.Point{pos[0], pos[1], pos[2]}
		if ok, msg := m.Collision.CheckPosition(p, m.ToolRadius); !ok {
			violations = append(violations, Violation{ID: uuid.NewString(), Kind: KindWorkspace, Joint: NoJoint, Timestamp: now, Message: msg})
			worst = Fault
		}
	}

	if len(violations) > 0 {
		m.fanOut(violations)
	}
	// Warnings auto-clear: only persist Fault/EStop across cycles, never
	// latch Warning once the cause leaves the soft margin.
	m.mu.Lock()
	if m.state == Fault && worst < Fault {
		worst = Fault
	}
	m.state = worst
	m.mu.Unlock()
	return worst
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
