// Package control implements the per-joint PID + feedforward control law of
// spec §4.7: u = kp*e + ki*Integral(e) + kd*edot + kff_v*vref + kff_a*aref +
// tau_ff, with anti-windup and output saturation.
package control

// Gains is one joint's PID + feedforward tuning.
type Gains struct {
	Kp, Ki, Kd     float64
	KffV, KffA     float64
	IntegralLimit  float64
	OutputLimit    float64
	Inertia        float64 // J, for feedforward tau_ff
	CoulombFric    float64 // f_c
	ViscousFric    float64 // f_v
}

// GravityModel computes a position-dependent gravity compensation torque.
// The contract is only that it is deterministic and a function of position
// (spec §4.7, §9). No link-mass model is built in: the default,
// ZeroGravity, contributes no torque.
type GravityModel func(jointIndex int, position float64) float64

// ZeroGravity is the no-op gravity model used when none is configured.
func ZeroGravity(int, float64) float64 { return 0 }

// State is one joint's PID controller state (spec §3 PidState).
type State struct {
	Integrator float64
	PrevError  float64
	PrevTime   float64 // seconds, monotonic
	hasPrev    bool
}

// Reset zeroes the integrator and previous error, per spec §4.7.
func (s *State) Reset() {
	s.Integrator = 0
	s.PrevError = 0
	s.PrevTime = 0
	s.hasPrev = false
}

// PID is a single-joint PID + feedforward controller.
type PID struct {
	Gains   Gains
	Gravity GravityModel
}

// NewPID builds a PID controller with the given gains and gravity model; a
// nil gravity model defaults to ZeroGravity.
func NewPID(g Gains, gravity GravityModel) *PID {
	if gravity == nil {
		gravity = ZeroGravity
	}
	return &PID{Gains: g, Gravity: gravity}
}

// Compute advances the controller by one step and returns the saturated
// control output. If dt <= 0 the derivative term is zero (no NaN), per
// spec §4.7. refVel/refAcc are the feedforward references; either may be
// zero when feedforward is disabled for this call.
func (p *PID) Compute(s *State, jointIndex int, target, actual, refVel, refAcc, now float64, feedforwardEnabled bool) float64 {
	e := target - actual

	var dt float64
	if s.hasPrev {
		dt = now - s.PrevTime
	}

	var edot float64
	if dt > 0 {
		edot = (e - s.PrevError) / dt
	}

	// Anti-windup: integrate then clamp (simple rectangle integration is
	// sufficient at a fixed 1ms cycle).
	if dt > 0 {
		s.Integrator += e * dt
	}
	g := p.Gains
	if g.IntegralLimit > 0 {
		s.Integrator = clamp(s.Integrator, -g.IntegralLimit, g.IntegralLimit)
	}

	u := g.Kp*e + g.Ki*s.Integrator + g.Kd*edot

	if feedforwardEnabled {
		u += g.KffV*refVel + g.KffA*refAcc
		u += p.feedforwardTorque(jointIndex, actual, refVel, refAcc)
	}

	if g.OutputLimit > 0 {
		u = clamp(u, -g.OutputLimit, g.OutputLimit)
	}

	s.PrevError = e
	s.PrevTime = now
	s.hasPrev = true

	return u
}

// feedforwardTorque adds inertia (J*alpha), Coulomb friction (f_c*sign(v)),
// viscous friction (f_v*v), and a position-dependent gravity term.
func (p *PID) feedforwardTorque(jointIndex int, position, vel, acc float64) float64 {
	g := p.Gains
	tau := g.Inertia * acc
	if vel != 0 {
		tau += g.CoulombFric * sign(vel)
	}
	tau += g.ViscousFric * vel
	tau += p.Gravity(jointIndex, position)
	return tau
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sign(v float64) float64 {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}

// MultiJoint holds one PID controller and state per joint; all joints
// advance one step per Compute() call.
type MultiJoint struct {
	Controllers []*PID
	States      []*State
}

// NewMultiJoint builds a MultiJoint wrapper, one controller per gain set.
func NewMultiJoint(gains []Gains, gravity GravityModel) *MultiJoint {
	mj := &MultiJoint{
		Controllers: make([]*PID, len(gains)),
		States:      make([]*State, len(gains)),
	}
	for i, g := range gains {
		mj.Controllers[i] = NewPID(g, gravity)
		mj.States[i] = &State{}
	}
	return mj
}

// Compute advances every joint controller one step and returns the
// per-joint control outputs.
func (mj *MultiJoint) Compute(target, actual, refVel, refAcc []float64, now float64, feedforwardEnabled bool) []float64 {
	out := make([]float64, len(mj.Controllers))
	for i, c := range mj.Controllers {
		var rv, ra float64
		if i < len(refVel) {
			rv = refVel[i]
		}
		if i < len(refAcc) {
			ra = refAcc[i]
		}
		out[i] = c.Compute(mj.States[i], i, target[i], actual[i], rv, ra, now, feedforwardEnabled)
	}
	return out
}

// Reset resets every joint's controller state.
func (mj *MultiJoint) Reset() {
	for _, s := range mj.States {
		s.Reset()
	}
}
