package control

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestComputeDtZeroIsFinite(t *testing.T) {
	p := NewPID(Gains{Kp: 1, Ki: 1, Kd: 1, OutputLimit: 100, IntegralLimit: 10}, nil)
	s := &State{}
	u := p.Compute(s, 0, 1.0, 0.0, 0, 0, 0, false)
	test.That(t, math.IsNaN(u), test.ShouldBeFalse)
	test.That(t, math.IsInf(u, 0), test.ShouldBeFalse)
}

func TestOutputSaturation(t *testing.T) {
	p := NewPID(Gains{Kp: 1000, OutputLimit: 5}, nil)
	s := &State{}
	u := p.Compute(s, 0, 100, 0, 0, 0, 1.0, false)
	test.That(t, math.Abs(u) <= 5.0001, test.ShouldBeTrue)
}

func TestIntegratorAntiWindup(t *testing.T) {
	p := NewPID(Gains{Ki: 1, IntegralLimit: 2, OutputLimit: 1000}, nil)
	s := &State{}
	now := 0.0
	for i := 0; i < 100; i++ {
		now += 0.001
		p.Compute(s, 0, 10, 0, 0, 0, now, false)
	}
	test.That(t, math.Abs(s.Integrator) <= 2.0001, test.ShouldBeTrue)
}

func TestResetZeroesState(t *testing.T) {
	s := &State{Integrator: 5, PrevError: 1, PrevTime: 2}
	s.Reset()
	test.That(t, s.Integrator, test.ShouldEqual, 0.0)
	test.That(t, s.PrevError, test.ShouldEqual, 0.0)
	test.That(t, s.PrevTime, test.ShouldEqual, 0.0)
}

func TestFeedforwardAddsInertiaAndFriction(t *testing.T) {
	p := NewPID(Gains{Inertia: 2, CoulombFric: 1, ViscousFric: 0.5, OutputLimit: 1000}, nil)
	s := &State{}
	// target == actual so the error terms are zero; only feedforward acts.
	u := p.Compute(s, 0, 0, 0, 1.0, 3.0, 0.001, true)
	// tau_ff = J*a + f_c*sign(v) + f_v*v = 2*3 + 1*1 + 0.5*1 = 7.5
	test.That(t, u, test.ShouldAlmostEqual, 7.5, 1e-9)
}

func TestMultiJointAdvancesAllJointsPerCall(t *testing.T) {
	mj := NewMultiJoint([]Gains{{Kp: 1, OutputLimit: 100}, {Kp: 2, OutputLimit: 100}}, nil)
	out := mj.Compute([]float64{1, 1}, []float64{0, 0}, nil, nil, 0.001, false)
	test.That(t, len(out), test.ShouldEqual, 2)
	test.That(t, out[0], test.ShouldAlmostEqual, 1.0)
	test.That(t, out[1], test.ShouldAlmostEqual, 2.0)
}
