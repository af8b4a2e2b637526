package kinematics

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func planarChain() *Chain {
	// A simple 2-link planar chain in the XY plane, link lengths 1 and 0.5.
	return &Chain{Joints: []Joint{
		{A: 1.0, D: 0, Alpha: 0, ThetaOff: 0},
		{A: 0.5, D: 0, Alpha: 0, ThetaOff: 0},
	}}
}

func TestForwardKinematicsZero(t *testing.T) {
	c := planarChain()
	pose := c.FK([]float64{0, 0})
	pos := pose.Position()
	test.That(t, pos[0], test.ShouldAlmostEqual, 1.5)
	test.That(t, pos[1], test.ShouldAlmostEqual, 0.0)
}

func TestForwardKinematicsQuarterTurn(t *testing.T) {
	c := planarChain()
	pose := c.FK([]float64{math.Pi / 2, 0})
	pos := pose.Position()
	test.That(t, pos[0], test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, pos[1], test.ShouldAlmostEqual, 1.5, 1e-9)
}

func TestInverseKinematicsRoundTrip(t *testing.T) {
	c := planarChain()
	q := []float64{0.3, 0.5}
	target := c.FK(q).Position()

	got, ok := c.IK(target, q, DefaultIKParams())
	test.That(t, ok, test.ShouldBeTrue)

	gotPos := c.FK(got).Position()
	dist := math.Hypot(gotPos[0]-target[0], gotPos[1]-target[1])
	test.That(t, dist < 1e-4, test.ShouldBeTrue)
}

func TestInverseKinematicsDoesNotFailOnUnreachable(t *testing.T) {
	c := planarChain()
	// Target far outside reach (max reach is 1.5).
	_, ok := c.IK([3]float64{100, 100, 0}, []float64{0, 0}, DefaultIKParams())
	// Must report a flag, never panic or error.
	test.That(t, ok, test.ShouldBeFalse)
}
