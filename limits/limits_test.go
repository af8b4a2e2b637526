package limits

import (
	"testing"

	"go.viam.com/test"
)

func twoJointEnvelope() *Envelope {
	return NewEnvelope([]Limits{
		{PosMin: -3.14, PosMax: 3.14, VelMax: 2, AccMax: 10, TorqueMax: 100, JerkMax: 1000},
		{PosMin: -1.0, PosMax: 1.0, VelMax: 1, AccMax: 5, TorqueMax: 50, JerkMax: 500},
	})
}

func TestCheckPositionAtBoundIsOK(t *testing.T) {
	e := twoJointEnvelope()
	ok, msg := e.CheckPosition([]float64{3.14, 1.0})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, msg, test.ShouldEqual, "")
}

func TestCheckPositionBeyondBoundFails(t *testing.T) {
	e := twoJointEnvelope()
	ok, msg := e.CheckPosition([]float64{3.15, 0})
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, msg, test.ShouldNotEqual, "")
}

func TestClampPosition(t *testing.T) {
	e := twoJointEnvelope()
	clamped := e.ClampPosition([]float64{10, -10})
	test.That(t, clamped[0], test.ShouldEqual, 3.14)
	test.That(t, clamped[1], test.ShouldEqual, -1.0)
}

func TestScaleVelocityPreservesDirectionAndBounds(t *testing.T) {
	e := twoJointEnvelope()
	scaled := e.ScaleVelocity([]float64{4, 1.5})
	// joint0 ratio = 4/2 = 2, joint1 ratio = 1.5/1 = 1.5 -> alpha = 1/2
	for i, v := range scaled {
		lim := e.Limits[i].VelMax
		test.That(t, v/lim <= 1.0001, test.ShouldBeTrue)
	}
	// direction preserved (same sign as input, both positive here)
	test.That(t, scaled[0] > 0, test.ShouldBeTrue)
	test.That(t, scaled[1] > 0, test.ShouldBeTrue)
}

func TestCheckPositionBreachesDistinguishesMinFromMax(t *testing.T) {
	e := twoJointEnvelope()
	breaches := e.CheckPositionBreaches([]float64{4.0, -1.5})
	test.That(t, len(breaches), test.ShouldEqual, 2)

	test.That(t, breaches[0].Joint, test.ShouldEqual, 0)
	test.That(t, breaches[0].Min, test.ShouldBeFalse)
	test.That(t, breaches[0].Limit, test.ShouldEqual, 3.14)

	test.That(t, breaches[1].Joint, test.ShouldEqual, 1)
	test.That(t, breaches[1].Min, test.ShouldBeTrue)
	test.That(t, breaches[1].Limit, test.ShouldEqual, -1.0)
}

func TestCheckPositionBreachesEmptyWithinBounds(t *testing.T) {
	e := twoJointEnvelope()
	breaches := e.CheckPositionBreaches([]float64{0, 0})
	test.That(t, len(breaches), test.ShouldEqual, 0)
}

func TestMargin(t *testing.T) {
	e := twoJointEnvelope()
	m := e.Margin([]float64{0, 0.5})
	test.That(t, m[0], test.ShouldAlmostEqual, 3.14)
	test.That(t, m[1], test.ShouldAlmostEqual, 0.5)
}
