package trajectory

import (
	"math"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestPointToPointEndpoints(t *testing.T) {
	start := []float64{0}
	end := []float64{1}
	points, err := PointToPoint(start, end, time.Second, nil, nil)
	test.That(t, err, test.ShouldBeNil)

	first := points[0]
	last := points[len(points)-1]

	test.That(t, first.Position[0], test.ShouldAlmostEqual, 0.0, 0.01)
	test.That(t, first.Velocity[0], test.ShouldAlmostEqual, 0.0, 0.01)
	test.That(t, last.Position[0], test.ShouldAlmostEqual, 1.0, 0.01)
	test.That(t, last.Velocity[0], test.ShouldAlmostEqual, 0.0, 0.01)
}

func TestNominalStepWithinExpectedTime(t *testing.T) {
	start := []float64{0, 0, 0, 0, 0, 0}
	end := []float64{0.1, 0, 0, 0, 0, 0}
	points, err := PointToPoint(start, end, time.Second, nil, nil)
	test.That(t, err, test.ShouldBeNil)

	last := points[len(points)-1]
	test.That(t, math.Abs(last.Position[0]-0.1) < 0.01, test.ShouldBeTrue)
}

func TestEstimateDurationWhenOmitted(t *testing.T) {
	start := []float64{0}
	end := []float64{10}
	vMax := []float64{2}
	aMax := []float64{1}
	points, err := PointToPoint(start, end, 0, vMax, aMax)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(points) > 1, test.ShouldBeTrue)
}

func TestWaypointsRequiresAtLeastTwo(t *testing.T) {
	_, err := Waypoints([][]float64{{0, 0}}, nil, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWaypointsConcatenatesSegments(t *testing.T) {
	wps := [][]float64{{0}, {1}, {2}}
	durs := []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}
	points, err := Waypoints(wps, durs, nil, nil)
	test.That(t, err, test.ShouldBeNil)

	last := points[len(points)-1]
	test.That(t, last.Position[0], test.ShouldAlmostEqual, 2.0, 0.01)
}
