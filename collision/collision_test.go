package collision

import (
	"testing"

	"github.com/Benergy80/Kuka-Jetson-Conversion/config"
	"go.viam.com/test"
)

func workspaceEnvelope() *Envelope {
	return NewEnvelope(config.AABB{
		Min: [3]float64{-1000, -1000, 0},
		Max: [3]float64{1000, 1000, 2000},
	})
}

func TestWorkspaceBoundaryExactMarginIsOK(t *testing.T) {
	e := workspaceEnvelope()
	// workspace_min + tool_radius on the low X bound: -1000 + 50 = -950.
	ok, _ := e.CheckPosition(Point{-950, 0, 1000}, 50)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestWorkspaceOneUnitInsideMarginViolates(t *testing.T) {
	e := workspaceEnvelope()
	ok, _ := e.CheckPosition(Point{-951, 0, 1000}, 50)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestEndToEndWorkspaceScenario(t *testing.T) {
	e := workspaceEnvelope()

	ok, msg := e.CheckPosition(Point{950, 0, 1000}, 100)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, msg, test.ShouldNotEqual, "")

	ok, _ = e.CheckPosition(Point{950, 0, 1000}, 30)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestBoxObstacle(t *testing.T) {
	e := workspaceEnvelope()
	e.AddBox(AABB{Name: "fixture", Min: Point{0, 0, 0}, Max: Point{100, 100, 100}})

	ok, msg := e.CheckPosition(Point{105, 50, 50}, 10)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, msg, test.ShouldContainSubstring, "fixture")

	ok, _ = e.CheckPosition(Point{200, 50, 50}, 10)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestSphereObstacle(t *testing.T) {
	e := workspaceEnvelope()
	e.AddSphere(Sphere{Name: "operator", Center: Point{0, 0, 500}, Radius: 50})

	ok, msg := e.CheckPosition(Point{0, 0, 560}, 10)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, msg, test.ShouldContainSubstring, "operator")
}

func TestCheckTrajectoryReturnsFirstBadIndex(t *testing.T) {
	e := workspaceEnvelope()
	e.AddSphere(Sphere{Name: "operator", Center: Point{0, 0, 500}, Radius: 50})

	points := []Point{
		{0, 0, 100},
		{0, 0, 555}, // violates
		{0, 0, 1000},
	}
	ok, idx, _ := e.CheckTrajectory(points, 10)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, idx, test.ShouldEqual, 1)
}
