package safety

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/Benergy80/Kuka-Jetson-Conversion/collision"
	"github.com/Benergy80/Kuka-Jetson-Conversion/config"
	"github.com/Benergy80/Kuka-Jetson-Conversion/estop"
	"github.com/Benergy80/Kuka-Jetson-Conversion/gpio"
	"github.com/Benergy80/Kuka-Jetson-Conversion/limits"
	"github.com/Benergy80/Kuka-Jetson-Conversion/logging"
	"github.com/Benergy80/Kuka-Jetson-Conversion/watchdog"
)

func sixJointMonitor(t *testing.T) *Monitor {
	ls := make([]limits.Limits, 6)
	for i := range ls {
		ls[i] = limits.Limits{PosMin: -3.14159, PosMax: 3.14159, VelMax: 2, AccMax: 10, TorqueMax: 100}
	}
	env := limits.NewEnvelope(ls)
	col := collision.NewEnvelope(config.AABB{Min: [3]float64{-1000, -1000, 0}, Max: [3]float64{1000, 1000, 2000}})
	chip, err := gpio.New(gpio.PinMap{gpio.EstopInput: 1, gpio.EstopOutput: 2}, true)
	test.That(t, err, test.ShouldBeNil)
	es := estop.New(chip, logging.NewTestLogger(t))
	return NewMonitor(env, col, 10, nil, es, logging.NewTestLogger(t))
}

func TestNominalStepStaysSafe(t *testing.T) {
	m := sixJointMonitor(t)
	pos := make([]float64, 6)
	vel := make([]float64, 6)
	torque := make([]float64, 6)
	pos[0] = 0.1
	state := m.CheckRuntime(pos, vel, torque)
	test.That(t, state, test.ShouldEqual, Safe)
}

func TestPositionViolationRejectsCommand(t *testing.T) {
	m := sixJointMonitor(t)
	target := make([]float64, 6)
	target[0] = 4.0
	ok, violations := m.ValidateCommand(target, nil, nil)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, len(violations) > 0, test.ShouldBeTrue)
	test.That(t, m.State(), test.ShouldEqual, Fault)
	test.That(t, violations[0].Kind, test.ShouldEqual, KindPositionMax)
	test.That(t, violations[0].Joint, test.ShouldEqual, 0)
}

func TestPositionMinViolationTaggedDistinctlyFromMax(t *testing.T) {
	m := sixJointMonitor(t)
	target := make([]float64, 6)
	target[0] = -4.0
	ok, violations := m.ValidateCommand(target, nil, nil)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, len(violations) > 0, test.ShouldBeTrue)
	test.That(t, violations[0].Kind, test.ShouldEqual, KindPositionMin)
	test.That(t, violations[0].Joint, test.ShouldEqual, 0)
}

func TestCheckRuntimeDistinguishesMinFromMaxBreach(t *testing.T) {
	m := sixJointMonitor(t)
	pos := make([]float64, 6)
	pos[1] = -4.0
	m.CheckRuntime(pos, make([]float64, 6), make([]float64, 6))

	var found Violation
	m.OnViolation(func(v Violation) {
		if v.Kind == KindPositionMin && v.Joint == 1 {
			found = v
		}
	})
	pos2 := make([]float64, 6)
	pos2[1] = -4.0
	m.CheckRuntime(pos2, make([]float64, 6), make([]float64, 6))
	test.That(t, found.Kind, test.ShouldEqual, KindPositionMin)
	test.That(t, found.Joint, test.ShouldEqual, 1)
}

func TestEStopPropagatesIntoMonitorState(t *testing.T) {
	m := sixJointMonitor(t)
	m.EStop.Trigger(estop.OperatorCommand, "manual stop")
	state := m.CheckRuntime(make([]float64, 6), make([]float64, 6), make([]float64, 6))
	test.That(t, state, test.ShouldEqual, EStop)
}

func TestWatchdogFireSurfacesEStopAndWatchdogViolation(t *testing.T) {
	ls := make([]limits.Limits, 6)
	for i := range ls {
		ls[i] = limits.Limits{PosMin: -3.14159, PosMax: 3.14159, VelMax: 2, AccMax: 10, TorqueMax: 100}
	}
	env := limits.NewEnvelope(ls)
	col := collision.NewEnvelope(config.AABB{Min: [3]float64{-1000, -1000, 0}, Max: [3]float64{1000, 1000, 2000}})

	mock := clock.NewMock()
	fired := make(chan struct{})
	wd := watchdog.New(50*time.Millisecond, func() { close(fired) }, logging.NewTestLogger(t), watchdog.WithClock(mock))
	wd.Start()
	defer wd.Stop()

	m := NewMonitor(env, col, 10, wd, nil, logging.NewTestLogger(t))

	var got Violation
	m.OnViolation(func(v Violation) { got = v })

	mock.Add(75 * time.Millisecond)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire in time")
	}
	test.That(t, wd.Fired(), test.ShouldBeTrue)

	state := m.CheckRuntime(make([]float64, 6), make([]float64, 6), make([]float64, 6))
	test.That(t, state, test.ShouldEqual, EStop)
	test.That(t, got.Kind, test.ShouldEqual, KindWatchdog)
}

func TestMisbehavingCallbackDoesNotCorruptMonitor(t *testing.T) {
	m := sixJointMonitor(t)
	m.OnViolation(func(Violation) { panic("boom") })
	target := make([]float64, 6)
	target[0] = 4.0
	ok, _ := m.ValidateCommand(target, nil, nil)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, m.State(), test.ShouldEqual, Fault)
}
