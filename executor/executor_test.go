package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/Benergy80/Kuka-Jetson-Conversion/collision"
	"github.com/Benergy80/Kuka-Jetson-Conversion/config"
	"github.com/Benergy80/Kuka-Jetson-Conversion/control"
	"github.com/Benergy80/Kuka-Jetson-Conversion/drive"
	"github.com/Benergy80/Kuka-Jetson-Conversion/fieldbus"
	"github.com/Benergy80/Kuka-Jetson-Conversion/limits"
	"github.com/Benergy80/Kuka-Jetson-Conversion/logging"
	"github.com/Benergy80/Kuka-Jetson-Conversion/safety"
	"github.com/Benergy80/Kuka-Jetson-Conversion/watchdog"
)

// alwaysErrTransport fails every ExchangePDO call, simulating a persistent
// field-bus stall.
type alwaysErrTransport struct{ n int }

func (a *alwaysErrTransport) Scan() (int, error)                         { return a.n, nil }
func (a *alwaysErrTransport) ConfigurePDO() error                         { return nil }
func (a *alwaysErrTransport) SetNetworkState(fieldbus.NetworkState) error { return nil }
func (a *alwaysErrTransport) ExchangePDO(out [][6]byte) ([][6]byte, error) {
	return nil, errors.New("bus link down")
}
func (a *alwaysErrTransport) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		LoopFrequencyHz:    1000,
		WatchdogTimeoutMs:  50,
		EnableFeedforward:  false,
		SafetyCheckEnabled: true,
		Joints: []config.PIDGains{
			{Kp: 1, OutputLimit: 100},
		},
		JointLimits: []config.JointLimits{
			{PosMin: -10, PosMax: 10, VelMax: 10, AccMax: 10, TorqueMax: 100},
		},
		DHTable: []config.DHJoint{{A: 0, D: 0, Alpha: 0, ThetaOff: 0}},
		Workspace: config.AABB{
			Min: [3]float64{-1000, -1000, -1000},
			Max: [3]float64{1000, 1000, 1000},
		},
	}
}

func newTestExecutorWithTransport(t *testing.T) (*Executor, *fieldbus.SimTransport) {
	cfg := testConfig()
	transport := fieldbus.NewSimTransport(cfg.NumJoints())
	bus := fieldbus.NewMaster(transport, nil)
	test.That(t, bus.Bringup(), test.ShouldBeNil)

	axes := make([]*drive.Axis, cfg.NumJoints())
	for i := range axes {
		axes[i] = drive.NewAxis(drive.Params{EncoderResolution: 4096, GearRatio: 1})
	}

	limEnv := &limits.Envelope{Limits: limits.FromConfig(cfg.JointLimits)}
	colEnv := collision.NewEnvelope(cfg.Workspace)
	mon := safety.NewMonitor(limEnv, colEnv, 0, nil, nil, nil)

	ctrl := control.NewMultiJoint([]control.Gains{{Kp: 1, OutputLimit: 100}}, nil)

	return New(cfg, bus, axes, nil, mon, ctrl, nil), transport
}

func newTestExecutor(t *testing.T) *Executor {
	e, _ := newTestExecutorWithTransport(t)
	return e
}

// newTestExecutorWithWatchdog wires a mock-clock watchdog over transport so
// tests can control exactly when it trips without real sleeps.
func newTestExecutorWithWatchdog(t *testing.T, transport fieldbus.Transport, onFire func()) (*Executor, *watchdog.Watchdog, *clock.Mock) {
	cfg := testConfig()
	bus := fieldbus.NewMaster(transport, nil)
	test.That(t, bus.Bringup(), test.ShouldBeNil)

	axes := make([]*drive.Axis, cfg.NumJoints())
	for i := range axes {
		axes[i] = drive.NewAxis(drive.Params{EncoderResolution: 4096, GearRatio: 1})
	}

	mock := clock.NewMock()
	wd := watchdog.New(50*time.Millisecond, onFire, logging.NewTestLogger(t), watchdog.WithClock(mock))
	wd.Start()

	limEnv := &limits.Envelope{Limits: limits.FromConfig(cfg.JointLimits)}
	colEnv := collision.NewEnvelope(cfg.Workspace)
	mon := safety.NewMonitor(limEnv, colEnv, 0, wd, nil, nil)
	ctrl := control.NewMultiJoint([]control.Gains{{Kp: 1, OutputLimit: 100}}, nil)

	return New(cfg, bus, axes, wd, mon, ctrl, nil), wd, mock
}

func TestExecutorKicksWatchdogOnSuccessfulCycle(t *testing.T) {
	transport := fieldbus.NewSimTransport(1)
	fired := make(chan struct{}, 1)
	e, wd, mock := newTestExecutorWithWatchdog(t, transport, func() { fired <- struct{}{} })
	defer wd.Stop()

	e.SetTarget(&Target{Position: []float64{0}})
	e.runCycle()
	mock.Add(30 * time.Millisecond)
	e.runCycle()
	mock.Add(30 * time.Millisecond)

	select {
	case <-fired:
		t.Fatal("watchdog fired despite successful cycles kicking it")
	case <-time.After(50 * time.Millisecond):
	}
	test.That(t, wd.Fired(), test.ShouldBeFalse)
}

func TestExecutorWatchdogTripsWithoutKicksOnPersistentBusError(t *testing.T) {
	transport := &alwaysErrTransport{n: 1}
	fired := make(chan struct{}, 1)
	e, wd, mock := newTestExecutorWithWatchdog(t, transport, func() { fired <- struct{}{} })
	defer wd.Stop()

	e.SetTarget(&Target{Position: []float64{0}})
	e.runCycle() // bus read fails: no Kick()
	mock.Add(75 * time.Millisecond)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire despite no kicks")
	}
	test.That(t, wd.Fired(), test.ShouldBeTrue)
}

func TestExecutorRunsCyclesAndAdvances(t *testing.T) {
	e := newTestExecutor(t)
	e.SetTarget(&Target{Position: []float64{1.0}})
	e.Start()
	time.Sleep(20 * time.Millisecond)
	ok := e.Stop()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, e.CycleCount() > 0, test.ShouldBeTrue)
}

func TestExecutorStopIsIdempotent(t *testing.T) {
	e := newTestExecutor(t)
	e.Start()
	time.Sleep(5 * time.Millisecond)
	test.That(t, e.Stop(), test.ShouldBeTrue)
	test.That(t, e.Stop(), test.ShouldBeTrue)
}

func TestExecutorEmergencyStopsOnLimitViolation(t *testing.T) {
	e, transport := newTestExecutorWithTransport(t)

	// Fabricate a sensor reading of 100 rad, far outside the configured
	// +-10 rad position limit, so the very first readState() call reports
	// an out-of-bounds actual position and CheckRuntime raises Fault.
	params := drive.Params{EncoderResolution: 4096, GearRatio: 1}
	counts := params.RadiansToCounts(100)
	frame := drive.OutputPDO{ControlWord: 0x27, TargetPosition: counts}.Encode()
	transport.SetNextInput([][6]byte{frame})

	e.SetTarget(&Target{Position: []float64{1.0}})
	e.Start()
	time.Sleep(10 * time.Millisecond)
	test.That(t, e.Running(), test.ShouldBeFalse)
}

func TestSingleCycleWithoutTargetIsNoOp(t *testing.T) {
	e := newTestExecutor(t)
	e.runCycle()
	test.That(t, e.Running(), test.ShouldBeFalse) // never Start()ed
}
