package watchdog

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/Benergy80/Kuka-Jetson-Conversion/logging"
)

func TestWatchdogFiresAfterTimeout(t *testing.T) {
	mock := clock.NewMock()
	fired := make(chan struct{}, 1)

	w := New(50*time.Millisecond, func() { fired <- struct{}{} }, logging.NewTestLogger(t), WithClock(mock))
	w.Start()
	defer w.Stop()

	mock.Add(75 * time.Millisecond)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire in time")
	}
	test.That(t, w.Fired(), test.ShouldBeTrue)
}

func TestWatchdogKickPreventsFire(t *testing.T) {
	mock := clock.NewMock()
	fired := make(chan struct{}, 1)

	w := New(50*time.Millisecond, func() { fired <- struct{}{} }, logging.NewTestLogger(t), WithClock(mock))
	w.Start()
	defer w.Stop()

	mock.Add(30 * time.Millisecond)
	w.Kick()
	mock.Add(30 * time.Millisecond)

	select {
	case <-fired:
		t.Fatal("watchdog fired despite kicks")
	case <-time.After(50 * time.Millisecond):
	}
	test.That(t, w.Fired(), test.ShouldBeFalse)
}

func TestWatchdogStartIsIdempotent(t *testing.T) {
	mock := clock.NewMock()
	w := New(50*time.Millisecond, func() {}, logging.NewTestLogger(t), WithClock(mock))
	w.Start()
	w.Start()
	w.Stop()
}
