package motion

import (
	"sync"
	"testing"
	"time"

	"github.com/pmaher/treatbot/internal/servo"
	"github.com/pmaher/treatbot/internal/speed"
)

func testSpeed(factor float64) *speed.Control {
	return speed.New(speed.Base{
		StepDegrees:   1.0,
		StepDelay:     40 * time.Millisecond,
		RandomWaitMin: 1500 * time.Millisecond,
		RandomWaitMax: 2800 * time.Millisecond,
	}, factor)
}

// sleepRecorder records sleep durations instead of sleeping. Safe for
// concurrent use: the oscillation goroutine sleeps too.
type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.mu.Lock()
	r.slept = append(r.slept, d)
	r.mu.Unlock()
}

func (r *sleepRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slept)
}

func (r *sleepRecorder) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.slept))
	copy(out, r.slept)
	return out
}

// newTestController returns a controller whose sleeps are recorded, not slept.
func newTestController(factor float64) (*Controller, *servo.FakeDriver, *sleepRecorder) {
	drv := servo.NewFakeDriver()
	c := New(drv, testSpeed(factor))
	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	return c, drv, rec
}

func TestMoveSmoothZeroDurationSingleWrite(t *testing.T) {
	c, drv, rec := newTestController(1.0)

	c.MoveSmooth(servo.Door, 90, 0, "jump")

	writes := drv.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected exactly 1 write, got %d", len(writes))
	}
	if writes[0].ID != servo.Door || writes[0].Angle != 90 {
		t.Errorf("write = %+v, want door 90", writes[0])
	}
	if rec.count() != 0 {
		t.Errorf("expected no sleeps for zero-duration move, got %d", rec.count())
	}
	if got := c.Angle(servo.Door); got != 90 {
		t.Errorf("Angle(door) = %v, want 90", got)
	}
}

func TestMoveSmoothClampsTarget(t *testing.T) {
	c, drv, _ := newTestController(1.0)

	c.MoveSmooth(servo.InOut, 999, 0, "clamped")

	writes := drv.WritesFor(servo.InOut)
	if len(writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(writes))
	}
	if writes[0].Angle != 160 {
		t.Errorf("wrote %v, want clamped 160", writes[0].Angle)
	}
}

func TestMoveSmoothStepCountAndInterpolation(t *testing.T) {
	c, drv, rec := newTestController(1.0)

	// Door rest is 50; move to 60 with 1° steps = 10 writes.
	c.MoveSmooth(servo.Door, 60, time.Second, "stepped")

	writes := drv.WritesFor(servo.Door)
	if len(writes) != 10 {
		t.Fatalf("expected 10 writes, got %d", len(writes))
	}
	if writes[0].Angle != 51 {
		t.Errorf("first step angle = %v, want 51", writes[0].Angle)
	}
	if writes[9].Angle != 60 {
		t.Errorf("final angle = %v, want 60", writes[9].Angle)
	}
	for i := 1; i < len(writes); i++ {
		if writes[i].Angle <= writes[i-1].Angle {
			t.Errorf("step %d not increasing: %v -> %v", i, writes[i-1].Angle, writes[i].Angle)
		}
	}
	if rec.count() != 10 {
		t.Errorf("expected 10 sleeps, got %d", rec.count())
	}
}

func TestMoveSmoothAllWritesClamped(t *testing.T) {
	c, drv, _ := newTestController(1.0)

	c.MoveSmooth(servo.Deploy, -500, time.Second, "down")
	c.MoveSmooth(servo.Deploy, 500, time.Second, "up")

	for i, w := range drv.WritesFor(servo.Deploy) {
		l := servo.LimitsFor(servo.Deploy)
		if w.Angle < l.Min || w.Angle > l.Max {
			t.Errorf("write %d angle %v outside [%v, %v]", i, w.Angle, l.Min, l.Max)
		}
	}
}

func TestMoveSmoothLiveSpeedChange(t *testing.T) {
	c, _, rec := newTestController(1.0)

	// Speed up mid-move: per-step sleep must not increase afterwards.
	spd := c.spd
	c.sleep = func(d time.Duration) {
		rec.sleep(d)
		if rec.count() == 5 {
			spd.SetSpeed(100)
		}
	}

	c.MoveSmooth(servo.Door, 60, time.Second, "live")

	slept := rec.all()
	if len(slept) != 10 {
		t.Fatalf("expected 10 sleeps, got %d", len(slept))
	}
	// Before the change each sleep is 100ms (1s/10 steps); after it the
	// live step delay (40ms/100, floored at 1ms) is below perStep, so the
	// original perStep still applies, but it must never grow.
	for i := 5; i < 10; i++ {
		if slept[i] > slept[4] {
			t.Errorf("sleep %d grew after speed-up: %v > %v", i, slept[i], slept[4])
		}
	}
}

func TestDispenseSequence(t *testing.T) {
	c, drv, _ := newTestController(1000)

	c.Dispense()

	writes := drv.Writes()
	if len(writes) == 0 {
		t.Fatal("expected writes from dispense sequence")
	}

	// Door must end closed and the candy wheel back at rest.
	if got := c.Angle(servo.Door); got != servo.DoorClosed {
		t.Errorf("door angle after dispense = %v, want %v", got, servo.DoorClosed)
	}
	if got := c.Angle(servo.Dispense); got != servo.DispenseRest {
		t.Errorf("dispense angle after dispense = %v, want %v", got, servo.DispenseRest)
	}

	// The candy wheel must have reached full travel at some point.
	reached := false
	for _, w := range drv.WritesFor(servo.Dispense) {
		if w.Angle == servo.DispenseOut {
			reached = true
		}
	}
	if !reached {
		t.Error("candy wheel never reached full travel")
	}

	if c.Running() {
		t.Error("Running() = true after dispense")
	}
}

func TestEpisodeStartStop(t *testing.T) {
	c, drv, _ := newTestController(1000)

	c.StartEpisode()
	if !c.Running() {
		t.Fatal("Running() = false after StartEpisode")
	}

	// Door must be open and stick deployed before oscillation starts.
	if got := c.Angle(servo.Door); got != servo.DoorOpen {
		t.Errorf("door angle = %v, want %v", got, servo.DoorOpen)
	}

	c.StopEpisode()
	if c.Running() {
		t.Error("Running() = true after StopEpisode")
	}

	// Homing order: in-out rest, stick rest, door closed.
	if got := c.Angle(servo.InOut); got != servo.InOutRest {
		t.Errorf("inout angle = %v, want %v", got, servo.InOutRest)
	}
	if got := c.Angle(servo.Deploy); got != servo.DeployRest {
		t.Errorf("deploy angle = %v, want %v", got, servo.DeployRest)
	}
	if got := c.Angle(servo.Door); got != servo.DoorClosed {
		t.Errorf("door angle = %v, want %v", got, servo.DoorClosed)
	}

	// Last door write in the whole run must be the close.
	doorWrites := drv.WritesFor(servo.Door)
	if doorWrites[len(doorWrites)-1].Angle != servo.DoorClosed {
		t.Error("final door write is not the close")
	}
}

func TestStopEpisodeWithoutStartHomes(t *testing.T) {
	c, _, _ := newTestController(1000)

	// Must not panic or block; homing still runs.
	c.StopEpisode()
	if got := c.Angle(servo.Door); got != servo.DoorClosed {
		t.Errorf("door angle = %v, want %v", got, servo.DoorClosed)
	}
}

func TestOscillationWritesStayInSubRanges(t *testing.T) {
	drv := servo.NewFakeDriver()
	c := New(drv, testSpeed(1000))
	c.sleep = func(time.Duration) { time.Sleep(10 * time.Microsecond) }

	c.StartEpisode()
	time.Sleep(20 * time.Millisecond)
	c.StopEpisode()

	// All deploy writes during oscillation stay within the sweep sub-range
	// (aside from the deploy/homing moves bounded by the full range).
	for i, w := range drv.WritesFor(servo.Deploy) {
		l := servo.LimitsFor(servo.Deploy)
		if w.Angle < l.Min || w.Angle > l.Max {
			t.Errorf("deploy write %d angle %v outside [%v, %v]", i, w.Angle, l.Min, l.Max)
		}
	}
	for i, w := range drv.WritesFor(servo.InOut) {
		l := servo.LimitsFor(servo.InOut)
		if w.Angle < l.Min || w.Angle > l.Max {
			t.Errorf("inout write %d angle %v outside [%v, %v]", i, w.Angle, l.Min, l.Max)
		}
	}
}

func TestStartEpisodeTwiceIsRejected(t *testing.T) {
	c, _, _ := newTestController(1000)

	c.StartEpisode()
	c.StartEpisode() // second start must be a no-op

	if !c.Running() {
		t.Fatal("Running() = false after double start")
	}

	// Exactly one oscillation task exists, so the stop joins cleanly.
	c.StopEpisode()
	if c.Running() {
		t.Error("Running() = true after StopEpisode")
	}
}
