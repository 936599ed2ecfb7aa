// Package motion owns the actuator rig choreography: clamped smooth moves,
// the fixed episode and dispense sequences, and the cancellable background
// oscillation task. Composite sequences run synchronously on the caller's
// goroutine. The orchestrator deliberately blocks during actuation.
package motion

import (
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pmaher/treatbot/internal/servo"
	"github.com/pmaher/treatbot/internal/speed"
)

// Base sequence durations at speed factor 1.0. Calibrated with the rig;
// the live speed factor scales all of them.
const (
	baseDoorOpen   = 3 * time.Second
	baseDeploy     = 2 * time.Second
	baseInOutHome  = 2500 * time.Millisecond
	baseDeployHome = 2 * time.Second
	baseDoorClose  = 3 * time.Second

	baseTreatDoorOpen  = 3 * time.Second
	baseTreatOut       = 3 * time.Second
	baseTreatBack      = 2500 * time.Millisecond
	baseTreatDoorClose = 3 * time.Second

	baseRandomMove = 2 * time.Second

	// oscJoinTimeout bounds the wait for the oscillation task on cancel.
	// Homing proceeds even if the task has not exited yet.
	oscJoinTimeout = 3 * time.Second
	// cancelPoll is how often the random wait checks for cancellation.
	cancelPoll = 50 * time.Millisecond
)

// Controller drives the rig. It is the only mutator of current angles.
type Controller struct {
	drv   servo.Driver
	spd   *speed.Control
	sleep func(time.Duration)

	anglesMu sync.Mutex
	angles   map[servo.ID]float64

	// seqMu serializes episode start/stop so overlapping requests cannot
	// interleave the deploy and homing sequences. Dispense intentionally
	// does not take it; the orchestrator only dispenses while idle.
	seqMu sync.Mutex

	stateMu sync.Mutex
	running bool
	oscStop chan struct{}
	oscDone chan struct{}
}

// New creates a Controller with all angles at rest.
func New(drv servo.Driver, spd *speed.Control) *Controller {
	angles := make(map[servo.ID]float64, len(servo.IDs))
	for _, id := range servo.IDs {
		angles[id] = servo.Rest(id)
	}
	return &Controller{
		drv:    drv,
		spd:    spd,
		sleep:  time.Sleep,
		angles: angles,
	}
}

// SetAngle clamps and writes one angle. Driver errors are logged, not
// propagated: a transient bus error mid-move must not abort choreography.
func (c *Controller) SetAngle(id servo.ID, angle float64) {
	angle = servo.Clamp(id, angle)
	c.anglesMu.Lock()
	c.angles[id] = angle
	c.anglesMu.Unlock()

	if err := c.drv.SetAngle(id, angle); err != nil {
		log.Printf("servo write error (%s): %v", id, err)
	}
}

// Angle returns the current angle of one actuator.
func (c *Controller) Angle(id servo.ID) float64 {
	c.anglesMu.Lock()
	defer c.anglesMu.Unlock()
	return c.angles[id]
}

// MoveSmooth moves one actuator to target over the speed-scaled nominal
// duration, interpolating linearly. The per-step delay is re-read from the
// speed control every iteration so a live speed change is felt mid-move.
// Exactly one log line per call. A zero duration jumps straight to target.
func (c *Controller) MoveSmooth(id servo.ID, target float64, nominal time.Duration, label string) {
	target = servo.Clamp(id, target)
	start := c.Angle(id)

	log.Printf("%s (%s) %.1f° -> %.1f°", label, id, start, target)

	if nominal <= 0 {
		c.SetAngle(id, target)
		return
	}

	delta := target - start
	steps := int(math.Abs(delta) / c.spd.StepDegrees())
	if steps < 1 {
		steps = 1
	}

	perStep := c.spd.Duration(nominal) / time.Duration(steps)
	if d := c.spd.StepDelay(); d > perStep {
		perStep = d
	}

	for i := 1; i <= steps; i++ {
		c.SetAngle(id, start+delta*float64(i)/float64(steps))

		d := perStep
		if live := c.spd.StepDelay(); live > d {
			d = live
		}
		c.sleep(d)
	}
}

// StartEpisode runs the deploy sequence and starts the oscillation task:
// door open, stick deploy, then background random movement.
func (c *Controller) StartEpisode() {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()

	if c.Running() {
		log.Printf("episode motion already running")
		return
	}

	c.MoveSmooth(servo.Door, servo.DoorOpen, baseDoorOpen, "Door opening")
	c.MoveSmooth(servo.Deploy, servo.DeployOut, baseDeploy, "Stick deploying")

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stateMu.Lock()
	c.running = true
	c.oscStop = stop
	c.oscDone = done
	c.stateMu.Unlock()

	go c.oscillate(stop, done)
}

// StopEpisode cancels the oscillation task (bounded join) and homes the
// rig: in-out to rest, stick to rest, door closed. Homing runs even if the
// task is still winding down; an accepted race, not eliminated.
func (c *Controller) StopEpisode() {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()

	c.stateMu.Lock()
	stop, done := c.oscStop, c.oscDone
	c.running = false
	c.oscStop = nil
	c.oscDone = nil
	c.stateMu.Unlock()

	if stop != nil {
		close(stop)
		select {
		case <-done:
		case <-time.After(oscJoinTimeout):
			log.Printf("oscillation task still exiting, homing anyway")
		}
	}

	c.MoveSmooth(servo.InOut, servo.InOutRest, baseInOutHome, "In-out returning to rest")
	c.MoveSmooth(servo.Deploy, servo.DeployRest, baseDeployHome, "Stick returning to rest")
	c.MoveSmooth(servo.Door, servo.DoorClosed, baseDoorClose, "Door closing")
}

// Dispense runs the reward sequence: door open, candy wheel out and back,
// door close. Blocks for the full scaled duration.
func (c *Controller) Dispense() {
	log.Printf("Treat dispensing started")
	c.MoveSmooth(servo.Door, servo.DoorOpen, baseTreatDoorOpen, "Door opening for treat")
	c.MoveSmooth(servo.Dispense, servo.DispenseOut, baseTreatOut, "Candy servo dispensing")
	c.MoveSmooth(servo.Dispense, servo.DispenseRest, baseTreatBack, "Candy servo resetting")
	c.MoveSmooth(servo.Door, servo.DoorClosed, baseTreatDoorClose, "Door closing after treat")
	log.Printf("Treat dispensing finished")
}

// Running reports whether the oscillation task is active.
func (c *Controller) Running() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.running
}

// oscillate picks random in-out and side-to-side targets until cancelled.
// The wait between move pairs polls the stop signal at fine granularity so
// cancellation is observed promptly, not only between full waits.
func (c *Controller) oscillate(stop, done chan struct{}) {
	defer close(done)
	log.Printf("Random movement started (in-out + side-to-side)")

	for {
		select {
		case <-stop:
			log.Printf("Random movement stopped")
			return
		default:
		}

		inout := servo.InOutMin + rand.Float64()*(servo.InOutMax-servo.InOutMin)
		sweep := servo.SweepMin + rand.Float64()*(servo.SweepMax-servo.SweepMin)

		c.MoveSmooth(servo.InOut, inout, baseRandomMove, "In-out move")
		c.MoveSmooth(servo.Deploy, sweep, baseRandomMove, "Side-to-side move")

		wait := c.spd.RandomWait()
		deadline := time.Now().Add(wait)
		for time.Now().Before(deadline) {
			select {
			case <-stop:
				log.Printf("Random movement stopped")
				return
			default:
			}
			c.sleep(cancelPoll)
		}
	}
}
