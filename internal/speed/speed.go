// Package speed provides the process-wide, live-adjustable timing scale for
// actuation. Every mover reads it on each step, so operator speed changes
// take effect mid-move without restarting anything.
package speed

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Floor below which Slower() stops reducing the factor.
const minFactor = 0.05

// Base holds the unscaled timing parameters. They never change at runtime;
// only the multiplier does.
type Base struct {
	// StepDegrees is the interpolation step size for smooth moves.
	StepDegrees float64
	// StepDelay is the per-step sleep at factor 1.0.
	StepDelay time.Duration
	// RandomWaitMin and RandomWaitMax bound the pause between oscillation
	// moves at factor 1.0.
	RandomWaitMin time.Duration
	RandomWaitMax time.Duration
}

// Control is the shared speed scale. All methods are safe for concurrent use.
type Control struct {
	mu     sync.Mutex
	factor float64
	base   Base
}

// New creates a Control with the given base timing and initial factor.
// A non-positive initial factor falls back to 1.0.
func New(base Base, factor float64) *Control {
	if factor <= 0 {
		factor = 1.0
	}
	return &Control{factor: factor, base: base}
}

// SetSpeed replaces the factor. Non-positive values are ignored.
func (c *Control) SetSpeed(f float64) {
	if f <= 0 {
		return
	}
	c.mu.Lock()
	c.factor = f
	c.mu.Unlock()
}

// Factor returns the current multiplier.
func (c *Control) Factor() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.factor
}

// Faster multiplies the factor by 1.25.
func (c *Control) Faster() {
	c.mu.Lock()
	c.factor *= 1.25
	c.mu.Unlock()
}

// Slower divides the factor by 1.25, flooring at 0.05.
func (c *Control) Slower() {
	c.mu.Lock()
	c.factor /= 1.25
	if c.factor < minFactor {
		c.factor = minFactor
	}
	c.mu.Unlock()
}

// StepDegrees returns the interpolation step size. Not speed-scaled;
// floored at 0.2° so a miscalibrated base cannot explode the step count.
func (c *Control) StepDegrees() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base.StepDegrees < 0.2 {
		return 0.2
	}
	return c.base.StepDegrees
}

// StepDelay returns the per-step sleep at the current factor, floored at 1 ms.
func (c *Control) StepDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := time.Duration(float64(c.base.StepDelay) / c.factor)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// Duration scales a base duration by the current factor.
func (c *Control) Duration(base time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := time.Duration(float64(base) / c.factor)
	if d < 0 {
		d = 0
	}
	return d
}

// RandomWait returns a uniform random wait between the base bounds, scaled
// by the current factor.
func (c *Control) RandomWait() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	span := c.base.RandomWaitMax - c.base.RandomWaitMin
	w := c.base.RandomWaitMin
	if span > 0 {
		w += time.Duration(rand.Int63n(int64(span)))
	}
	d := time.Duration(float64(w) / c.factor)
	if d < 0 {
		d = 0
	}
	return d
}

// Info returns a one-line summary for operator logs.
func (c *Control) Info() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("speed=%.2f | step_deg=%.1f step_delay=%v | rnd_wait=%v-%v",
		c.factor, c.base.StepDegrees, c.base.StepDelay, c.base.RandomWaitMin, c.base.RandomWaitMax)
}
