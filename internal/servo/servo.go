// Package servo defines the actuator rig and its hardware abstraction.
// The real implementation drives a PCA9685 PWM controller over I2C.
// The dry-run and fake implementations allow running and testing without hardware.
package servo

import "fmt"

// ID identifies a logical actuator on the rig.
type ID int

const (
	// Dispense is the candy-wheel actuator.
	Dispense ID = 1
	// InOut is the in/out stick actuator.
	InOut ID = 2
	// Deploy is the deploy + side-to-side actuator.
	Deploy ID = 3
	// Door is the door actuator.
	Door ID = 4
)

// IDs lists all actuators in rig order.
var IDs = []ID{Dispense, InOut, Deploy, Door}

// Limits holds the calibrated legal angle range for one actuator.
type Limits struct {
	Min float64
	Max float64
}

// Calibrated angle ranges. These come from mechanical calibration of the
// rig and must not be widened without re-measuring the linkages.
var limits = map[ID]Limits{
	Dispense: {0, 180},
	InOut:    {45, 160},
	Deploy:   {75, 130},
	Door:     {50, 130},
}

// Rest angles per actuator.
var rest = map[ID]float64{
	Dispense: 0,
	InOut:    45,
	Deploy:   130,
	Door:     50,
}

// Named positions used by the motion sequences.
const (
	DoorClosed = 50.0
	DoorOpen   = 130.0

	DeployRest   = 130.0
	DeployOut    = 100.0
	SweepMin     = 75.0
	SweepMax     = 100.0
	InOutRest    = 45.0
	InOutMin     = 45.0
	InOutMax     = 160.0
	DispenseRest = 0.0
	DispenseOut  = 180.0
)

// LimitsFor returns the legal angle range for id.
func LimitsFor(id ID) Limits {
	return limits[id]
}

// Rest returns the rest angle for id.
func Rest(id ID) float64 {
	return rest[id]
}

// Clamp clamps angle to the legal range of id.
func Clamp(id ID, angle float64) float64 {
	l := limits[id]
	if angle < l.Min {
		return l.Min
	}
	if angle > l.Max {
		return l.Max
	}
	return angle
}

// String returns a short name for logging.
func (id ID) String() string {
	switch id {
	case Dispense:
		return "dispense"
	case InOut:
		return "inout"
	case Deploy:
		return "deploy"
	case Door:
		return "door"
	}
	return fmt.Sprintf("servo%d", int(id))
}

// Driver writes target angles to the physical actuators.
type Driver interface {
	// SetAngle writes the angle for one actuator. The caller is responsible
	// for clamping; drivers may assume the angle is within limits.
	SetAngle(id ID, angle float64) error

	// Close releases hardware resources.
	Close() error
}
