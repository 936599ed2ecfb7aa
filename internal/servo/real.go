package servo

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

// PulseCal is the servo pulse-width calibration in microseconds.
// Applies to all four actuators (same servo model across the rig).
type PulseCal struct {
	MinUS int
	MaxUS int
}

// HardwareConfig describes the PCA9685 attachment.
type HardwareConfig struct {
	// Bus is the I2C bus name ("" selects the first available bus).
	Bus string
	// Addr is the PCA9685 I2C address, typically 0x40.
	Addr uint16
	// FreqHz is the PWM frequency, typically 50 for servos.
	FreqHz int
	// Channels maps each actuator to a PCA9685 output channel.
	Channels map[ID]int
	// Pulse is the pulse-width calibration.
	Pulse PulseCal
}

// RealDriver drives the rig through a PCA9685 PWM controller.
type RealDriver struct {
	bus    i2c.BusCloser
	dev    *pca9685.Dev
	servos map[ID]*pca9685.Servo
}

// NewRealDriver opens the I2C bus, configures the PCA9685 and moves every
// actuator to its rest angle.
func NewRealDriver(cfg HardwareConfig) (*RealDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.Bus, err)
	}

	dev, err := pca9685.NewI2C(bus, cfg.Addr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("init pca9685 at 0x%02x: %w", cfg.Addr, err)
	}
	if err := dev.SetPwmFreq(physic.Frequency(cfg.FreqHz) * physic.Hertz); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set pwm frequency: %w", err)
	}

	// Convert the pulse calibration to 12-bit duty counts at the PWM period.
	periodUS := 1_000_000 / cfg.FreqHz
	minDuty := gpio.Duty(int64(cfg.Pulse.MinUS) * int64(gpio.DutyMax) / int64(periodUS))
	maxDuty := gpio.Duty(int64(cfg.Pulse.MaxUS) * int64(gpio.DutyMax) / int64(periodUS))

	group := pca9685.NewServoGroup(dev, minDuty, maxDuty, 0, 180*physic.Degree)

	d := &RealDriver{
		bus:    bus,
		dev:    dev,
		servos: make(map[ID]*pca9685.Servo, len(cfg.Channels)),
	}
	for id, ch := range cfg.Channels {
		d.servos[id] = group.GetServo(ch)
	}

	// Home the rig so startup state matches the angle bookkeeping.
	for _, id := range IDs {
		if err := d.SetAngle(id, Rest(id)); err != nil {
			bus.Close()
			return nil, fmt.Errorf("home %s: %w", id, err)
		}
	}

	return d, nil
}

// SetAngle writes the angle to the actuator's PWM channel.
func (d *RealDriver) SetAngle(id ID, angle float64) error {
	s, ok := d.servos[id]
	if !ok {
		return fmt.Errorf("no channel mapped for %s", id)
	}
	if err := s.SetAngle(physic.Angle(angle * float64(physic.Degree))); err != nil {
		return fmt.Errorf("set %s angle: %w", id, err)
	}
	return nil
}

// Close releases the I2C bus.
func (d *RealDriver) Close() error {
	if err := d.bus.Close(); err != nil {
		return fmt.Errorf("close i2c bus: %w", err)
	}
	return nil
}
