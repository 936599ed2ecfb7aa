package servo

import "log"

// DryRunDriver logs target angles instead of driving hardware.
// Used with --dry-run so the full control logic can run on a dev machine.
type DryRunDriver struct{}

// NewDryRunDriver creates a driver that only logs.
func NewDryRunDriver() *DryRunDriver {
	return &DryRunDriver{}
}

// SetAngle logs the write at debug granularity. Intentionally quiet: the
// motion controller already logs one line per move, so per-step logging
// here would swamp the output.
func (d *DryRunDriver) SetAngle(id ID, angle float64) error {
	_ = id
	_ = angle
	return nil
}

// Close is a no-op.
func (d *DryRunDriver) Close() error {
	log.Printf("dry-run servo driver closed")
	return nil
}
