//go:build linux

package buttons

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the buttons from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip      *gpiocdev.Chip
	startLine *gpiocdev.Line
	treatLine *gpiocdev.Line
}

// NewRealReader creates a button reader for actual Raspberry Pi hardware.
func NewRealReader(pinStart, pinTreat int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Buttons short the pin to ground, so request with pull-ups.
	startLine, err := chip.RequestLine(pinStart, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request start pin %d: %w", pinStart, err)
	}

	treatLine, err := chip.RequestLine(pinTreat, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		startLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request treat pin %d: %w", pinTreat, err)
	}

	return &RealReader{
		chip:      chip,
		startLine: startLine,
		treatLine: treatLine,
	}, nil
}

// Read returns (startPressed, treatPressed).
// Inverts raw GPIO: active-low wiring means raw 0 = pressed.
func (r *RealReader) Read() (bool, bool, error) {
	startRaw, err := r.startLine.Value()
	if err != nil {
		return false, false, fmt.Errorf("read start pin: %w", err)
	}

	treatRaw, err := r.treatLine.Value()
	if err != nil {
		return false, false, fmt.Errorf("read treat pin: %w", err)
	}

	return startRaw == 0, treatRaw == 0, nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error

	if r.startLine != nil {
		if err := r.startLine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close start pin: %w", err))
		}
	}
	if r.treatLine != nil {
		if err := r.treatLine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close treat pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
