package servo

import "sync"

// Write records a single angle write for test assertions.
type Write struct {
	ID    ID
	Angle float64
}

// FakeDriver records every angle write. Safe for concurrent use so tests
// can observe writes made by the background oscillation goroutine.
type FakeDriver struct {
	mu sync.Mutex

	// writes contains all angle writes in order.
	writes []Write

	// Closed tracks if Close was called.
	Closed bool

	// SetError, if set, will be returned by SetAngle.
	SetError error
}

// NewFakeDriver creates a FakeDriver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

// SetAngle records the write.
func (f *FakeDriver) SetAngle(id ID, angle float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.writes = append(f.writes, Write{ID: id, Angle: angle})
	return nil
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Writes returns a copy of all recorded writes.
func (f *FakeDriver) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Write, len(f.writes))
	copy(out, f.writes)
	return out
}

// WritesFor returns the recorded writes for one actuator.
func (f *FakeDriver) WritesFor(id ID) []Write {
	var out []Write
	for _, w := range f.Writes() {
		if w.ID == id {
			out = append(out, w)
		}
	}
	return out
}

// Reset clears recorded writes.
func (f *FakeDriver) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
	f.Closed = false
}
