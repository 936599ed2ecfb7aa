package peer

import "sync"

// FakeSender records sent messages for test assertions.
type FakeSender struct {
	mu   sync.Mutex
	sent []string

	// Down simulates a disconnected link; sends are silently dropped.
	Down bool
}

// NewFakeSender creates a FakeSender.
func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

// Send records the message unless the fake link is Down.
func (f *FakeSender) Send(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return
	}
	f.sent = append(f.sent, msg)
}

// Sent returns a copy of all recorded messages.
func (f *FakeSender) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

// Reset clears recorded messages.
func (f *FakeSender) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.Down = false
}
