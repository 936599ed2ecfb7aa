// Package status provides a thread-safe status tracker for the treatbot
// daemon. It is read by HTTP handlers and formatted into MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/pmaher/treatbot/internal/session"
)

// Config contains daemon configuration for display.
type Config struct {
	Role             string
	TickMs           int64
	Broker           string
	HTTPPort         string
	SerialDevice     string
	SerialBaud       int
	StartHour        int
	MaxCyclesPerHour int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         session.State
	Score         int
	ScoreOK       bool
	Cycles        int
	NextStart     time.Time
	NextStartSet  bool
	SpeedFactor   float64
	PeerConnected bool
	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the orchestrator view. Called from the run loop every tick.
func (t *Tracker) Update(state session.State, score int, scoreOK bool, cycles int, nextStart time.Time, nextStartSet bool) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Score = score
	t.snap.ScoreOK = scoreOK
	t.snap.Cycles = cycles
	t.snap.NextStart = nextStart
	t.snap.NextStartSet = nextStartSet
	t.mu.Unlock()
}

// SetSpeedFactor sets the live speed factor.
func (t *Tracker) SetSpeedFactor(f float64) {
	t.mu.Lock()
	t.snap.SpeedFactor = f
	t.mu.Unlock()
}

// SetPeerConnected sets the serial link status.
func (t *Tracker) SetPeerConnected(connected bool) {
	t.mu.Lock()
	t.snap.PeerConnected = connected
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
