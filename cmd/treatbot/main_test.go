package main

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/pmaher/treatbot/internal/command"
	"github.com/pmaher/treatbot/internal/detect"
	"github.com/pmaher/treatbot/internal/peer"
	"github.com/pmaher/treatbot/internal/session"
	"github.com/pmaher/treatbot/internal/speed"
	"github.com/pmaher/treatbot/internal/status"
	"github.com/pmaher/treatbot/internal/telemetry"
)

// fakeClock returns a function yielding start, start+step, start+2*step, ...
// on successive calls. Only called from runLoop's goroutine.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// fakeMotion satisfies session.Motion without moving anything.
type fakeMotion struct {
	starts    int
	stops     int
	dispenses int
	running   bool
}

func (m *fakeMotion) StartEpisode() { m.starts++; m.running = true }
func (m *fakeMotion) StopEpisode()  { m.stops++; m.running = false }
func (m *fakeMotion) Dispense()     { m.dispenses++ }
func (m *fakeMotion) Running() bool { return m.running }

type loopFixture struct {
	orch    *session.Orchestrator
	bus     *command.Bus
	scores  *detect.FakeSource
	pub     *telemetry.FakePublisher
	motion  *fakeMotion
	tracker *status.Tracker
	spd     *speed.Control
}

func newLoopFixture(role session.Role, start time.Time) *loopFixture {
	m := &fakeMotion{}
	f := &loopFixture{
		bus:     command.NewBus(),
		scores:  detect.NewFakeSource(),
		pub:     telemetry.NewFakePublisher(),
		motion:  m,
		tracker: status.NewTracker(start, status.Config{Role: string(role), MaxCyclesPerHour: 4}),
		spd: speed.New(speed.Base{
			StepDegrees:   1.0,
			StepDelay:     40 * time.Millisecond,
			RandomWaitMin: 1500 * time.Millisecond,
			RandomWaitMax: 2800 * time.Millisecond,
		}, 15),
	}
	f.orch = session.New(session.Config{
		Role:             role,
		StartHour:        9,
		MaxCyclesPerHour: 4,
		PeerTimeout:      180 * time.Second,
		CloseThreshold:   8,
		CloseHold:        10 * time.Second,
		NoSignalTimeout:  30 * time.Second,
		NoCloseTimeout:   120 * time.Second,
	}, m, peer.NewFakeSender(), start)
	return f
}

// drive runs runLoop, feeds it nTicks ticks and the signal, and waits
// for it to return.
func (f *loopFixture) drive(t *testing.T, clock func() time.Time, nTicks int, signal os.Signal) {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(f.orch, f.bus, f.scores, f.pub, f.pub, func() bool { return true },
			f.tracker, f.spd, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	if err := <-errCh; err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
}

func TestRunLoopShutdownPublishesSystemEvent(t *testing.T) {
	start := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	f := newLoopFixture(session.RolePrimary, start)

	f.drive(t, fakeClock(start, 100*time.Millisecond), 0, syscall.SIGTERM)

	if len(f.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(f.pub.SystemEvents))
	}
	se := f.pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN event, got %q", se.Event)
	}
	if se.Reason != "SIGTERM" {
		t.Errorf("expected SIGTERM reason, got %q", se.Reason)
	}
	if se.RawPayload == nil {
		t.Error("expected a full status snapshot payload")
	}
	if !se.Retained {
		t.Error("shutdown event should be retained")
	}
}

func TestRunLoopShutdownSIGINTReason(t *testing.T) {
	start := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	f := newLoopFixture(session.RolePrimary, start)

	f.drive(t, fakeClock(start, 100*time.Millisecond), 0, syscall.SIGINT)

	if len(f.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(f.pub.SystemEvents))
	}
	if f.pub.SystemEvents[0].Reason != "SIGINT" {
		t.Errorf("expected SIGINT reason, got %q", f.pub.SystemEvents[0].Reason)
	}
}

func TestRunLoopScheduledStartIsPublished(t *testing.T) {
	// Created just before the start hour; the first tick lands at 09:00.
	start := time.Date(2026, 3, 14, 8, 59, 59, 0, time.UTC)
	f := newLoopFixture(session.RolePrimary, start)

	clock := fakeClock(start.Add(time.Second), 100*time.Millisecond)
	f.drive(t, clock, 1, syscall.SIGTERM)

	var types []string
	for _, e := range f.pub.Events {
		types = append(types, string(e.Type))
	}
	found := false
	for _, tp := range types {
		if tp == "EPISODE_STARTED" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected EPISODE_STARTED in published events, got %v", types)
	}
	if f.motion.starts != 1 {
		t.Errorf("motion starts = %d, want 1", f.motion.starts)
	}
}

func TestRunLoopUpdatesTracker(t *testing.T) {
	start := time.Date(2026, 3, 14, 8, 59, 59, 0, time.UTC)
	f := newLoopFixture(session.RolePrimary, start)
	f.scores.Set(7)
	f.pub.Connected = true

	clock := fakeClock(start.Add(time.Second), 100*time.Millisecond)
	f.drive(t, clock, 1, syscall.SIGTERM)

	snap := f.tracker.Snapshot()
	if snap.State != session.Active {
		t.Errorf("tracker state = %q, want ACTIVE", snap.State)
	}
	if snap.Score != 7 || !snap.ScoreOK {
		t.Errorf("tracker score = (%d, %v), want (7, true)", snap.Score, snap.ScoreOK)
	}
	if !snap.PeerConnected {
		t.Error("expected PeerConnected=true")
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	if snap.SpeedFactor != 15 {
		t.Errorf("tracker speed factor = %v, want 15", snap.SpeedFactor)
	}
}

func TestRunLoopManualTreatFromBus(t *testing.T) {
	// Past the start hour so the schedule points at 09:00 next day side;
	// the node stays idle and the manual treat goes through.
	start := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	f := newLoopFixture(session.RolePrimary, start)

	f.bus.Post(command.Event{Kind: command.ManualTreat})

	clock := fakeClock(start.Add(time.Second), 100*time.Millisecond)
	f.drive(t, clock, 1, syscall.SIGTERM)

	if f.motion.dispenses != 1 {
		t.Fatalf("dispenses = %d, want 1", f.motion.dispenses)
	}
	found := false
	for _, e := range f.pub.Events {
		if e.Type == session.EventTreatDispensed {
			found = true
		}
	}
	if !found {
		t.Error("expected TREAT_DISPENSED in published events")
	}
}

func TestRunLoopPublishErrorDoesNotStopLoop(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	f := newLoopFixture(session.RolePrimary, start)
	f.pub.PublishError = errors.New("broker down")

	f.bus.Post(command.Event{Kind: command.ManualTreat})

	clock := fakeClock(start.Add(time.Second), 100*time.Millisecond)
	// Loop keeps ticking after the failed publish; shutdown still works.
	f.drive(t, clock, 3, syscall.SIGTERM)

	if len(f.pub.SystemEvents) != 1 || f.pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Error("expected shutdown event after publish errors")
	}
}
