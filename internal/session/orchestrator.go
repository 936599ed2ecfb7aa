package session

import (
	"time"

	"github.com/pmaher/treatbot/internal/command"
	"github.com/pmaher/treatbot/internal/peer"
)

// Orchestrator is the central state machine. It is single-owner state: the
// tick loop alone calls Tick and the accessors, and every other goroutine
// reaches it exclusively through the command bus.
type Orchestrator struct {
	cfg    Config
	motion Motion
	sender Sender

	state        State
	episodeStart time.Time

	// sawSignal is set once any score arrives during the episode.
	sawSignal bool

	// Close-confirmation streak.
	closeStarted   bool
	closeStart     time.Time
	closeConfirmed bool

	waitStart time.Time

	currentHour int
	cycles      int

	// nextStart is the next eligible start (Primary only). scheduled=false
	// means paused until the next hour rollover.
	nextStart time.Time
	scheduled bool

	// Held score from the last Tick, for Snapshot.
	lastScore   int
	lastScoreOK bool
}

// New creates an Orchestrator in Idle. For Primary the first start is
// scheduled at StartHour today if that is still ahead, otherwise at the
// next hour boundary.
func New(cfg Config, motion Motion, sender Sender, now time.Time) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		motion:      motion,
		sender:      sender,
		state:       Idle,
		currentHour: now.Hour(),
	}

	if cfg.Role == RolePrimary {
		first := time.Date(now.Year(), now.Month(), now.Day(), cfg.StartHour, 0, 0, 0, now.Location())
		if !now.After(first) {
			o.nextStart = first
		} else {
			o.nextStart = startOfHour(now).Add(time.Hour)
		}
		o.scheduled = true
	}

	return o
}

// Tick advances the state machine: hour rollover, the drained command
// batch, scheduled starts, the peer-wait timeout, then the episode rules
// against the held score. Motion calls block inside Tick by design.
func (o *Orchestrator) Tick(now time.Time, score int, scoreOK bool, events []command.Event) []Event {
	var out []Event
	o.lastScore, o.lastScoreOK = score, scoreOK

	// Hour boundary: reset quota exactly once per observed hour change.
	if now.Hour() != o.currentHour {
		o.currentHour = now.Hour()
		o.cycles = 0
		if o.cfg.Role == RolePrimary {
			o.nextStart = startOfHour(now)
			o.scheduled = true
		}
		out = append(out, o.event(now, EventHourRollover, ""))
	}

	for _, e := range events {
		out = append(out, o.handleCommand(now, e)...)
	}

	// Scheduled start (Primary).
	if o.cfg.Role == RolePrimary && o.state == Idle &&
		o.scheduled && !now.Before(o.nextStart) && o.cycles < o.cfg.MaxCyclesPerHour {
		o.startEpisode(now)
		out = append(out, o.event(now, EventEpisodeStarted, "scheduled"))
	}

	// Peer-wait timeout (Primary).
	if o.cfg.Role == RolePrimary && o.state == WaitingPeer &&
		now.Sub(o.waitStart) > o.cfg.PeerTimeout {
		o.state = Idle
		o.scheduleNextHour(now)
		out = append(out, o.event(now, EventPeerTimeout, "no reply from secondary"))
	}

	if o.state == Active {
		out = append(out, o.tickEpisode(now, score, scoreOK)...)
	}

	return out
}

func (o *Orchestrator) handleCommand(now time.Time, e command.Event) []Event {
	switch e.Kind {
	case command.ManualStart:
		if o.cfg.Role != RolePrimary {
			return []Event{o.event(now, EventCommandRejected, "manual start: secondary has no schedule")}
		}
		if o.state != Idle {
			return []Event{o.event(now, EventCommandRejected, "manual start: not idle")}
		}
		if o.cycles >= o.cfg.MaxCyclesPerHour {
			return []Event{o.event(now, EventCommandRejected, "manual start: hourly quota exhausted")}
		}
		o.nextStart = now
		o.scheduled = true
		return []Event{o.event(now, EventStartScheduled, "manual")}

	case command.ManualTreat:
		if o.cfg.Role != RolePrimary {
			return []Event{o.event(now, EventCommandRejected, "manual treat: only primary dispenses")}
		}
		if o.state != Idle || o.motion.Running() {
			return []Event{o.event(now, EventCommandRejected, "manual treat: system not idle")}
		}
		o.motion.Dispense()
		return []Event{o.event(now, EventTreatDispensed, "manual")}

	case command.Peer:
		return o.handlePeer(now, e.Token)
	}
	return nil
}

func (o *Orchestrator) handlePeer(now time.Time, token string) []Event {
	switch token {
	case peer.Stage1Complete:
		if o.cfg.Role != RoleSecondary || o.state != Idle {
			return nil
		}
		o.startEpisode(now)
		return []Event{o.event(now, EventEpisodeStarted, "peer request")}

	case peer.Stage2Complete:
		if o.cfg.Role != RolePrimary || o.state != WaitingPeer {
			return nil
		}
		o.state = Idle
		o.motion.Dispense()
		o.cycles++

		events := []Event{o.event(now, EventCycleComplete, "both nodes confirmed")}
		if o.cycles >= o.cfg.MaxCyclesPerHour {
			o.scheduled = false
		} else {
			o.nextStart = now
			o.scheduled = true
		}
		return events
	}

	// Unrecognized tokens pass through as no-ops for forward compatibility.
	return nil
}

// tickEpisode applies the in-episode rules: signal tracking, the close
// streak, and the failure/success transitions.
func (o *Orchestrator) tickEpisode(now time.Time, score int, scoreOK bool) []Event {
	if scoreOK {
		o.sawSignal = true
	}
	o.updateCloseStreak(now, score, scoreOK)

	elapsed := now.Sub(o.episodeStart)

	switch {
	case !o.sawSignal && elapsed >= o.cfg.NoSignalTimeout:
		o.stopEpisode()
		if o.cfg.Role == RolePrimary {
			o.scheduleNextHour(now)
		}
		return []Event{o.event(now, EventEpisodeStopped, "no signal")}

	case o.sawSignal && !o.closeConfirmed && elapsed >= o.cfg.NoCloseTimeout:
		o.stopEpisode()
		if o.cfg.Role == RolePrimary {
			o.scheduleNextHour(now)
		}
		return []Event{o.event(now, EventEpisodeStopped, "never confirmed close")}

	case o.closeConfirmed:
		o.stopEpisode()
		events := []Event{o.event(now, EventEpisodeStopped, "close confirmed")}

		if o.cfg.Role == RolePrimary {
			o.state = WaitingPeer
			o.waitStart = now
			o.sender.Send(peer.Stage1Complete)
			events = append(events, o.event(now, EventWaitingPeer, ""))
		} else {
			o.sender.Send(peer.Stage2Complete)
		}
		return events
	}

	return nil
}

// updateCloseStreak maintains the continuously-above-threshold timer. Any
// tick at or below the threshold resets it. The held score is re-evaluated
// every tick, so the streak accumulates wall time between detector polls.
func (o *Orchestrator) updateCloseStreak(now time.Time, score int, scoreOK bool) {
	if scoreOK && score > o.cfg.CloseThreshold {
		if !o.closeStarted {
			o.closeStarted = true
			o.closeStart = now
		} else if now.Sub(o.closeStart) >= o.cfg.CloseHold {
			o.closeConfirmed = true
		}
		return
	}
	o.closeStarted = false
}

func (o *Orchestrator) startEpisode(now time.Time) {
	o.state = Active
	o.episodeStart = now
	o.sawSignal = false
	o.closeStarted = false
	o.closeConfirmed = false
	o.motion.StartEpisode()
}

func (o *Orchestrator) stopEpisode() {
	o.motion.StopEpisode()
	o.state = Idle
	o.closeConfirmed = false
	o.closeStarted = false
}

// scheduleNextHour moves the next eligible start to the next hour boundary.
func (o *Orchestrator) scheduleNextHour(now time.Time) {
	o.nextStart = startOfHour(now).Add(time.Hour)
	o.scheduled = true
}

func (o *Orchestrator) event(now time.Time, t EventType, reason string) Event {
	score := 0
	if o.lastScoreOK {
		score = o.lastScore
	}
	return Event{
		Timestamp: now,
		Type:      t,
		Reason:    reason,
		State:     o.state,
		Score:     score,
		Cycles:    o.cycles,
	}
}

// startOfHour truncates to the top of the hour in the time's location.
func startOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Cycles returns the hourly cycle count.
func (o *Orchestrator) Cycles() int {
	return o.cycles
}

// NextStart returns the next eligible start time. ok=false means paused
// (quota exhausted) or not applicable (Secondary).
func (o *Orchestrator) NextStart() (time.Time, bool) {
	return o.nextStart, o.scheduled && o.cfg.Role == RolePrimary
}
