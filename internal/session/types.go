// Package session contains the orchestrator state machine for interaction
// episodes. It is pure logic in the style of a tick-driven detector: no
// goroutines, no sleeps, no wall clock: every decision derives from the
// time passed into Tick. Side effects go through the Motion and peer
// sender interfaces; observable decisions come back as events.
package session

import "time"

// Role selects which side of the two-node protocol this process plays.
type Role string

const (
	// RolePrimary owns scheduling, quota and the reward dispenser.
	RolePrimary Role = "primary"
	// RoleSecondary runs episodes on request from the primary.
	RoleSecondary Role = "secondary"
)

// State is the orchestrator state.
type State string

const (
	// Idle: no episode running.
	Idle State = "IDLE"
	// Active: an episode is running.
	Active State = "ACTIVE"
	// WaitingPeer: local success, waiting for the peer's confirmation.
	// Reachable only for RolePrimary.
	WaitingPeer State = "WAITING_PEER"
)

// Config holds the orchestrator parameters, fixed at startup.
type Config struct {
	Role Role

	// StartHour is the first eligible hour of day for scheduled episodes
	// (Primary only).
	StartHour int

	// MaxCyclesPerHour is the episode quota per calendar hour (Primary only).
	MaxCyclesPerHour int

	// PeerTimeout bounds the WaitingPeer state.
	PeerTimeout time.Duration

	// CloseThreshold: the held distance score must exceed this to count
	// as "close".
	CloseThreshold int

	// CloseHold is how long the score must stay continuously above the
	// threshold for close-confirmation to fire.
	CloseHold time.Duration

	// NoSignalTimeout stops an episode when no subject was seen at all.
	NoSignalTimeout time.Duration

	// NoCloseTimeout stops an episode when the subject was seen but never
	// confirmed close.
	NoCloseTimeout time.Duration
}

// Motion is the subset of the motion controller the orchestrator drives.
type Motion interface {
	// StartEpisode runs the deploy sequence and starts oscillation. Blocks.
	StartEpisode()
	// StopEpisode cancels oscillation and homes the rig. Blocks.
	StopEpisode()
	// Dispense runs the reward sequence. Blocks.
	Dispense()
	// Running reports whether the oscillation task is active.
	Running() bool
}

// Sender sends a token to the peer, best effort.
type Sender interface {
	Send(msg string)
}

// EventType classifies orchestrator decisions.
type EventType string

const (
	EventEpisodeStarted  EventType = "EPISODE_STARTED"
	EventEpisodeStopped  EventType = "EPISODE_STOPPED"
	EventWaitingPeer     EventType = "WAITING_PEER"
	EventCycleComplete   EventType = "CYCLE_COMPLETE"
	EventTreatDispensed  EventType = "TREAT_DISPENSED"
	EventStartScheduled  EventType = "START_SCHEDULED"
	EventCommandRejected EventType = "COMMAND_REJECTED"
	EventPeerTimeout     EventType = "PEER_TIMEOUT"
	EventHourRollover    EventType = "HOUR_ROLLOVER"
)

// Event is one observable orchestrator decision, returned from Tick for
// logging and telemetry.
type Event struct {
	Timestamp time.Time
	Type      EventType
	// Reason qualifies the event ("scheduled", "manual", "no-signal", ...).
	Reason string
	// State is the orchestrator state after the event.
	State State
	// Score is the held distance score at the time (0 when absent).
	Score int
	// Cycles is the hourly cycle count after the event.
	Cycles int
}
