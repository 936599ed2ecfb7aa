// Package command provides the single inbound event queue feeding the
// session orchestrator. Operator commands and peer messages are merged
// into one ordered stream; the orchestrator drains a batch per tick.
package command

// Kind discriminates inbound events.
type Kind string

const (
	// ManualStart requests an immediate episode start (Primary only).
	ManualStart Kind = "MANUAL_START"
	// ManualTreat requests an immediate reward dispense (Primary only).
	ManualTreat Kind = "MANUAL_TREAT"
	// Peer carries a raw token received from the peer link.
	Peer Kind = "PEER"
)

// Event is one inbound event. For Kind == Peer, Token holds the wire token.
type Event struct {
	Kind  Kind
	Token string
}

// Bus is a concurrency-safe queue of events. Producers (console reader,
// buttons, peer link) post; the orchestrator tick loop is the sole consumer.
type Bus struct {
	ch chan Event
}

// NewBus creates a Bus. Capacity is generous relative to producer rates;
// Post drops (with a false return) rather than blocking if it ever fills.
func NewBus() *Bus {
	return &Bus{ch: make(chan Event, 128)}
}

// Post enqueues an event. Returns false if the bus is full.
func (b *Bus) Post(e Event) bool {
	select {
	case b.ch <- e:
		return true
	default:
		return false
	}
}

// Drain removes and returns all currently queued events without blocking.
func (b *Bus) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-b.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
