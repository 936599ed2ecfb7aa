// Package peer provides the point-to-point link between the two nodes.
// The link is lossy by design: outbound sends are fire-and-forget and the
// connection is supervised with unbounded retry. Protocol recovery from a
// lost message is the orchestrator's peer-wait timeout, not retransmission.
package peer

// Wire tokens. Anything else on the wire passes through to the orchestrator,
// which ignores unrecognized tokens (forward compatibility).
const (
	// Stage1Complete is sent by Primary after its local success.
	Stage1Complete = "STAGE1_COMPLETE"
	// Stage2Complete is sent by Secondary after its local success.
	Stage2Complete = "STAGE2_COMPLETE"
)

// Sender sends one message to the peer, best effort.
type Sender interface {
	// Send transmits a line-terminated token. If the link is down the
	// message is dropped and logged, never queued or retried.
	Send(msg string)
}
