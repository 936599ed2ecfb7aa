package telemetry

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pmaher/treatbot/internal/session"
)

func TestFormatPayload(t *testing.T) {
	event := session.Event{
		Timestamp: time.Date(2026, 3, 14, 9, 0, 10, 0, time.UTC),
		Type:      session.EventEpisodeStopped,
		Reason:    "close confirmed",
		State:     session.WaitingPeer,
		Score:     9,
		Cycles:    1,
	}

	payload, err := FormatPayload(session.RolePrimary, event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Robot.Timestamp != "2026-03-14T09:00:10Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Robot.Timestamp)
	}
	if parsed.Robot.Role != "primary" {
		t.Errorf("unexpected role: %s", parsed.Robot.Role)
	}
	if parsed.Robot.Event != "EPISODE_STOPPED" {
		t.Errorf("unexpected event: %s", parsed.Robot.Event)
	}
	if parsed.Robot.Reason != "close confirmed" {
		t.Errorf("unexpected reason: %s", parsed.Robot.Reason)
	}
	if parsed.Robot.State != "WAITING_PEER" {
		t.Errorf("unexpected state: %s", parsed.Robot.State)
	}
	if parsed.Robot.Score != 9 {
		t.Errorf("unexpected score: %d", parsed.Robot.Score)
	}
	if parsed.Robot.Cycles != 1 {
		t.Errorf("unexpected cycles: %d", parsed.Robot.Cycles)
	}
}

func TestFormatPayloadOmitsEmptyReason(t *testing.T) {
	event := session.Event{
		Timestamp: time.Now(),
		Type:      session.EventWaitingPeer,
		State:     session.WaitingPeer,
	}

	payload, err := FormatPayload(session.RoleSecondary, event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(payload), "reason") {
		t.Errorf("empty reason serialized: %s", payload)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.System.Timestamp != "2026-03-14T09:00:00Z" {
		t.Errorf("unexpected timestamp: %s", parsed.System.Timestamp)
	}
	if parsed.System.Event != "SHUTDOWN" {
		t.Errorf("unexpected event: %s", parsed.System.Event)
	}
	if parsed.System.Reason != "SIGTERM" {
		t.Errorf("unexpected reason: %s", parsed.System.Reason)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"custom":true}`)
	payload, err := FormatSystemPayload(SystemEvent{RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"custom":true}` {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	event := session.Event{
		Timestamp: time.Now(),
		Type:      session.EventEpisodeStarted,
		State:     session.Active,
	}

	if err := f.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.Events))
	}
	if f.Events[0].Type != session.EventEpisodeStarted {
		t.Errorf("unexpected event type: %s", f.Events[0].Type)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")

	err := f.Publish(session.Event{Type: session.EventEpisodeStarted})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.Events) != 0 {
		t.Errorf("event recorded despite error")
	}
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferPushAndDrainOrder(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}

	if got2 := rb.drainAll(); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5)

	for i := 0; i < 8; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		want := byte(i + 3) // oldest 3 were dropped
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10)
	rb.push(bufferedMsg{
		topic:    TopicSystem,
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})

	got := rb.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].topic != TopicSystem {
		t.Errorf("topic: got %s, want %s", got[0].topic, TopicSystem)
	}
	if string(got[0].payload) != `{"test":true}` {
		t.Errorf("payload: got %s", got[0].payload)
	}
	if got[0].qos != 1 {
		t.Errorf("qos: got %d, want 1", got[0].qos)
	}
	if !got[0].retained {
		t.Error("retained: got false, want true")
	}
}
