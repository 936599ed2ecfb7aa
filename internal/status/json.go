package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Role          string     `json:"role"`
	State         string     `json:"state"`
	Score         *int       `json:"score"`
	Cycles        int        `json:"cycles"`
	MaxCycles     int        `json:"max_cycles_per_hour"`
	NextStart     string     `json:"next_start,omitempty"`
	SpeedFactor   float64    `json:"speed_factor"`
	PeerConnected bool       `json:"peer_connected"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs       int64  `json:"tick_ms"`
	Broker       string `json:"broker"`
	HTTPPort     string `json:"http_port"`
	SerialDevice string `json:"serial_device"`
	SerialBaud   int    `json:"serial_baud"`
	StartHour    int    `json:"start_hour"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	// Score is null when the detector sees nothing.
	var score *int
	if snap.ScoreOK {
		s := snap.Score
		score = &s
	}

	var next string
	if snap.NextStartSet {
		next = snap.NextStart.UTC().Format(time.RFC3339)
	}

	return StatusInner{
		Role:          snap.Config.Role,
		State:         state,
		Score:         score,
		Cycles:        snap.Cycles,
		MaxCycles:     snap.Config.MaxCyclesPerHour,
		NextStart:     next,
		SpeedFactor:   snap.SpeedFactor,
		PeerConnected: snap.PeerConnected,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			TickMs:       snap.Config.TickMs,
			Broker:       snap.Config.Broker,
			HTTPPort:     snap.Config.HTTPPort,
			SerialDevice: snap.Config.SerialDevice,
			SerialBaud:   snap.Config.SerialBaud,
			StartHour:    snap.Config.StartHour,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
