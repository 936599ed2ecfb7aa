package detect

import (
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource subscribes to the detector's score topic and holds the latest
// value. Payloads are "1".."10"; "0" or "none" mean no detection. Malformed
// payloads are logged and ignored.
type MQTTSource struct {
	client paho.Client
	topic  string

	mu    sync.Mutex
	score int
	ok    bool
}

// NewMQTTSource connects to the broker and subscribes to topic.
func NewMQTTSource(broker, clientID, topic string) (*MQTTSource, error) {
	s := &MQTTSource{topic: topic}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			// (Re)subscribe on every connect so a broker restart does not
			// silently leave us without scores.
			token := c.Subscribe(topic, 0, s.handle)
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				log.Printf("score subscribe error: %v", token.Error())
			}
		})

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// Auto-reconnect keeps trying in the background; the held score
		// simply stays absent until the detector is reachable.
		log.Printf("score source: broker connect pending, continuing")
		return s, nil
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MQTTSource) handle(_ paho.Client, msg paho.Message) {
	payload := strings.TrimSpace(string(msg.Payload()))

	if payload == "none" || payload == "0" {
		s.mu.Lock()
		s.ok = false
		s.mu.Unlock()
		return
	}

	score, err := strconv.Atoi(payload)
	if err != nil || score < ScoreMin || score > ScoreMax {
		log.Printf("score source: ignoring malformed payload %q", payload)
		return
	}

	s.mu.Lock()
	s.score = score
	s.ok = true
	s.mu.Unlock()
}

// Latest returns the held score.
func (s *MQTTSource) Latest() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, s.ok
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() error {
	s.client.Disconnect(1000)
	return nil
}
