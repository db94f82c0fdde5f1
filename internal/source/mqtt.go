package source

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/featurestate/internal/logic"
	"github.com/sweeney/featurestate/internal/mqtt"
)

// Subscription maps an MQTT topic carrying a numeric payload to a feature.
type Subscription struct {
	Feature string
	Topic   string
}

// MQTTSource holds the latest value received for each subscribed feature.
// Read returns the held values on every call, so a feature whose sensor goes
// quiet keeps being evaluated at its last value.
type MQTTSource struct {
	client paho.Client
	subs   []Subscription

	mu     sync.Mutex
	latest map[string]float64
}

// NewMQTTSource connects and subscribes to every topic. Subscriptions are
// renewed on each reconnect.
func NewMQTTSource(o mqtt.Options, subs []Subscription) (*MQTTSource, error) {
	s := newMQTTSource(subs)

	opts := mqtt.NewClientOptions(o).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("source: mqtt connection lost: %v", err)
		}).
		SetOnConnectHandler(s.subscribe)

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("source: broker %s not reachable yet, retrying in background", o.Broker)
		return s, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return s, nil
}

func newMQTTSource(subs []Subscription) *MQTTSource {
	return &MQTTSource{
		subs:   subs,
		latest: make(map[string]float64, len(subs)),
	}
}

func (s *MQTTSource) subscribe(c paho.Client) {
	for _, sub := range s.subs {
		feature := sub.Feature
		token := c.Subscribe(sub.Topic, 0, func(_ paho.Client, msg paho.Message) {
			s.handle(feature, msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			log.Printf("source: subscribe %s: %v", sub.Topic, token.Error())
			continue
		}
		log.Printf("source: subscribed %s -> %s", sub.Topic, sub.Feature)
	}
}

// handle stores a payload for a feature. Non-numeric payloads such as
// "unavailable", and NaN or Inf, are dropped and the previous value is kept.
func (s *MQTTSource) handle(feature string, payload []byte) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	s.mu.Lock()
	s.latest[feature] = v
	s.mu.Unlock()
}

// Read returns the latest value of each feature that has received one, in
// subscription order.
func (s *MQTTSource) Read() ([]logic.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := make([]logic.Sample, 0, len(s.latest))
	for _, sub := range s.subs {
		if v, ok := s.latest[sub.Feature]; ok {
			samples = append(samples, logic.Sample{Feature: sub.Feature, Value: v})
		}
	}
	return samples, nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() error {
	if s.client != nil {
		s.client.Disconnect(250)
	}
	return nil
}
