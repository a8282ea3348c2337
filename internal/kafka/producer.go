package kafka

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/Ifsling/os-in-website/internal/sessions"
)

const (
	TopicArcadeEvents = "arcade-events"
)

// EventType represents the type of arcade event
type EventType string

const (
	EventSessionOpen EventType = "session_open"
	EventAction      EventType = "action"
	EventRoundEnd    EventType = "round_end"
)

// ArcadeEvent is the envelope written to the topic
type ArcadeEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// SessionOpenData contains data for session open events
type SessionOpenData struct {
	Kind   sessions.Kind `json:"kind"`
	Player string        `json:"player"`
}

// ActionData contains data for action events
type ActionData struct {
	Kind   sessions.Kind   `json:"kind"`
	Player string          `json:"player"`
	Action sessions.Action `json:"action"`
}

// Producer handles Kafka event production
type Producer struct {
	producer sarama.SyncProducer
	enabled  bool
}

// NewProducer connects to brokers. When they are unreachable it returns a
// disabled producer whose Emit methods do nothing
func NewProducer(brokers []string) *Producer {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		log.WithField("component", "kafka").WithError(err).Warn("producer not available, events disabled")
		return &Producer{enabled: false}
	}

	log.WithFields(log.Fields{"component": "kafka", "brokers": brokers}).Info("producer connected")
	return newProducer(producer)
}

func newProducer(p sarama.SyncProducer) *Producer {
	return &Producer{producer: p, enabled: true}
}

// EmitSessionOpen emits a session open event
func (p *Producer) EmitSessionOpen(s *sessions.Session) {
	if !p.enabled {
		return
	}
	p.send(ArcadeEvent{
		Type:      EventSessionOpen,
		SessionID: s.ID,
		Timestamp: time.Now(),
		Data:      SessionOpenData{Kind: s.Kind, Player: s.Player},
	})
}

// EmitAction emits an accepted player action
func (p *Producer) EmitAction(s *sessions.Session, a sessions.Action) {
	if !p.enabled {
		return
	}
	p.send(ArcadeEvent{
		Type:      EventAction,
		SessionID: s.ID,
		Timestamp: time.Now(),
		Data:      ActionData{Kind: s.Kind, Player: s.Player, Action: a},
	})
}

// EmitRoundEnd emits a finished round
func (p *Producer) EmitRoundEnd(r sessions.Result) {
	if !p.enabled {
		return
	}
	p.send(ArcadeEvent{
		Type:      EventRoundEnd,
		SessionID: r.SessionID,
		Timestamp: r.FinishedAt,
		Data:      r,
	})
}

// send sends an event to Kafka
func (p *Producer) send(event ArcadeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("error marshaling event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: TopicArcadeEvents,
		Key:   sarama.StringEncoder(event.SessionID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.WithFields(log.Fields{"component": "kafka", "event": event.Type}).WithError(err).Error("error sending event")
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// IsEnabled returns whether Kafka is enabled
func (p *Producer) IsEnabled() bool {
	return p.enabled
}
