package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/Ifsling/os-in-website/internal/sessions"
)

const hourKeyLayout = "2006-01-02-15"

// AnalyticsMetrics holds aggregated analytics data
type AnalyticsMetrics struct {
	SessionsOpened  int64                     `json:"sessionsOpened"`
	TotalActions    int64                     `json:"totalActions"`
	TotalRounds     int64                     `json:"totalRounds"`
	TotalDurationMs int64                     `json:"totalDurationMs"`
	RoundsByKind    map[string]int            `json:"roundsByKind"`
	WinCounts       map[string]int            `json:"winCounts"`
	RoundsPerHour   map[string]int            `json:"roundsPerHour"`
	PlayerStats     map[string]*PlayerMetrics `json:"playerStats"`
}

// PlayerMetrics holds per-player analytics
type PlayerMetrics struct {
	Wins    int   `json:"wins"`
	Losses  int   `json:"losses"`
	Draws   int   `json:"draws"`
	Rounds  int   `json:"rounds"`
	Actions int64 `json:"actions"`
}

func newMetrics() *AnalyticsMetrics {
	return &AnalyticsMetrics{
		RoundsByKind:  make(map[string]int),
		WinCounts:     make(map[string]int),
		RoundsPerHour: make(map[string]int),
		PlayerStats:   make(map[string]*PlayerMetrics),
	}
}

// inboundEvent mirrors ArcadeEvent with the payload left undecoded
type inboundEvent struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Consumer handles Kafka event consumption for analytics
type Consumer struct {
	consumer sarama.ConsumerGroup
	metrics  *AnalyticsMetrics
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	now      func() time.Time
}

// NewConsumer creates a consumer in the analytics group
func NewConsumer(brokers []string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, "arcade-analytics", config)
	if err != nil {
		return nil, err
	}

	c := newConsumer()
	c.consumer = group
	return c, nil
}

func newConsumer() *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		metrics: newMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Start begins consuming events
func (c *Consumer) Start() {
	go func() {
		for {
			if err := c.consumer.Consume(c.ctx, []string{TopicArcadeEvents}, c); err != nil {
				log.WithField("component", "kafka").WithError(err).Error("consumer error")
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
	log.WithField("component", "kafka").Info("consumer started")
}

// Setup is called at the beginning of a new session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called at the end of a session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		c.processMessage(msg)
		session.MarkMessage(msg, "")
	}
	return nil
}

// processMessage handles a single event message
func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) {
	var event inboundEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.WithField("component", "kafka").WithError(err).Warn("dropping malformed event")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Type {
	case EventSessionOpen:
		c.metrics.SessionsOpened++
	case EventAction:
		c.handleAction(event)
	case EventRoundEnd:
		c.handleRoundEnd(event)
	}
}

func (c *Consumer) player(name string) *PlayerMetrics {
	pm := c.metrics.PlayerStats[name]
	if pm == nil {
		pm = &PlayerMetrics{}
		c.metrics.PlayerStats[name] = pm
	}
	return pm
}

// handleAction processes action events
func (c *Consumer) handleAction(event inboundEvent) {
	var data ActionData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return
	}
	c.metrics.TotalActions++
	if data.Player != "" {
		c.player(data.Player).Actions++
	}
}

// handleRoundEnd processes finished rounds
func (c *Consumer) handleRoundEnd(event inboundEvent) {
	var r sessions.Result
	if err := json.Unmarshal(event.Data, &r); err != nil {
		return
	}

	c.metrics.TotalRounds++
	c.metrics.TotalDurationMs += r.DurationMs
	c.metrics.RoundsByKind[string(r.Kind)]++
	c.metrics.RoundsPerHour[event.Timestamp.UTC().Format(hourKeyLayout)]++

	pm := c.player(r.Player)
	pm.Rounds++
	switch r.Outcome {
	case sessions.OutcomeWon:
		pm.Wins++
		c.metrics.WinCounts[r.Player]++
	case sessions.OutcomeLost:
		pm.Losses++
	case sessions.OutcomeDraw:
		pm.Draws++
	}
}

// GetMetrics returns a copy of the current metrics
func (c *Consumer) GetMetrics() *AnalyticsMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := newMetrics()
	out.SessionsOpened = c.metrics.SessionsOpened
	out.TotalActions = c.metrics.TotalActions
	out.TotalRounds = c.metrics.TotalRounds
	out.TotalDurationMs = c.metrics.TotalDurationMs
	for k, v := range c.metrics.RoundsByKind {
		out.RoundsByKind[k] = v
	}
	for k, v := range c.metrics.WinCounts {
		out.WinCounts[k] = v
	}
	for k, v := range c.metrics.RoundsPerHour {
		out.RoundsPerHour[k] = v
	}
	for k, v := range c.metrics.PlayerStats {
		pm := *v
		out.PlayerStats[k] = &pm
	}
	return out
}

// GetAverageRoundDuration returns the average round length in milliseconds
func (c *Consumer) GetAverageRoundDuration() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.metrics.TotalRounds == 0 {
		return 0
	}
	return float64(c.metrics.TotalDurationMs) / float64(c.metrics.TotalRounds)
}

// GetMostFrequentWinner returns the player with most wins. Ties go to the
// alphabetically first name
func (c *Consumer) GetMostFrequentWinner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	maxWins := 0
	winner := ""
	for player, wins := range c.metrics.WinCounts {
		if wins > maxWins || (wins == maxWins && player < winner) {
			maxWins = wins
			winner = player
		}
	}
	return winner
}

// GetRoundsPerHour returns rounds finished in each of the last 24 hours
func (c *Consumer) GetRoundsPerHour() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now().UTC()
	result := make(map[string]int, 24)
	for i := 0; i < 24; i++ {
		key := now.Add(-time.Duration(i) * time.Hour).Format(hourKeyLayout)
		result[key] = c.metrics.RoundsPerHour[key]
	}
	return result
}

// Stop stops the consumer
func (c *Consumer) Stop() {
	c.cancel()
	if c.consumer != nil {
		c.consumer.Close()
	}
}
