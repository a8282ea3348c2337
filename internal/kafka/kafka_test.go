package kafka

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ifsling/os-in-website/internal/sessions"
)

func message(t *testing.T, event ArcadeEvent) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: TopicArcadeEvents, Value: data}
}

func roundEnd(player string, kind sessions.Kind, outcome sessions.Outcome, durationMs int64, at time.Time) ArcadeEvent {
	return ArcadeEvent{
		Type:      EventRoundEnd,
		SessionID: "s-" + player,
		Timestamp: at,
		Data: sessions.Result{
			Kind:       kind,
			Player:     player,
			Outcome:    outcome,
			DurationMs: durationMs,
			FinishedAt: at,
		},
	}
}

func TestConsumerAggregatesEvents(t *testing.T) {
	now := time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)
	c := newConsumer()
	c.now = func() time.Time { return now }

	session := &sessions.Session{ID: "s-ann", Kind: sessions.KindMinesweeper, Player: "ann"}
	events := []ArcadeEvent{
		{Type: EventSessionOpen, SessionID: session.ID, Timestamp: now, Data: SessionOpenData{Kind: session.Kind, Player: "ann"}},
		{Type: EventAction, SessionID: session.ID, Timestamp: now, Data: ActionData{Kind: session.Kind, Player: "ann", Action: sessions.Action{Type: sessions.ActionReveal}}},
		{Type: EventAction, SessionID: session.ID, Timestamp: now, Data: ActionData{Kind: session.Kind, Player: "ann", Action: sessions.Action{Type: sessions.ActionFlag}}},
		roundEnd("ann", sessions.KindMinesweeper, sessions.OutcomeWon, 3000, now),
		roundEnd("ann", sessions.KindTicTacToe, sessions.OutcomeDraw, 1000, now.Add(-2*time.Hour)),
		roundEnd("bob", sessions.KindTicTacToe, sessions.OutcomeWon, 2000, now),
		roundEnd("bob", sessions.KindHangman, sessions.OutcomeLost, 6000, now.Add(-30*time.Hour)),
	}
	for _, e := range events {
		c.processMessage(message(t, e))
	}
	c.processMessage(&sarama.ConsumerMessage{Value: []byte("{not json")})

	m := c.GetMetrics()
	assert.Equal(t, int64(1), m.SessionsOpened)
	assert.Equal(t, int64(2), m.TotalActions)
	assert.Equal(t, int64(4), m.TotalRounds)
	assert.Equal(t, map[string]int{"minesweeper": 1, "tictactoe": 2, "hangman": 1}, m.RoundsByKind)
	assert.Equal(t, map[string]int{"ann": 1, "bob": 1}, m.WinCounts)

	require.Contains(t, m.PlayerStats, "ann")
	assert.Equal(t, PlayerMetrics{Wins: 1, Draws: 1, Rounds: 2, Actions: 2}, *m.PlayerStats["ann"])
	assert.Equal(t, PlayerMetrics{Wins: 1, Losses: 1, Rounds: 2}, *m.PlayerStats["bob"])

	assert.Equal(t, 3000.0, c.GetAverageRoundDuration())
	assert.Equal(t, "ann", c.GetMostFrequentWinner(), "ties go to the first name")

	perHour := c.GetRoundsPerHour()
	assert.Len(t, perHour, 24)
	assert.Equal(t, 2, perHour["2024-05-01-15"])
	assert.Equal(t, 1, perHour["2024-05-01-13"])
	assert.NotContains(t, perHour, "2024-04-30-09", "older than a day")
}

func TestGetMetricsReturnsCopy(t *testing.T) {
	c := newConsumer()
	c.processMessage(message(t, roundEnd("ann", sessions.KindHangman, sessions.OutcomeWon, 10, time.Now())))

	m := c.GetMetrics()
	m.WinCounts["ann"] = 99
	m.PlayerStats["ann"].Wins = 99

	fresh := c.GetMetrics()
	assert.Equal(t, 1, fresh.WinCounts["ann"])
	assert.Equal(t, 1, fresh.PlayerStats["ann"].Wins)
}

func TestProducerEmitsKeyedEvents(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	p := newProducer(mock)

	session := &sessions.Session{ID: "abc", Kind: sessions.KindTwenty48, Player: "ann"}
	expectEvent := func(want EventType) {
		mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var e inboundEvent
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			if e.Type != want || e.SessionID != "abc" {
				return errors.New("unexpected event " + string(e.Type))
			}
			return nil
		})
	}
	expectEvent(EventSessionOpen)
	expectEvent(EventAction)
	expectEvent(EventRoundEnd)

	p.EmitSessionOpen(session)
	p.EmitAction(session, sessions.Action{Type: sessions.ActionSlide, Direction: "up"})
	p.EmitRoundEnd(sessions.Result{SessionID: "abc", Kind: sessions.KindTwenty48, Player: "ann", Outcome: sessions.OutcomeWon})

	assert.True(t, p.IsEnabled())
	require.NoError(t, p.Close())
}

func TestProducerSendFailureIsLogged(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newProducer(mock)
	assert.NotPanics(t, func() {
		p.EmitRoundEnd(sessions.Result{SessionID: "x", Outcome: sessions.OutcomeLost})
	})
	require.NoError(t, p.Close())
}

func TestDisabledProducerIsNoop(t *testing.T) {
	p := &Producer{}
	p.EmitSessionOpen(&sessions.Session{ID: "x"})
	p.EmitAction(&sessions.Session{ID: "x"}, sessions.Action{Type: sessions.ActionReset})
	p.EmitRoundEnd(sessions.Result{})
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Close())
}
