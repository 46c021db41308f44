package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][]string
}

func (p *recordingPublisher) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = map[string][]string{}
	}
	p.messages[topic] = append(p.messages[topic], payload.(string))
	return doneToken{}
}

func (p *recordingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[topic])
}

type staticRoster struct {
	roster Roster
	err    error
	calls  int
}

func (s *staticRoster) FetchRoster(context.Context) (Roster, error) {
	s.calls++
	return s.roster, s.err
}

func newTestSimulator(src rosterSource, pub publisher) *Simulator {
	return &Simulator{
		api:       src,
		gen:       NewGenerator(3),
		publisher: pub,
		spotTopic: "parking_spot_state",
		lotTopic:  "parking_lot",
		logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
}

func TestSimulator_PublishesBothStreams(t *testing.T) {
	pub := &recordingPublisher{}
	sim := newTestSimulator(&staticRoster{roster: Roster{{LotID: 1, Spaces: []string{"A1"}}}}, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sim.Run(ctx, 5*time.Millisecond, 10*time.Millisecond, time.Hour)
	}()

	require.Eventually(t, func() bool {
		return pub.count("parking_spot_state") >= 3 && pub.count("parking_lot") >= 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	pub.mu.Lock()
	defer pub.mu.Unlock()
	for _, p := range pub.messages["parking_spot_state"] {
		assert.Regexp(t, `^1\|A1\|(OCCUPIED|FREE)$`, p)
	}
}

func TestSimulator_RetriesRosterWhileEmpty(t *testing.T) {
	src := &staticRoster{err: errors.New("connection refused")}
	pub := &recordingPublisher{}
	sim := newTestSimulator(src, pub)

	sim.refresh(context.Background())
	sim.tickSpot()
	sim.tickLot(context.Background())
	assert.Equal(t, 2, src.calls)
	assert.Zero(t, pub.count("parking_spot_state"))
	assert.Zero(t, pub.count("parking_lot"))

	src.err = nil
	src.roster = Roster{{LotID: 2, Spaces: []string{"B1"}}}
	sim.tickLot(context.Background())
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, 1, pub.count("parking_lot"))

	// S rosterem už se při každém ticku znovu nenačítá.
	sim.tickLot(context.Background())
	assert.Equal(t, 3, src.calls)
}
