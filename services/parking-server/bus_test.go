package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBusClient zaznamenává volání SubscribeMultiple. Ostatní metody mqtt.Client
// test nevolá (embedded nil interface).
type fakeBusClient struct {
	mqtt.Client

	mu         sync.Mutex
	subscribes []map[string]byte
	handler    mqtt.MessageHandler
}

func (c *fakeBusClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribes = append(c.subscribes, filters)
	c.handler = callback
	return doneToken{}
}

// fakeBusMessage je zpráva z brokeru, jen s topicem a payloadem.
type fakeBusMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeBusMessage) Topic() string   { return m.topic }
func (m fakeBusMessage) Payload() []byte { return m.payload }

func testBusConfig() Config {
	return Config{
		MQTTBroker:     "tcp://localhost:1883",
		MQTTClientID:   "parking-server-test",
		SpotStateTopic: testSpotTopic,
		LotEventTopic:  testLotTopic,
	}
}

func TestBusOptions_SubscribesOnEveryConnect(t *testing.T) {
	metrics := NewMetrics()
	d := NewDispatcher(1, 1, func(context.Context, string, []byte) {}, discardLogger())
	opts := BusOptions(testBusConfig(), d, discardLogger(), metrics)
	require.NotNil(t, opts.OnConnect)
	require.NotNil(t, opts.OnConnectionLost)

	client := &fakeBusClient{}
	want := map[string]byte{testSpotTopic: 1, testLotTopic: 1}

	opts.OnConnect(client)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BusConnected))

	// Výpadek spojení: gauge spadne, počítadlo výpadků roste.
	opts.OnConnectionLost(client, errors.New("EOF"))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.BusConnected))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BusReconnects))

	// Po reconnectu paho zavolá OnConnect znovu a oba topicy se přihlásí znovu.
	opts.OnConnect(client)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BusConnected))

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, []map[string]byte{want, want}, client.subscribes)
}

func TestBusOptions_HandlerSubmitsToDispatcher(t *testing.T) {
	got := make(chan string, 1)
	d := NewDispatcher(2, 4, func(_ context.Context, topic string, payload []byte) {
		got <- topic + " " + string(payload)
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	opts := BusOptions(testBusConfig(), d, discardLogger(), NewMetrics())
	client := &fakeBusClient{}
	opts.OnConnect(client)
	require.NotNil(t, client.handler)

	client.handler(client, fakeBusMessage{topic: testLotTopic, payload: []byte("1|ENTRY")})

	select {
	case s := <-got:
		assert.Equal(t, "parking_lot 1|ENTRY", s)
	case <-time.After(time.Second):
		t.Fatal("zpráva se nedostala do Dispatcheru")
	}
}
