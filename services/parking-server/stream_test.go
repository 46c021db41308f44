package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseFrame struct {
	id    string
	event string
	data  string
}

// readSSEFrame přečte další událost, komentáře (heartbeat) přeskočí.
func readSSEFrame(t *testing.T, r *bufio.Reader) sseFrame {
	t.Helper()
	var f sseFrame
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")

		switch {
		case line == "":
			if f.event != "" {
				return f
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			f.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			f.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func (f *apiFixture) openSSE(t *testing.T, ctx context.Context, query string) *bufio.Reader {
	t.Helper()
	before := f.hub.Count()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/events"+query, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return f.hub.Count() == before+1 }, time.Second, 5*time.Millisecond)
	return bufio.NewReader(resp.Body)
}

func TestSSE_DeliversOnlySubscribedLot(t *testing.T) {
	f := newAPIFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := f.openSSE(t, ctx, "?lot=1")

	_, err := f.ingress.Process(ctx, testSpotTopic, []byte("2|B1|OCCUPIED"))
	require.NoError(t, err)
	_, err = f.ingress.Process(ctx, testSpotTopic, []byte("1|A1|OCCUPIED"))
	require.NoError(t, err)

	frame := readSSEFrame(t, stream)
	assert.Equal(t, "parking-spot/1", frame.event)
	assert.NotEmpty(t, frame.id)

	var rec SpaceStateRecord
	require.NoError(t, json.Unmarshal([]byte(frame.data), &rec))
	assert.Equal(t, StateOccupied, rec.State)
	assert.NotZero(t, rec.SpaceID)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestSSE_WildcardReceivesSpotAndLotEvents(t *testing.T) {
	f := newAPIFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := f.openSSE(t, ctx, "")

	_, err := f.ingress.Process(ctx, testSpotTopic, []byte("2|B1|FREE"))
	require.NoError(t, err)
	_, err = f.ingress.Process(ctx, testLotTopic, []byte("1|ENTRY"))
	require.NoError(t, err)

	assert.Equal(t, "parking-spot/2", readSSEFrame(t, stream).event)
	frame := readSSEFrame(t, stream)
	assert.Equal(t, "parking-lot/1", frame.event)

	var ev LotEvent
	require.NoError(t, json.Unmarshal([]byte(frame.data), &ev))
	assert.Equal(t, KindEntry, ev.Kind)
	assert.Equal(t, int64(1), ev.LotID)
}

func TestSSE_ClientDisconnectUnregisters(t *testing.T) {
	f := newAPIFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.openSSE(t, ctx, "?lot=1&lot=2")

	cancel()
	assert.Eventually(t, func() bool { return f.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	// Publikace po odpojení nikoho nezdrží.
	_, err := f.ingress.Process(context.Background(), testSpotTopic, []byte("1|A1|FREE"))
	require.NoError(t, err)
}

func TestSSE_SendsHeartbeat(t *testing.T) {
	f := newAPIFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := f.openSSE(t, ctx, "?lot=1")

	line, err := stream.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": heartbeat\n", line)
}

func (f *apiFixture) dialWS(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	before := f.hub.Count()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return f.hub.Count() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestWebSocket_DeliversFrames(t *testing.T) {
	f := newAPIFixture(t)
	conn := f.dialWS(t, "?lot=2")

	_, err := f.ingress.Process(context.Background(), testLotTopic, []byte("2|DEPARTURE"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame wsFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "parking-lot/2", frame.Event)
	assert.NotZero(t, frame.ID)

	var ev LotEvent
	require.NoError(t, json.Unmarshal(frame.Data, &ev))
	assert.Equal(t, KindDeparture, ev.Kind)
}

func TestWebSocket_CloseUnregisters(t *testing.T) {
	f := newAPIFixture(t)
	conn := f.dialWS(t, "")

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return f.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// dropSubscribers odpojí všechny odběratele stejnou cestou, jakou Hub odpojuje
// odběratele s plnou frontou.
func (f *apiFixture) dropSubscribers(t *testing.T) {
	t.Helper()
	f.hub.mu.Lock()
	subs := make([]*Subscription, 0, len(f.hub.registry))
	for _, sub := range f.hub.registry {
		subs = append(subs, sub)
	}
	f.hub.mu.Unlock()
	require.NotEmpty(t, subs)

	for _, sub := range subs {
		f.hub.drop(sub)
		assert.ErrorIs(t, sub.Err(), ErrSubscriberUnreachable)
	}
}

func TestSSE_DroppedSubscriberStreamEnds(t *testing.T) {
	f := newAPIFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stream := f.openSSE(t, ctx, "?lot=1")

	f.dropSubscribers(t)

	// Heartbeaty mohou ještě dorazit, pak server stream ukončí.
	var err error
	for err == nil {
		_, err = stream.ReadString('\n')
	}
	assert.True(t, errors.Is(err, io.EOF), "stream měl skončit, skončil s %v", err)
	assert.Equal(t, 0, f.hub.Count())
}

func TestWebSocket_DroppedSubscriberGetsTryAgainLater(t *testing.T) {
	f := newAPIFixture(t)
	conn := f.dialWS(t, "?lot=1")

	f.dropSubscribers(t)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "čekám close 1013, mám %v", err)
	assert.Equal(t, 0, f.hub.Count())
}
