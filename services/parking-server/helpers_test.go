package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// seededStore vrací MemoryStore s jedním parkovištěm (ID 1) a místy A1, A2.
func seededStore(t *testing.T) (*MemoryStore, ParkingLot, []ParkingSpace) {
	t.Helper()
	store := NewMemoryStore()
	lot, spaces := store.AddLot("Fake Parking Model IoT", "Heraklion", "A1", "A2")
	require.Equal(t, int64(1), lot.ID)
	return store, lot, spaces
}

// recv čeká na jednu zprávu z odběru.
func recv(t *testing.T, sub *Subscription) Message {
	t.Helper()
	select {
	case msg := <-sub.Events():
		return msg
	case <-time.After(time.Second):
		t.Fatal("zpráva nedorazila")
		return Message{}
	}
}

// assertNoMessage ověří, že ve frontě nic nečeká.
func assertNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case msg := <-sub.Events():
		t.Fatalf("neočekávaná zpráva %s", msg.Name)
	default:
	}
}
