package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /parking-lots", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"name":"Fake Parking Model IoT","location":"Heraklion"},{"id":2,"name":"Example","location":"Heraklion"}]`))
	})
	mux.HandleFunc("GET /parking-lots/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1,"entries":3,"departures":1,"parkingSpaces":[{"id":1,"parkingLotId":1,"name":"A1","history":[]},{"id":2,"parkingLotId":1,"name":"A2","history":[]}]}`))
	})
	mux.HandleFunc("GET /parking-lots/2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":2,"entries":0,"departures":0,"parkingSpaces":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIClient_FetchRoster(t *testing.T) {
	srv := newFakeAPI(t)
	client := NewAPIClient(srv.URL)

	roster, err := client.FetchRoster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Roster{
		{LotID: 1, Spaces: []string{"A1", "A2"}},
		{LotID: 2},
	}, roster)
}

func TestAPIClient_StatusError(t *testing.T) {
	srv := newFakeAPI(t)
	client := NewAPIClient(srv.URL)

	_, err := client.GetLot(context.Background(), 99)
	assert.ErrorContains(t, err, "404")
}
