package main

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceFromTopic(t *testing.T) {
	tests := []struct {
		topic   string
		want    string
		wantErr bool
	}{
		{topic: "logs/parking-server", want: "parking-server"},
		{topic: "logs/spot-simulator/info", want: "spot-simulator"},
		{topic: "logs", wantErr: true},
		{topic: "logs/", wantErr: true},
		{topic: "logs/..", wantErr: true},
		{topic: "logs/.hidden", wantErr: true},
		{topic: `logs/a\b`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, err := ServiceFromTopic(tt.topic)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTopic)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileSink_AppendsPerService(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, RotationPolicy{MaxSizeMB: 1})

	require.NoError(t, sink.Append("parking-server", []byte(`{"msg":"a"}`+"\n")))
	require.NoError(t, sink.Append("parking-server", []byte(`{"msg":"b"}`)))
	require.NoError(t, sink.Append("spot-simulator", []byte(`{"msg":"c"}`)))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(filepath.Join(dir, "parking-server.log"))
	require.NoError(t, err)
	assert.Equal(t, "{\"msg\":\"a\"}\n{\"msg\":\"b\"}\n", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "spot-simulator.log"))
	require.NoError(t, err)
	assert.Equal(t, "{\"msg\":\"c\"}\n", string(data))
}

func TestFileSink_ConcurrentAppend(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, RotationPolicy{MaxSizeMB: 1})
	defer sink.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.NoError(t, sink.Append("svc", []byte("line")))
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(dir, "svc.log"))
	require.NoError(t, err)
	assert.Len(t, data, 200*len("line\n"))
	assert.Equal(t, []string{"svc"}, sink.Services())
}
