package main

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionKey(t *testing.T) {
	assert.Equal(t, "12", string(partitionKey([]byte("12|A1|FREE"))))
	assert.Equal(t, "12", string(partitionKey([]byte(" 12 |ENTRY"))))
	assert.Equal(t, "garbage", string(partitionKey([]byte("garbage"))))
	assert.Equal(t, "x1", string(partitionKey([]byte("x1|ENTRY"))))
}

func TestPartitionKey_SameLotSameQueue(t *testing.T) {
	// parseLotID přijme všechny tyto zápisy jako lot 1.
	d := NewDispatcher(8, 1, func(context.Context, string, []byte) {}, discardLogger())
	want := d.partition([]byte("1|ENTRY"))
	for _, p := range []string{"01|ENTRY", "+1|ENTRY", "001|DEPARTURE", "1|A1|FREE", " 1|A2|OCCUPIED"} {
		assert.Equal(t, "1", string(partitionKey([]byte(p))), p)
		assert.Equal(t, want, d.partition([]byte(p)), p)
	}
}

func TestDispatcher_KeepsPerLotOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string][]string{}
		wg   sync.WaitGroup
	)
	handle := func(_ context.Context, _ string, payload []byte) {
		defer wg.Done()
		key := string(partitionKey(payload))
		mu.Lock()
		seen[key] = append(seen[key], string(payload))
		mu.Unlock()
	}

	d := NewDispatcher(4, 8, handle, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	var want = map[string][]string{}
	for i := 0; i < 50; i++ {
		for lot := 1; lot <= 3; lot++ {
			p := fmt.Sprintf("%d|ENTRY|%d", lot, i)
			want[fmt.Sprint(lot)] = append(want[fmt.Sprint(lot)], p)
			wg.Add(1)
			require.NoError(t, d.Submit(ctx, "parking_lot", []byte(p)))
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, seen)
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	done := make(chan string, 2)
	handle := func(_ context.Context, _ string, payload []byte) {
		if string(payload) == "1|boom" {
			panic("boom")
		}
		done <- string(payload)
	}

	d := NewDispatcher(1, 4, handle, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	require.NoError(t, d.Submit(ctx, "t", []byte("1|boom")))
	require.NoError(t, d.Submit(ctx, "t", []byte("1|ENTRY")))

	select {
	case p := <-done:
		assert.Equal(t, "1|ENTRY", p)
	case <-time.After(time.Second):
		t.Fatal("worker po panice nepokračoval")
	}
}

func TestDispatcher_SubmitBlocksWhenFull(t *testing.T) {
	release := make(chan struct{})
	handle := func(context.Context, string, []byte) { <-release }

	d := NewDispatcher(1, 1, handle, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	// První zprávu drží worker, druhá zaplní frontu.
	require.NoError(t, d.Submit(ctx, "t", []byte("1|ENTRY")))
	require.Eventually(t, func() bool { return len(d.queues[0]) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Submit(ctx, "t", []byte("1|ENTRY")))

	short, shortCancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer shortCancel()
	err := d.Submit(short, "t", []byte("1|ENTRY"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	d.Stop()
	assert.ErrorIs(t, d.Submit(ctx, "t", []byte("1|ENTRY")), ErrDispatcherStopped)
}

func TestDispatcher_SubmitCopiesPayload(t *testing.T) {
	got := make(chan string, 1)
	d := NewDispatcher(1, 1, func(_ context.Context, _ string, p []byte) { got <- string(p) }, discardLogger())

	buf := []byte("1|ENTRY")
	require.NoError(t, d.Submit(context.Background(), "t", buf))
	copy(buf, "9|XXXXX")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	assert.Equal(t, "1|ENTRY", <-got)
}
