package main

import (
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
)

// ErrDispatcherStopped: zprávu už nelze přijmout, služba se vypíná.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

type ingestJob struct {
	topic   string
	payload []byte
}

// HandleFunc zpracuje jednu zprávu (typicky Ingress.Handle).
type HandleFunc func(ctx context.Context, topic string, payload []byte)

// Dispatcher rozděluje zprávy do front podle lotId (první pole payloadu).
// Každou frontu čte právě jeden worker: všechny zápisy jednoho parkoviště
// jdou sériově v pořadí příchodu, různá parkoviště běží souběžně.
type Dispatcher struct {
	queues []chan ingestJob
	handle HandleFunc
	logger *slog.Logger

	stopped chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewDispatcher(workers, queueSize int, handle HandleFunc, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		queues:  make([]chan ingestJob, workers),
		handle:  handle,
		logger:  logger,
		stopped: make(chan struct{}),
	}
	for i := range d.queues {
		d.queues[i] = make(chan ingestJob, queueSize)
	}
	return d
}

// partitionKey vrací kanonický lotId z prvního pole payloadu ("01", "+1" i "1" -> "1"),
// stejně jak ho čte parseLotID. Nečíselné pole se vrací tak, jak přišlo:
// skončí v nějaké frontě a worker ho odmítne.
func partitionKey(payload []byte) []byte {
	field := payload
	if i := bytes.IndexByte(payload, '|'); i >= 0 {
		field = payload[:i]
	}
	field = bytes.TrimSpace(field)
	if id, err := strconv.ParseInt(string(field), 10, 64); err == nil {
		return strconv.AppendInt(nil, id, 10)
	}
	return field
}

func (d *Dispatcher) partition(payload []byte) int {
	f := fnv.New32a()
	f.Write(partitionKey(payload))
	return int(f.Sum32() % uint32(len(d.queues)))
}

// Start spustí workery. Skončí, když skončí ctx nebo se zavolá Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, q := range d.queues {
		d.wg.Add(1)
		go d.worker(ctx, i, q)
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int, q <-chan ingestJob) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopped:
			return
		case job := <-q:
			d.run(ctx, id, job)
		}
	}
}

// run chrání workera před panikou v jedné zprávě.
func (d *Dispatcher) run(ctx context.Context, id int, job ingestJob) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panika při zpracování zprávy", "worker", id, "topic", job.topic, "panic", r)
		}
	}()
	d.handle(ctx, job.topic, job.payload)
}

// Submit vloží zprávu do fronty jejího parkoviště. Plná fronta blokuje
// (backpressure k brokeru), dokud se neuvolní nebo nevyprší ctx.
func (d *Dispatcher) Submit(ctx context.Context, topic string, payload []byte) error {
	// Payload kopírujeme, MQTT knihovna může buffer znovu použít.
	job := ingestJob{topic: topic, payload: bytes.Clone(payload)}
	q := d.queues[d.partition(payload)]

	select {
	case <-d.stopped:
		return ErrDispatcherStopped
	default:
	}

	select {
	case q <- job:
		return nil
	case <-d.stopped:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop zastaví workery a počká na dokončení rozpracovaných zpráv.
// Zprávy ještě čekající ve frontách se zahodí (at-most-once).
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.stopped) })
	d.wg.Wait()
}
