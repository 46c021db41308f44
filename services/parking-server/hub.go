package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// Klíče v Hubu mají tvar "<kategorie>:<lotId>", "*" místo ID znamená všechna parkoviště.
const (
	spotStateCategory = "spot-state"
	lotEventCategory  = "lot-event"

	SpotStateAllKey = spotStateCategory + ":*"
	LotEventAllKey  = lotEventCategory + ":*"
)

func SpotStateKey(lotID int64) string { return fmt.Sprintf("%s:%d", spotStateCategory, lotID) }
func LotEventKey(lotID int64) string  { return fmt.Sprintf("%s:%d", lotEventCategory, lotID) }

// wildcardKey vrací "<kategorie>:*" pro daný klíč (nebo "" pro klíč bez kategorie).
func wildcardKey(key string) string {
	category, _, ok := strings.Cut(key, ":")
	if !ok {
		return ""
	}
	return category + ":*"
}

// hubShards: počet nezávislých zámků nad mapou topic -> odběratelé.
const hubShards = 16

// Message je jedna doručovaná jednotka živého streamu.
type Message struct {
	// Seq je pořadové číslo publikace v rámci procesu (SSE "id:").
	// Rostoucí je jen v rámci jednoho klíče. Wildcard odběratel dostává události
	// více parkovišť z různých workerů a Seq mezi nimi může přijít přeházené.
	Seq uint64

	Name string          // např. "parking-spot/1"
	Data json.RawMessage // JSON uloženého záznamu
}

// NewMessage serializuje záznam jednou, pro všechny odběratele.
func NewMessage(name string, record any) (Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return Message{}, fmt.Errorf("serializace události %s: %w", name, err)
	}
	return Message{Name: name, Data: data}, nil
}

// Subscription je registrace jednoho spojení v Hubu (handle z Register).
// Hub do fronty jen vkládá (nikdy neblokuje), spojení si ji samo vybírá.
type Subscription struct {
	id    string
	hub   *Hub
	queue chan Message
	done  chan struct{}

	keys      map[string]struct{} // chráněno hub.mu
	closeOnce sync.Once
	dropped   atomic.Bool
}

func (s *Subscription) ID() string { return s.id }

// Events je fronta doručených zpráv v pořadí publikace.
func (s *Subscription) Events() <-chan Message { return s.queue }

// Done se zavře, jakmile je odběratel odregistrován (ať už sám, nebo Hubem).
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err vrací ErrSubscriberUnreachable, pokud odběratele vyhodil Hub kvůli plné frontě.
func (s *Subscription) Err() error {
	if s.dropped.Load() {
		return ErrSubscriberUnreachable
	}
	return nil
}

// Close = hub.Unregister(s). Lze volat opakovaně.
func (s *Subscription) Close() { s.hub.Unregister(s) }

type hubShard struct {
	mu   sync.RWMutex
	subs map[string]map[string]*Subscription // topic -> subscriber ID -> handle
}

// Hub je in-memory pub/sub jádro: registr odběratelů podle topic klíčů.
//
// Zamykání: hub.mu (registr ID -> handle, klíče handle) se bere vždy PŘED zámkem shardu.
// Publish bere jen RLock shardu a nikdy nedrží zámek při vkládání do fronty.
type Hub struct {
	mu       sync.Mutex
	registry map[string]*Subscription
	shards   [hubShards]*hubShard

	queueSize int
	seq       atomic.Uint64

	logger  *slog.Logger
	metrics *Metrics
}

// NewHub vytvoří Hub. queueSize = kapacita fronty každého odběratele.
func NewHub(queueSize int, logger *slog.Logger, metrics *Metrics) *Hub {
	h := &Hub{
		registry:  make(map[string]*Subscription),
		queueSize: queueSize,
		logger:    logger,
		metrics:   metrics,
	}
	for i := range h.shards {
		h.shards[i] = &hubShard{subs: make(map[string]map[string]*Subscription)}
	}
	return h
}

func (h *Hub) shardFor(key string) *hubShard {
	f := fnv.New32a()
	f.Write([]byte(key))
	return h.shards[f.Sum32()%hubShards]
}

// Register přidá odběratele do zájmových množin všech klíčů.
// Opakované volání se stejným ID vrací stejný handle a jen doplní nové klíče.
func (h *Hub) Register(subscriberID string, topicKeys []string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.registry[subscriberID]
	if !ok {
		sub = &Subscription{
			id:    subscriberID,
			hub:   h,
			queue: make(chan Message, h.queueSize),
			done:  make(chan struct{}),
			keys:  make(map[string]struct{}),
		}
		h.registry[subscriberID] = sub
		h.metrics.Subscribers.Inc()
	}

	for _, key := range topicKeys {
		if _, joined := sub.keys[key]; joined {
			continue
		}
		sub.keys[key] = struct{}{}

		sh := h.shardFor(key)
		sh.mu.Lock()
		set := sh.subs[key]
		if set == nil {
			set = make(map[string]*Subscription)
			sh.subs[key] = set
		}
		set[subscriberID] = sub
		sh.mu.Unlock()
	}
	return sub
}

// Unregister odebere odběratele ze všech množin a zavře Done().
// Idempotentní, bezpečné souběžně s probíhajícím Publish.
func (h *Hub) Unregister(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.closeOnce.Do(func() {
		h.mu.Lock()
		if h.registry[sub.id] == sub {
			delete(h.registry, sub.id)
		}
		for key := range sub.keys {
			sh := h.shardFor(key)
			sh.mu.Lock()
			if set := sh.subs[key]; set != nil && set[sub.id] == sub {
				delete(set, sub.id)
				if len(set) == 0 {
					delete(sh.subs, key)
				}
			}
			sh.mu.Unlock()
		}
		h.mu.Unlock()

		// Frontu nezavíráme: souběžný Publish do ní může ještě vložit (a nikdo to nepřečte).
		close(sub.done)
		h.metrics.Subscribers.Dec()
	})
}

// snapshot vrací odběratele klíče a jeho wildcard klíče, každého nejvýše jednou.
func (h *Hub) snapshot(topicKey string) []*Subscription {
	keys := []string{topicKey}
	if wc := wildcardKey(topicKey); wc != "" && wc != topicKey {
		keys = append(keys, wc)
	}

	var targets []*Subscription
	seen := make(map[string]struct{})
	for _, key := range keys {
		sh := h.shardFor(key)
		sh.mu.RLock()
		for id, sub := range sh.subs[key] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			targets = append(targets, sub)
		}
		sh.mu.RUnlock()
	}
	return targets
}

// Publish doručí zprávu všem odběratelům klíče. Nikdy neblokuje na I/O:
// zprávu jen vloží do fronty odběratele. Plná fronta = odběratel je odpojen,
// ostatní tím nejsou nijak zdrženi. Vrací počet odběratelů, kterým byla vložena.
func (h *Hub) Publish(topicKey string, msg Message) int {
	msg.Seq = h.seq.Add(1)
	h.metrics.EventsPublished.WithLabelValues(categoryOf(topicKey)).Inc()

	var slow []*Subscription
	delivered := 0
	for _, sub := range h.snapshot(topicKey) {
		select {
		case <-sub.done:
			continue
		default:
		}

		select {
		case sub.queue <- msg:
			delivered++
		default:
			slow = append(slow, sub)
		}
	}
	h.metrics.EventsDelivered.Add(float64(delivered))

	// Odregistrace až po průchodu, mimo jakýkoliv zámek shardu.
	for _, sub := range slow {
		h.drop(sub)
	}
	return delivered
}

// drop odpojí odběratele, který nestíhá číst.
func (h *Hub) drop(sub *Subscription) {
	sub.dropped.Store(true)
	h.metrics.SubscribersDropped.Inc()
	h.logger.Info("Odběratel nestíhá, odpojuji", "subscriber", sub.id)
	h.Unregister(sub)
}

// Count vrací počet registrovaných odběratelů.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.registry)
}

// Close odregistruje všechny odběratele (při vypínání serveru).
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.registry))
	for _, sub := range h.registry {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.Unregister(sub)
	}
}

func categoryOf(key string) string {
	category, _, _ := strings.Cut(key, ":")
	return category
}
