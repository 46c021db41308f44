package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// SpotStateMessage je rozparsovaný payload "<lotId>|<spaceName>|<OCCUPIED|FREE>".
type SpotStateMessage struct {
	LotID     int64
	SpaceName string
	State     SpaceState
}

// LotEventMessage je rozparsovaný payload "<lotId>|<ENTRY|DEPARTURE>".
type LotEventMessage struct {
	LotID int64
	Kind  EntranceKind
}

func parseLotID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: lotId %q není číslo", ErrMalformedMessage, s)
	}
	return id, nil
}

// ParseSpotState rozparsuje zprávu o stavu místa.
func ParseSpotState(payload []byte) (SpotStateMessage, error) {
	parts := strings.Split(strings.TrimSpace(string(payload)), "|")
	if len(parts) != 3 {
		return SpotStateMessage{}, fmt.Errorf("%w: očekávám 3 pole, mám %d", ErrMalformedMessage, len(parts))
	}

	lotID, err := parseLotID(parts[0])
	if err != nil {
		return SpotStateMessage{}, err
	}
	if parts[1] == "" {
		return SpotStateMessage{}, fmt.Errorf("%w: prázdné jméno místa", ErrMalformedMessage)
	}
	state, err := ParseSpaceState(parts[2])
	if err != nil {
		return SpotStateMessage{}, err
	}
	return SpotStateMessage{LotID: lotID, SpaceName: parts[1], State: state}, nil
}

// ParseLotEvent rozparsuje zprávu o vjezdu/výjezdu.
func ParseLotEvent(payload []byte) (LotEventMessage, error) {
	parts := strings.Split(strings.TrimSpace(string(payload)), "|")
	if len(parts) != 2 {
		return LotEventMessage{}, fmt.Errorf("%w: očekávám 2 pole, mám %d", ErrMalformedMessage, len(parts))
	}

	lotID, err := parseLotID(parts[0])
	if err != nil {
		return LotEventMessage{}, err
	}
	kind, err := ParseEntranceKind(parts[1])
	if err != nil {
		return LotEventMessage{}, err
	}
	return LotEventMessage{LotID: lotID, Kind: kind}, nil
}

// Publisher je ta část Hubu, kterou Ingress potřebuje.
type Publisher interface {
	Publish(topicKey string, msg Message) int
}

// LiveStateSink dostává poslední stav místa po úspěšném zápisu (hot cache).
type LiveStateSink interface {
	SetSpaceState(ctx context.Context, lotID int64, rec SpaceStateRecord) error
	// Invalidate označí cache parkoviště za neúplnou, další čtení jde do úložiště.
	Invalidate(ctx context.Context, lotID int64) error
}

// Ingress zapouzdřuje zpracování jedné zprávy: parse -> zápis -> publikace.
type Ingress struct {
	store StateWriter
	dir   *Directory    // nil = bez cache číselníku
	hub   Publisher
	live  LiveStateSink // nil = bez hot cache

	spotTopic    string
	lotTopic     string
	writeTimeout time.Duration

	logger  *slog.Logger
	metrics *Metrics
}

// IngressConfig seskupuje závislosti Ingressu (Dependency Injection).
type IngressConfig struct {
	Store        StateWriter
	Directory    *Directory
	Hub          Publisher
	Live         LiveStateSink
	SpotTopic    string
	LotTopic     string
	WriteTimeout time.Duration
	Logger       *slog.Logger
	Metrics      *Metrics
}

func NewIngress(c IngressConfig) *Ingress {
	return &Ingress{
		store:        c.Store,
		dir:          c.Directory,
		hub:          c.Hub,
		live:         c.Live,
		spotTopic:    c.SpotTopic,
		lotTopic:     c.LotTopic,
		writeTimeout: c.WriteTimeout,
		logger:       c.Logger,
		metrics:      c.Metrics,
	}
}

// Handle zpracuje jednu zprávu a zaloguje výsledek. Chyba nikdy neukončí službu.
func (in *Ingress) Handle(ctx context.Context, topic string, payload []byte) {
	in.metrics.MessagesReceived.WithLabelValues(topic).Inc()

	_, err := in.Process(ctx, topic, payload)
	switch {
	case err == nil:
		in.metrics.MessagesProcessed.WithLabelValues(topic, "ok").Inc()
		in.logger.Debug("Zpráva zpracována", "topic", topic, "payload", string(payload))
	case isDropped(err):
		in.metrics.MessagesProcessed.WithLabelValues(topic, "rejected").Inc()
		in.logger.Warn("Zpráva odmítnuta", "topic", topic, "payload", string(payload), "důvod", err)
	default:
		in.metrics.MessagesProcessed.WithLabelValues(topic, "failed").Inc()
		in.logger.Error("Zpráva ztracena, zápis selhal", "topic", topic, "payload", string(payload), "error", err)
	}
}

// Process: parse -> (cache číselníku) -> trvalý zápis -> publikace do Hubu.
// Publikuje se AŽ po potvrzeném zápisu; při chybě zápisu se nepublikuje nic.
func (in *Ingress) Process(ctx context.Context, topic string, payload []byte) (DomainEvent, error) {
	var (
		ev  DomainEvent
		err error
	)
	switch topic {
	case in.spotTopic:
		ev, err = in.processSpotState(ctx, payload)
	case in.lotTopic:
		ev, err = in.processLotEvent(ctx, payload)
	default:
		return DomainEvent{}, fmt.Errorf("%w: neznámý topic %q", ErrMalformedMessage, topic)
	}
	if err != nil {
		return DomainEvent{}, err
	}

	in.publish(ev)
	return ev, nil
}

func (in *Ingress) processSpotState(ctx context.Context, payload []byte) (DomainEvent, error) {
	msg, err := ParseSpotState(payload)
	if err != nil {
		return DomainEvent{}, err
	}
	if in.dir != nil {
		if _, err := in.dir.ResolveSpace(ctx, msg.LotID, msg.SpaceName); err != nil {
			return DomainEvent{}, err
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, in.writeTimeout)
	defer cancel()

	start := time.Now()
	rec, err := in.store.RecordSpaceState(writeCtx, msg.LotID, msg.SpaceName, msg.State)
	in.metrics.WriteDuration.WithLabelValues("space_state").Observe(time.Since(start).Seconds())
	if err != nil {
		return DomainEvent{}, asWriteError(err)
	}

	if in.live != nil {
		// Hot cache není zdroj pravdy, její chyba zprávu nezahazuje.
		if err := in.live.SetSpaceState(writeCtx, msg.LotID, rec); err != nil {
			in.logger.Warn("Chyba update živé cache", "lot", msg.LotID, "space", rec.SpaceID, "error", err)
			// Cache teď drží starou hodnotu. Smažeme ji, čtení pak jde do úložiště a cache naplní znovu.
			invCtx, invCancel := context.WithTimeout(context.WithoutCancel(ctx), in.writeTimeout)
			if err := in.live.Invalidate(invCtx, msg.LotID); err != nil {
				in.logger.Warn("Nelze zneplatnit živou cache", "lot", msg.LotID, "error", err)
			}
			invCancel()
		}
	}

	return DomainEvent{
		Type:    EventSpotState,
		LotID:   msg.LotID,
		SpaceID: rec.SpaceID,
		State:   rec.State,
		Record:  &rec,
	}, nil
}

func (in *Ingress) processLotEvent(ctx context.Context, payload []byte) (DomainEvent, error) {
	msg, err := ParseLotEvent(payload)
	if err != nil {
		return DomainEvent{}, err
	}
	if in.dir != nil {
		if err := in.dir.CheckLot(ctx, msg.LotID); err != nil {
			return DomainEvent{}, err
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, in.writeTimeout)
	defer cancel()

	start := time.Now()
	rec, err := in.store.RecordLotEvent(writeCtx, msg.LotID, msg.Kind)
	in.metrics.WriteDuration.WithLabelValues("lot_event").Observe(time.Since(start).Seconds())
	if err != nil {
		return DomainEvent{}, asWriteError(err)
	}

	return DomainEvent{
		Type:   EventLotEvent,
		LotID:  msg.LotID,
		Kind:   rec.Kind,
		Record: &rec,
	}, nil
}

// asWriteError zajistí, že každá "neočekávaná" chyba úložiště nese ErrDurableWrite.
func asWriteError(err error) error {
	if isDropped(err) || errors.Is(err, ErrDurableWrite) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDurableWrite, err)
}

func (in *Ingress) publish(ev DomainEvent) {
	msg, err := NewMessage(ev.StreamName(), ev.Record)
	if err != nil {
		// Záznam je už uložený, jen ho nepošleme živě.
		in.logger.Error("Nelze serializovat událost", "event", ev.StreamName(), "error", err)
		return
	}
	n := in.hub.Publish(ev.TopicKey(), msg)
	in.logger.Debug("Událost publikována", "event", msg.Name, "subscribers", n)
}
