package main

import (
	"context"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// publisher je podmnožina mqtt.Client, kterou simulátor potřebuje.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// rosterSource vrací aktuální seznam parkovišť a míst.
type rosterSource interface {
	FetchRoster(ctx context.Context) (Roster, error)
}

// Simulator posílá náhodné zprávy senzorů přes MQTT. Server je zpracuje
// stejně jako zprávy ze skutečných senzorů (zápis, pak broadcast).
type Simulator struct {
	api       rosterSource
	gen       *Generator
	publisher publisher
	spotTopic string
	lotTopic  string
	logger    *slog.Logger

	roster Roster
}

// refresh načte roster. Při chybě si nechá ten předchozí.
func (s *Simulator) refresh(ctx context.Context) {
	roster, err := s.api.FetchRoster(ctx)
	if err != nil {
		s.logger.Warn("Nelze načíst parkoviště z API", "error", err)
		return
	}
	s.roster = roster
	s.logger.Info("Roster načten", "lots", len(roster))
}

func (s *Simulator) publish(topic, payload string) {
	// QoS 1, stejně jako odebírá server.
	token := s.publisher.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		s.logger.Warn("Publikace nepotvrzena včas", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Error("Chyba při publikaci do MQTT", "topic", topic, "error", err)
		return
	}
	s.logger.Debug("Zpráva odeslána", "topic", topic, "payload", payload)
}

func (s *Simulator) tickSpot() {
	if payload, ok := s.gen.SpotState(s.roster); ok {
		s.publish(s.spotTopic, payload)
	}
}

func (s *Simulator) tickLot(ctx context.Context) {
	// Dokud nemáme roster (server ještě nenaběhl), zkoušíme ho načíst častěji.
	if len(s.roster) == 0 {
		s.refresh(ctx)
	}
	if payload, ok := s.gen.LotEvent(s.roster); ok {
		s.publish(s.lotTopic, payload)
	}
}

// Run je hlavní smyčka. Skončí se zrušením ctx.
func (s *Simulator) Run(ctx context.Context, spotEvery, lotEvery, rosterEvery time.Duration) {
	s.refresh(ctx)

	spotTicker := time.NewTicker(spotEvery)
	defer spotTicker.Stop()
	lotTicker := time.NewTicker(lotEvery)
	defer lotTicker.Stop()
	rosterTicker := time.NewTicker(rosterEvery)
	defer rosterTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-spotTicker.C:
			s.tickSpot()
		case <-lotTicker.C:
			s.tickLot(ctx)
		case <-rosterTicker.C:
			s.refresh(ctx)
		}
	}
}
