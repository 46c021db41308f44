package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func main() {
	// 1. Inicializace loggeru
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 2. Načtení konfigurace
	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("Kritická chyba: Neplatná konfigurace", "error", err)
		os.Exit(1)
	}
	logger.Info("Startuji Spot Simulator", "spot", cfg.SpotInterval, "lot", cfg.LotInterval, "api", cfg.APIURL)

	// 3. MQTT klient
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(30*time.Second) || token.Error() != nil {
		logger.Error("Selhalo připojení k MQTT", "error", token.Error())
		os.Exit(1) // Bez MQTT nemá smysl běžet
	}
	defer client.Disconnect(250)

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	sim := &Simulator{
		api:       NewAPIClient(cfg.APIURL),
		gen:       NewGenerator(seed),
		publisher: client,
		spotTopic: cfg.SpotStateTopic,
		lotTopic:  cfg.LotEventTopic,
		logger:    logger,
	}

	// 4. Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 5. Hlavní smyčka
	sim.Run(ctx, cfg.SpotInterval, cfg.LotInterval, cfg.RosterRefresh)
	logger.Info("Přijat signál ukončení, vypínám...")
}
