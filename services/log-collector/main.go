package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func main() {
	// 1. Vlastní logger (pouze na stdout, abychom viděli, že collector běží)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 2. Konfigurace
	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("Kritická chyba: Neplatná konfigurace", "error", err)
		os.Exit(1)
	}
	logger.Info("Startuji Log Collector", "dir", cfg.LogDir, "topic", cfg.LogTopic)

	// 3. Příprava adresáře pro logy
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		logger.Error("Nelze vytvořit adresář pro logy", "error", err)
		os.Exit(1)
	}
	sink := NewFileSink(cfg.LogDir, RotationPolicy{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	defer sink.Close()

	// 4. MQTT handler: každá zpráva = jeden řádek logu nějaké služby
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		service, err := ServiceFromTopic(msg.Topic())
		if err != nil {
			logger.Warn("Ignoruji zprávu se špatným formátem topicu", "topic", msg.Topic(), "důvod", err)
			return
		}
		if err := sink.Append(service, msg.Payload()); err != nil {
			logger.Error("Chyba při zápisu do souboru", "service", service, "error", err)
		}
	}

	// 5. Připojení k MQTT. Subscribe v OnConnect = i po reconnectu.
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(cfg.LogTopic, 0, handler); token.Wait() && token.Error() != nil {
			logger.Error("Subscribe selhal", "topic", cfg.LogTopic, "error", token.Error())
			return
		}
		logger.Info("Poslouchám logy", "topic", cfg.LogTopic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("Spojení s MQTT ztraceno", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(30*time.Second) || token.Error() != nil {
		logger.Error("MQTT Connection failed", "error", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	// 6. Čekání na signál ukončení
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Ukončuji Log Collector", "services", sink.Services())
}
