package main

import (
	"context"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	subscribeTimeout = 10 * time.Second
	// Jak dlouho smí MQTT callback čekat na místo ve frontě Dispatcheru.
	submitTimeout = 30 * time.Second
)

// BusOptions sestaví nastavení MQTT klienta pro ingest.
//
// Při ztrátě spojení se paho sám znovu připojí (AutoReconnect) a OnConnect
// handler znovu přihlásí oba topicy. Zprávy poslané během výpadku jsou ztracené.
func BusOptions(cfg Config, dispatcher *Dispatcher, logger *slog.Logger, metrics *Metrics) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetKeepAlive(30 * time.Second)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		if err := dispatcher.Submit(ctx, msg.Topic(), msg.Payload()); err != nil {
			logger.Warn("Zpráva nepřijata do fronty", "topic", msg.Topic(), "error", err)
		}
	}

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		metrics.BusConnected.Set(1)
		logger.Info("Připojeno k MQTT", "broker", cfg.MQTTBroker)

		// Subscribe při KAŽDÉM připojení = re-subscribe po reconnectu.
		topics := map[string]byte{cfg.SpotStateTopic: 1, cfg.LotEventTopic: 1}
		token := c.SubscribeMultiple(topics, handler)
		if !token.WaitTimeout(subscribeTimeout) {
			logger.Error("Subscribe vypršel", "topics", topics)
			return
		}
		if err := token.Error(); err != nil {
			logger.Error("Subscribe selhal", "topics", topics, "error", err)
			return
		}
		logger.Info("Poslouchám na topicích", "spot", cfg.SpotStateTopic, "lot", cfg.LotEventTopic)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		metrics.BusConnected.Set(0)
		metrics.BusReconnects.Inc()
		logger.Error("Spojení s MQTT ztraceno, obnovuji", "error", err)
	})

	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("Zkouším se znovu připojit k MQTT", "broker", cfg.MQTTBroker)
	})

	return opts
}
