package main

import (
	"context"
	"fmt"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// logPublisher je podmnožina mqtt.Client, kterou writer potřebuje.
type logPublisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MqttLogWriter implementuje io.Writer a posílá řádky logu do MQTT (logs/<služba>).
//
// Logování nesmí blokovat aplikaci: Write jen vloží kopii řádku do bufferovaného
// kanálu, odesílá jedna goroutina (Run). Plný kanál = řádek se do MQTT nepošle
// (na stdout ho MultiWriter zapsal i tak).
type MqttLogWriter struct {
	topic   string
	lines   chan []byte
	dropped atomic.Int64
}

// NewMqttLogWriter vytvoří writer. Topic bude "logs/<serviceName>".
func NewMqttLogWriter(serviceName string, buffer int) *MqttLogWriter {
	return &MqttLogWriter{
		topic: fmt.Sprintf("logs/%s", serviceName),
		lines: make(chan []byte, buffer),
	}
}

// Write je metoda vyžadovaná rozhraním io.Writer.
func (w *MqttLogWriter) Write(p []byte) (int, error) {
	// Payload musíme zkopírovat, slog buffer 'p' znovu použije.
	line := make([]byte, len(p))
	copy(line, p)

	select {
	case w.lines <- line:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

// Dropped vrací počet řádků, které se do MQTT nevešly.
func (w *MqttLogWriter) Dropped() int64 { return w.dropped.Load() }

// Run odesílá řádky do MQTT, dokud neskončí ctx. Bez spojení řádky zahazuje,
// logy se nikam nebufferují (stdout je má).
func (w *MqttLogWriter) Run(ctx context.Context, client logPublisher) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-w.lines:
			if !client.IsConnectionOpen() {
				w.dropped.Add(1)
				continue
			}
			// QoS 0, Token.Wait() NEVOLÁME (fire-and-forget).
			client.Publish(w.topic, 0, false, line)
		}
	}
}
