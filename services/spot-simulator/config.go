package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config simulátoru senzorů. Stejné topicy jako parking-server.
type Config struct {
	MQTTBroker     string `env:"MQTT_BROKER" envDefault:"tcp://mosquitto:1883"`
	MQTTClientID   string `env:"MQTT_CLIENT_ID" envDefault:"spot-simulator"`
	SpotStateTopic string `env:"SPOT_STATE_TOPIC" envDefault:"parking_spot_state"`
	LotEventTopic  string `env:"LOT_EVENT_TOPIC" envDefault:"parking_lot"`

	// Odkud bereme seznam parkovišť a míst (snapshot API serveru).
	APIURL string `env:"API_URL" envDefault:"http://parking-server:5000"`

	SpotInterval  time.Duration `env:"SPOT_INTERVAL" envDefault:"500ms"`
	LotInterval   time.Duration `env:"LOT_INTERVAL" envDefault:"2s"`
	RosterRefresh time.Duration `env:"ROSTER_REFRESH" envDefault:"1m"`

	// Seed generátoru. 0 = podle času (každý běh jiná data).
	Seed uint64 `env:"SEED" envDefault:"0"`
}

func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("nelze načíst .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SpotInterval <= 0 || cfg.LotInterval <= 0 || cfg.RosterRefresh <= 0 {
		return Config{}, errors.New("intervaly musí být kladné")
	}
	return cfg, nil
}
