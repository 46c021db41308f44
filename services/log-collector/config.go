package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config drží veškeré nastavení pro službu Log Collector.
// Všechny hodnoty jsou načítány z Environment proměnných (volitelně z .env).
type Config struct {
	// MQTT Konfigurace
	MQTTBroker   string `env:"MQTT_BROKER" envDefault:"tcp://mosquitto:1883"`
	MQTTClientID string `env:"MQTT_CLIENT_ID" envDefault:"log-collector"`

	// Topic, na kterém posloucháme logy. Očekáváme tvar "logs/<služba>[/...]".
	LogTopic string `env:"LOG_TOPIC" envDefault:"logs/#"`

	// Adresář, kam se zapisují soubory <služba>.log (v Dockeru volume).
	LogDir string `env:"LOG_DIR" envDefault:"/var/log/iot-app"`

	// Rotace souborů (lumberjack)
	MaxSizeMB  int  `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	MaxBackups int  `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int  `env:"LOG_MAX_AGE_DAYS" envDefault:"14"`
	Compress   bool `env:"LOG_COMPRESS" envDefault:"true"`
}

// LoadConfig načte konfiguraci. Chybějící .env není chyba.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("nelze načíst .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MaxSizeMB < 1 {
		return Config{}, fmt.Errorf("LOG_MAX_SIZE_MB musí být alespoň 1, je %d", cfg.MaxSizeMB)
	}
	if cfg.LogDir == "" {
		return Config{}, errors.New("LOG_DIR nesmí být prázdný")
	}
	return cfg, nil
}
