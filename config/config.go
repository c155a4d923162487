package config

import (
	"encoding/json"
	"log"
	"os"
)

type Configuration struct {
	ApiPort string `json:"api_port"`
	LogPath string `json:"log_path"`

	Database string `json:"database"` // "sqlite3" ou "postgres"
	DbHost   string `json:"db_host"`
	DbPort   string `json:"db_port"`
	DbUser   string `json:"db_user"`
	DbName   string `json:"db_name"`
	DbPass   string `json:"db_pass"`

	Connection struct {
		PairingTTLSeconds int `json:"pairing_ttl_seconds"`
	} `json:"connection"`

	Delivery struct {
		WorkerTickMs        int `json:"worker_tick_ms"`
		HttpTimeoutMs       int `json:"http_timeout_ms"`
		DefaultAttempts     int `json:"default_attempts"`
		DefaultRetryDelayMs int `json:"default_retry_delay_ms"`
	} `json:"delivery"`

	Amqp struct {
		URL      string `json:"url"` // vazio = bus desabilitado
		Exchange string `json:"exchange"`
	} `json:"amqp"`
}

func Get(path string) Configuration {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	var c Configuration
	if err := json.Unmarshal(b, &c); err != nil {
		log.Fatal(err)
	}

	// defaults (pra evitar nil/zero chato)
	if c.ApiPort == "" {
		c.ApiPort = "8080"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/server.log"
	}
	if c.Database == "" {
		c.Database = "sqlite3"
	}
	if c.Connection.PairingTTLSeconds <= 0 {
		c.Connection.PairingTTLSeconds = 60
	}
	if c.Delivery.WorkerTickMs <= 0 {
		c.Delivery.WorkerTickMs = 500
	}
	if c.Delivery.HttpTimeoutMs <= 0 {
		c.Delivery.HttpTimeoutMs = 30000
	}
	if c.Delivery.DefaultAttempts <= 0 {
		c.Delivery.DefaultAttempts = 3
	}
	if c.Delivery.DefaultRetryDelayMs <= 0 {
		c.Delivery.DefaultRetryDelayMs = 5000
	}
	if c.Amqp.Exchange == "" {
		c.Amqp.Exchange = "benemax.events"
	}

	return c
}
