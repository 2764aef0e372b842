package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// CHAT_SERVER_ADDR points at a running chat-router instance, e.g.
	// "localhost:18000". Leaving it empty skips the e2e suite.
	ServerAddr string `envconfig:"CHAT_SERVER_ADDR"`
	// E2E_ROOM_PREFIX avoids colliding with rooms other runs left behind
	RoomPrefix string `envconfig:"E2E_ROOM_PREFIX" default:"e2e"`
	Subject    string `envconfig:"E2E_SUBJECT" default:"0b54f8aa-0e2f-4f9a-9c1c-7d1fca1f0e2e"`
	Name       string `envconfig:"E2E_NAME" default:"E2E Runner"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
