package main

import "time"

type Config struct {
	BufferSize           int           `env:"BUFFER_SIZE,default=1000"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=100"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	TelemetryInterval    time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`

	CorrectionURL       string        `env:"CORRECTION_URL,default=http://localhost:8000/correct"`
	CorrectionInterval  time.Duration `env:"CORRECTION_INTERVAL,default=1s"`
	CorrectionTimeout   time.Duration `env:"CORRECTION_TIMEOUT,default=5s"`
	CorrectionQueueSize int           `env:"CORRECTION_QUEUE_SIZE,default=1000"`
	DeliveryTimeout     time.Duration `env:"DELIVERY_TIMEOUT,default=3s"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	SearchLimit    int    `env:"SEARCH_LIMIT,default=20"`
	FlaggedWords   string `env:"FLAGGED_WORDS"`

	LogLevel  string `env:"LOG_LEVEL,default=INFO"`
	Host      string `env:"HOST,default=localhost"`
	Port      int    `env:"PORT,default=18000"`
	DebugPort int    `env:"DEBUG_PORT,default=18001"`
}
