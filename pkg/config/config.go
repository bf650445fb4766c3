// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	GatewayAddr string `env:"GATEWAY_ADDR" envDefault:":8080"`
	APIAddr     string `env:"API_ADDR" envDefault:":8081"`

	ScyllaHosts []string `env:"SCYLLA_HOSTS" envSeparator:"," envDefault:"localhost:9042"`
	Keyspace    string   `env:"SCYLLA_KEYSPACE" envDefault:"huddle"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	// Empty broker list disables the Kafka firehose.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"huddle-events"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"huddle_dev_secret"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// PresenceTTL is the inactivity window after which a presence entry
	// expires when a disconnect notification is lost.
	PresenceTTL time.Duration `env:"PRESENCE_TTL" envDefault:"60s"`

	// SendQueue bounds each connection's outbound queue; overflow drops the
	// connection.
	SendQueue int `env:"SEND_QUEUE" envDefault:"256"`

	// NodeID must be unique per instance for snowflake id generation.
	NodeID int64 `env:"NODE_ID" envDefault:"1"`
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
