package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"3000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:3000"`
	JWTSecret  string `env:"JWT_SECRET,required"`

	Room      RoomConfig
	WebSocket WebSocketConfig
	Media     MediaConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
}

// RoomConfig - ограничения живой сессии комнаты
type RoomConfig struct {
	ChatCapacity      int  `env:"ROOM_CHAT_CAPACITY" envDefault:"200"`
	MaxChatBytes      int  `env:"ROOM_MAX_CHAT_BYTES" envDefault:"2048"`
	RequireMembership bool `env:"ROOM_REQUIRE_MEMBERSHIP" envDefault:"true"`
}

type WebSocketConfig struct {
	PingInterval    time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	PongWait        time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	WriteWait       time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	MaxMessageBytes int64         `env:"WS_MAX_MESSAGE_BYTES" envDefault:"16384"`
	SendBuffer      int           `env:"WS_SEND_BUFFER" envDefault:"64"`
}

// MediaConfig - выдача токенов для медиа-сервера.
// Secret пустой -> используется JWTSecret
type MediaConfig struct {
	Secret   string        `env:"MEDIA_TOKEN_SECRET"`
	Issuer   string        `env:"MEDIA_TOKEN_ISSUER" envDefault:"syncroom"`
	TokenTTL time.Duration `env:"MEDIA_TOKEN_TTL" envDefault:"1h"`
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"syncroom"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

// RedisConfig - кэш метаданных комнат. Пустой URL отключает кэш
type RedisConfig struct {
	URL     string        `env:"REDIS_URL"`
	RoomTTL time.Duration `env:"REDIS_ROOM_TTL" envDefault:"5m"`
}

func (r *RedisConfig) Enabled() bool {
	return r.URL != ""
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if c.Media.Secret == "" {
		c.Media.Secret = c.JWTSecret
	}

	if c.Room.ChatCapacity <= 0 {
		return nil, fmt.Errorf("ROOM_CHAT_CAPACITY must be positive, got %d", c.Room.ChatCapacity)
	}

	if c.Room.MaxChatBytes <= 0 {
		return nil, fmt.Errorf("ROOM_MAX_CHAT_BYTES must be positive, got %d", c.Room.MaxChatBytes)
	}

	// чат из MaxChatBytes символов в \uXXXX экранировании плюс конверт сообщения
	if minRead := MinMessageBytes(c.Room.MaxChatBytes); c.WebSocket.MaxMessageBytes < minRead {
		return nil, fmt.Errorf(
			"WS_MAX_MESSAGE_BYTES must be at least %d for ROOM_MAX_CHAT_BYTES=%d, got %d",
			minRead,
			c.Room.MaxChatBytes,
			c.WebSocket.MaxMessageBytes,
		)
	}

	if c.WebSocket.SendBuffer <= 0 {
		return nil, fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", c.WebSocket.SendBuffer)
	}

	return &c, nil
}

// MinMessageBytes - минимальный размер входящего ws сообщения, в который помещается чат максимальной длины
func MinMessageBytes(maxChatBytes int) int64 {
	return 6*int64(maxChatBytes) + 256
}
