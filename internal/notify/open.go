package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Channel backends accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendKafka  = "kafka"
)

// Config selects and configures a Channel backend.
type Config struct {
	Backend string
	Buffer  int
	Redis   RedisConfig
	Kafka   KafkaConfig
}

// Open creates the Channel named by cfg.Backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Channel, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(cfg.Buffer), nil
	case BackendRedis:
		r, err := NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendKafka:
		k, err := NewKafka(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

// Sender providers accepted by NewSender.
const (
	ProviderLog  = "log"
	ProviderHTTP = "http"
)

// NewSender creates the Sender named by provider.
func NewSender(provider string, cfg HTTPSenderConfig, logger *slog.Logger) (Sender, error) {
	switch provider {
	case ProviderLog, "":
		return NewLogSender(logger), nil
	case ProviderHTTP:
		s, err := NewHTTPSender(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", provider)
	}
}
