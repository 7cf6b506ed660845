package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JonMunkholm/regionalert/internal/core"
)

// DefaultKafkaTopic carries one record per notification.
const DefaultKafkaTopic = "regionalert.notifications"

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka channel.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Kafka is a Channel over a Kafka topic. Records are keyed by destination,
// so messages to one phone number stay ordered within a partition. Offsets
// are committed after the handler returns.
type Kafka struct {
	writer    kafkaWriter
	newReader func() kafkaReader
	topic     string
	logger    *slog.Logger
}

// NewKafka creates a writer for the topic. Readers are created per Consume call.
func NewKafka(cfg KafkaConfig, logger *slog.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka channel requires at least one broker")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka channel requires a consumer group id")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultKafkaTopic
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}
	newReader := func() kafkaReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		})
	}
	return newKafka(writer, newReader, cfg.Topic, logger), nil
}

func newKafka(w kafkaWriter, newReader func() kafkaReader, topic string, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{writer: w, newReader: newReader, topic: topic, logger: logger}
}

// Publish implements core.Publisher.
func (k *Kafka) Publish(ctx context.Context, msg core.NotificationMessage) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Destination),
		Value: data,
		Time:  msg.CreatedAt,
	})
	if err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return ErrChannelClosed
		}
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}
	return nil
}

// Consume implements Channel.
func (k *Kafka) Consume(ctx context.Context, h Handler) error {
	reader := k.newReader()
	defer func() {
		if err := reader.Close(); err != nil {
			k.logger.Warn("kafka reader close failed", "error", err)
		}
	}()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", k.topic, err)
		}

		msg, err := decode(m.Value)
		if err != nil {
			k.logger.Error("dropping undecodable notification",
				"topic", m.Topic,
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
		} else {
			h(ctx, msg)
		}

		if err := reader.CommitMessages(context.WithoutCancel(ctx), m); err != nil {
			k.logger.Warn("kafka commit failed", "offset", m.Offset, "error", err)
		}
	}
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
