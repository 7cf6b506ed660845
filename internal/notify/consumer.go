package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/regionalert/internal/core"
	"github.com/JonMunkholm/regionalert/internal/metrics"
)

// ConsumerConfig configures a Consumer. Zero values use the defaults.
type ConsumerConfig struct {
	Workers     int           // default 4
	SendTimeout time.Duration // default 10s
}

// ConsumerStats counts delivery attempts since the consumer started.
type ConsumerStats struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}

// Consumer drains a Channel into a Sender using a fixed pool of workers.
// A failed send is logged and counted; it never stops the consumer.
type Consumer struct {
	channel Channel
	sender  Sender
	cfg     ConsumerConfig
	logger  *slog.Logger

	sent   atomic.Int64
	failed atomic.Int64
}

// NewConsumer creates a Consumer.
func NewConsumer(ch Channel, sender Sender, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{channel: ch, sender: sender, cfg: cfg, logger: logger}
}

// Run blocks until ctx is done or the channel is closed. Messages already
// handed to a worker are sent before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	jobs := make(chan core.NotificationMessage)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for msg := range jobs {
				c.deliver(ctx, id, msg)
			}
		}(i)
	}

	c.logger.Info("consumer started", "workers", c.cfg.Workers)
	err := c.channel.Consume(ctx, func(_ context.Context, msg core.NotificationMessage) {
		jobs <- msg
	})
	close(jobs)
	wg.Wait()

	stats := c.Stats()
	c.logger.Info("consumer stopped", "sent", stats.Sent, "failed", stats.Failed)
	return err
}

func (c *Consumer) deliver(ctx context.Context, worker int, msg core.NotificationMessage) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	err := c.sender.Send(sendCtx, msg.Destination, msg.Body)
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.failed.Add(1)
		metrics.NotificationsDelivered.WithLabelValues("failed").Inc()
		c.logger.Error("sms send failed",
			"worker", worker,
			"notification_id", msg.ID,
			"destination", msg.Destination,
			"error", err,
		)
		return
	}

	c.sent.Add(1)
	metrics.NotificationsDelivered.WithLabelValues("sent").Inc()
	c.logger.Debug("sms sent", "worker", worker, "notification_id", msg.ID, "destination", msg.Destination)
}

// Stats returns the delivery counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{Sent: c.sent.Load(), Failed: c.failed.Load()}
}
