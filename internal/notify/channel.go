// Package notify carries notifications from the dispatcher to SMS senders.
//
// A Channel decouples publishing from delivery: the dispatcher publishes
// one message per recipient and returns, while a Consumer drains the
// channel in the background and hands each message to a Sender.
//
// Backends:
//   - Memory: in-process buffered channel, lost on restart
//   - Redis: list queue (LPUSH/BRPOP), survives restarts of either side
//   - Kafka: topic partitioned by destination, consumer-group offsets
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/regionalert/internal/core"
)

// ErrChannelClosed is returned by Publish after Close.
var ErrChannelClosed = errors.New("notification channel closed")

// Handler processes one message. It must not retain msg after returning.
type Handler func(ctx context.Context, msg core.NotificationMessage)

// Channel is an asynchronous notification queue.
type Channel interface {
	core.Publisher

	// Consume calls h for every message until ctx is done or the channel
	// is closed, in which case it returns nil. Messages are handed to h one
	// at a time.
	Consume(ctx context.Context, h Handler) error

	Close() error
}

// Sender delivers one SMS.
type Sender interface {
	Send(ctx context.Context, destination, body string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, destination, body string) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, destination, body string) error {
	return f(ctx, destination, body)
}

func encode(msg core.NotificationMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode notification %s: %w", msg.ID, err)
	}
	return data, nil
}

func decode(data []byte) (core.NotificationMessage, error) {
	var msg core.NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return core.NotificationMessage{}, fmt.Errorf("decode notification: %w", err)
	}
	if msg.Destination == "" {
		return core.NotificationMessage{}, errors.New("decode notification: missing destination")
	}
	return msg, nil
}
