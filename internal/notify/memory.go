package notify

import (
	"context"
	"sync"

	"github.com/JonMunkholm/regionalert/internal/core"
)

// DefaultBuffer is the Memory channel capacity when none is given.
const DefaultBuffer = 1024

// Memory is an in-process Channel backed by a buffered Go channel.
// Publish blocks only while the buffer is full.
type Memory struct {
	queue chan core.NotificationMessage
	done  chan struct{}
	once  sync.Once
}

// NewMemory creates a Memory channel holding up to buffer pending messages.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Memory{
		queue: make(chan core.NotificationMessage, buffer),
		done:  make(chan struct{}),
	}
}

// Publish implements core.Publisher.
func (m *Memory) Publish(ctx context.Context, msg core.NotificationMessage) error {
	select {
	case <-m.done:
		return ErrChannelClosed
	default:
	}

	select {
	case m.queue <- msg:
		return nil
	case <-m.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume implements Channel. After Close it delivers what is still
// buffered and then returns.
func (m *Memory) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-m.queue:
			h(ctx, msg)
		case <-m.done:
			for {
				select {
				case msg := <-m.queue:
					h(ctx, msg)
				default:
					return nil
				}
			}
		}
	}
}

// Len returns the number of buffered messages.
func (m *Memory) Len() int {
	return len(m.queue)
}

// Close stops accepting messages. It is safe to call more than once.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
