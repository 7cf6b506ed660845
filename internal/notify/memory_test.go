package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/JonMunkholm/regionalert/internal/core"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMessage(dest string) core.NotificationMessage {
	return core.NotificationMessage{
		ID:          "id-" + dest,
		RegionCode:  "75001",
		Destination: dest,
		Body:        "Flood warning",
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemory_PublishConsume(t *testing.T) {
	m := NewMemory(4)
	ctx := context.Background()

	for _, dest := range []string{"0600000001", "0600000002"} {
		if err := m.Publish(ctx, testMessage(dest)); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if got := m.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	_ = m.Close()

	var got []string
	if err := m.Consume(ctx, func(_ context.Context, msg core.NotificationMessage) {
		got = append(got, msg.Destination)
	}); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	if len(got) != 2 || got[0] != "0600000001" || got[1] != "0600000002" {
		t.Errorf("consumed %v, want both messages in order", got)
	}
}

func TestMemory_PublishAfterClose(t *testing.T) {
	m := NewMemory(1)
	_ = m.Close()
	_ = m.Close()

	if err := m.Publish(context.Background(), testMessage("0600000001")); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("Publish() error = %v, want ErrChannelClosed", err)
	}
}

func TestMemory_PublishBlocksWhenFull(t *testing.T) {
	m := NewMemory(1)
	if err := m.Publish(context.Background(), testMessage("0600000001")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Publish(ctx, testMessage("0600000002")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Publish() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestMemory_ConsumeStopsOnCancel(t *testing.T) {
	m := NewMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- m.Consume(ctx, func(context.Context, core.NotificationMessage) {})
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Consume() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Consume did not return after cancel")
	}
}
