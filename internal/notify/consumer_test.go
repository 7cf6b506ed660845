package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  map[string]string
	fail  map[string]bool
	ctxOK bool
}

func newRecordingSender(fail ...string) *recordingSender {
	s := &recordingSender{sent: make(map[string]string), fail: make(map[string]bool), ctxOK: true}
	for _, d := range fail {
		s.fail[d] = true
	}
	return s
}

func (s *recordingSender) Send(ctx context.Context, destination, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		s.ctxOK = false
	}
	if s.fail[destination] {
		return errors.New("provider rejected number")
	}
	s.sent[destination] = body
	return nil
}

func TestConsumer_DeliversAllAndSurvivesFailures(t *testing.T) {
	ch := NewMemory(16)
	ctx := context.Background()
	dests := []string{"0600000001", "0600000002", "0600000003", "0600000004"}
	for _, d := range dests {
		if err := ch.Publish(ctx, testMessage(d)); err != nil {
			t.Fatal(err)
		}
	}
	_ = ch.Close()

	sender := newRecordingSender("0600000002")
	c := NewConsumer(ch, sender, ConsumerConfig{Workers: 3, SendTimeout: time.Second}, discardLogger())

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := c.Stats(); got.Sent != 3 || got.Failed != 1 {
		t.Errorf("Stats() = %+v, want 3 sent, 1 failed", got)
	}
	for _, d := range []string{"0600000001", "0600000003", "0600000004"} {
		if sender.sent[d] != "Flood warning" {
			t.Errorf("destination %s got body %q", d, sender.sent[d])
		}
	}
}

func TestConsumer_FinishesInFlightSendAfterCancel(t *testing.T) {
	ch := NewMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	_ = ch.Publish(ctx, testMessage("0600000001"))

	started := make(chan struct{})
	var sendErr error
	sender := SenderFunc(func(sendCtx context.Context, _, _ string) error {
		close(started)
		time.Sleep(20 * time.Millisecond)
		sendErr = sendCtx.Err()
		return nil
	})

	c := NewConsumer(ch, sender, ConsumerConfig{Workers: 1}, discardLogger())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-started
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if sendErr != nil {
		t.Errorf("send context error = %v, want nil", sendErr)
	}
	if got := c.Stats().Sent; got != 1 {
		t.Errorf("Sent = %d, want 1", got)
	}
}

func TestNewConsumer_Defaults(t *testing.T) {
	c := NewConsumer(NewMemory(1), NewLogSender(discardLogger()), ConsumerConfig{}, nil)
	if c.cfg.Workers != 4 || c.cfg.SendTimeout != 10*time.Second {
		t.Errorf("defaults = %+v", c.cfg)
	}
}
