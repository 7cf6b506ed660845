package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// memStore is an in-memory RecipientStore with the same skip-on-conflict
// semantics as the SQL backends.
type memStore struct {
	mu        sync.Mutex
	rows      map[Recipient]struct{}
	order     []Recipient
	calls     int
	chunkSize int
	failWith  error
	ctxErr    error // ctx.Err() seen by the last BulkInsert
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[Recipient]struct{})}
}

func (s *memStore) BulkInsert(ctx context.Context, records []Recipient, chunkSize int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.ctxErr = ctx.Err()
	s.chunkSize = chunkSize
	if s.failWith != nil {
		return 0, PersistenceError("bulk insert", s.failWith)
	}

	inserted := 0
	for _, r := range records {
		if _, ok := s.rows[r]; ok {
			continue
		}
		s.rows[r] = struct{}{}
		s.order = append(s.order, r)
		inserted++
	}
	return inserted, nil
}

func (s *memStore) LookupPhonesByRegion(_ context.Context, regionCode string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return nil, s.failWith
	}
	phones := []string{}
	for _, r := range s.order {
		if r.RegionCode == regionCode {
			phones = append(phones, r.PhoneNumber)
		}
	}
	return phones, nil
}

type recordingHistory struct {
	mu   sync.Mutex
	runs []ImportRun
	err  error
}

func (h *recordingHistory) RecordImport(_ context.Context, run ImportRun) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.runs = append(h.runs, run)
	return nil
}

// recordingPublisher fails every Publish after failAfter successes when
// failAfter >= 0.
type recordingPublisher struct {
	mu        sync.Mutex
	msgs      []NotificationMessage
	failAfter int
	ctxErr    error
}

var errQueueDown = errors.New("queue down")

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{failAfter: -1}
}

func (p *recordingPublisher) Publish(ctx context.Context, msg NotificationMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ctxErr = ctx.Err()
	if p.failAfter >= 0 && len(p.msgs) >= p.failAfter {
		return errQueueDown
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type countingPruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
	called  chan struct{}
}

func (p *countingPruner) PruneImports(_ context.Context, before time.Time) (int64, error) {
	p.mu.Lock()
	p.cutoffs = append(p.cutoffs, before)
	p.mu.Unlock()

	select {
	case p.called <- struct{}{}:
	default:
	}
	return 3, p.err
}

func strPtr(s string) *string { return &s }
