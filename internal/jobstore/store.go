package jobstore

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrEmptyQueue is returned when a queue name is missing.
var ErrEmptyQueue = errors.New("job queue name is required")

// Store remembers which jobs of a queue are still pending, so they can be resumed
// after the process restarts.
type Store interface {
	Add(ctx context.Context, queue, jobUUID string) error
	Remove(ctx context.Context, queue, jobUUID string) error
	// Pending returns the job uuids of queue in lexical order.
	Pending(ctx context.Context, queue string) ([]string, error)
}

// MemoryStore keeps pending jobs in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	queues map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[string]map[string]struct{})}
}

func (s *MemoryStore) Add(_ context.Context, queue, jobUUID string) error {
	if queue == "" {
		return ErrEmptyQueue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[queue]
	if !ok {
		q = make(map[string]struct{})
		s.queues[queue] = q
	}
	q[jobUUID] = struct{}{}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, queue, jobUUID string) error {
	if queue == "" {
		return ErrEmptyQueue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.queues[queue]; ok {
		delete(q, jobUUID)
		if len(q) == 0 {
			delete(s.queues, queue)
		}
	}
	return nil
}

func (s *MemoryStore) Pending(_ context.Context, queue string) ([]string, error) {
	if queue == "" {
		return nil, ErrEmptyQueue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.queues[queue]))
	for id := range s.queues[queue] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
