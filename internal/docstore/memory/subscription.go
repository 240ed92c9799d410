package memory

import (
	"sync"

	"github.com/anonto42/socialicon/internal/docstore"
)

// subscription queues batches without blocking writers; a pump goroutine
// hands them to the consumer in order.
type subscription struct {
	store  *Store
	query  docstore.Query
	window map[string]uint64

	mu      sync.Mutex
	pending [][]docstore.Change
	failure error
	err     error

	wake      chan struct{}
	out       chan []docstore.Change
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func newSubscription(s *Store, q docstore.Query) *subscription {
	return &subscription{
		store:   s,
		query:   q,
		window:  make(map[string]uint64),
		wake:    make(chan struct{}, 1),
		out:     make(chan []docstore.Change),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *subscription) push(changes []docstore.Change) {
	s.mu.Lock()
	s.pending = append(s.pending, changes)
	s.mu.Unlock()
	s.signal()
}

func (s *subscription) fail(err error) {
	s.mu.Lock()
	if s.failure == nil {
		s.failure = err
	}
	s.mu.Unlock()
	s.signal()
}

func (s *subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) pump() {
	defer close(s.stopped)
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			batch := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()
			select {
			case s.out <- batch:
			case <-s.done:
				return
			}
			continue
		}
		if s.failure != nil {
			s.err = s.failure
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}

func (s *subscription) Changes() <-chan []docstore.Change { return s.out }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.store.unsubscribe(s)
	})
	<-s.stopped
	return nil
}
