package cart

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrStoreClosed = errors.New("cart store closed")

// persistState is guarded by Store.mu. A single writer goroutine drains dirty state,
// so saves are issued in revision order and a superseded record is never written.
type persistState struct {
	dirty     bool
	inFlight  bool
	savedRev  uint64
	failedRev uint64
	lastErr   error
	closed    bool

	// changed is closed and replaced after every save attempt.
	changed chan struct{}
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func (s *Store) startWriter() {
	s.changed = make(chan struct{})
	s.wake = make(chan struct{}, 1)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.runWriter()
}

// commitLocked bumps the revision and marks the state for the writer.
func (s *Store) commitLocked() {
	s.revision++
	if s.closed {
		return
	}
	s.dirty = true
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) runWriter() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.drain()
		case <-s.stop:
			s.drain()
			return
		}
	}
}

func (s *Store) drain() {
	for {
		s.mu.Lock()
		if !s.dirty {
			s.mu.Unlock()
			return
		}
		s.dirty = false
		s.inFlight = true
		// The record is taken from the live state so the newest revision wins.
		record := s.recordLocked()
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
		err := s.repo.Save(ctx, record)
		cancel()

		s.mu.Lock()
		s.inFlight = false
		if err != nil {
			s.failedRev = record.Revision
			s.lastErr = err
			s.log.Error("failed to persist cart",
				zap.Uint64("revision", record.Revision),
				zap.Error(err),
			)
		} else if record.Revision > s.savedRev {
			s.savedRev = record.Revision
			if s.failedRev <= s.savedRev {
				s.lastErr = nil
			}
		}
		close(s.changed)
		s.changed = make(chan struct{})
		s.mu.Unlock()
	}
}

// Flush blocks until the revision current at the call is durable, the save of it
// (or a later one) failed with nothing newer pending, or ctx is done.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	target := s.revision
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if s.savedRev >= target {
			s.mu.Unlock()
			return nil
		}
		if s.lastErr != nil && s.failedRev >= target && !s.dirty && !s.inFlight {
			err := s.lastErr
			s.mu.Unlock()
			return err
		}
		if s.closed && s.dirty {
			s.mu.Unlock()
			return ErrStoreClosed
		}
		ch := s.changed
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			s.mu.Lock()
			saved, err := s.savedRev >= target, s.lastErr
			s.mu.Unlock()
			if saved {
				return nil
			}
			if err != nil {
				return err
			}
			return ErrStoreClosed
		}
	}
}

// Close flushes outstanding state and stops the writer. Mutations after Close
// are kept in memory only.
func (s *Store) Close(ctx context.Context) error {
	s.stopped.Do(func() { close(s.stop) })

	var err error
	select {
	case <-s.done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	s.closed = true
	if err == nil && s.savedRev < s.revision && s.lastErr != nil {
		err = s.lastErr
	}
	s.mu.Unlock()
	return err
}
