package directory

import (
	"context"
	"sync"
	"time"

	"github.com/mbeoliero/kit/log"

	"github.com/ecoloop/chatsync/internal/entity"
)

// Subscription is the cancellation handle of one live directory stream.
type Subscription struct {
	id  string
	uid string
	hub *Hub

	observer Observer
	kick     chan struct{}
	stop     chan struct{}

	cancelOnce sync.Once

	// mu orders emissions against cancellation: once Cancel has taken the
	// lock and flipped closed, no further observer invocation can start,
	// and an in-flight invocation has already finished.
	mu           sync.Mutex
	closed       bool
	lastSnapshot []*entity.ConversationView
}

// Cancel stops the stream. It is idempotent and never panics, even after
// the hub is gone. When Cancel returns, the observer will not be invoked
// again.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.stop)
	})

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.remove(s)
	}
}

// LastSnapshot returns the most recent snapshot delivered, nil before the
// first emission.
func (s *Subscription) LastSnapshot() []*entity.ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSnapshot
}

// emit delivers a snapshot unless the subscription was cancelled
func (s *Subscription) emit(snapshot []*entity.ConversationView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastSnapshot = snapshot
	s.observer(snapshot)
}

// loop serves refresh requests until cancelled. Each request re-projects
// the full directory; a failing projection keeps the last good snapshot
// and retries with exponential backoff instead of surfacing the failure.
func (s *Subscription) loop(ctx context.Context) {
	backoff := s.hub.retryInitial

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			s.Cancel()
			return
		case <-s.kick:
		}

		for {
			views, err := s.hub.lister.ListViews(ctx, s.uid)
			if err == nil {
				if views == nil {
					views = []*entity.ConversationView{}
				}
				s.emit(views)
				backoff = s.hub.retryInitial
				break
			}

			log.CtxWarn(ctx, "directory projection failed, retrying: uid=%s, backoff=%s, error=%v",
				s.uid, backoff, err)

			timer := time.NewTimer(backoff)
			select {
			case <-s.stop:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				s.Cancel()
				return
			case <-timer.C:
			}

			backoff *= 2
			if backoff > s.hub.retryMax {
				backoff = s.hub.retryMax
			}
		}
	}
}
