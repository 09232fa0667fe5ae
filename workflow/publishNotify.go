package workflow

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/pulsemark/social_backend/models"
)

// PublishOutcome is the terminal result handed to waiters once the post row
// has been persisted.
type PublishOutcome struct {
	PostId          int                  `json:"post_id"`
	Status          models.PostStatus    `json:"status"`
	PlatformPostId  string               `json:"platform_post_id,omitempty"`
	PlatformPostUrl string               `json:"platform_post_url,omitempty"`
	FailureReason   models.FailureReason `json:"failure_reason,omitempty"`
	ErrorMessage    string               `json:"error_message,omitempty"`
	WillRetry       bool                 `json:"will_retry"`
}

// Subscriptions lets callers block on a publish outcome with a bounded wait
// instead of polling the post row. Notify is called after the terminal state
// committed, so a waiter that times out can still fall back to a read.
type Subscriptions struct {
	mu      sync.Mutex
	waiters map[int][]chan PublishOutcome
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{waiters: map[int][]chan PublishOutcome{}}
}

// Notify delivers the outcome to every waiter on the post and clears them.
// Channels are buffered, so delivery never blocks the publisher.
func (s *Subscriptions) Notify(outcome PublishOutcome) {
	s.mu.Lock()
	chans := s.waiters[outcome.PostId]
	delete(s.waiters, outcome.PostId)
	s.mu.Unlock()

	for _, ch := range chans {
		ch <- outcome
	}
}

// Wait blocks until the post reaches a terminal publish state, the timeout
// elapses, or the context is cancelled. The bool reports whether an outcome
// arrived.
func (s *Subscriptions) Wait(ctx context.Context, postId int, timeout time.Duration) (PublishOutcome, bool) {
	ch := make(chan PublishOutcome, 1)
	s.mu.Lock()
	s.waiters[postId] = append(s.waiters[postId], ch)
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-ch:
		return outcome, true
	case <-timer.C:
	case <-ctx.Done():
	}

	s.mu.Lock()
	remaining := s.waiters[postId][:0]
	for _, c := range s.waiters[postId] {
		if c != ch {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 0 {
		delete(s.waiters, postId)
	} else {
		s.waiters[postId] = remaining
	}
	s.mu.Unlock()

	// A notify may have raced the timeout; prefer the outcome if it landed.
	select {
	case outcome := <-ch:
		return outcome, true
	default:
	}
	return PublishOutcome{}, false
}
