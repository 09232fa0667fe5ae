package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"bitbucket.org/pulsemark/social_backend/models"
)

func TestSubscriptionsDeliverOutcome(t *testing.T) {
	subs := NewSubscriptions()

	var wg sync.WaitGroup
	wg.Add(1)
	var got PublishOutcome
	var ok bool
	go func() {
		defer wg.Done()
		got, ok = subs.Wait(context.Background(), 7, 2*time.Second)
	}()

	// Let the waiter register before notifying.
	time.Sleep(20 * time.Millisecond)
	subs.Notify(PublishOutcome{PostId: 7, Status: models.PostStatusPublished, PlatformPostId: "fb_123"})
	wg.Wait()

	if !ok {
		t.Fatal("expected an outcome before the timeout")
	}
	if got.PostId != 7 || got.PlatformPostId != "fb_123" {
		t.Fatalf("unexpected outcome %+v", got)
	}
}

func TestSubscriptionsWaitTimesOut(t *testing.T) {
	subs := NewSubscriptions()
	start := time.Now()
	_, ok := subs.Wait(context.Background(), 9, 30*time.Millisecond)
	if ok {
		t.Fatal("expected timeout, got an outcome")
	}
	if time.Since(start) > time.Second {
		t.Fatal("wait ran far past its timeout")
	}
}

func TestSubscriptionsWaitHonorsContextCancel(t *testing.T) {
	subs := NewSubscriptions()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, ok := subs.Wait(ctx, 3, 5*time.Second)
	if ok {
		t.Fatal("expected cancellation, got an outcome")
	}
	if time.Since(start) > time.Second {
		t.Fatal("wait ignored context cancellation")
	}
}

func TestSubscriptionsMultipleWaitersAllNotified(t *testing.T) {
	subs := NewSubscriptions()

	const waiters = 4
	results := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			_, ok := subs.Wait(context.Background(), 11, 2*time.Second)
			results <- ok
		}()
	}

	time.Sleep(20 * time.Millisecond)
	subs.Notify(PublishOutcome{PostId: 11, Status: models.PostStatusFailed})

	for i := 0; i < waiters; i++ {
		if !<-results {
			t.Fatal("a waiter missed the outcome")
		}
	}
}

func TestSubscriptionsNotifyWithoutWaiters(t *testing.T) {
	subs := NewSubscriptions()
	// Must not panic or block.
	subs.Notify(PublishOutcome{PostId: 99, Status: models.PostStatusPublished})
}
