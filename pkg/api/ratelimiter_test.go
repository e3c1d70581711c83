package api

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterSerializesPerIP(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(0)
	ctx := context.Background()

	first, err := limiter.Acquire(ctx, "203.0.113.9", RequestGeneral)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	// Second request for the same IP must block until the first permit
	// is released.
	granted := make(chan *Permit, 1)
	go func() {
		p, err := limiter.Acquire(ctx, "203.0.113.9", RequestGeneral)
		if err != nil {
			t.Errorf("second Acquire: %v", err)
		}
		granted <- p
	}()

	select {
	case <-granted:
		t.Fatal("second permit granted while the first was held")
	case <-time.After(50 * time.Millisecond):
	}

	first.Release()

	select {
	case p := <-granted:
		p.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("second permit never granted after release")
	}
}

func TestRateLimiterIndependentIPs(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(0)
	ctx := context.Background()

	a, err := limiter.Acquire(ctx, "192.0.2.1", RequestGeneral)
	if err != nil {
		t.Fatalf("Acquire a: %v", err)
	}
	defer a.Release()

	done := make(chan struct{})
	go func() {
		b, err := limiter.Acquire(ctx, "192.0.2.2", RequestGeneral)
		if err != nil {
			t.Errorf("Acquire b: %v", err)
		}
		b.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("different IP blocked behind an unrelated permit")
	}
}

func TestRateLimiterAbandonedContext(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(0)

	held, err := limiter.Acquire(context.Background(), "198.51.100.7", RequestGeneral)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := limiter.Acquire(ctx, "198.51.100.7", RequestGeneral)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("queued Acquire returned nil error after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued Acquire did not observe cancellation")
	}

	held.Release()
}

func TestNilRateLimiterGrantsEverything(t *testing.T) {
	t.Parallel()

	var limiter *RateLimiter
	p, err := limiter.Acquire(context.Background(), "anyone", RequestHeavy)
	if err != nil {
		t.Fatalf("nil limiter Acquire: %v", err)
	}
	p.Release()
	p.Release() // double release must be harmless
}
