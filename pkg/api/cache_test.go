package api

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCacheFetchCachesWithinTTL(t *testing.T) {
	t.Parallel()

	cache := NewResponseCache(time.Minute)
	defer cache.Close()

	calls := 0
	loader := func(context.Context) ([]byte, error) {
		calls++
		return []byte("payload"), nil
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		data, err := cache.Fetch(ctx, "k", loader)
		if err != nil {
			t.Fatalf("Fetch #%d: %v", i, err)
		}
		if string(data) != "payload" {
			t.Fatalf("Fetch #%d = %q", i, data)
		}
	}
	if calls != 1 {
		t.Fatalf("loader ran %d times, want 1", calls)
	}
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	cache := NewResponseCache(time.Minute)
	defer cache.Close()

	// Freeze then advance the injected clock past the TTL.
	base := time.Now()
	current := base
	cache.now = func() time.Time { return current }

	calls := 0
	loader := func(context.Context) ([]byte, error) {
		calls++
		return []byte("v"), nil
	}

	ctx := context.Background()
	if _, err := cache.Fetch(ctx, "k", loader); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	current = base.Add(2 * time.Minute)
	if _, err := cache.Fetch(ctx, "k", loader); err != nil {
		t.Fatalf("Fetch after expiry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("loader ran %d times, want 2 (entry should have expired)", calls)
	}
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	cache := NewResponseCache(time.Minute)
	defer cache.Close()

	boom := errors.New("boom")
	calls := 0
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := cache.Fetch(ctx, "k", func(context.Context) ([]byte, error) {
			calls++
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Fetch #%d err = %v, want boom", i, err)
		}
	}
	if calls != 2 {
		t.Fatalf("loader ran %d times, want 2", calls)
	}
}

func TestNilCachePassesThrough(t *testing.T) {
	t.Parallel()

	var cache *ResponseCache
	data, err := cache.Fetch(context.Background(), "k", func(context.Context) ([]byte, error) {
		return []byte("direct"), nil
	})
	if err != nil || string(data) != "direct" {
		t.Fatalf("nil cache Fetch = (%q, %v)", data, err)
	}
	cache.Close() // must not panic
}
