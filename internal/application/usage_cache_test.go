package application

import (
	"testing"
	"time"
)

func TestUsageCache_StoreAndGet(t *testing.T) {
	t.Parallel()

	cache := newUsageCache(time.Minute, 0, fixedNow)
	key := usageCacheKey("dept-1", day(t, "2024-03-11"))

	if _, ok := cache.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	cache.Store(key, 3)
	used, ok := cache.Get(key)
	if !ok || used != 3 {
		t.Fatalf("expected hit with used=3, got used=%d ok=%v", used, ok)
	}
}

func TestUsageCache_ExpiresEntries(t *testing.T) {
	t.Parallel()

	current := fixedNow()
	cache := newUsageCache(time.Minute, 0, func() time.Time { return current })
	key := usageCacheKey("dept-1", day(t, "2024-03-11"))

	cache.Store(key, 3)
	current = current.Add(2 * time.Minute)

	if _, ok := cache.Get(key); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestUsageCache_Invalidate(t *testing.T) {
	t.Parallel()

	cache := newUsageCache(time.Minute, 0, fixedNow)
	keyA := usageCacheKey("dept-1", day(t, "2024-03-11"))
	keyB := usageCacheKey("dept-2", day(t, "2024-03-11"))

	cache.Store(keyA, 1)
	cache.Store(keyB, 2)
	cache.Invalidate()

	if _, ok := cache.Get(keyA); ok {
		t.Fatal("expected keyA to be dropped")
	}
	if _, ok := cache.Get(keyB); ok {
		t.Fatal("expected keyB to be dropped")
	}
}

func TestUsageCache_BoundsEntries(t *testing.T) {
	t.Parallel()

	cache := newUsageCache(time.Minute, 2, fixedNow)
	cache.Store("a", 1)
	cache.Store("b", 2)
	cache.Store("c", 3)

	if len(cache.entries) > 2 {
		t.Fatalf("expected at most 2 entries, got %d", len(cache.entries))
	}
}

func TestUsageCache_KeySeparatesWeeks(t *testing.T) {
	t.Parallel()

	thisWeek := usageCacheKey("dept-1", day(t, "2024-03-11"))
	nextWeek := usageCacheKey("dept-1", day(t, "2024-03-18"))
	if thisWeek == nextWeek {
		t.Fatal("expected distinct keys for distinct weeks")
	}
}
