package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type memoryStore struct {
	mu    sync.Mutex
	flags map[string]bool
	reads int
	fail  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{flags: make(map[string]bool)}
}

func (s *memoryStore) Onboarded(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.fail != nil {
		return false, s.fail
	}
	return s.flags[userID], nil
}

func (s *memoryStore) SetOnboarded(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.flags[userID] = true
	return nil
}

func (s *memoryStore) ClearOnboarded(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	delete(s.flags, userID)
	return nil
}

func TestCachedStoreReadsThrough(t *testing.T) {
	backing := newMemoryStore()
	backing.flags["u1"] = true
	store := NewCachedStore(backing, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		onboarded, err := store.Onboarded(ctx, "u1")
		if err != nil || !onboarded {
			t.Fatalf("Onboarded() = %v, %v", onboarded, err)
		}
	}
	if backing.reads != 1 {
		t.Errorf("backing store read %d times, want 1", backing.reads)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestCachedStoreWritesThrough(t *testing.T) {
	backing := newMemoryStore()
	store := NewCachedStore(backing, 0)
	ctx := context.Background()

	if onboarded, _ := store.Onboarded(ctx, "u1"); onboarded {
		t.Fatal("new users are not onboarded")
	}
	if err := store.SetOnboarded(ctx, "u1"); err != nil {
		t.Fatalf("SetOnboarded failed: %v", err)
	}
	if !backing.flags["u1"] {
		t.Error("SetOnboarded did not reach the authoritative store")
	}
	if onboarded, _ := store.Onboarded(ctx, "u1"); !onboarded {
		t.Error("cached flag was not updated by SetOnboarded")
	}

	if err := store.ClearOnboarded(ctx, "u1"); err != nil {
		t.Fatalf("ClearOnboarded failed: %v", err)
	}
	if onboarded, _ := store.Onboarded(ctx, "u1"); onboarded {
		t.Error("flag still set after ClearOnboarded")
	}
}

func TestCachedStoreFailedWriteDropsCopy(t *testing.T) {
	backing := newMemoryStore()
	store := NewCachedStore(backing, 0)
	ctx := context.Background()

	store.Onboarded(ctx, "u1")
	backing.fail = errors.New("database is down")
	if err := store.SetOnboarded(ctx, "u1"); err == nil {
		t.Fatal("expected SetOnboarded to fail")
	}
	if store.Len() != 0 {
		t.Error("a failed write must not leave a cached flag behind")
	}

	backing.fail = nil
	if onboarded, _ := store.Onboarded(ctx, "u1"); onboarded {
		t.Error("the authoritative store was never updated, the flag must be unset")
	}
}

func TestCachedStoreInvalidate(t *testing.T) {
	backing := newMemoryStore()
	store := NewCachedStore(backing, 0)
	ctx := context.Background()

	store.Onboarded(ctx, "u1")
	backing.flags["u1"] = true
	if onboarded, _ := store.Onboarded(ctx, "u1"); onboarded {
		t.Fatal("expected the stale cached value before invalidation")
	}
	store.Invalidate("u1")
	if onboarded, _ := store.Onboarded(ctx, "u1"); !onboarded {
		t.Error("expected the authoritative value after invalidation")
	}
}
