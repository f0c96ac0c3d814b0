package gate

import (
	"context"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// OnboardingStore gives access to the onboarding completion flag of users.
// Implementations backed by the user record are authoritative.
type OnboardingStore interface {
	Onboarded(ctx context.Context, userID string) (bool, error)
	SetOnboarded(ctx context.Context, userID string) error
	ClearOnboarded(ctx context.Context, userID string) error
}

// CachedStore keeps an in-memory copy of the flags held by an authoritative
// OnboardingStore. Writes go to the authoritative store first; the copy is
// updated only once they succeed.
type CachedStore struct {
	backing OnboardingStore
	cache   *cache.Cache
}

// DefaultCacheExpiration is how long a cached flag is trusted before the
// authoritative store is consulted again
const DefaultCacheExpiration = 5 * time.Minute

// NewCachedStore returns a CachedStore in front of backing. A non-positive
// expiration selects DefaultCacheExpiration.
func NewCachedStore(backing OnboardingStore, expiration time.Duration) *CachedStore {
	if expiration <= 0 {
		expiration = DefaultCacheExpiration
	}
	return &CachedStore{
		backing: backing,
		cache:   cache.New(expiration, 2*expiration),
	}
}

// Onboarded implements OnboardingStore
func (s *CachedStore) Onboarded(ctx context.Context, userID string) (bool, error) {
	if value, present := s.cache.Get(userID); present {
		return value.(bool), nil
	}
	onboarded, err := s.backing.Onboarded(ctx, userID)
	if err != nil {
		return false, err
	}
	s.cache.SetDefault(userID, onboarded)
	return onboarded, nil
}

// SetOnboarded implements OnboardingStore
func (s *CachedStore) SetOnboarded(ctx context.Context, userID string) error {
	if err := s.backing.SetOnboarded(ctx, userID); err != nil {
		s.cache.Delete(userID)
		return err
	}
	s.cache.SetDefault(userID, true)
	return nil
}

// ClearOnboarded implements OnboardingStore
func (s *CachedStore) ClearOnboarded(ctx context.Context, userID string) error {
	err := s.backing.ClearOnboarded(ctx, userID)
	s.cache.Delete(userID)
	return err
}

// Invalidate drops the cached flag of a user, so that the next read goes to
// the authoritative store
func (s *CachedStore) Invalidate(userID string) {
	s.cache.Delete(userID)
}

// Len returns the number of cached flags
func (s *CachedStore) Len() int {
	return s.cache.ItemCount()
}
