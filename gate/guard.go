package gate

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"
)

// Identity is what an Authenticator knows about the client of a request
type Identity struct {
	Status AuthStatus
	UserID string
}

// Authenticator finds out who the client of a request is
type Authenticator interface {
	Identify(r *http.Request) (Identity, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface
type AuthenticatorFunc func(r *http.Request) (Identity, error)

// Identify implements Authenticator
func (f AuthenticatorFunc) Identify(r *http.Request) (Identity, error) {
	return f(r)
}

// Guard is the single authority for navigation gating. Every guarded page is
// wrapped with Require, parameterized by the page it is.
type Guard struct {
	Auth  Authenticator
	Store OnboardingStore
	// Paths maps each terminal page to the URL path clients are redirected to
	Paths map[Page]string
	// StoreTimeout bounds how long the onboarding store may take to answer
	// before the client is shown the pending page
	StoreTimeout time.Duration
	// Pending serves clients in the Loading state; PendingHandler when nil
	Pending http.Handler
	Log     *log.Logger
}

type contextKey int

const (
	stateKey contextKey = iota
	identityKey
)

// Resolve computes the navigation state of the client of r
func (g *Guard) Resolve(r *http.Request) (State, Identity, error) {
	identity, err := g.Auth.Identify(r)
	if err != nil {
		return Loading, identity, err
	}
	if identity.Status != AuthAuthenticated {
		return Resolve(identity.Status, false), identity, nil
	}

	ctx := r.Context()
	if g.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.StoreTimeout)
		defer cancel()
	}
	onboarded, err := g.Store.Onboarded(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Loading, identity, nil
		}
		return Loading, identity, err
	}
	return Resolve(AuthAuthenticated, onboarded), identity, nil
}

// Require returns a middleware that only lets through clients whose target
// page is page, and redirects everyone else to their own target page
func (g *Guard) Require(page Page) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.handler(page, next)
	}
}

// Dispatch returns a handler that sends every client to its target page
func (g *Guard) Dispatch() http.Handler {
	return g.handler(PageNone, http.NotFoundHandler())
}

func (g *Guard) handler(page Page, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, identity, err := g.Resolve(r)
		if err != nil {
			g.Log.Println(err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if state == Loading {
			pending := g.Pending
			if pending == nil {
				pending = PendingHandler
			}
			pending.ServeHTTP(w, r)
			return
		}

		if target, redirect := Decide(page, state); redirect {
			// 303 so that form posts to a page the client no longer belongs on
			// turn into a plain GET of the target
			http.Redirect(w, r, g.Paths[target], http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), stateKey, state)
		ctx = context.WithValue(ctx, identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StateFromContext returns the state resolved by a Guard for the current request
func StateFromContext(ctx context.Context) (State, bool) {
	s, ok := ctx.Value(stateKey).(State)
	return s, ok
}

// IdentityFromContext returns the identity resolved by a Guard for the current request
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	i, ok := ctx.Value(identityKey).(Identity)
	return i, ok
}

// PendingHandler serves a page that reloads itself shortly
var PendingHandler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Refresh", "2")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html><html><head><title>Loading</title></head><body><div class="spinner" role="status">Loading…</div></body></html>`))
})
