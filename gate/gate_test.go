package gate

import "testing"

func TestResolveTable(t *testing.T) {
	tests := []struct {
		auth      AuthStatus
		onboarded bool
		want      State
		target    Page
	}{
		{AuthLoading, false, Loading, PageNone},
		{AuthLoading, true, Loading, PageNone},
		{AuthUnauthenticated, false, Unauthenticated, PageLogin},
		{AuthUnauthenticated, true, Unauthenticated, PageLogin},
		{AuthAuthenticated, false, AuthenticatedNotOnboarded, PageOnboarding},
		{AuthAuthenticated, true, AuthenticatedOnboarded, PageDashboard},
	}

	for _, tt := range tests {
		got := Resolve(tt.auth, tt.onboarded)
		if got != tt.want {
			t.Errorf("Resolve(%s, %v) = %s, want %s", tt.auth, tt.onboarded, got, tt.want)
		}
		if got.Target() != tt.target {
			t.Errorf("%s.Target() = %q, want %q", got, got.Target(), tt.target)
		}
	}
}

func TestUnauthenticatedAlwaysGoesToLogin(t *testing.T) {
	for _, current := range []Page{PageNone, PageOnboarding, PageDashboard} {
		target, redirect := Decide(current, Resolve(AuthUnauthenticated, true))
		if !redirect || target != PageLogin {
			t.Errorf("from %q: got (%q, %v), want login", current, target, redirect)
		}
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		current  Page
		state    State
		target   Page
		redirect bool
	}{
		{PageDashboard, Loading, PageNone, false},
		{PageLogin, Loading, PageNone, false},
		{PageDashboard, AuthenticatedNotOnboarded, PageOnboarding, true},
		{PageOnboarding, AuthenticatedNotOnboarded, PageNone, false},
		{PageOnboarding, AuthenticatedOnboarded, PageDashboard, true},
		{PageDashboard, AuthenticatedOnboarded, PageNone, false},
		{PageLogin, AuthenticatedOnboarded, PageDashboard, true},
		{PageLogin, Unauthenticated, PageNone, false},
		{PageNone, AuthenticatedOnboarded, PageDashboard, true},
	}

	for _, tt := range tests {
		target, redirect := Decide(tt.current, tt.state)
		if target != tt.target || redirect != tt.redirect {
			t.Errorf("Decide(%q, %s) = (%q, %v), want (%q, %v)",
				tt.current, tt.state, target, redirect, tt.target, tt.redirect)
		}
	}
}

func TestTargetPagesAreFixedPoints(t *testing.T) {
	for _, s := range []State{Unauthenticated, AuthenticatedNotOnboarded, AuthenticatedOnboarded} {
		if _, redirect := Decide(s.Target(), s); redirect {
			t.Errorf("%s: the target page %q redirects again", s, s.Target())
		}
	}
}
