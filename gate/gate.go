// Package gate decides which of the login, onboarding and dashboard pages a
// client belongs on, given its authentication status and whether it has
// completed onboarding.
package gate

// AuthStatus is the authentication status of a client
type AuthStatus string

const (
	// AuthLoading means the authentication status is not known yet
	AuthLoading AuthStatus = "loading"
	// AuthUnauthenticated means the client has no valid session
	AuthUnauthenticated AuthStatus = "unauthenticated"
	// AuthAuthenticated means the client has a valid session
	AuthAuthenticated AuthStatus = "authenticated"
)

// State is the combined navigation state of a client
type State int

const (
	// Loading is the state while signals are still being resolved
	Loading State = iota
	// Unauthenticated is the state of clients without a session
	Unauthenticated
	// AuthenticatedNotOnboarded is the state of clients that must complete onboarding
	AuthenticatedNotOnboarded
	// AuthenticatedOnboarded is the state of clients that may use the application
	AuthenticatedOnboarded
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedNotOnboarded:
		return "authenticated-not-onboarded"
	case AuthenticatedOnboarded:
		return "authenticated-onboarded"
	}
	return "unknown"
}

// Page identifies one of the terminal pages of the navigation table
type Page string

const (
	// PageNone means no page is selected and no redirect should happen
	PageNone Page = ""
	// PageLogin is the login page
	PageLogin Page = "login"
	// PageOnboarding is the first-run preferences page
	PageOnboarding Page = "onboarding"
	// PageDashboard is the main application page
	PageDashboard Page = "dashboard"
)

// Resolve combines the authentication status with the onboarded flag. The
// authentication status takes precedence: the onboarded flag is only
// considered for authenticated clients.
func Resolve(auth AuthStatus, onboarded bool) State {
	switch auth {
	case AuthAuthenticated:
		if onboarded {
			return AuthenticatedOnboarded
		}
		return AuthenticatedNotOnboarded
	case AuthUnauthenticated:
		return Unauthenticated
	}
	return Loading
}

// Target returns the page clients in this state belong on. Loading clients
// have no target page.
func (s State) Target() Page {
	switch s {
	case Unauthenticated:
		return PageLogin
	case AuthenticatedNotOnboarded:
		return PageOnboarding
	case AuthenticatedOnboarded:
		return PageDashboard
	}
	return PageNone
}

// Decide returns the page a client currently on `current` must be sent to,
// and whether a redirect is needed at all
func Decide(current Page, s State) (Page, bool) {
	target := s.Target()
	if target == PageNone || target == current {
		return PageNone, false
	}
	return target, true
}
