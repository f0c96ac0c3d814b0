package resource

import (
	"errors"
	"net/http"
	"time"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/gate"
	"github.com/campusplanner/campusplanner/transit"
	"github.com/gbl08ma/sqalx"
	"github.com/thoas/go-funk"
	"github.com/yarf-framework/yarf"
)

// SessionTerminator ends the session of the client of a request
type SessionTerminator interface {
	Logout(r *http.Request, w http.ResponseWriter) error
}

// cacheInvalidator is implemented by onboarding stores that keep copies of
// the flag, such as gate.CachedStore
type cacheInvalidator interface {
	Invalidate(userID string)
}

type apiUser struct {
	ID            string    `msgpack:"id" json:"id"`
	Email         string    `msgpack:"email" json:"email"`
	DisplayName   string    `msgpack:"displayName" json:"displayName"`
	Picture       string    `msgpack:"picture" json:"picture"`
	HomeStation   string    `msgpack:"homeStation" json:"homeStation"`
	Locale        string    `msgpack:"locale" json:"locale"`
	SetupComplete bool      `msgpack:"setupComplete" json:"setupComplete"`
	FeedToken     string    `msgpack:"feedToken" json:"feedToken"`
	Joined        time.Time `msgpack:"joined" json:"joined"`
}

func userToAPI(user *dataobjects.User) apiUser {
	return apiUser{
		ID:            user.ID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		Picture:       user.Picture,
		HomeStation:   user.HomeStation,
		Locale:        user.Locale,
		SetupComplete: user.SetupComplete,
		FeedToken:     user.FeedToken,
		Joined:        user.Joined,
	}
}

// Me composites resource
type Me struct {
	resource
	store      gate.OnboardingStore
	terminator SessionTerminator
}

// WithNode associates a sqalx Node with this resource
func (r *Me) WithNode(node sqalx.Node) *Me {
	r.node = node
	return r
}

// WithAuthenticator associates an Authenticator with this resource
func (r *Me) WithAuthenticator(auth gate.Authenticator) *Me {
	r.auth = auth
	return r
}

// WithStore associates an OnboardingStore with this resource
func (r *Me) WithStore(store gate.OnboardingStore) *Me {
	r.store = store
	return r
}

// WithSessionTerminator sets what ends the session after account deletion
func (r *Me) WithSessionTerminator(terminator SessionTerminator) *Me {
	r.terminator = terminator
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Me) Get(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}
	RenderData(c, userToAPI(user))
	return nil
}

// Delete serves HTTP DELETE requests on this resource, deleting the account
// and everything associated with it
func (r *Me) Delete(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	if err := user.Delete(r.node); err != nil {
		return RenderInternalError(c, err)
	}
	// the flag went away with the user row, drop any cached copy of it
	if invalidator, ok := r.store.(cacheInvalidator); ok {
		invalidator.Invalidate(user.ID)
	}
	if r.terminator != nil {
		if err := r.terminator.Logout(c.Request, c.Response); err != nil {
			Log.Println(err)
		}
	}
	c.Response.WriteHeader(http.StatusNoContent)
	return nil
}

// Onboarding composites resource
type Onboarding struct {
	resource
	store   gate.OnboardingStore
	planner *transit.Planner
}

type apiOnboardingRequest struct {
	HomeStation string      `msgpack:"homeStation" json:"homeStation"`
	Locale      string      `msgpack:"locale" json:"locale"`
	Courses     []apiCourse `msgpack:"courses" json:"courses"`
}

// WithNode associates a sqalx Node with this resource
func (r *Onboarding) WithNode(node sqalx.Node) *Onboarding {
	r.node = node
	return r
}

// WithAuthenticator associates an Authenticator with this resource
func (r *Onboarding) WithAuthenticator(auth gate.Authenticator) *Onboarding {
	r.auth = auth
	return r
}

// WithStore associates an OnboardingStore with this resource
func (r *Onboarding) WithStore(store gate.OnboardingStore) *Onboarding {
	r.store = store
	return r
}

// WithPlanner associates a Planner with this resource
func (r *Onboarding) WithPlanner(planner *transit.Planner) *Onboarding {
	r.planner = planner
	return r
}

// Post serves HTTP POST requests on this resource, completing onboarding
func (r *Onboarding) Post(c *yarf.Context) error {
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}

	var request apiOnboardingRequest
	if err := r.DecodeRequest(c, &request); err != nil {
		return RenderError(c, http.StatusBadRequest, err.Error())
	}

	station, err := ValidateHomeStation(r.planner, request.HomeStation)
	if err != nil {
		return RenderError(c, http.StatusBadRequest, err.Error())
	}

	courses := make([]*dataobjects.Course, len(request.Courses))
	for i := range request.Courses {
		courses[i] = request.Courses[i].toCourse(user.ID)
		if err := courses[i].Validate(); err != nil {
			return RenderError(c, http.StatusBadRequest, err.Error())
		}
	}

	err = user.ApplyOnboarding(r.node, station, request.Locale, courses)
	if errors.Is(err, dataobjects.ErrUnsupportedLocale) {
		return RenderError(c, http.StatusBadRequest, err.Error())
	} else if err != nil {
		return RenderInternalError(c, err)
	}

	if err := r.store.SetOnboarded(c.Request.Context(), user.ID); err != nil {
		return RenderInternalError(c, err)
	}
	user.SetupComplete = true
	RenderData(c, userToAPI(user))
	return nil
}

// ValidateHomeStation returns the canonical ID of the station, provided the
// planner can compute itineraries from it
func ValidateHomeStation(planner *transit.Planner, station string) (string, error) {
	canonical := transit.CanonicalStation(station)
	if canonical == "" {
		return "", errors.New("a home station is required")
	}
	if planner != nil && !funk.ContainsString(planner.Stations(), canonical) {
		return "", errors.New("unknown station " + station)
	}
	return canonical, nil
}

// Session composites resource
type Session struct {
	resource
	guard *gate.Guard
}

type apiSession struct {
	Status    string `msgpack:"status" json:"status"`
	Onboarded bool   `msgpack:"onboarded" json:"onboarded"`
	Target    string `msgpack:"target" json:"target"`
}

// WithGuard associates a Guard with this resource
func (r *Session) WithGuard(guard *gate.Guard) *Session {
	r.guard = guard
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Session) Get(c *yarf.Context) error {
	state, identity, err := r.guard.Resolve(c.Request)
	if err != nil {
		return RenderInternalError(c, err)
	}

	status := identity.Status
	if state == gate.Loading && status == "" {
		status = gate.AuthLoading
	}
	RenderData(c, apiSession{
		Status:    string(status),
		Onboarded: state == gate.AuthenticatedOnboarded,
		Target:    string(state.Target()),
	})
	return nil
}
