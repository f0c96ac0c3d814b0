package accounts

import (
	"errors"
	"net/http"
	"time"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/gate"
	uuid "github.com/satori/go.uuid"
	"golang.org/x/oauth2"
)

// Session represents a signed-in student
type Session struct {
	UserID      string
	DisplayName string
	Email       string
	Picture     string
	Expiry      time.Time
}

// NewSession starts a session for the given user and stores it in the session cookie
func (m *Manager) NewSession(r *http.Request, w http.ResponseWriter, user *dataobjects.User) (*Session, error) {
	s := Session{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Picture:     user.Picture,
		Expiry:      time.Now().Add(SessionLongevity),
	}

	session, _ := m.config.Store.Get(r, SessionName)
	session.Options.MaxAge = int(SessionLongevity.Seconds())
	session.Options.HttpOnly = true
	session.Options.Secure = m.config.Secure
	session.Options.SameSite = http.SameSiteLaxMode
	session.Options.Path = "/"
	session.Values["session"] = s
	delete(session.Values, "oauthState")

	if err := session.Save(r, w); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession retrieves the Session from the specified request, if one exists,
// and if not, optionally redirects the client to the Google sign-in page
func (m *Manager) GetSession(r *http.Request, w http.ResponseWriter, doLogin bool) (s *Session, redirected bool, err error) {
	session, _ := m.config.Store.Get(r, SessionName)

	msession, ok := session.Values["session"].(Session)
	if !ok || session.IsNew || time.Now().After(msession.Expiry) {
		if !doLogin {
			return nil, false, nil
		}

		err := m.oauthLogin(r, w)
		if err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	return &msession, false, nil
}

// Logout forcefully terminates the session of the client
func (m *Manager) Logout(r *http.Request, w http.ResponseWriter) error {
	session, _ := m.config.Store.Get(r, SessionName)
	session.Options.MaxAge = -1
	session.Options.Path = "/"
	delete(session.Values, "session")
	return session.Save(r, w)
}

// Identify implements gate.Authenticator. A session whose user no longer
// exists counts as no session.
func (m *Manager) Identify(r *http.Request) (gate.Identity, error) {
	s, _, err := m.GetSession(r, nil, false)
	if err != nil {
		return gate.Identity{Status: gate.AuthLoading}, err
	}
	if s == nil {
		return gate.Identity{Status: gate.AuthUnauthenticated}, nil
	}

	_, err = dataobjects.GetUser(m.config.Node, s.UserID)
	if errors.Is(err, dataobjects.ErrNotFound) {
		return gate.Identity{Status: gate.AuthUnauthenticated}, nil
	} else if err != nil {
		return gate.Identity{Status: gate.AuthLoading}, err
	}
	return gate.Identity{Status: gate.AuthAuthenticated, UserID: s.UserID}, nil
}

// CurrentUser returns the user of the session of r, or nil when there is none
func (m *Manager) CurrentUser(r *http.Request) (*dataobjects.User, error) {
	s, _, err := m.GetSession(r, nil, false)
	if err != nil || s == nil {
		return nil, err
	}
	user, err := dataobjects.GetUser(m.config.Node, s.UserID)
	if errors.Is(err, dataobjects.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

func (m *Manager) oauthLogin(r *http.Request, w http.ResponseWriter) error {
	state, err := uuid.NewV4()
	if err != nil {
		return err
	}
	url := m.oauthConfig.AuthCodeURL(state.String(), oauth2.AccessTypeOnline)

	session, _ := m.config.Store.Get(r, SessionName)
	session.Options.HttpOnly = true
	session.Options.Secure = m.config.Secure
	session.Options.SameSite = http.SameSiteLaxMode
	session.Options.Path = "/"
	session.Values["oauthState"] = state.String()

	err = session.Save(r, w)
	if err != nil {
		return err
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
	return nil
}
