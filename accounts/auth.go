package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/gbl08ma/sqalx"
	"golang.org/x/oauth2"
)

// googleProfile is the subset of the userinfo response we use
type googleProfile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// LoginHandler sends clients without a session to the Google sign-in page
func (m *Manager) LoginHandler(w http.ResponseWriter, r *http.Request) {
	_, redirected, err := m.GetSession(r, w, true)
	if err != nil {
		m.config.Log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !redirected {
		http.Redirect(w, r, m.config.HomePath, http.StatusSeeOther)
	}
}

// LogoutHandler terminates the session of the client. Only POST is accepted
// so that logging out is covered by CSRF protection.
func (m *Manager) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := m.Logout(r, w); err != nil {
		m.config.Log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, m.config.HomePath, http.StatusSeeOther)
}

// CallbackHandler completes the OAuth flow started by LoginHandler
func (m *Manager) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	state := r.FormValue("state")

	session, _ := m.config.Store.Get(r, SessionName)
	expected, ok := session.Values["oauthState"].(string)
	if !ok || expected == "" || state != expected {
		m.config.Log.Println("Session state does not match state in callback request")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if errMsg := r.FormValue("error"); errMsg != "" {
		// the student declined to grant access
		m.config.Log.Println("OAuth provider returned error:", errMsg)
		http.Redirect(w, r, m.config.HomePath, http.StatusSeeOther)
		return
	}

	ctx := r.Context()
	if m.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.config.HTTPClient)
	}

	token, err := m.oauthConfig.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		m.config.Log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if !token.Valid() {
		m.config.Log.Println("Retrieved invalid token")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	profile, err := m.fetchProfile(ctx, token)
	if err != nil {
		m.config.Log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	user, err := upsertUser(m.config.Node, profile)
	if err != nil {
		m.config.Log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	_, err = m.NewSession(r, w, user)
	if err != nil {
		m.config.Log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, m.config.HomePath, http.StatusSeeOther)
}

func (m *Manager) fetchProfile(ctx context.Context, token *oauth2.Token) (*googleProfile, error) {
	client := m.oauthConfig.Client(ctx, token)
	response, err := client.Get(m.config.UserInfoURL)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetchProfile: userinfo endpoint returned %s", response.Status)
	}

	var profile googleProfile
	// userinfo responses are tiny; anything bigger is not what we asked for
	err = json.NewDecoder(io.LimitReader(response.Body, 1<<16)).Decode(&profile)
	if err != nil {
		return nil, fmt.Errorf("fetchProfile: %s", err)
	}
	if profile.Sub == "" {
		return nil, errors.New("fetchProfile: profile has no subject identifier")
	}
	if !profile.EmailVerified {
		profile.Email = ""
	}
	return &profile, nil
}

// upsertUser returns the user for a Google profile, creating it on first sign-in
// and refreshing the name, e-mail and picture on later ones
func upsertUser(node sqalx.Node, profile *googleProfile) (*dataobjects.User, error) {
	tx, err := node.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = strings.Split(profile.Email, "@")[0]
	}

	user, err := dataobjects.GetUserByGoogleSub(tx, profile.Sub)
	if errors.Is(err, dataobjects.ErrNotFound) {
		user, err = dataobjects.NewUser(profile.Sub, profile.Email, name)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		if profile.Email != "" {
			user.Email = profile.Email
		}
		user.DisplayName = name
	}
	user.Picture = profile.Picture

	err = user.Update(tx)
	if err != nil {
		return nil, err
	}
	return user, tx.Commit()
}
