// Package accounts implements Google sign-in and the session cookie that
// identifies students on the website and the API
package accounts

import (
	"encoding/gob"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gbl08ma/sqalx"
	"github.com/gorilla/sessions"
	"golang.org/x/oauth2"
)

// GoogleEndpoint is the OAuth 2.0 endpoint of Google accounts
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint of Google accounts
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

const (
	// SessionName is the name of the session in the session store
	SessionName = "campusplanner"
	// SessionLongevity is how long a session lasts after sign-in
	SessionLongevity = 14 * 24 * time.Hour
)

// Config contains runtime accounts subsystem configuration
type Config struct {
	Log   *log.Logger
	Store sessions.Store
	Node  sqalx.Node

	ClientID     string
	ClientSecret string
	// RedirectURL is the absolute URL of the OAuth callback handler
	RedirectURL string
	// HomePath is where clients are sent after signing in or out
	HomePath string
	// Secure marks the session cookie as HTTPS-only
	Secure bool

	// Endpoint and UserInfoURL default to Google's
	Endpoint    oauth2.Endpoint
	UserInfoURL string
	// HTTPClient is used to talk to the OAuth provider, when not nil
	HTTPClient *http.Client
}

// Manager signs students in and out and finds the session of requests
type Manager struct {
	config      Config
	oauthConfig *oauth2.Config
}

func init() {
	// register Session with gob so it can be saved in cookies
	gob.Register(Session{})
}

// New returns a Manager for the given configuration
func New(config Config) (*Manager, error) {
	if config.ClientID == "" {
		return nil, errors.New("Google OAuth client ID not configured")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("Google OAuth client secret not configured")
	}
	if config.Store == nil || config.Node == nil {
		return nil, errors.New("accounts need a session store and a database node")
	}
	if config.Log == nil {
		config.Log = log.New(log.Writer(), "accounts", log.Ldate|log.Ltime)
	}
	if config.HomePath == "" {
		config.HomePath = "/"
	}
	if config.Endpoint.AuthURL == "" {
		config.Endpoint = GoogleEndpoint
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = GoogleUserInfoURL
	}

	return &Manager{
		config: config,
		oauthConfig: &oauth2.Config{
			RedirectURL:  config.RedirectURL,
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     config.Endpoint,
		},
	}, nil
}
