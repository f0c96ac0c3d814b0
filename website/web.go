package website

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/gate"
	"github.com/campusplanner/campusplanner/scraper"
	"github.com/campusplanner/campusplanner/transit"
	"github.com/gbl08ma/sqalx"
	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
)

// Accounts is what the website needs from the account system
type Accounts interface {
	gate.Authenticator
	CurrentUser(r *http.Request) (*dataobjects.User, error)
	Logout(r *http.Request, w http.ResponseWriter) error
	LoginHandler(w http.ResponseWriter, r *http.Request)
	LogoutHandler(w http.ResponseWriter, r *http.Request)
	CallbackHandler(w http.ResponseWriter, r *http.Request)
}

// ForecastSource provides the latest weather forecast
type ForecastSource interface {
	Forecast() (*scraper.Forecast, error)
}

// NewsSource provides the latest campus news
type NewsSource interface {
	Items() []*scraper.NewsItem
}

// AdminStats are the figures shown on the admin page
type AdminStats struct {
	APILatency       time.Duration
	APIRequests      int64
	DirectionsCached int
	OnboardingCached int
	WeatherUpdated   time.Time
	NewsUpdated      time.Time
}

// Config contains runtime website configuration
type Config struct {
	Node     sqalx.Node
	Log      *log.Logger
	Accounts Accounts
	Store    *gate.CachedStore
	Planner  *transit.Planner
	Weather  ForecastSource
	News     NewsSource
	// Stats, when set, is called to fill the admin page
	Stats func() AdminStats

	CSRFAuthKey []byte
	WebsiteURL  string
	// Admins are the e-mail addresses of the users allowed on the admin page
	Admins []string
	// TemplateGlob is where the page templates are loaded from
	TemplateGlob string
	// StaticPath is the directory served under /static/
	StaticPath string
	// StoreTimeout bounds how long pages wait for the onboarding flag
	StoreTimeout time.Duration
}

var config Config
var webtemplate *template.Template
var csrfMiddleware mux.MiddlewareFunc
var guard *gate.Guard

// Paths of the pages the navigation gate sends clients to
var pagePaths = map[gate.Page]string{
	gate.PageLogin:      "/login",
	gate.PageOnboarding: "/onboarding",
	gate.PageDashboard:  "/dashboard",
}

// pageCommons contains information that is required by most page templates
type pageCommons struct {
	CSRFfield  template.HTML
	PageTitle  string
	DebugBuild bool
	User       *dataobjects.User
	IsAdmin    bool
	Message    string
	IsError    bool
}

// Initialize initializes the package
func Initialize(webconfig Config) error {
	if webconfig.Node == nil || webconfig.Accounts == nil || webconfig.Store == nil {
		return errors.New("website: node, accounts and onboarding store are required")
	}
	if len(webconfig.CSRFAuthKey) != 32 {
		return errors.New("website: CSRF auth key must be 32 bytes long")
	}
	if webconfig.TemplateGlob == "" {
		webconfig.TemplateGlob = "web/*.html"
	}
	if webconfig.StaticPath == "" {
		webconfig.StaticPath = "static/"
	}
	if webconfig.StoreTimeout == 0 {
		webconfig.StoreTimeout = 2 * time.Second
	}
	config = webconfig

	csrfOpts := []csrf.Option{csrf.FieldName(CSRFfieldName), csrf.CookieName(CSRFcookieName), csrf.Path("/")}
	if DEBUG {
		csrfOpts = append(csrfOpts, csrf.Secure(false))
	}
	csrfMiddleware = csrf.Protect(config.CSRFAuthKey, csrfOpts...)

	guard = &gate.Guard{
		Auth:         config.Accounts,
		Store:        config.Store,
		Paths:        pagePaths,
		StoreTimeout: config.StoreTimeout,
		Log:          config.Log,
	}

	return ReloadTemplates()
}

// Guard returns the navigation gate used by the website
func Guard() *gate.Guard {
	return guard
}

// ConfigureRouter configures a router to handle website paths
func ConfigureRouter(router *mux.Router) {
	router.Handle("/", guard.Dispatch())
	router.Handle("/login", guard.Require(gate.PageLogin)(http.HandlerFunc(loginPage)))
	router.Handle("/onboarding", guard.Require(gate.PageOnboarding)(http.HandlerFunc(onboardingPage)))
	router.Handle("/dashboard", guard.Require(gate.PageDashboard)(http.HandlerFunc(dashboardPage)))
	router.Handle("/timetable", guard.Require(gate.PageDashboard)(http.HandlerFunc(timetablePage)))
	router.Handle("/transit-route", guard.Require(gate.PageDashboard)(http.HandlerFunc(transitRoutePage))).
		Methods(http.MethodPost)

	router.HandleFunc("/account/delete", deleteAccount).Methods(http.MethodPost)
	router.HandleFunc("/account/feed-token", regenerateFeedToken).Methods(http.MethodPost)
	router.HandleFunc("/admin", adminPage)

	router.HandleFunc("/auth/login", config.Accounts.LoginHandler)
	router.HandleFunc("/auth/logout", config.Accounts.LogoutHandler)
	router.HandleFunc("/auth/callback", config.Accounts.CallbackHandler)

	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(config.StaticPath))))

	if DEBUG {
		router.HandleFunc("/debug/pprof/", pprof.Index)
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.Use(templateReloadingMiddleware)
	}
	router.Use(csrfMiddleware)
}

func templateReloadingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ReloadTemplates(); err != nil {
			config.Log.Println(err)
		}
		next.ServeHTTP(w, r)
	})
}

// ReloadTemplates reloads the templates for the website
func ReloadTemplates() error {
	funcMap := template.FuncMap{
		"formatDate":       formatDate,
		"formatDateTime":   formatDateTime,
		"formatDueIn":      formatDueIn,
		"daysUntil":        daysUntil,
		"weekdayName":      weekdayName,
		"deref":            deref,
		"durationMinutes":  durationMinutes,
		"supportedLocales": func() []string { return dataobjects.SupportedLocales },
		"blankCourse": func() *dataobjects.Course {
			return &dataobjects.Course{Weekday: time.Monday}
		},
	}

	t, err := template.New("index.html").Funcs(funcMap).ParseGlob(config.TemplateGlob)
	if err != nil {
		return err
	}
	webtemplate = t
	return nil
}

// initPageCommons fills pageCommons with the info that is required by most page templates
func initPageCommons(r *http.Request, title string, user *dataobjects.User) pageCommons {
	return pageCommons{
		CSRFfield:  csrf.TemplateField(r),
		PageTitle:  title + " | Campus Planner",
		DebugBuild: DEBUG,
		User:       user,
		IsAdmin:    isAdmin(user),
	}
}

// BaseURL returns the base URL of the website without trailing slash
func BaseURL() string {
	return strings.TrimSuffix(config.WebsiteURL, "/")
}

func renderPage(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := webtemplate.ExecuteTemplate(w, name, data)
	if err != nil {
		config.Log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func internalError(w http.ResponseWriter, err error) {
	config.Log.Println(err)
	w.WriteHeader(http.StatusInternalServerError)
}

// currentUser returns the user of the session of r. Pages behind the gate
// always have one.
func currentUser(w http.ResponseWriter, r *http.Request) (*dataobjects.User, bool) {
	user, err := config.Accounts.CurrentUser(r)
	if err != nil {
		internalError(w, err)
		return nil, false
	}
	if user == nil {
		http.Redirect(w, r, pagePaths[gate.PageLogin], http.StatusSeeOther)
		return nil, false
	}
	return user, true
}

func loginPage(w http.ResponseWriter, r *http.Request) {
	p := struct {
		pageCommons
	}{
		pageCommons: initPageCommons(r, "Sign in", nil),
	}
	if r.URL.Query().Get("error") != "" {
		p.Message = "Sign in did not complete. Please try again."
		p.IsError = true
	}
	renderPage(w, "login.html", p)
}
