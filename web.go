package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/campusplanner/campusplanner/accounts"
	"github.com/campusplanner/campusplanner/metrics"
	"github.com/campusplanner/campusplanner/report"
	"github.com/campusplanner/campusplanner/utils"
	"github.com/campusplanner/campusplanner/website"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
)

// WebServer starts the web server, which serves the website, the API and the
// metrics, and blocks until it terminates
func WebServer(addr string) error {
	webLog.Println("Starting Web server...")

	webKeybox, present := secrets.GetBox("web")
	if !present {
		return errors.New("web keybox not present in keybox")
	}
	authKey, present := webKeybox.Get("cookieAuthKey")
	if !present {
		return errors.New("cookie auth key not present in web keybox")
	}
	cipherKey, present := webKeybox.Get("cookieCipherKey")
	if !present {
		return errors.New("cookie cipher key not present in web keybox")
	}
	csrfAuthKey, present := webKeybox.Get("csrfAuthKey")
	if !present {
		return errors.New("CSRF auth key not present in web keybox")
	}
	websiteURL, present := webKeybox.Get("websiteURL")
	if !present {
		return errors.New("website URL not present in web keybox")
	}
	admins, _ := webKeybox.Get("admins")

	googleBox, present := secrets.GetBox("google")
	if !present {
		return errors.New("google keybox not present in keybox")
	}
	clientID, _ := googleBox.Get("clientID")
	clientSecret, _ := googleBox.Get("clientSecret")

	websiteURL = strings.TrimSuffix(websiteURL, "/")
	accountManager, err := accounts.New(accounts.Config{
		Log:          accountsLog,
		Store:        sessions.NewCookieStore([]byte(authKey), []byte(cipherKey)),
		Node:         rootSqalxNode,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  websiteURL + "/auth/callback",
		HomePath:     "/",
		Secure:       !DEBUG,
		HTTPClient:   upstreamClient("google"),
	})
	if err != nil {
		return err
	}

	websiteConfig := website.Config{
		Node:        rootSqalxNode,
		Log:         webLog,
		Accounts:    accountManager,
		Store:       onboardingStore,
		Planner:     planner,
		Stats:       adminStats,
		CSRFAuthKey: []byte(csrfAuthKey),
		WebsiteURL:  websiteURL,
		Admins:      splitList(admins),
	}
	// leave the interfaces nil, not holding nil pointers, when disabled
	if weatherScraper != nil {
		websiteConfig.Weather = weatherScraper
	}
	if newsScraper != nil {
		websiteConfig.News = newsScraper
	}
	if err := website.Initialize(websiteConfig); err != nil {
		return err
	}

	router := mux.NewRouter().StrictSlash(true)
	router.Handle("/metrics", metrics.Handler())
	router.PathPrefix("/api/").Handler(http.StripPrefix("/api", APIHandler(accountManager, []string{websiteURL})))
	// the website gets its own subrouter so that its CSRF middleware stays off the API
	website.ConfigureRouter(router.NewRoute().Subrouter())

	var handler http.Handler = router
	if DEBUG {
		handler = utils.RequestLogger(webLog)(handler)
	}
	server := http.Server{
		Addr:              addr,
		Handler:           report.Middleware(utils.SecurityHeaders(handler)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.ListenAndServe()
	}()
	webLog.Println("Web server listening on", addr)

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	select {
	case err := <-errc:
		return err
	case <-sc:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = server.Shutdown(ctx)
	webLog.Println("Web server terminated")
	return err
}

func adminStats() website.AdminStats {
	latency, total := apiStats()
	stats := website.AdminStats{
		APILatency:       latency,
		APIRequests:      total,
		OnboardingCached: onboardingStore.Len(),
	}
	if directionsClient != nil {
		stats.DirectionsCached = directionsClient.CacheSize()
	}
	if weatherScraper != nil {
		stats.WeatherUpdated = weatherScraper.LastUpdate()
	}
	if newsScraper != nil {
		stats.NewsUpdated = newsScraper.LastUpdate()
	}
	return stats
}

// splitList splits a comma separated keybox value
func splitList(s string) []string {
	list := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
