package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/campusplanner/campusplanner/accounts"
	"github.com/campusplanner/campusplanner/metrics"
	"github.com/campusplanner/campusplanner/resource"
	"github.com/campusplanner/campusplanner/website"
	"github.com/go-chi/cors"
	"github.com/thoas/go-funk"
	"github.com/yarf-framework/yarf"
)

// first path segments of the API, used as the route label of request metrics
var apiRoutes = []string{"meta", "transit", "courses", "assignments", "exams", "weather",
	"news", "directions", "me", "session", "calendar", "feed"}

// APIHandler returns the handler of the API, meant to be mounted under /api.
// Cross-origin requests are accepted from allowedOrigins.
func APIHandler(auth *accounts.Manager, allowedOrigins []string) http.Handler {
	y := yarf.New()

	v1 := yarf.RouteGroup("/v1")

	v1.Add("/meta", new(resource.Meta).WithPlanner(planner).WithVersion(GitCommit, startTime))
	v1.Add("/transit/route", new(resource.TransitRoute).WithPlanner(planner))

	v1.Add("/courses", new(resource.Course).WithNode(rootSqalxNode).WithAuthenticator(auth))
	v1.Add("/courses/clashes", new(resource.CourseClashes).WithNode(rootSqalxNode).WithAuthenticator(auth))

	v1.Add("/assignments", new(resource.Assignment).WithNode(rootSqalxNode).WithAuthenticator(auth))
	v1.Add("/assignments/:id", new(resource.Assignment).WithNode(rootSqalxNode).WithAuthenticator(auth))

	v1.Add("/exams", new(resource.Exam).WithNode(rootSqalxNode).WithAuthenticator(auth))
	v1.Add("/exams/:id", new(resource.Exam).WithNode(rootSqalxNode).WithAuthenticator(auth))

	weather := new(resource.Weather)
	if weatherScraper != nil {
		weather.WithSource(weatherScraper)
	}
	v1.Add("/weather", weather)
	news := new(resource.News)
	if newsScraper != nil {
		news.WithSource(newsScraper)
	}
	v1.Add("/news", news)
	dirs := new(resource.Directions).WithNode(rootSqalxNode).WithAuthenticator(auth)
	if directionsClient != nil {
		dirs.WithFinder(directionsClient)
	}
	v1.Add("/directions", dirs)

	v1.Add("/me", new(resource.Me).
		WithNode(rootSqalxNode).
		WithAuthenticator(auth).
		WithStore(onboardingStore).
		WithSessionTerminator(auth))
	v1.Add("/me/onboarding", new(resource.Onboarding).
		WithNode(rootSqalxNode).
		WithAuthenticator(auth).
		WithStore(onboardingStore).
		WithPlanner(planner))
	v1.Add("/session", new(resource.Session).WithGuard(website.Guard()))

	v1.Add("/calendar/:token", new(resource.Calendar).
		WithNode(rootSqalxNode).
		WithPlanner(planner).
		WithLocation(planner.Location))
	v1.Add("/feed/:token", new(resource.DeadlineFeed).
		WithNode(rootSqalxNode).
		WithWebsiteURL(website.BaseURL()))

	y.AddGroup(v1)

	y.Logger = apiLog

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(apiTelemetry(y))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// apiTelemetry counts API requests and measures their latency
func apiTelemetry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		registerAPIRequest(time.Since(start))
		metrics.APIRequests.WithLabelValues(apiRouteLabel(r.URL.Path), strconv.Itoa(rec.status)).Inc()
	})
}

func apiRouteLabel(path string) string {
	segment := strings.SplitN(strings.TrimPrefix(path, "/v1/"), "/", 2)[0]
	if funk.ContainsString(apiRoutes, segment) {
		return segment
	}
	return "other"
}
