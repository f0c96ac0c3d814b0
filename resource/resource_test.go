package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/directions"
	"github.com/campusplanner/campusplanner/gate"
	"github.com/campusplanner/campusplanner/scraper"
	"github.com/campusplanner/campusplanner/transit"
	"github.com/gbl08ma/sqalx"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yarf-framework/yarf"
	_ "modernc.org/sqlite"
)

const userHeader = "X-Test-User"

type fakeForecast struct {
	forecast *scraper.Forecast
}

func (f *fakeForecast) Forecast() (*scraper.Forecast, error) {
	if f.forecast == nil {
		return nil, scraper.ErrNoForecast
	}
	return f.forecast, nil
}

type fakeNews []*scraper.NewsItem

func (f fakeNews) Items() []*scraper.NewsItem {
	return f
}

type fakeFinder struct {
	last  directions.Query
	route *directions.Route
	err   error
}

func (f *fakeFinder) Route(ctx context.Context, q directions.Query) (*directions.Route, error) {
	f.last = q
	return f.route, f.err
}

type testAPI struct {
	t       *testing.T
	node    sqalx.Node
	server  *httptest.Server
	user    *dataobjects.User
	other   *dataobjects.User
	store   *gate.CachedStore
	weather *fakeForecast
	finder  *fakeFinder
}

func newTestPlanner(t *testing.T) *transit.Planner {
	t.Helper()
	table, err := transit.LoadScheduleFile("../transit/testdata/schedule.json")
	require.NoError(t, err)
	location := time.FixedZone("JST", 9*60*60)
	return &transit.Planner{
		Table: table,
		Commute: transit.Commute{
			TrainLine:   "keio",
			BusLine:     "campus_bus",
			Hub:         "Kitano",
			BusStop:     "Kitano Station North",
			School:      "Campus",
			WalkMinutes: 5,
		},
		Location: location,
		Status:   transit.NominalStatus{},
		Now:      func() time.Time { return time.Date(2026, 4, 8, 16, 50, 0, 0, location) },
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, dataobjects.EnsureSchema(db))
	dataobjects.UsePlaceholderFormat(sq.Question)
	t.Cleanup(func() { dataobjects.UsePlaceholderFormat(sq.Dollar) })
	node, err := sqalx.New(db)
	require.NoError(t, err)

	api := &testAPI{
		t:       t,
		node:    node,
		store:   gate.NewCachedStore(&dataobjects.OnboardingRecords{Node: node}, time.Minute),
		weather: &fakeForecast{},
		finder:  &fakeFinder{},
	}
	api.user = api.newUser("sub-1", "Hanako")
	api.other = api.newUser("sub-2", "Taro")

	auth := gate.AuthenticatorFunc(func(r *http.Request) (gate.Identity, error) {
		id := r.Header.Get(userHeader)
		if id == "" {
			return gate.Identity{Status: gate.AuthUnauthenticated}, nil
		}
		if _, err := dataobjects.GetUser(node, id); err != nil {
			return gate.Identity{Status: gate.AuthUnauthenticated}, nil
		}
		return gate.Identity{Status: gate.AuthAuthenticated, UserID: id}, nil
	})
	guard := &gate.Guard{Auth: auth, Store: api.store}
	planner := newTestPlanner(t)

	y := yarf.New()
	v1 := yarf.RouteGroup("/v1")
	v1.Add("/meta", new(Meta).WithPlanner(planner).WithVersion("test", time.Now()))
	v1.Add("/transit/route", new(TransitRoute).WithPlanner(planner))
	v1.Add("/courses", new(Course).WithNode(node).WithAuthenticator(auth))
	v1.Add("/courses/clashes", new(CourseClashes).WithNode(node).WithAuthenticator(auth))
	v1.Add("/assignments", new(Assignment).WithNode(node).WithAuthenticator(auth))
	v1.Add("/assignments/:id", new(Assignment).WithNode(node).WithAuthenticator(auth))
	v1.Add("/exams", new(Exam).WithNode(node).WithAuthenticator(auth))
	v1.Add("/exams/:id", new(Exam).WithNode(node).WithAuthenticator(auth))
	v1.Add("/weather", new(Weather).WithSource(api.weather))
	v1.Add("/news", new(News).WithSource(fakeNews{
		{Title: "Library hours extended"},
		{Title: "Festival this weekend"},
	}))
	v1.Add("/directions", new(Directions).WithNode(node).WithAuthenticator(auth).WithFinder(api.finder))
	v1.Add("/me", new(Me).WithNode(node).WithAuthenticator(auth).WithStore(api.store))
	v1.Add("/me/onboarding", new(Onboarding).WithNode(node).WithAuthenticator(auth).
		WithStore(api.store).WithPlanner(planner))
	v1.Add("/session", new(Session).WithGuard(guard))
	v1.Add("/calendar/:token", new(Calendar).WithNode(node).WithLocation(planner.Location))
	v1.Add("/feed/:token", new(DeadlineFeed).WithNode(node).WithWebsiteURL("https://campus.example"))
	y.AddGroup(v1)

	api.server = httptest.NewServer(y)
	t.Cleanup(api.server.Close)
	return api
}

func (api *testAPI) newUser(sub, name string) *dataobjects.User {
	user, err := dataobjects.NewUser(sub, sub+"@example.com", name)
	require.NoError(api.t, err)
	require.NoError(api.t, user.Update(api.node))
	return user
}

// do performs a request as the given user (anonymously when userID is empty)
// and returns the status code and body
func (api *testAPI) do(method, path, userID string, body interface{}) (int, []byte) {
	api.t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(api.t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, api.server.URL+path, reader)
	require.NoError(api.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(api.t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(api.t, err)
	return res.StatusCode, b
}

func (api *testAPI) decode(b []byte, v interface{}) {
	api.t.Helper()
	require.NoError(api.t, json.Unmarshal(b, v), string(b))
}

func TestMeta(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do("GET", "/v1/meta", "", nil)
	require.Equal(t, http.StatusOK, status)
	var meta apiMeta
	api.decode(body, &meta)
	assert.True(t, meta.Supported)
	assert.Equal(t, "test", meta.Version)
	assert.Contains(t, meta.Stations, "shinjuku")
	assert.Equal(t, transit.Weekday, meta.DayType)
}

func TestTransitRoute(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do("POST", "/v1/transit/route", "", map[string]string{
		"type":               "to_school",
		"originStation":      "Shinjuku",
		"arrivalDeadlineStr": "09:00",
		"dayType":            "weekday",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var outbound struct {
		RecommendedDepartureTime string            `json:"recommendedDepartureTime"`
		FinalArrivalTime         string            `json:"finalArrivalTime"`
		Steps                    []json.RawMessage `json:"steps"`
	}
	api.decode(body, &outbound)
	assert.Equal(t, "08:00", outbound.RecommendedDepartureTime)
	assert.Len(t, outbound.Steps, 3)

	status, body = api.do("POST", "/v1/transit/route", "", map[string]string{
		"type":               "from_school",
		"destinationStation": "Shinjuku",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var returns []map[string]interface{}
	api.decode(body, &returns)
	require.Len(t, returns, 2)
	assert.Equal(t, "17:00", returns[0]["departureFromSchoolTime"])

	status, body = api.do("POST", "/v1/transit/route", "", map[string]string{
		"type":               "to_school",
		"originStation":      "Shinjuku",
		"arrivalDeadlineStr": "08:00",
		"dayType":            "weekday",
	})
	assert.Equal(t, http.StatusNotFound, status)
	var apierr apiError
	api.decode(body, &apierr)
	assert.NotEmpty(t, apierr.Message)

	status, _ = api.do("POST", "/v1/transit/route", "", map[string]string{"type": "round_trip"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do("POST", "/v1/transit/route", "", map[string]string{
		"type":               "to_school",
		"originStation":      "Shinjuku",
		"arrivalDeadlineStr": "9am",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCourses(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do("GET", "/v1/courses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := api.do("PUT", "/v1/courses", api.user.ID, []apiCourse{
		{Name: "Algorithms", Weekday: 1, Start: "09:00", End: "10:30", Room: "A-101"},
		{Name: "Databases", Weekday: 1, Start: "10:00", End: "11:00"},
		{Name: "Physics", Weekday: 5, Start: "10:40", End: "12:10"},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = api.do("GET", "/v1/courses", api.user.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var courses []apiCourse
	api.decode(body, &courses)
	require.Len(t, courses, 3)
	assert.Equal(t, "Algorithms", courses[0].Name)
	assert.NotEmpty(t, courses[0].ID)

	status, body = api.do("GET", "/v1/courses/clashes", api.user.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var clashes []apiCourseClash
	api.decode(body, &clashes)
	require.Len(t, clashes, 1)
	assert.Equal(t, "Algorithms", clashes[0].A.Name)
	assert.Equal(t, "Databases", clashes[0].B.Name)

	status, _ = api.do("PUT", "/v1/courses", api.user.ID, []apiCourse{
		{Name: "Backwards", Weekday: 2, Start: "12:00", End: "11:00"},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// the other user's timetable is untouched by all of the above
	status, body = api.do("GET", "/v1/courses", api.other.ID, nil)
	require.Equal(t, http.StatusOK, status)
	api.decode(body, &courses)
	assert.Empty(t, courses)
}

func TestAssignments(t *testing.T) {
	api := newTestAPI(t)
	require.NoError(t, dataobjects.ReplaceCoursesForUser(api.node, api.other.ID, []*dataobjects.Course{
		{Name: "Taro's course", Weekday: 1, Start: "09:00", End: "10:00"},
	}))
	otherCourses, err := api.other.Courses(api.node)
	require.NoError(t, err)

	due := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	status, body := api.do("POST", "/v1/assignments", api.user.ID, apiAssignment{
		Title: "Essay",
		Due:   due,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var created apiAssignment
	api.decode(body, &created)
	require.NotEmpty(t, created.ID)
	assert.True(t, due.Equal(created.Due))

	status, _ = api.do("POST", "/v1/assignments", api.user.ID, apiAssignment{Due: due})
	assert.Equal(t, http.StatusBadRequest, status, "an assignment without title")

	status, _ = api.do("POST", "/v1/assignments", api.user.ID, apiAssignment{
		Title:    "Sneaky",
		Due:      due,
		CourseID: otherCourses[0].ID,
	})
	assert.Equal(t, http.StatusBadRequest, status, "an assignment on another user's course")

	status, _ = api.do("GET", "/v1/assignments/"+created.ID, api.other.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = api.do("DELETE", "/v1/assignments/"+created.ID, api.other.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	created.Done = true
	status, body = api.do("PUT", "/v1/assignments/"+created.ID, api.user.ID, created)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = api.do("GET", "/v1/assignments?upcoming=1", api.user.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var upcoming []apiAssignment
	api.decode(body, &upcoming)
	assert.Empty(t, upcoming, "done assignments are not upcoming")

	status, body = api.do("GET", "/v1/assignments", api.user.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var all []apiAssignment
	api.decode(body, &all)
	require.Len(t, all, 1)
	assert.True(t, all[0].Done)

	status, _ = api.do("GET", "/v1/assignments?upcoming=1&limit=zero", api.user.ID, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do("DELETE", "/v1/assignments/"+created.ID, api.user.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = api.do("GET", "/v1/assignments/"+created.ID, api.user.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestExams(t *testing.T) {
	api := newTestAPI(t)

	start := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Minute)
	status, body := api.do("POST", "/v1/exams", api.user.ID, apiExam{
		Title:           "Algorithms final",
		Location:        "Hall 1",
		Start:           start,
		DurationMinutes: 90,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var created apiExam
	api.decode(body, &created)
	assert.Equal(t, 90, created.DurationMinutes)

	status, _ = api.do("POST", "/v1/exams", api.user.ID, apiExam{
		Title: "Zero length",
		Start: start,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	created.Location = "Hall 2"
	status, _ = api.do("PUT", "/v1/exams/"+created.ID, api.user.ID, created)
	assert.Equal(t, http.StatusOK, status)

	status, body = api.do("GET", "/v1/exams?upcoming=1&limit=5", api.user.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var upcoming []apiExam
	api.decode(body, &upcoming)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Hall 2", upcoming[0].Location)

	status, _ = api.do("PUT", "/v1/exams/"+created.ID, api.other.ID, created)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do("DELETE", "/v1/exams/"+created.ID, api.user.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestOnboardingAndSession(t *testing.T) {
	api := newTestAPI(t)

	var session apiSession
	status, body := api.do("GET", "/v1/session", "", nil)
	require.Equal(t, http.StatusOK, status)
	api.decode(body, &session)
	assert.Equal(t, apiSession{Status: "unauthenticated", Target: "login"}, session)

	status, body = api.do("GET", "/v1/session", api.user.ID, nil)
	require.Equal(t, http.StatusOK, status)
	api.decode(body, &session)
	assert.Equal(t, apiSession{Status: "authenticated", Target: "onboarding"}, session)

	status, _ = api.do("POST", "/v1/me/onboarding", api.user.ID, apiOnboardingRequest{
		HomeStation: "Atlantis",
		Locale:      "en_US",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do("POST", "/v1/me/onboarding", api.user.ID, apiOnboardingRequest{
		HomeStation: "Shinjuku",
		Locale:      "tlh_QO",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = api.do("POST", "/v1/me/onboarding", api.user.ID, apiOnboardingRequest{
		HomeStation: "Shinjuku",
		Locale:      "ja_JP",
		Courses: []apiCourse{
			{Name: "Algorithms", Weekday: 1, Start: "09:00", End: "10:30"},
		},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var me apiUser
	api.decode(body, &me)
	assert.True(t, me.SetupComplete)
	assert.Equal(t, "shinjuku", me.HomeStation)

	status, body = api.do("GET", "/v1/session", api.user.ID, nil)
	require.Equal(t, http.StatusOK, status)
	api.decode(body, &session)
	assert.Equal(t, apiSession{Status: "authenticated", Onboarded: true, Target: "dashboard"}, session)

	onboarded, err := (&dataobjects.OnboardingRecords{Node: api.node}).Onboarded(context.Background(), api.user.ID)
	require.NoError(t, err)
	assert.True(t, onboarded, "the flag must reach the authoritative store")
}

func TestMeDelete(t *testing.T) {
	api := newTestAPI(t)
	require.NoError(t, api.store.SetOnboarded(context.Background(), api.user.ID))

	status, body := api.do("GET", "/v1/me", api.user.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var me apiUser
	api.decode(body, &me)
	assert.Equal(t, "Hanako", me.DisplayName)
	assert.True(t, me.SetupComplete)

	status, _ = api.do("DELETE", "/v1/me", api.user.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = api.do("GET", "/v1/me", api.user.ID, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	_, err := dataobjects.GetUser(api.node, api.user.ID)
	assert.ErrorIs(t, err, dataobjects.ErrNotFound)

	// the cached copy went away with the account
	_, cached := api.store.Onboarded(context.Background(), api.user.ID)
	assert.Error(t, cached)
}

func TestMeDeleteFailureKeepsOnboarding(t *testing.T) {
	api := newTestAPI(t)
	require.NoError(t, api.store.SetOnboarded(context.Background(), api.user.ID))

	_, err := api.node.Exec(`CREATE TRIGGER keep_users BEFORE DELETE ON app_user BEGIN SELECT RAISE(ABORT, 'user rows are locked'); END`)
	require.NoError(t, err)

	status, _ := api.do("DELETE", "/v1/me", api.user.ID, nil)
	assert.Equal(t, http.StatusInternalServerError, status)

	onboarded, err := (&dataobjects.OnboardingRecords{Node: api.node}).Onboarded(context.Background(), api.user.ID)
	require.NoError(t, err)
	assert.True(t, onboarded, "a failed deletion must leave the flag set")
}

func TestCalendarAndFeed(t *testing.T) {
	api := newTestAPI(t)
	require.NoError(t, dataobjects.ReplaceCoursesForUser(api.node, api.user.ID, []*dataobjects.Course{
		{Name: "Algorithms", Weekday: 1, Start: "09:00", End: "10:30", Room: "A-101"},
	}))
	assignment, err := dataobjects.NewAssignment(api.user.ID)
	require.NoError(t, err)
	assignment.Title = "Sorting homework"
	assignment.Due = time.Now().Add(24 * time.Hour)
	require.NoError(t, assignment.Update(api.node))

	status, _ := api.do("GET", "/v1/calendar/nope.ics", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body := api.do("GET", "/v1/calendar/"+api.user.FeedToken+".ics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")
	assert.Contains(t, string(body), "Algorithms")

	status, _ = api.do("GET", "/v1/feed/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = api.do("GET", "/v1/feed/"+api.user.FeedToken, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "<feed")
	assert.Contains(t, string(body), "Due: Sorting homework")
}

func TestCampusResources(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do("GET", "/v1/weather", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	high := 21
	api.weather.forecast = &scraper.Forecast{Summary: "Sunny", HighC: &high}
	status, body := api.do("GET", "/v1/weather", "", nil)
	require.Equal(t, http.StatusOK, status)
	var forecast scraper.Forecast
	api.decode(body, &forecast)
	assert.Equal(t, "Sunny", forecast.Summary)
	require.NotNil(t, forecast.HighC)
	assert.Equal(t, 21, *forecast.HighC)

	status, body = api.do("GET", "/v1/news?limit=1", "", nil)
	require.Equal(t, http.StatusOK, status)
	var items []scraper.NewsItem
	api.decode(body, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "Library hours extended", items[0].Title)

	status, _ = api.do("GET", "/v1/directions?origin=a&destination=b", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	api.finder.route = &directions.Route{Summary: "Keio Line", DurationSeconds: 2400}
	status, body = api.do("GET", "/v1/directions?origin=Shinjuku&destination=Campus&arrival=2026-04-09T09:00:00%2B09:00", api.user.ID, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "transit", api.finder.last.Mode)
	assert.Equal(t, "Shinjuku", api.finder.last.Origin)
	assert.Equal(t, 9, api.finder.last.ArrivalTime.Hour())

	status, _ = api.do("GET", "/v1/directions?origin=a&destination=b&arrival=tomorrow", api.user.ID, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	api.finder.err = directions.ErrNoRoute
	status, _ = api.do("GET", "/v1/directions?origin=a&destination=b", api.user.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
